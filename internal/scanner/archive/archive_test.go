package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDetectContainer_ZIP(t *testing.T) {
	b := buildZip(t, map[string][]byte{"a.txt": []byte("hello")})
	assert.Equal(t, ContainerZIP, DetectContainer(b))
}

func TestScan_SuspiciousExtensionAndHidden(t *testing.T) {
	b := buildZip(t, map[string][]byte{
		"payload.exe": []byte("MZ fake"),
		".hidden":     []byte("data"),
	})
	s := New(DefaultConfig())
	result := s.Scan(b)
	var titles []string
	for _, f := range result.Findings {
		titles = append(titles, f.Title)
	}
	assert.Contains(t, titles, "suspicious archived file extension")
	assert.Contains(t, titles, "hidden archive member")
}

func TestScan_ZipBombRatio(t *testing.T) {
	zeros := make([]byte, 2<<20) // 2 MiB of zeros compresses far beyond the 100:1 threshold
	b := buildZip(t, map[string][]byte{"bomb.bin": zeros})
	cfg := DefaultConfig()
	s := New(cfg)
	result := s.Scan(b)

	found := false
	for _, f := range result.Findings {
		if f.Title == "Zip bomb detected" {
			found = true
			assert.Equal(t, model.SeverityCritical, f.Severity)
		}
	}
	assert.True(t, found)
	assert.Equal(t, model.VerdictMalicious, result.Verdict)
}

func TestScan_GzipBomb(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zeros := make([]byte, 2<<20)
	_, err := zw.Write(zeros)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	s := New(DefaultConfig())
	result := s.Scan(buf.Bytes())
	found := false
	for _, f := range result.Findings {
		if f.Title == "Zip bomb detected" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_CleanZip(t *testing.T) {
	b := buildZip(t, map[string][]byte{"readme.txt": []byte("just some text, nothing alarming here")})
	s := New(DefaultConfig())
	result := s.Scan(b)
	assert.Equal(t, model.VerdictBenign, result.Verdict)
}
