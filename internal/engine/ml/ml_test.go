package ml

import (
	"bytes"
	"context"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestAnalyze_CleanTextIsBenign(t *testing.T) {
	e := New(DefaultConfig())
	det, err := e.Analyze(context.Background(), model.Artifact{Bytes: []byte(strings.Repeat("hello world ", 50))})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictBenign, det.Verdict)
	assert.Equal(t, model.EngineML, det.EngineKind)
}

func TestAnalyze_HighEntropyFlagsSuspicious(t *testing.T) {
	e := New(DefaultConfig())
	random := make([]byte, 4096)
	_, err := rand.Read(random)
	require.NoError(t, err)

	det, err := e.Analyze(context.Background(), model.Artifact{Bytes: random})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictSuspicious, det.Verdict)
}

func TestAnalyze_SuspiciousStringsDriveTrojanClass(t *testing.T) {
	e := New(DefaultConfig())
	body := []byte(strings.Repeat("padding text here ", 10) + "\x00cmd.exe\x00powershell\x00regedit\x00taskkill\x00ransom\x00encrypt")
	det, err := e.Analyze(context.Background(), model.Artifact{Bytes: body})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictSuspicious, det.Verdict)
	assert.Contains(t, det.Categories, "ml-classification:trojan")
}

func TestExtractFeatures_EmptyInputDoesNotPanic(t *testing.T) {
	f := extractFeatures(nil)
	assert.Equal(t, 0.0, f.FileSize)
	assert.Equal(t, 0.0, f.Entropy)
}

func TestCodeComplexity_SingleByteValueIsOneOver256(t *testing.T) {
	assert.Equal(t, 1.0/256, codeComplexity(bytes.Repeat([]byte{0x41}, 1000)))
}
