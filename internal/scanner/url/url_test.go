package url

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestScan_Blocklisted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Blocklist["evil.example"] = true
	s := New(cfg)
	result := s.Scan(context.Background(), "http://evil.example/path")
	assert.Equal(t, model.VerdictMalicious, result.Verdict)
}

func TestScan_IPBasedURL(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan(context.Background(), "http://1.2.3.4/login")
	found := false
	for _, f := range result.Findings {
		if f.Title == "IP-based URL" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_SuspiciousTLD(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan(context.Background(), "http://free-gift.tk/claim")
	found := false
	for _, f := range result.Findings {
		if f.Title == "suspicious TLD" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_ExcessiveSubdomains(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan(context.Background(), "http://a.b.c.d.example.com/")
	found := false
	for _, f := range result.Findings {
		if f.Title == "excessive subdomains" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_BrandImpersonation(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan(context.Background(), "http://paypal.verify-login.example.net/")
	found := false
	for _, f := range result.Findings {
		if f.Title == "brand impersonation" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, model.VerdictMalicious, result.Verdict)
}

func TestScan_CleanURL(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan(context.Background(), "https://example.com/about")
	assert.Equal(t, model.VerdictBenign, result.Verdict)
	assert.Empty(t, result.Findings)
}

func TestScan_UnparseableURL(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Scan(context.Background(), "::not a url::")
	assert.Equal(t, model.VerdictSuspicious, result.Verdict)
}
