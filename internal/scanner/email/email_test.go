package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatcore/analysis-core/internal/model"
)

func TestScan_CleanEmail(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Reply-To: alice@example.com\r\n" +
		"Date: Mon, 2 Jun 2025 10:00:00 +0000\r\n" +
		"Message-Id: <abc@example.com>\r\n" +
		"Subject: hello\r\n\r\n" +
		"just saying hi\r\n"
	s := New()
	result := s.Scan([]byte(raw))
	assert.Equal(t, model.VerdictBenign, result.Verdict)
}

func TestScan_ReplyToMismatch(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Reply-To: attacker@evil.example\r\n" +
		"Date: Mon, 2 Jun 2025 10:00:00 +0000\r\n" +
		"Message-Id: <abc@example.com>\r\n\r\n" +
		"body\r\n"
	s := New()
	result := s.Scan([]byte(raw))
	found := false
	for _, f := range result.Findings {
		if f.Title == "From/Reply-To domain mismatch" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScan_SpamKeywords(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Date: Mon, 2 Jun 2025 10:00:00 +0000\r\n" +
		"Message-Id: <abc@example.com>\r\n\r\n" +
		"Your account has been suspended, act now and click here to verify your account.\r\n"
	s := New()
	result := s.Scan([]byte(raw))
	require.NotEmpty(t, result.Findings)
	score, ok := result.Metadata["spam_score"].(float64)
	require.True(t, ok)
	assert.Greater(t, score, 0.0)
}

func TestScan_AuthenticationFailure(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Authentication-Results: mx.example.com; spf=fail smtp.mailfrom=evil.example; dkim=pass; dmarc=pass\r\n" +
		"Date: Mon, 2 Jun 2025 10:00:00 +0000\r\n" +
		"Message-Id: <abc@example.com>\r\n\r\n" +
		"body\r\n"
	s := New()
	result := s.Scan([]byte(raw))
	assert.Equal(t, model.VerdictMalicious, result.Verdict)
}

func TestScan_SuspiciousAttachment(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Date: Mon, 2 Jun 2025 10:00:00 +0000\r\n" +
		"Message-Id: <abc@example.com>\r\n" +
		"Content-Disposition: attachment; filename=\"invoice.exe\"\r\n\r\n" +
		"body\r\n"
	s := New()
	result := s.Scan([]byte(raw))
	assert.Equal(t, model.VerdictMalicious, result.Verdict)
}

func TestScan_MalformedMessage(t *testing.T) {
	s := New()
	result := s.Scan([]byte("not a valid\x00message at all"))
	assert.Equal(t, model.VerdictSuspicious, result.Verdict)
}
