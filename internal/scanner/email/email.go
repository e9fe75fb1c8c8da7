// Package email implements the EmailScanner member of the scanner
// family (C11): header analysis, SPF/DKIM/DMARC parsing, spam/phishing
// keyword scoring, URL extraction, and attachment enumeration.
package email

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/threatcore/analysis-core/internal/model"
	"github.com/threatcore/analysis-core/internal/redact"
)

var urlRE = regexp.MustCompile(`https?://[^\s"'<>]+`)

var spamKeywords = []string{"act now", "urgent", "verify your account", "suspended", "click here", "limited time", "winner", "free money", "wire transfer"}

var suspiciousAttachmentExts = map[string]bool{
	"exe": true, "scr": true, "bat": true, "cmd": true, "js": true, "vbs": true, "ps1": true, "jar": true, "hta": true,
}

// Attachment is one enumerated MIME attachment.
type Attachment struct {
	Filename   string
	Suspicious bool
}

// Scanner is the EmailScanner.
type Scanner struct{}

// New constructs a Scanner.
func New() *Scanner { return &Scanner{} }

// Scan parses a raw RFC 5322 message and produces its ScanResult.
func (s *Scanner) Scan(raw []byte) model.ScanResult {
	start := time.Now()
	var findings []model.Finding

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		findings = append(findings, model.Finding{
			Category: model.FindingSuspicious, Title: "malformed message",
			Description: "message failed RFC 5322 header parsing", Severity: model.SeverityLow,
		})
		return model.ScanResult{Findings: findings, Verdict: model.VerdictSuspicious, ScanDurationMS: time.Since(start).Milliseconds()}
	}

	header := msg.Header
	spamScore := 0.0

	if from := header.Get("From"); from != "" {
		replyTo := header.Get("Reply-To")
		returnPath := header.Get("Return-Path")
		if mismatch := domainMismatch(from, replyTo); mismatch {
			findings = append(findings, model.Finding{
				Category: model.FindingPhishing, Title: "From/Reply-To domain mismatch",
				Description: "the Reply-To domain does not match the From domain", Severity: model.SeverityMedium,
			})
			spamScore += 2
		}
		if mismatch := domainMismatch(from, returnPath); mismatch {
			findings = append(findings, model.Finding{
				Category: model.FindingPhishing, Title: "From/Return-Path domain mismatch",
				Description: "the Return-Path domain does not match the From domain", Severity: model.SeverityMedium,
			})
			spamScore += 1.5
		}
	}

	hops := header.Values("Received")
	if len(hops) > 10 {
		findings = append(findings, model.Finding{
			Category: model.FindingSuspicious, Title: "excessive received hops",
			Description: "message traversed an unusually long relay chain", Severity: model.SeverityLow,
		})
		spamScore += 1
	}

	if header.Get("Date") == "" {
		findings = append(findings, model.Finding{
			Category: model.FindingSuspicious, Title: "missing Date header",
			Severity: model.SeverityLow,
		})
		spamScore += 0.5
	}
	if header.Get("Message-Id") == "" {
		findings = append(findings, model.Finding{
			Category: model.FindingSuspicious, Title: "missing Message-ID header",
			Severity: model.SeverityLow,
		})
		spamScore += 0.5
	}

	spf, dkim, dmarc := parseAuthenticationResults(header.Get("Authentication-Results"))
	for name, result := range map[string]string{"SPF": spf, "DKIM": dkim, "DMARC": dmarc} {
		if result == "fail" {
			findings = append(findings, model.Finding{
				Category: model.FindingPhishing, Title: name + " authentication failed",
				Severity: model.SeverityHigh, Evidence: []string{result},
			})
			spamScore += 2
		}
	}

	bodyBytes := make([]byte, 0, 4096)
	buf := make([]byte, 4096)
	for {
		n, rerr := msg.Body.Read(buf)
		if n > 0 {
			bodyBytes = append(bodyBytes, buf[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	body := string(bodyBytes)
	lowerBody := strings.ToLower(body)

	var keywordHits []string
	for _, kw := range spamKeywords {
		if strings.Contains(lowerBody, kw) {
			keywordHits = append(keywordHits, kw)
			spamScore += 0.5
		}
	}
	if len(keywordHits) > 0 {
		findings = append(findings, model.Finding{
			Category: model.FindingPhishing, Title: "spam/phishing keywords",
			Description: "message body contains urgency or phishing bait keywords",
			Severity:    model.SeverityMedium, Evidence: keywordHits,
		})
	}

	urls := urlRE.FindAllString(body, -1)
	if len(urls) > 0 {
		// Phishing/reset links often carry bearer tokens in their query
		// string; scrub before the raw URL becomes logged evidence.
		redactor := redact.New(redact.DefaultConfig())
		findings = append(findings, model.Finding{
			Category: model.FindingInfo, Title: "embedded URLs",
			Description: "message body contains " + strconv.Itoa(len(urls)) + " URL(s)",
			Severity:    model.SeverityInfo, Evidence: redactor.Strings(urls),
		})
	}

	attachments := extractAttachments(header)
	for _, a := range attachments {
		if a.Suspicious {
			findings = append(findings, model.Finding{
				Category: model.FindingMalware, Title: "suspicious attachment extension",
				Description: "attachment \"" + a.Filename + "\" carries an executable extension",
				Severity:    model.SeverityHigh, Evidence: []string{a.Filename},
			})
			spamScore += 2
		}
	}

	if spamScore > 10 {
		spamScore = 10
	}

	return model.ScanResult{
		Findings:       findings,
		Verdict:        verdictFor(findings),
		ScanDurationMS: time.Since(start).Milliseconds(),
		Metadata: map[string]interface{}{
			"spam_score":   spamScore,
			"spf":          spf,
			"dkim":         dkim,
			"dmarc":        dmarc,
			"url_count":    len(urls),
			"attachments":  attachments,
		},
	}
}

func verdictFor(findings []model.Finding) model.Verdict {
	if len(findings) == 0 {
		return model.VerdictBenign
	}
	max := model.SeverityInfo
	for _, f := range findings {
		max = model.MaxSeverity(max, f.Severity)
	}
	switch {
	case max == model.SeverityCritical || max == model.SeverityHigh:
		return model.VerdictMalicious
	default:
		return model.VerdictSuspicious
	}
}

func domainMismatch(a, b string) bool {
	if b == "" {
		return false
	}
	da, db := domainOf(a), domainOf(b)
	if da == "" || db == "" {
		return false
	}
	return da != db
}

func domainOf(addr string) string {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		idx := strings.LastIndexByte(addr, '@')
		if idx < 0 {
			return ""
		}
		return strings.ToLower(strings.Trim(addr[idx+1:], "<> \t"))
	}
	idx := strings.LastIndexByte(parsed.Address, '@')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(parsed.Address[idx+1:])
}

// parseAuthenticationResults extracts spf=/dkim=/dmarc= result tokens
// from an Authentication-Results header value.
func parseAuthenticationResults(header string) (spf, dkim, dmarc string) {
	lower := strings.ToLower(header)
	spf = extractResult(lower, "spf=")
	dkim = extractResult(lower, "dkim=")
	dmarc = extractResult(lower, "dmarc=")
	return
}

func extractResult(s, key string) string {
	idx := strings.Index(s, key)
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(key):]
	end := strings.IndexAny(rest, " ;\t\n")
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// extractAttachments is a best-effort scan for Content-Disposition
// filename parameters, since this package does not pull in a full MIME
// multipart reader for the header-only analysis path.
func extractAttachments(header mail.Header) []Attachment {
	var out []Attachment
	for _, cd := range header.Values("Content-Disposition") {
		name := filenameFrom(cd)
		if name == "" {
			continue
		}
		out = append(out, Attachment{Filename: name, Suspicious: suspiciousAttachmentExts[extOf(name)]})
	}
	return out
}

func filenameFrom(contentDisposition string) string {
	idx := strings.Index(strings.ToLower(contentDisposition), "filename=")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(contentDisposition[idx+len("filename="):])
	rest = strings.Trim(rest, `"`)
	if end := strings.IndexByte(rest, ';'); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func extOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
