// Package url implements the URLScanner member of the scanner family
// (C11): blocklist/TLD/IP/length heuristics, brand-impersonation
// detection, and an optional redirect-chain trace.
package url

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/threatcore/analysis-core/internal/model"
)

// Config controls the URLScanner's thresholds and blocklists.
type Config struct {
	Blocklist        map[string]bool
	SuspiciousTLDs   map[string]bool
	KnownBrands      map[string]string // brand name -> canonical domain
	MaxSubdomains    int
	MaxURLLength     int
	MaxRedirects     int
	HopTimeout       time.Duration
	FollowRedirects  bool
}

// DefaultConfig matches spec §4.11's URLScanner thresholds.
func DefaultConfig() Config {
	return Config{
		Blocklist:      map[string]bool{},
		SuspiciousTLDs: map[string]bool{"tk": true, "ml": true, "ga": true, "cf": true, "gq": true},
		KnownBrands: map[string]string{
			"paypal":   "paypal.com",
			"google":   "google.com",
			"microsoft": "microsoft.com",
			"apple":    "apple.com",
			"amazon":   "amazon.com",
		},
		MaxSubdomains: 3,
		MaxURLLength:  200,
		MaxRedirects:  5,
		HopTimeout:    5 * time.Second,
	}
}

// RedirectHop is one entry of a traced redirect chain.
type RedirectHop struct {
	URL        string
	StatusCode int
}

// Scanner is the URLScanner.
type Scanner struct {
	cfg    Config
	client *http.Client
}

// New constructs a Scanner. A dedicated http.Client is used so redirect
// following can be disabled and traced hop-by-hop.
func New(cfg Config) *Scanner {
	if cfg.MaxSubdomains <= 0 {
		cfg.MaxSubdomains = 3
	}
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = 200
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.HopTimeout <= 0 {
		cfg.HopTimeout = 5 * time.Second
	}
	return &Scanner{
		cfg: cfg,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse },
			Timeout:       cfg.HopTimeout,
		},
	}
}

// Scan inspects a URL string and produces its ScanResult. Content fetch
// and redirect tracing only run when cfg.FollowRedirects is set, since
// both require network access.
func (s *Scanner) Scan(ctx context.Context, raw string) model.ScanResult {
	start := time.Now()
	var findings []model.Finding

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		findings = append(findings, model.Finding{
			Category:    model.FindingSuspicious,
			Title:       "unparseable URL",
			Description: "URL failed to parse or has no host component",
			Severity:    model.SeverityLow,
			Evidence:    []string{raw},
		})
		return model.ScanResult{Findings: findings, Verdict: model.VerdictSuspicious, ScanDurationMS: time.Since(start).Milliseconds()}
	}

	host := hostOnly(parsed.Host)

	if s.cfg.Blocklist[host] {
		findings = append(findings, model.Finding{
			Category: model.FindingPhishing, Title: "domain on blocklist",
			Description: "host is present in the known-malicious domain list",
			Severity:    model.SeverityCritical, Evidence: []string{host},
		})
	}

	if ip := net.ParseIP(host); ip != nil {
		findings = append(findings, model.Finding{
			Category: model.FindingPhishing, Title: "IP-based URL",
			Description: "URL host is a bare IP address rather than a domain name",
			Severity:    model.SeverityMedium, Evidence: []string{host},
		})
	}

	if n := subdomainCount(host); n > s.cfg.MaxSubdomains {
		findings = append(findings, model.Finding{
			Category: model.FindingPhishing, Title: "excessive subdomains",
			Description: "host has an unusually deep subdomain chain",
			Severity:    model.SeverityMedium, Evidence: []string{host},
		})
	}

	if tld := suspiciousTLD(host, s.cfg.SuspiciousTLDs); tld != "" {
		findings = append(findings, model.Finding{
			Category: model.FindingPhishing, Title: "suspicious TLD",
			Description: "host uses a TLD commonly abused for low-cost phishing registrations",
			Severity:    model.SeverityLow, Evidence: []string{tld},
		})
	}

	if len(raw) > s.cfg.MaxURLLength {
		findings = append(findings, model.Finding{
			Category: model.FindingPhishing, Title: "excessive URL length",
			Description: "URL length exceeds the configured phishing-indicator threshold",
			Severity:    model.SeverityLow,
		})
	}

	if brand, canonical := impersonatesBrand(raw, host, s.cfg.KnownBrands); brand != "" {
		findings = append(findings, model.Finding{
			Category: model.FindingPhishing, Title: "brand impersonation",
			Description: "URL references brand \"" + brand + "\" but host is not that brand's canonical domain",
			Severity:    model.SeverityHigh, Evidence: []string{host, canonical},
		})
	}

	metadata := map[string]interface{}{"host": host}
	if s.cfg.FollowRedirects {
		hops, err := s.traceRedirects(ctx, raw)
		if err == nil {
			metadata["redirect_chain"] = hops
			if len(hops) >= s.cfg.MaxRedirects {
				findings = append(findings, model.Finding{
					Category: model.FindingSuspicious, Title: "long redirect chain",
					Description: "URL redirects through an excessive number of hops",
					Severity:    model.SeverityMedium,
				})
			}
		}
	}

	return model.ScanResult{
		Findings:       findings,
		Verdict:        verdictFor(findings),
		ScanDurationMS: time.Since(start).Milliseconds(),
		Metadata:       metadata,
	}
}

// traceRedirects follows up to cfg.MaxRedirects hops, recording each
// status code, without ever issuing more than MaxRedirects requests.
func (s *Scanner) traceRedirects(ctx context.Context, start string) ([]RedirectHop, error) {
	var hops []RedirectHop
	current := start
	for i := 0; i < s.cfg.MaxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return hops, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return hops, err
		}
		hops = append(hops, RedirectHop{URL: current, StatusCode: resp.StatusCode})
		loc := resp.Header.Get("Location")
		resp.Body.Close()
		if loc == "" || resp.StatusCode < 300 || resp.StatusCode >= 400 {
			break
		}
		current = loc
	}
	return hops, nil
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

func hostOnly(hostport string) string {
	h, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.ToLower(hostport)
	}
	return strings.ToLower(h)
}

func subdomainCount(host string) int {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return 0
	}
	return len(labels) - 2
}

func suspiciousTLD(host string, tlds map[string]bool) string {
	idx := strings.LastIndexByte(host, '.')
	if idx < 0 {
		return ""
	}
	tld := host[idx+1:]
	if tlds[tld] {
		return tld
	}
	return ""
}

func impersonatesBrand(raw, host string, brands map[string]string) (string, string) {
	lowerRaw := strings.ToLower(raw)
	for brand, canonical := range brands {
		if !strings.Contains(lowerRaw, brand) {
			continue
		}
		if host == canonical || strings.HasSuffix(host, "."+canonical) {
			continue
		}
		return brand, canonical
	}
	return "", ""
}
