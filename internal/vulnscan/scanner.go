package vulnscan

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/params"
)

// Finding is one signature match. The scanner never decides to block;
// the orchestrator treats CRITICAL findings as block-worthy.
type Finding struct {
	Type     security.EventType `json:"type"`
	Severity security.Severity  `json:"severity"`
	Detail   string             `json:"detail"`
}

type signature struct {
	eventType security.EventType
	severity  security.Severity
	pattern   *regexp.Regexp
	detail    string
}

var signatures = []signature{
	{security.EventSQLInjection, security.SeverityCritical,
		regexp.MustCompile(`(?i)\b(union\s+(all\s+)?select|select\s+.+\s+from|insert\s+into|drop\s+table|delete\s+from|update\s+\w+\s+set)\b`),
		"sql keyword sequence"},
	{security.EventSQLInjection, security.SeverityCritical,
		regexp.MustCompile(`(?i)('\s*(or|and)\s+'?\d+'?\s*=\s*'?\d+|;\s*--|'\s*--)`),
		"sql tautology or comment"},
	{security.EventXSS, security.SeverityCritical,
		regexp.MustCompile(`(?i)(<script\b|javascript:|on(load|error|click|mouseover)\s*=)`),
		"script injection token"},
	{security.EventXSS, security.SeverityHigh,
		regexp.MustCompile(`(?i)(<iframe\b|<object\b|<embed\b|document\.cookie|eval\s*\()`),
		"embedded content token"},
	{security.EventPathTraversal, security.SeverityCritical,
		regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f)`),
		"path traversal sequence"},
	{security.EventMalformed, security.SeverityMedium,
		regexp.MustCompile(`%00|\x00`),
		"null byte"},
}

// Scanner is a stateless pattern inspector for URLs, headers and bodies.
type Scanner struct{}

func New() *Scanner {
	return &Scanner{}
}

// ScanRequest inspects the URL, query string and header values.
func (s *Scanner) ScanRequest(fullURL string, headers map[string]string) []Finding {
	var findings []Finding

	if len(fullURL) > params.MaxURLLength {
		findings = append(findings, Finding{
			Type:     security.EventMalformed,
			Severity: security.SeverityMedium,
			Detail:   "url exceeds maximum length",
		})
	}
	findings = append(findings, s.scanValue("url", fullURL)...)
	if decoded, err := url.QueryUnescape(fullURL); err == nil && decoded != fullURL {
		findings = append(findings, s.scanValue("url(decoded)", decoded)...)
	}

	for name, value := range headers {
		if len(value) > params.MaxHeaderValueSize {
			findings = append(findings, Finding{
				Type:     security.EventMalformed,
				Severity: security.SeverityMedium,
				Detail:   fmt.Sprintf("oversized header %s", name),
			})
			continue
		}
		switch strings.ToLower(name) {
		case "cookie", "authorization":
			// credential-bearing headers trip the sql tautology patterns on
			// legitimate tokens; skip them
			continue
		}
		findings = append(findings, s.scanValue("header "+name, value)...)
	}
	return findings
}

// ScanBody inspects a request body. Unparseable bodies yield a single
// parse-note finding and never an error.
func (s *Scanner) ScanBody(contentType string, body []byte) []Finding {
	if len(body) == 0 {
		return nil
	}
	if len(body) > params.BodyScanLimit {
		body = body[:params.BodyScanLimit]
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}

	switch {
	case strings.Contains(mediaType, "json"):
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return []Finding{{
				Type:     security.EventMalformed,
				Severity: security.SeverityLow,
				Detail:   "unparseable json body",
			}}
		}
		return s.scanDecoded("body", payload)
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return []Finding{{
				Type:     security.EventMalformed,
				Severity: security.SeverityLow,
				Detail:   "unparseable form body",
			}}
		}
		var findings []Finding
		for key, vals := range values {
			for _, val := range vals {
				findings = append(findings, s.scanValue("field "+key, val)...)
			}
		}
		return findings
	default:
		// multipart and unknown types are scanned as raw text
		return s.scanValue("body", string(body))
	}
}

func (s *Scanner) scanDecoded(location string, value any) []Finding {
	switch v := value.(type) {
	case string:
		return s.scanValue(location, v)
	case map[string]any:
		var findings []Finding
		for key, nested := range v {
			findings = append(findings, s.scanDecoded(location+"."+key, nested)...)
		}
		return findings
	case []any:
		var findings []Finding
		for _, nested := range v {
			findings = append(findings, s.scanDecoded(location, nested)...)
		}
		return findings
	default:
		return nil
	}
}

func (s *Scanner) scanValue(location, value string) []Finding {
	var findings []Finding
	for _, sig := range signatures {
		if sig.pattern.MatchString(value) {
			findings = append(findings, Finding{
				Type:     sig.eventType,
				Severity: sig.severity,
				Detail:   fmt.Sprintf("%s in %s", sig.detail, location),
			})
		}
	}
	return findings
}

// HasCritical reports whether any finding is block-worthy.
func HasCritical(findings []Finding) bool {
	for _, finding := range findings {
		if finding.Severity == security.SeverityCritical {
			return true
		}
	}
	return false
}
