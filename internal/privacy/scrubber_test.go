package privacy

import (
	"strings"
	"testing"
)

func TestScrubMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
		gone    string
	}{
		{"email", "contact user@example.com for details", "[EMAIL]", "user@example.com"},
		{"ssn", "ssn is 123-45-6789", "[SSN]", "123-45-6789"},
		{"card", "paid with 4111 1111 1111 1111", "[CARD]", "4111 1111 1111 1111"},
		{"phone", "call +1 555 123 4567 now", "[PHONE]", "555 123 4567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScrubMessage(tt.message)
			if !strings.Contains(got, tt.want) {
				t.Errorf("ScrubMessage(%q) = %q, missing %q", tt.message, got, tt.want)
			}
			if strings.Contains(got, tt.gone) {
				t.Errorf("ScrubMessage(%q) = %q, still contains %q", tt.message, got, tt.gone)
			}
		})
	}
}

func TestScrubbedMessageRestricted(t *testing.T) {
	for _, class := range []Classification{ClassPublic, ClassInternal, ClassConfidential} {
		got := scrubbedMessage("hello user@example.com", class)
		if !strings.Contains(got, "[EMAIL]") {
			t.Errorf("classification %s: email not scrubbed: %q", class, got)
		}
	}
	if got := scrubbedMessage("anything at all", ClassRestricted); got != "[RESTRICTED DATA REMOVED]" {
		t.Errorf("restricted message = %q", got)
	}
}

func TestSanitizeMetadata(t *testing.T) {
	hashIP := func(ip string) string { return "hashed:" + ip }

	metadata := map[string]any{
		"ip":       "203.0.113.7",
		"password": "hunter2",
		"email":    "a@b.example",
		"path":     "/articles/42",
	}

	confidential := SanitizeMetadata(metadata, ClassConfidential, hashIP)
	if confidential["ipHash"] != "hashed:203.0.113.7" {
		t.Errorf("ipHash = %v", confidential["ipHash"])
	}
	if _, ok := confidential["ip"]; ok {
		t.Error("raw ip survived sanitization")
	}
	if _, ok := confidential["password"]; ok {
		t.Error("deny-listed key survived confidential sanitization")
	}
	if _, ok := confidential["email"]; ok {
		t.Error("deny-listed email key survived confidential sanitization")
	}
	if confidential["path"] != "/articles/42" {
		t.Errorf("benign key mangled: %v", confidential["path"])
	}

	// deny-list applies only to confidential/restricted, but raw ip is
	// always converted
	internal := SanitizeMetadata(metadata, ClassInternal, hashIP)
	if _, ok := internal["password"]; !ok {
		t.Error("deny-list applied at internal classification")
	}
	if _, ok := internal["ip"]; ok {
		t.Error("raw ip survived internal sanitization")
	}
}

func TestSanitizeMetadataNil(t *testing.T) {
	if got := SanitizeMetadata(nil, ClassRestricted, func(string) string { return "" }); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
