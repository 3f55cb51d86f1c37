package privacy

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

const restrictedPlaceholder = "[RESTRICTED DATA REMOVED]"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)
	phonePattern = regexp.MustCompile(`\+?\d{1,3}[ \-.]?\(?\d{2,4}\)?[ \-.]?\d{3,4}[ \-.]?\d{3,4}\b`)
)

// metadataDenyList names personal-data-shaped metadata keys stripped from
// confidential and restricted entries. Matching is case-insensitive on the
// normalized key.
var metadataDenyList = map[string]bool{
	"password":     true,
	"token":        true,
	"secret":       true,
	"apikey":       true,
	"email":        true,
	"phone":        true,
	"address":      true,
	"ssn":          true,
	"creditcard":   true,
	"cardnumber":   true,
	"dateofbirth":  true,
	"dob":          true,
	"firstname":    true,
	"lastname":     true,
	"fullname":     true,
	"name":         true,
	"username":     true,
	"nationalid":   true,
	"passport":     true,
	"iban":         true,
	"authorization": true,
}

// ScrubMessage replaces email/SSN/card/phone shaped substrings with typed
// placeholders. Applied to every message regardless of classification.
func ScrubMessage(message string) string {
	message = emailPattern.ReplaceAllString(message, "[EMAIL]")
	message = ssnPattern.ReplaceAllString(message, "[SSN]")
	message = cardPattern.ReplaceAllString(message, "[CARD]")
	message = phonePattern.ReplaceAllString(message, "[PHONE]")
	return message
}

func scrubbedMessage(message string, classification Classification) string {
	if classification == ClassRestricted {
		return restrictedPlaceholder
	}
	return ScrubMessage(message)
}

// SanitizedMetadata is metadata that already passed the sanitizer. Log sinks
// only accept this type, so unsanitized maps cannot reach them by accident.
type SanitizedMetadata map[string]any

// SanitizeMetadata applies the deny-list for confidential/restricted
// classifications and converts any raw ip field to ipHash using the given
// hash function, discarding the original value.
func SanitizeMetadata(metadata map[string]any, classification Classification, hashIP func(string) string) SanitizedMetadata {
	if metadata == nil {
		return nil
	}
	sanitized := make(SanitizedMetadata, len(metadata))
	for key, value := range metadata {
		normalized := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(key, "_", ""), "-", ""))
		if normalized == "ip" || normalized == "ipaddress" {
			sanitized["ipHash"] = hashIP(cast.ToString(value))
			continue
		}
		if classification.StripsMetadata() && metadataDenyList[normalized] {
			continue
		}
		if str := cast.ToString(value); str != "" {
			sanitized[key] = ScrubMessage(str)
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}
