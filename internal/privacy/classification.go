package privacy

// Classification governs how aggressively an entry's fields are scrubbed,
// stripped or hashed before they are allowed to reach a log sink.
type Classification string

const (
	ClassPublic       Classification = "public"
	ClassInternal     Classification = "internal"
	ClassConfidential Classification = "confidential"
	ClassRestricted   Classification = "restricted"
)

func (c Classification) Valid() bool {
	switch c {
	case ClassPublic, ClassInternal, ClassConfidential, ClassRestricted:
		return true
	}
	return false
}

// StripsMetadata reports whether the metadata deny-list applies at this level.
func (c Classification) StripsMetadata() bool {
	return c == ClassConfidential || c == ClassRestricted
}

type Level string

const (
	LevelTrace    Level = "TRACE"
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarn     Level = "WARN"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Verbose reports whether the level is dropped entirely in production.
func (l Level) Verbose() bool {
	return l == LevelTrace || l == LevelDebug
}

type Category string

const (
	CategorySecurity       Category = "security"
	CategoryAuthentication Category = "authentication"
	CategoryAudit          Category = "audit"
	CategoryUserActivity   Category = "user_activity"
	CategorySystem         Category = "system"
	CategoryError          Category = "error"
)
