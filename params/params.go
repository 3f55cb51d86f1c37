package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	RateLimitKeyPrefix = "rl:"
	BlockKeyPrefix     = "blk:"
	DDoSKeyPrefix      = "ddos:"
	IncidentKeyPrefix  = "inc:"
	VerifyKeyPrefix    = "gv:"
	TierKeyPrefix      = "tier:"

	StoreOpTimeout     = 500 * time.Millisecond // counter store round-trip budget; fail open past it
	BodyScanLimit      = 262144                 // bytes of request body inspected by the scanner
	MaxURLLength       = 2048
	MaxHeaderValueSize = 8192

	DDoSWindow             = 60 * time.Second
	DDoSBlockThreshold     = 1000 // requests per window before a hard block
	DDoSSuspectThreshold   = 500  // requests per window before the IP is flagged
	DDoSBlockDuration      = 1 * time.Hour
	IncidentWindow         = 10 * time.Minute
	IncidentBlockThreshold = 5 // blockworthy events per window before escalation
	IncidentBlockDuration  = 24 * time.Hour

	CSRFCookieName      = "warden_csrf"
	CSRFHeaderName      = "X-CSRF-Token"
	CSRFFormField       = "_csrf"
	CSRFTokenLength     = 32
	CSRFTokenExpiration = 12 * time.Hour

	IPSaltRotationInterval = 24 * time.Hour

	GDPRRequestDeadline       = 30 * 24 * time.Hour // GDPR Art. 12(3)
	GDPRVerifyTokenExpiration = 24 * time.Hour
	GDPRVerifyCodeExpiration  = 10 * time.Minute
	GDPRVerifyMaxAttempts     = 5
	GDPRCleanupInterval       = 1 * time.Hour
	RetentionSweepInterval    = 1 * time.Hour
	HealthCheckServerAddr     = ":3001"
	ComplianceExportVersion   = "1.0"
	ComplianceExportFormat    = "JSON"
	SecurityEventHistoryMax   = 1000 // in-memory ring of recent security events served by the admin API
	SuspiciousIPTrackerLimit  = 4096 // advisory suspicious-IP set is capped, oldest evicted first
)
