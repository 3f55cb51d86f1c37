package ratelimit

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Policy is a named fixed-window rate limit. Policies differ only in data;
// the limiter treats them uniformly.
type Policy struct {
	ID          string
	Window      time.Duration
	MaxRequests int64
	// ByIdentity keys the window on the authenticated identity when one is
	// present; the remote IP is the fallback either way.
	ByIdentity bool
}

var (
	PolicyGeneralAPI = Policy{ID: "general_api", Window: 15 * time.Minute, MaxRequests: 1000}
	PolicyAuth       = Policy{ID: "auth", Window: 15 * time.Minute, MaxRequests: 20}
	PolicyWrite      = Policy{ID: "content_write", Window: time.Minute, MaxRequests: 30, ByIdentity: true}
	PolicyUpload     = Policy{ID: "upload", Window: time.Hour, MaxRequests: 50, ByIdentity: true}
	PolicySearch     = Policy{ID: "search", Window: time.Minute, MaxRequests: 60}
	PolicyReset      = Policy{ID: "password_reset", Window: time.Hour, MaxRequests: 5}
)

// SelectPolicy maps a request to the policy guarding it. Order matters:
// the most specific match wins, general API is the catch-all.
func SelectPolicy(method, path string) Policy {
	switch {
	case strings.HasPrefix(path, "/auth/reset-password") || strings.HasPrefix(path, "/auth/forgot-password"):
		return PolicyReset
	case strings.HasPrefix(path, "/auth/"):
		return PolicyAuth
	case strings.HasPrefix(path, "/search"):
		return PolicySearch
	case strings.HasPrefix(path, "/upload") && method != fiber.MethodGet:
		return PolicyUpload
	case method == fiber.MethodPost || method == fiber.MethodPut || method == fiber.MethodPatch || method == fiber.MethodDelete:
		return PolicyWrite
	default:
		return PolicyGeneralAPI
	}
}

// Tier is an account level with its own thresholds.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// tierMultipliers scales a policy's threshold per tier. Free is the
// baseline and the fallback when the tier lookup fails.
var tierMultipliers = map[Tier]int64{
	TierFree:    1,
	TierPremium: 5,
	TierAdmin:   20,
}
