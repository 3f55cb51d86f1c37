package guard

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wardenhq/warden/internal/ddos"
	"github.com/wardenhq/warden/internal/incident"
	"github.com/wardenhq/warden/internal/middlewares/csrf"
	"github.com/wardenhq/warden/internal/ratelimit"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/vulnscan"
	"github.com/wardenhq/warden/params"
)

// Limiter abstracts the plain and adaptive rate limiters.
type Limiter interface {
	Check(ctx context.Context, policy ratelimit.Policy, identity string) (ratelimit.Result, error)
}

// IdentityFunc resolves the authenticated identity of a request, or ""
// when the caller is anonymous.
type IdentityFunc func(c *fiber.Ctx) string

type Config struct {
	DDoS             *ddos.Guard
	Scanner          *vulnscan.Scanner
	Limiter          Limiter
	Responder        *incident.Responder
	Production       bool
	CSRFExcludePaths []string
	Identity         IdentityFunc
}

type pipeline struct {
	Config
}

// New builds the ordered defense pipeline: DDoS guard, vulnerability scan,
// rate limit, CSRF check. It short-circuits on the first blocking stage,
// forwards every event to incident response once the request resolves, and
// fails open on internal errors.
func New(config Config) fiber.Handler {
	p := &pipeline{Config: config}
	return p.handle
}

func (p *pipeline) handle(c *fiber.Ctx) (err error) {
	meta := security.RequestMeta{
		IP:        c.IP(),
		Method:    c.Method(),
		Path:      c.Path(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	var events []security.Event

	defer func() {
		if r := recover(); r != nil {
			slog.Error("security pipeline failure, failing open", "panic", r, "path", meta.Path)
			events = append(events, p.event(meta, security.EventInternalFailure,
				security.SeverityMedium, "pipeline failure, request passed through", false))
			err = c.Next()
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), params.StoreOpTimeout)
		defer cancel()
		for _, ev := range events {
			p.Responder.Record(flushCtx, ev)
		}
	}()

	ctx, cancel := context.WithTimeout(c.UserContext(), params.StoreOpTimeout)
	defer cancel()

	// 1. DDoS guard
	verdict, ddosErr := p.DDoS.Check(ctx, meta.IP)
	if ddosErr != nil {
		events = append(events, p.event(meta, security.EventInternalFailure,
			security.SeverityMedium, "ddos guard unavailable, failing open", false))
	}
	if verdict.Blocked {
		events = append(events, p.event(meta, security.EventDDoSBlock,
			security.SeverityCritical, verdict.Record.Reason, true))
		return forbidden(c, "request blocked", "ddos_blocked")
	}
	if verdict.Suspicious {
		events = append(events, p.event(meta, security.EventDDoSSuspect,
			security.SeverityMedium, "request rate above advisory threshold", false))
	}

	// 2. vulnerability scan: URL and headers first, body only for mutating
	// methods
	findings := p.Scanner.ScanRequest(c.OriginalURL(), requestHeaders(c))
	if mutating(meta.Method) {
		findings = append(findings, p.Scanner.ScanBody(c.Get(fiber.HeaderContentType), c.Body())...)
	}
	blockScan := vulnscan.HasCritical(findings)
	for _, finding := range findings {
		events = append(events, p.event(meta, finding.Type, finding.Severity, finding.Detail,
			blockScan && finding.Severity == security.SeverityCritical))
	}
	if blockScan {
		return forbidden(c, "malicious request detected", "vulnerability_blocked")
	}

	// 3. rate limit
	policy := ratelimit.SelectPolicy(meta.Method, meta.Path)
	identity := meta.IP
	if policy.ByIdentity && p.Identity != nil {
		if id := p.Identity(c); id != "" {
			identity = id
		}
	}
	result, limitErr := p.Limiter.Check(ctx, policy, identity)
	if limitErr != nil {
		events = append(events, p.event(meta, security.EventInternalFailure,
			security.SeverityMedium, "rate limit store unavailable, failing open", false))
	}
	resetIn := int(time.Until(result.ResetTime).Seconds())
	if resetIn < 0 {
		resetIn = 0
	}
	c.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	c.Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if !result.Allowed {
		if resetIn < 1 {
			resetIn = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(resetIn))
		events = append(events, p.event(meta, security.EventRateLimited,
			security.SeverityMedium, "policy "+policy.ID+" exhausted", true))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "rate limit exceeded",
			"code":  "rate_limited",
		})
	}

	// 4. CSRF double-submit check; safe methods get a fresh cookie instead
	if mutating(meta.Method) {
		if !csrf.Exempt(p.CSRFExcludePaths, meta.Path) {
			if csrfErr := csrf.Validate(c); csrfErr != nil {
				code := "csrf_token_invalid"
				if csrfErr == csrf.ErrTokenMissing {
					code = "csrf_token_missing"
				}
				events = append(events, p.event(meta, security.EventCSRFViolation,
					security.SeverityHigh, csrfErr.Error(), true))
				return forbidden(c, "csrf validation failed", code)
			}
		}
	} else {
		csrf.Issue(c, p.Production)
	}

	return c.Next()
}

func (p *pipeline) event(meta security.RequestMeta, eventType security.EventType, severity security.Severity, detail string, blocked bool) security.Event {
	return security.Event{
		Type:      eventType,
		Severity:  severity,
		Detail:    detail,
		Request:   meta,
		Blocked:   blocked,
		Timestamp: time.Now(),
	}
}

func forbidden(c *fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

func mutating(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	}
	return true
}

func requestHeaders(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	for name, values := range c.GetReqHeaders() {
		headers[name] = strings.Join(values, ", ")
	}
	return headers
}
