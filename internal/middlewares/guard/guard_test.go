package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wardenhq/warden/internal/ddos"
	"github.com/wardenhq/warden/internal/incident"
	"github.com/wardenhq/warden/internal/middlewares/secheaders"
	"github.com/wardenhq/warden/internal/ratelimit"
	"github.com/wardenhq/warden/internal/security"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/internal/vulnscan"
	"github.com/wardenhq/warden/params"
)

type testEnv struct {
	app     *fiber.App
	ddos    *ddos.Guard
	history *security.History
}

func newTestEnv(production bool) *testEnv {
	storage := store.NewMemoryStorage()
	ddosGuard := ddos.NewGuard(storage)
	history := security.NewHistory(64)
	responder := incident.NewResponder(storage, ddosGuard, history, nil)

	app := fiber.New()
	app.Use(secheaders.New(production))
	app.Use(New(Config{
		DDoS:             ddosGuard,
		Scanner:          vulnscan.New(),
		Limiter:          ratelimit.NewLimiter(storage),
		Responder:        responder,
		Production:       production,
		CSRFExcludePaths: []string{"/auth/*"},
	}))
	app.All("/*", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return &testEnv{app: app, ddos: ddosGuard, history: history}
}

func csrfCookie(t *testing.T, env *testEnv) *http.Cookie {
	t.Helper()
	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/articles", nil))
	if err != nil {
		t.Fatal(err)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == params.CSRFCookieName {
			return cookie
		}
	}
	t.Fatal("no csrf cookie issued on safe request")
	return nil
}

func TestAllowedRequestPassesWithHeaders(t *testing.T) {
	env := newTestEnv(false)
	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/articles/42", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("security headers not injected")
	}
	if resp.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("rate limit headers not injected")
	}
	if resp.Header.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS sent outside production")
	}
}

func TestProductionAddsHSTS(t *testing.T) {
	env := newTestEnv(true)
	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/articles", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing in production")
	}
}

func TestInjectionBlockedWithEvent(t *testing.T) {
	env := newTestEnv(false)
	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet,
		"/search?q=1+UNION+SELECT+password+FROM+users", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	var sawBlock bool
	for _, ev := range env.history.Recent() {
		if ev.Type == security.EventSQLInjection && ev.Blocked {
			sawBlock = true
		}
	}
	if !sawBlock {
		t.Error("no blocked sql injection event recorded")
	}
}

func TestBodyScanOnlyForMutatingMethods(t *testing.T) {
	env := newTestEnv(false)
	cookie := csrfCookie(t, env)

	body := strings.NewReader(`{"comment":"<script>alert(1)</script>"}`)
	req := httptest.NewRequest(fiber.MethodPost, "/articles", body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.AddCookie(cookie)
	req.Header.Set(params.CSRFHeaderName, cookie.Value)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("malicious body passed: %d", resp.StatusCode)
	}
}

func TestCSRFMissingCookie(t *testing.T) {
	env := newTestEnv(false)
	req := httptest.NewRequest(fiber.MethodPost, "/articles", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	// a header token without the cookie is never enough
	req.Header.Set(params.CSRFHeaderName, "some-token")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("missing cookie accepted: %d", resp.StatusCode)
	}
}

func TestCSRFHeaderTokenSuffices(t *testing.T) {
	env := newTestEnv(false)
	cookie := csrfCookie(t, env)

	req := httptest.NewRequest(fiber.MethodPost, "/articles", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.AddCookie(cookie)
	req.Header.Set(params.CSRFHeaderName, cookie.Value)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("matching header token rejected: %d", resp.StatusCode)
	}
}

func TestCSRFFormTokenSuffices(t *testing.T) {
	env := newTestEnv(false)
	cookie := csrfCookie(t, env)

	form := "title=hello&" + params.CSRFFormField + "=" + cookie.Value
	req := httptest.NewRequest(fiber.MethodPost, "/articles", strings.NewReader(form))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.AddCookie(cookie)
	// wrong header token must not matter when the form field matches
	req.Header.Set(params.CSRFHeaderName, "wrong")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("matching form token rejected: %d", resp.StatusCode)
	}
}

func TestCSRFExemptPath(t *testing.T) {
	env := newTestEnv(false)
	req := httptest.NewRequest(fiber.MethodPost, "/auth/login", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("exempt path still csrf-checked: %d", resp.StatusCode)
	}
}

func TestBlockedIPDeniedImmediately(t *testing.T) {
	env := newTestEnv(false)
	ctx := context.Background()
	// fiber's test transport reports this remote address
	if _, err := env.ddos.Block(ctx, "0.0.0.0", time.Hour, "test block"); err != nil {
		t.Fatal(err)
	}
	resp, err := env.app.Test(httptest.NewRequest(fiber.MethodGet, "/articles", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("blocked ip served: %d", resp.StatusCode)
	}
}
