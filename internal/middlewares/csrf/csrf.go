package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"path"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wardenhq/warden/params"
)

var (
	ErrTokenMissing = errors.New("csrf token missing")
	ErrTokenInvalid = errors.New("csrf token invalid")
)

// Issue sets a fresh double-submit cookie on safe responses when the client
// does not have one yet. The cookie is httpOnly and SameSite=Strict; the
// page layer reads the token server-side and echoes it into forms and
// XHR headers.
func Issue(c *fiber.Ctx, secure bool) {
	if c.Cookies(params.CSRFCookieName) != "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     params.CSRFCookieName,
		Value:    randomToken(),
		Expires:  time.Now().Add(params.CSRFTokenExpiration),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteStrictMode,
		Path:     "/",
	})
}

// Validate checks a state-changing request against the double-submit
// cookie. A matching header or a matching form field suffices; either
// comparison is constant-time. A missing cookie always fails.
func Validate(c *fiber.Ctx) error {
	cookie := c.Cookies(params.CSRFCookieName)
	if cookie == "" {
		return ErrTokenMissing
	}
	if tokenMatches(cookie, c.Get(params.CSRFHeaderName)) {
		return nil
	}
	if tokenMatches(cookie, c.FormValue(params.CSRFFormField)) {
		return nil
	}
	return ErrTokenInvalid
}

// Exempt reports whether the path manages its own protection (auth
// endpoints carry nonces of their own).
func Exempt(excludePaths []string, requestPath string) bool {
	for _, pattern := range excludePaths {
		if ok, _ := path.Match(pattern, requestPath); ok {
			return true
		}
	}
	return false
}

func tokenMatches(cookie, candidate string) bool {
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(candidate)) == 1
}

func randomToken() string {
	b := make([]byte, params.CSRFTokenLength)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate CSRF token: " + err.Error())
	}
	return hex.EncodeToString(b)
}
