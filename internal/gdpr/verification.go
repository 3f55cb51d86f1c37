package gdpr

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wardenhq/warden/internal/mail"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/model"
	"github.com/wardenhq/warden/params"
)

// Document is requester-supplied identity evidence. The checksum is the
// SHA-256 of the uploaded file, computed by the upload layer.
type Document struct {
	Type      string `json:"type"`
	Reference string `json:"reference"`
	Checksum  string `json:"checksum"`
}

// Proof carries whatever evidence the verification method requires: a
// signed token for email, a one-time code for two-factor, documents for
// identity checks.
type Proof struct {
	Token     string     `json:"token,omitempty"`
	Code      string     `json:"code,omitempty"`
	Documents []Document `json:"documents,omitempty"`
}

// Challenger issues and checks one kind of identity-verification challenge.
// Verify failures leave the request untouched so the requester can retry,
// except ErrTooManyAttempts which the manager treats as final.
type Challenger interface {
	Initiate(ctx context.Context, req *model.GDPRRequest) error
	Verify(ctx context.Context, req *model.GDPRRequest, proof Proof) error
}

// Challengers holds one challenger per verification method.
type Challengers struct {
	Email     Challenger
	Document  Challenger
	TwoFactor Challenger
}

func (c Challengers) forMethod(method VerificationMethod) (Challenger, error) {
	var challenger Challenger
	switch method {
	case VerifyByEmail:
		challenger = c.Email
	case VerifyByDocument:
		challenger = c.Document
	case VerifyByTwoFactor:
		challenger = c.TwoFactor
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}
	if challenger == nil {
		return nil, fmt.Errorf("%w: %s not configured", ErrInvalidMethod, method)
	}
	return challenger, nil
}

// NewChallengers wires the production verifiers: signed email links, a
// one-time mailed code kept in the TTL store, and document checks.
func NewChallengers(secret string, storage store.Storage, sender mail.MailSender, verifyBaseURL string) Challengers {
	return Challengers{
		Email:     NewEmailChallenger(secret, sender, verifyBaseURL),
		Document:  NewDocumentChallenger(),
		TwoFactor: NewTwoFactorChallenger(storage, sender),
	}
}

// EmailChallenger mails a signed verification link. The token is an HS256
// JWT whose subject is the request ID, so a token can never verify a
// different request.
type EmailChallenger struct {
	secret  []byte
	sender  mail.MailSender
	baseURL string
	now     func() time.Time
}

func NewEmailChallenger(secret string, sender mail.MailSender, baseURL string) *EmailChallenger {
	return &EmailChallenger{
		secret:  []byte(secret),
		sender:  sender,
		baseURL: baseURL,
		now:     time.Now,
	}
}

func (c *EmailChallenger) Initiate(ctx context.Context, req *model.GDPRRequest) error {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(params.GDPRVerifyTokenExpiration)),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return err
	}
	verifyURL := fmt.Sprintf("%s?requestId=%s&token=%s", c.baseURL, req.ID, signed)
	return mail.SendGDPRVerificationLink(c.sender, req.UserEmail, verifyURL)
}

func (c *EmailChallenger) Verify(ctx context.Context, req *model.GDPRRequest, proof Proof) error {
	if proof.Token == "" {
		return fmt.Errorf("%w: missing token", ErrVerificationFailed)
	}
	parsed, err := jwt.Parse(proof.Token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: invalid token", ErrVerificationFailed)
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject != req.ID {
		return fmt.Errorf("%w: token subject mismatch", ErrVerificationFailed)
	}
	return nil
}

// acceptedDocumentTypes are the identity document kinds the compliance
// team reviews.
var acceptedDocumentTypes = map[string]bool{
	"passport":        true,
	"national_id":     true,
	"driving_license": true,
}

// DocumentChallenger checks that the submitted evidence is structurally
// sound: an accepted document type, a storage reference, and an intact
// SHA-256 checksum. The human review of the document itself happens during
// manual processing.
type DocumentChallenger struct{}

func NewDocumentChallenger() *DocumentChallenger {
	return &DocumentChallenger{}
}

func (c *DocumentChallenger) Initiate(ctx context.Context, req *model.GDPRRequest) error {
	// nothing to send: the requester uploads documents with the proof
	return nil
}

func (c *DocumentChallenger) Verify(ctx context.Context, req *model.GDPRRequest, proof Proof) error {
	if len(proof.Documents) == 0 {
		return fmt.Errorf("%w: no documents submitted", ErrVerificationFailed)
	}
	for _, doc := range proof.Documents {
		if !acceptedDocumentTypes[doc.Type] {
			return fmt.Errorf("%w: unsupported document type %q", ErrVerificationFailed, doc.Type)
		}
		if doc.Reference == "" {
			return fmt.Errorf("%w: document missing storage reference", ErrVerificationFailed)
		}
		if raw, err := hex.DecodeString(doc.Checksum); err != nil || len(raw) != 32 {
			return fmt.Errorf("%w: document checksum malformed", ErrVerificationFailed)
		}
	}
	return nil
}

type codeChallenge struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

// TwoFactorChallenger mails a short-lived one-time code and keeps the
// challenge state in the TTL store, so verification works across instances.
type TwoFactorChallenger struct {
	storage store.Storage
	sender  mail.MailSender
}

func NewTwoFactorChallenger(storage store.Storage, sender mail.MailSender) *TwoFactorChallenger {
	return &TwoFactorChallenger{
		storage: store.StorageWithPrefix(storage, params.VerifyKeyPrefix),
		sender:  sender,
	}
}

func (c *TwoFactorChallenger) Initiate(ctx context.Context, req *model.GDPRRequest) error {
	code, err := randomCode()
	if err != nil {
		return err
	}
	challenge := codeChallenge{Code: code}
	if err := c.storage.Set(ctx, req.ID, challenge, params.GDPRVerifyCodeExpiration); err != nil {
		return err
	}
	return mail.SendGDPRVerificationCode(c.sender, req.UserEmail, code)
}

func (c *TwoFactorChallenger) Verify(ctx context.Context, req *model.GDPRRequest, proof Proof) error {
	var challenge codeChallenge
	err := c.storage.Get(ctx, req.ID, &challenge)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: request a new code", ErrChallengeExpired)
	}
	if err != nil {
		return err
	}
	if challenge.Attempts >= params.GDPRVerifyMaxAttempts {
		return ErrTooManyAttempts
	}
	challenge.Attempts++
	if err := c.storage.Set(ctx, req.ID, challenge, params.GDPRVerifyCodeExpiration); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(proof.Code)) != 1 {
		if challenge.Attempts >= params.GDPRVerifyMaxAttempts {
			return ErrTooManyAttempts
		}
		return fmt.Errorf("%w: wrong code", ErrVerificationFailed)
	}
	return c.storage.Delete(ctx, req.ID)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
