package gdpr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wardenhq/warden/internal/mail"
	"github.com/wardenhq/warden/internal/privacy"
	"github.com/wardenhq/warden/model"
	"github.com/wardenhq/warden/params"
)

// BundleSource supplies the application-side data for a user (profile,
// preferences, authored content). The host application implements it; the
// manager always adds the user's log entries itself.
type BundleSource interface {
	UserData(ctx context.Context, userID string) (map[string]any, error)
}

// CompletionHook is called after a manually-reviewed right completes, so an
// external workflow (legal team queue, ticketing) can pick it up.
type CompletionHook func(ctx context.Context, req *model.GDPRRequest)

// SubmitInput is a new data-subject request.
type SubmitInput struct {
	UserID      string
	UserEmail   string
	Right       Right
	Description string
	Metadata    map[string]any
	Method      VerificationMethod
}

// ProcessResult is the outcome of executing a right: the final request row
// and, for access/portability, the collected data bundle.
type ProcessResult struct {
	Request *model.GDPRRequest `json:"request"`
	Data    map[string]any     `json:"data,omitempty"`
}

// Manager owns the compliance request state machine:
// pending → in_progress → completed, with side-exits to rejected and
// expired. Requests are only processed after identity verification;
// access and portability auto-process on verification.
type Manager struct {
	requests    RequestRepository
	logger      *privacy.Logger
	challengers Challengers
	bundle      BundleSource
	hook        CompletionHook
	sender      mail.MailSender
	now         func() time.Time
}

func NewManager(requests RequestRepository, logger *privacy.Logger, challengers Challengers) *Manager {
	return &Manager{
		requests:    requests,
		logger:      logger,
		challengers: challengers,
		now:         time.Now,
	}
}

func (m *Manager) SetBundleSource(source BundleSource) {
	m.bundle = source
}

func (m *Manager) SetCompletionHook(hook CompletionHook) {
	m.hook = hook
}

// SetMailSender enables status-update notifications to the requester.
func (m *Manager) SetMailSender(sender mail.MailSender) {
	m.sender = sender
}

func (m *Manager) notify(req *model.GDPRRequest) {
	if m.sender == nil {
		return
	}
	err := mail.SendGDPRStatusUpdate(m.sender, req.UserEmail, req.ID, req.Right, req.Status, req.ProcessorNotes)
	if err != nil {
		slog.Warn("gdpr status notification failed", "requestId", req.ID, "error", err)
	}
}

// Submit registers a request, audits its creation, and kicks off identity
// verification. The response deadline is exactly 30 days from submission.
func (m *Manager) Submit(ctx context.Context, input SubmitInput) (*model.GDPRRequest, error) {
	if !input.Right.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRight, input.Right)
	}
	if !input.Method.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, input.Method)
	}
	challenger, err := m.challengers.forMethod(input.Method)
	if err != nil {
		return nil, err
	}

	now := m.now()
	req := &model.GDPRRequest{
		ID:                 uuid.NewString(),
		UserID:             input.UserID,
		UserEmail:          input.UserEmail,
		Right:              string(input.Right),
		Status:             string(StatusPending),
		Description:        input.Description,
		Metadata:           encodeJSON(input.Metadata),
		RequestDate:        now,
		ExpirationDate:     now.Add(params.GDPRRequestDeadline),
		VerificationMethod: string(input.Method),
	}
	if err := m.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	if err := m.auditTransition(ctx, req, "CREATE", map[string]any{
		"right":              req.Right,
		"status":             req.Status,
		"verificationMethod": req.VerificationMethod,
	}); err != nil {
		return nil, err
	}
	if err := challenger.Initiate(ctx, req); err != nil {
		return nil, fmt.Errorf("initiate verification: %w", err)
	}
	return req, nil
}

// Verify checks the supplied proof against the request's verification
// method. A plain mismatch leaves the request pending for retry; exhausted
// attempts reject it. On success the request moves to in_progress, and
// rights that need no human judgment are processed immediately.
func (m *Manager) Verify(ctx context.Context, requestID string, proof Proof) (*ProcessResult, error) {
	req, err := m.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Verified || Status(req.Status).Terminal() || Status(req.Status) != StatusPending {
		return nil, ErrAlreadyProcessed
	}

	challenger, err := m.challengers.forMethod(VerificationMethod(req.VerificationMethod))
	if err != nil {
		return nil, err
	}
	if err := challenger.Verify(ctx, req, proof); err != nil {
		if errors.Is(err, ErrTooManyAttempts) {
			if rejErr := m.reject(ctx, req, "verification attempts exhausted"); rejErr != nil {
				return nil, rejErr
			}
		}
		return nil, err
	}

	req.Verified = true
	req.Status = string(StatusInProgress)
	if err := m.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	if err := m.auditTransition(ctx, req, "UPDATE", map[string]any{
		"status":   req.Status,
		"verified": true,
	}); err != nil {
		return nil, err
	}

	if Right(req.Right).AutoProcess() {
		return m.process(ctx, req)
	}
	return &ProcessResult{Request: req}, nil
}

// Process executes a verified request's right. Callers use it for the
// manually-reviewed rights; access and portability normally complete during
// Verify already.
func (m *Manager) Process(ctx context.Context, requestID string) (*ProcessResult, error) {
	req, err := m.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if Status(req.Status).Terminal() {
		return nil, ErrAlreadyProcessed
	}
	if !req.Verified {
		return nil, ErrNotVerified
	}
	return m.process(ctx, req)
}

func (m *Manager) process(ctx context.Context, req *model.GDPRRequest) (*ProcessResult, error) {
	var (
		data   map[string]any
		notes  string
		err    error
		manual bool
	)
	switch Right(req.Right) {
	case RightAccess:
		data, err = m.collectBundle(ctx, req.UserID)
		notes = "data bundle delivered"
	case RightPortability:
		data, err = m.portabilityExport(ctx, req.UserID)
		notes = "portable export delivered"
	case RightErasure:
		data, notes, err = m.erase(ctx, req.UserID)
	case RightRectification, RightRestriction, RightObjection, RightAutomatedDecision:
		manual = true
		notes = "manual review required"
		data = map[string]any{"message": notes}
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidRight, req.Right)
	}
	if err != nil {
		if rejErr := m.reject(ctx, req, err.Error()); rejErr != nil {
			return nil, rejErr
		}
		return nil, fmt.Errorf("process request: %w", err)
	}

	now := m.now()
	req.Status = string(StatusCompleted)
	req.CompletedDate = &now
	req.ProcessorNotes = notes
	if err := m.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	// erasure completions are audited as a system action: attributing them
	// to the user would write fresh rows under the hash just erased
	auditUserID := req.UserID
	if Right(req.Right) == RightErasure {
		auditUserID = ""
	}
	if err := m.audit(ctx, auditUserID, req.ID, "UPDATE", map[string]any{
		"status": req.Status,
		"notes":  notes,
	}); err != nil {
		return nil, err
	}
	if manual && m.hook != nil {
		m.hook(ctx, req)
	}
	m.notify(req)
	return &ProcessResult{Request: req, Data: data}, nil
}

func (m *Manager) collectBundle(ctx context.Context, userID string) (map[string]any, error) {
	logs, err := m.logger.UserLogs(ctx, userID)
	if err != nil {
		return nil, err
	}
	bundle := map[string]any{"logs": logs}
	if m.bundle != nil {
		appData, err := m.bundle.UserData(ctx, userID)
		if err != nil {
			return nil, err
		}
		for key, value := range appData {
			bundle[key] = value
		}
	}
	return bundle, nil
}

func (m *Manager) portabilityExport(ctx context.Context, userID string) (map[string]any, error) {
	bundle, err := m.collectBundle(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"format":     params.ComplianceExportFormat,
		"version":    params.ComplianceExportVersion,
		"exportDate": m.now().UTC().Format(time.RFC3339),
		"data":       bundle,
	}, nil
}

func (m *Manager) erase(ctx context.Context, userID string) (map[string]any, string, error) {
	deleted, err := m.logger.DeleteUserLogs(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	notes := fmt.Sprintf("erased %d log entries", deleted)
	return map[string]any{"deletedEntries": deleted}, notes, nil
}

func (m *Manager) reject(ctx context.Context, req *model.GDPRRequest, notes string) error {
	req.Status = string(StatusRejected)
	req.ProcessorNotes = notes
	if err := m.requests.Update(ctx, req); err != nil {
		return err
	}
	if err := m.auditTransition(ctx, req, "UPDATE", map[string]any{
		"status": req.Status,
		"notes":  notes,
	}); err != nil {
		return err
	}
	m.notify(req)
	return nil
}

// CleanupExpired flips pending requests past their deadline to expired and
// audits each transition. Runs on a schedule; returns the count expired.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	overdue, err := m.requests.FindPendingExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range overdue {
		req := &overdue[i]
		req.Status = string(StatusExpired)
		req.ProcessorNotes = "response deadline elapsed without verification"
		if err := m.requests.Update(ctx, req); err != nil {
			return expired, err
		}
		if err := m.auditTransition(ctx, req, "UPDATE", map[string]any{
			"status": req.Status,
		}); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (m *Manager) Get(ctx context.Context, requestID string) (*model.GDPRRequest, error) {
	return m.requests.Get(ctx, requestID)
}

func (m *Manager) List(ctx context.Context) ([]model.GDPRRequest, error) {
	return m.requests.All(ctx)
}

func (m *Manager) auditTransition(ctx context.Context, req *model.GDPRRequest, action string, newValues map[string]any) error {
	return m.audit(ctx, req.UserID, req.ID, action, newValues)
}

func (m *Manager) audit(ctx context.Context, userID, requestID, action string, newValues map[string]any) error {
	return m.logger.Audit(ctx, privacy.AuditEntry{
		UserID:     userID,
		Action:     action,
		Resource:   "gdpr_request",
		ResourceID: requestID,
		NewValues:  newValues,
		Success:    true,
	})
}

func encodeJSON(value map[string]any) string {
	if len(value) == 0 {
		return ""
	}
	data, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(data)
}
