package gdpr

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/privacy"
	"github.com/wardenhq/warden/model"
	"github.com/wardenhq/warden/params"
)

const testEmailToken = "valid-email-token"

// tokenChallenger accepts a single fixed token, standing in for the signed
// email link flow.
type tokenChallenger struct {
	accept    string
	initiated int
}

func (c *tokenChallenger) Initiate(ctx context.Context, req *model.GDPRRequest) error {
	c.initiated++
	return nil
}

func (c *tokenChallenger) Verify(ctx context.Context, req *model.GDPRRequest, proof Proof) error {
	if proof.Token == c.accept {
		return nil
	}
	return fmt.Errorf("%w: invalid token", ErrVerificationFailed)
}

type exhaustedChallenger struct{}

func (exhaustedChallenger) Initiate(ctx context.Context, req *model.GDPRRequest) error { return nil }
func (exhaustedChallenger) Verify(ctx context.Context, req *model.GDPRRequest, proof Proof) error {
	return ErrTooManyAttempts
}

type managerFixture struct {
	manager *Manager
	logger  *privacy.Logger
	email   *tokenChallenger
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	logger := privacy.NewLogger(false, privacy.NewHasher("identity-key", "ip-secret"),
		nil, privacy.NewMemoryLogRepository(), privacy.NewMemoryAuditRepository())
	email := &tokenChallenger{accept: testEmailToken}
	manager := NewManager(NewMemoryRequestRepository(), logger, Challengers{
		Email:     email,
		Document:  NewDocumentChallenger(),
		TwoFactor: exhaustedChallenger{},
	})
	return &managerFixture{manager: manager, logger: logger, email: email}
}

func (f *managerFixture) submit(t *testing.T, userID string, right Right, method VerificationMethod) *model.GDPRRequest {
	t.Helper()
	req, err := f.manager.Submit(context.Background(), SubmitInput{
		UserID:    userID,
		UserEmail: userID + "@example.com",
		Right:     right,
		Method:    method,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return req
}

func (f *managerFixture) seedUserLogs(t *testing.T, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := f.logger.Log(context.Background(), privacy.Entry{
			Level:          privacy.LevelInfo,
			Category:       privacy.CategoryUserActivity,
			Message:        fmt.Sprintf("viewed article %d", i),
			Classification: privacy.ClassInternal,
			UserID:         userID,
		})
		if err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}
}

func TestSubmitDeadlineIsThirtyDays(t *testing.T) {
	f := newManagerFixture(t)
	req := f.submit(t, "u1", RightAccess, VerifyByEmail)

	if got := req.ExpirationDate.Sub(req.RequestDate); got != params.GDPRRequestDeadline {
		t.Errorf("deadline = %v, want %v", got, params.GDPRRequestDeadline)
	}
	if req.Status != string(StatusPending) {
		t.Errorf("status = %q, want pending", req.Status)
	}
	if f.email.initiated != 1 {
		t.Errorf("verification initiated %d times, want 1", f.email.initiated)
	}
}

func TestSubmitRejectsUnknownRightAndMethod(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	_, err := f.manager.Submit(ctx, SubmitInput{UserID: "u1", Right: "forgetting", Method: VerifyByEmail})
	if !errors.Is(err, ErrInvalidRight) {
		t.Errorf("err = %v, want ErrInvalidRight", err)
	}
	_, err = f.manager.Submit(ctx, SubmitInput{UserID: "u1", Right: RightAccess, Method: "carrier_pigeon"})
	if !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("err = %v, want ErrInvalidMethod", err)
	}
}

func TestAccessAutoCompletesOnVerification(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.seedUserLogs(t, "u1", 3)
	req := f.submit(t, "u1", RightAccess, VerifyByEmail)

	result, err := f.manager.Verify(ctx, req.ID, Proof{Token: testEmailToken})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Request.Status != string(StatusCompleted) {
		t.Fatalf("status = %q, want completed without a separate process call", result.Request.Status)
	}
	logs, ok := result.Data["logs"].(*privacy.UserLogs)
	if !ok {
		t.Fatalf("data bundle has no logs field: %#v", result.Data)
	}
	if len(logs.Entries) != 3 {
		t.Errorf("bundle has %d entries, want 3", len(logs.Entries))
	}
}

func TestPortabilityReturnsVersionedEnvelope(t *testing.T) {
	f := newManagerFixture(t)
	f.seedUserLogs(t, "u2", 1)
	req := f.submit(t, "u2", RightPortability, VerifyByEmail)

	result, err := f.manager.Verify(context.Background(), req.ID, Proof{Token: testEmailToken})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Data["format"] != params.ComplianceExportFormat || result.Data["version"] != params.ComplianceExportVersion {
		t.Errorf("export envelope not versioned: %#v", result.Data)
	}
}

func TestVerifyAlreadyProcessed(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	req := f.submit(t, "u1", RightAccess, VerifyByEmail)

	if _, err := f.manager.Verify(ctx, req.ID, Proof{Token: testEmailToken}); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := f.manager.Verify(ctx, req.ID, Proof{Token: testEmailToken}); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("second verify err = %v, want ErrAlreadyProcessed", err)
	}
}

func TestVerificationFailureKeepsRequestPending(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	req := f.submit(t, "u1", RightAccess, VerifyByEmail)

	if _, err := f.manager.Verify(ctx, req.ID, Proof{Token: "wrong"}); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
	stored, err := f.manager.Get(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != string(StatusPending) || stored.Verified {
		t.Errorf("request mutated on failed verification: status=%q verified=%v", stored.Status, stored.Verified)
	}
	// the requester can retry with the right token
	if _, err := f.manager.Verify(ctx, req.ID, Proof{Token: testEmailToken}); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestExhaustedAttemptsRejectRequest(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	req := f.submit(t, "u1", RightAccess, VerifyByTwoFactor)

	if _, err := f.manager.Verify(ctx, req.ID, Proof{Code: "000000"}); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("err = %v, want ErrTooManyAttempts", err)
	}
	stored, err := f.manager.Get(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != string(StatusRejected) {
		t.Errorf("status = %q, want rejected", stored.Status)
	}
	if _, err := f.manager.Verify(ctx, req.ID, Proof{Code: "000000"}); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("verify on rejected request err = %v, want ErrAlreadyProcessed", err)
	}
}

func TestProcessRequiresVerification(t *testing.T) {
	f := newManagerFixture(t)
	req := f.submit(t, "u1", RightErasure, VerifyByEmail)
	if _, err := f.manager.Process(context.Background(), req.ID); !errors.Is(err, ErrNotVerified) {
		t.Errorf("err = %v, want ErrNotVerified", err)
	}
}

func TestErasureDeletesUserLogs(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.seedUserLogs(t, "u1", 4)
	req := f.submit(t, "u1", RightErasure, VerifyByEmail)
	if _, err := f.manager.Verify(ctx, req.ID, Proof{Token: testEmailToken}); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// submit/verify audits also land under the user's hash; count everything
	// present right before erasure
	before, err := f.logger.UserLogs(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}

	result, err := f.manager.Process(ctx, req.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Request.Status != string(StatusCompleted) {
		t.Fatalf("status = %q, want completed", result.Request.Status)
	}
	deleted, ok := result.Data["deletedEntries"].(int64)
	if !ok || deleted != int64(len(before.Entries)) {
		t.Errorf("deletedEntries = %v, want %d", result.Data["deletedEntries"], len(before.Entries))
	}

	after, err := f.logger.UserLogs(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(after.Entries) != 0 || len(after.AuditRecords) != 0 {
		t.Errorf("user logs not empty after erasure: %d entries, %d audits",
			len(after.Entries), len(after.AuditRecords))
	}
}

func TestManualRightInvokesCompletionHook(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	var hooked *model.GDPRRequest
	f.manager.SetCompletionHook(func(ctx context.Context, req *model.GDPRRequest) {
		hooked = req
	})

	req := f.submit(t, "u1", RightRectification, VerifyByEmail)
	result, err := f.manager.Verify(ctx, req.ID, Proof{Token: testEmailToken})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Request.Status != string(StatusInProgress) {
		t.Fatalf("rectification auto-processed: status = %q", result.Request.Status)
	}
	if hooked != nil {
		t.Fatal("hook fired before processing")
	}

	processed, err := f.manager.Process(ctx, req.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed.Request.ProcessorNotes != "manual review required" {
		t.Errorf("notes = %q", processed.Request.ProcessorNotes)
	}
	if hooked == nil || hooked.ID != req.ID {
		t.Error("completion hook not invoked for manual right")
	}
}

func TestCleanupExpiredOnlyTouchesPending(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-48 * time.Hour)

	pending := f.submit(t, "u1", RightAccess, VerifyByEmail)
	completed := f.submit(t, "u2", RightAccess, VerifyByEmail)
	if _, err := f.manager.Verify(ctx, completed.ID, Proof{Token: testEmailToken}); err != nil {
		t.Fatal(err)
	}

	// age both past the deadline
	for _, id := range []string{pending.ID, completed.ID} {
		req, err := f.manager.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		req.ExpirationDate = past
		if err := f.manager.requests.Update(ctx, req); err != nil {
			t.Fatal(err)
		}
	}

	expired, err := f.manager.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired %d requests, want 1", expired)
	}
	got, _ := f.manager.Get(ctx, pending.ID)
	if got.Status != string(StatusExpired) {
		t.Errorf("pending request status = %q, want expired", got.Status)
	}
	untouched, _ := f.manager.Get(ctx, completed.ID)
	if untouched.Status != string(StatusCompleted) {
		t.Errorf("completed request status = %q, must stay completed", untouched.Status)
	}
}

func TestStatisticsTrackDeadlineKPI(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	done := f.submit(t, "u1", RightAccess, VerifyByEmail)
	if _, err := f.manager.Verify(ctx, done.ID, Proof{Token: testEmailToken}); err != nil {
		t.Fatal(err)
	}
	overdue := f.submit(t, "u2", RightErasure, VerifyByEmail)
	req, _ := f.manager.Get(ctx, overdue.ID)
	req.ExpirationDate = time.Now().Add(-time.Hour)
	if err := f.manager.requests.Update(ctx, req); err != nil {
		t.Fatal(err)
	}

	stats, err := f.manager.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[string(StatusCompleted)] != 1 || stats.ByRight[string(RightAccess)] != 1 {
		t.Errorf("counts wrong: %+v", stats)
	}
	if stats.CompletedWithinDeadlinePct != 100 {
		t.Errorf("deadline KPI = %v, want 100", stats.CompletedWithinDeadlinePct)
	}
	if stats.OverduePending != 1 {
		t.Errorf("overduePending = %d, want 1", stats.OverduePending)
	}
}
