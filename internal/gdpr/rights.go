package gdpr

// Right is one of the seven statutory data-subject entitlements. The set is
// closed: every right must have a handler in the manager's dispatch.
type Right string

const (
	RightAccess            Right = "access"
	RightRectification     Right = "rectification"
	RightErasure           Right = "erasure"
	RightRestriction       Right = "restriction"
	RightPortability       Right = "portability"
	RightObjection         Right = "objection"
	RightAutomatedDecision Right = "automated_decision"
)

func (r Right) Valid() bool {
	switch r {
	case RightAccess, RightRectification, RightErasure, RightRestriction,
		RightPortability, RightObjection, RightAutomatedDecision:
		return true
	}
	return false
}

// AutoProcess reports whether the right is handled without human judgment
// the moment the request is verified. Access and portability are purely
// read/export operations; everything else waits for manual handling.
func (r Right) AutoProcess() bool {
	return r == RightAccess || r == RightPortability
}

// Status is the compliance state machine position of a request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// VerificationMethod selects how the requester proves their identity before
// a request is processed.
type VerificationMethod string

const (
	VerifyByEmail     VerificationMethod = "email"
	VerifyByDocument  VerificationMethod = "identity_document"
	VerifyByTwoFactor VerificationMethod = "two_factor"
)

func (m VerificationMethod) Valid() bool {
	switch m {
	case VerifyByEmail, VerifyByDocument, VerifyByTwoFactor:
		return true
	}
	return false
}
