package security

import (
	"sync"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type EventType string

const (
	EventDDoSBlock       EventType = "ddos_block"
	EventDDoSSuspect     EventType = "ddos_suspect"
	EventSQLInjection    EventType = "sql_injection"
	EventXSS             EventType = "xss"
	EventPathTraversal   EventType = "path_traversal"
	EventMalformed       EventType = "malformed_request"
	EventRateLimited     EventType = "rate_limited"
	EventCSRFViolation   EventType = "csrf_violation"
	EventIncidentBlock   EventType = "incident_block"
	EventInternalFailure EventType = "internal_failure"
)

// RequestMeta is the request context attached to an event. The IP travels
// raw inside the process so the incident responder can key counters on it;
// it is hashed the moment the event reaches a log sink.
type RequestMeta struct {
	IP        string `json:"-"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	UserAgent string `json:"userAgent"`
}

// Event is an append-only security finding. Immutable once created.
type Event struct {
	Type      EventType   `json:"type"`
	Severity  Severity    `json:"severity"`
	Detail    string      `json:"detail"`
	Request   RequestMeta `json:"request"`
	Blocked   bool        `json:"blocked"`
	Timestamp time.Time   `json:"timestamp"`
}

// History is a bounded ring of recent events served by the admin API.
type History struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{events: make([]Event, capacity)}
}

func (h *History) Add(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[h.next] = ev
	h.next = (h.next + 1) % len(h.events)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns events oldest-first.
func (h *History) Recent() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		out := make([]Event, h.next)
		copy(out, h.events[:h.next])
		return out
	}
	out := make([]Event, 0, len(h.events))
	out = append(out, h.events[h.next:]...)
	out = append(out, h.events[:h.next]...)
	return out
}
