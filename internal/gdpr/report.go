package gdpr

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/wardenhq/warden/model"
	"github.com/wardenhq/warden/params"
)

// Statistics aggregates the request store. CompletedWithinDeadlinePct is
// the operative compliance KPI: the share of completed requests answered
// inside the 30-day window.
type Statistics struct {
	Total                      int64            `json:"total"`
	ByRight                    map[string]int64 `json:"byRight"`
	ByStatus                   map[string]int64 `json:"byStatus"`
	MeanCompletionHours        float64          `json:"meanCompletionHours"`
	CompletedWithinDeadlinePct float64          `json:"completedWithinDeadlinePct"`
	OverduePending             int64            `json:"overduePending"`
}

func (m *Manager) Statistics(ctx context.Context) (*Statistics, error) {
	requests, err := m.requests.All(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{
		Total:    int64(len(requests)),
		ByRight:  make(map[string]int64),
		ByStatus: make(map[string]int64),
	}
	now := m.now()
	var completed, withinDeadline int64
	var totalLatency time.Duration
	for _, req := range requests {
		stats.ByRight[req.Right]++
		stats.ByStatus[req.Status]++
		if req.Status == string(StatusPending) && req.ExpirationDate.Before(now) {
			stats.OverduePending++
		}
		if req.Status == string(StatusCompleted) && req.CompletedDate != nil {
			completed++
			totalLatency += req.CompletedDate.Sub(req.RequestDate)
			if req.CompletedDate.Sub(req.RequestDate) <= params.GDPRRequestDeadline {
				withinDeadline++
			}
		}
	}
	if completed > 0 {
		stats.MeanCompletionHours = totalLatency.Hours() / float64(completed)
		stats.CompletedWithinDeadlinePct = 100 * float64(withinDeadline) / float64(completed)
	}
	return stats, nil
}

// reportRequest is one request row in the compliance report. Timestamps
// carry both epoch milliseconds and ISO-8601 so downstream tooling can use
// either; the requester email is deliberately omitted.
type reportRequest struct {
	ID                 string  `json:"id"`
	UserID             string  `json:"userId"`
	Right              string  `json:"right"`
	Status             string  `json:"status"`
	RequestDate        int64   `json:"requestDate"`
	RequestDateISO     string  `json:"requestDateISO"`
	ExpirationDate     int64   `json:"expirationDate"`
	ExpirationDateISO  string  `json:"expirationDateISO"`
	CompletedDate      *int64  `json:"completedDate,omitempty"`
	CompletedDateISO   *string `json:"completedDateISO,omitempty"`
	Verified           bool    `json:"verified"`
	VerificationMethod string  `json:"verificationMethod"`
	ProcessorNotes     string  `json:"processorNotes,omitempty"`
}

// Report renders the full compliance report as JSON.
func (m *Manager) Report(ctx context.Context) ([]byte, error) {
	stats, err := m.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := m.requests.All(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]reportRequest, 0, len(requests))
	for i := range requests {
		rows = append(rows, toReportRequest(&requests[i]))
	}
	now := m.now()
	report := map[string]any{
		"reportDate":    now.UnixMilli(),
		"reportDateISO": now.UTC().Format(time.RFC3339),
		"statistics":    stats,
		"requests":      rows,
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(report); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func toReportRequest(req *model.GDPRRequest) reportRequest {
	row := reportRequest{
		ID:                 req.ID,
		UserID:             req.UserID,
		Right:              req.Right,
		Status:             req.Status,
		RequestDate:        req.RequestDate.UnixMilli(),
		RequestDateISO:     req.RequestDate.UTC().Format(time.RFC3339),
		ExpirationDate:     req.ExpirationDate.UnixMilli(),
		ExpirationDateISO:  req.ExpirationDate.UTC().Format(time.RFC3339),
		Verified:           req.Verified,
		VerificationMethod: req.VerificationMethod,
		ProcessorNotes:     req.ProcessorNotes,
	}
	if req.CompletedDate != nil {
		ms := req.CompletedDate.UnixMilli()
		iso := req.CompletedDate.UTC().Format(time.RFC3339)
		row.CompletedDate = &ms
		row.CompletedDateISO = &iso
	}
	return row
}
