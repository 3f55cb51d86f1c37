package privacy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/wardenhq/warden/params"
)

var ErrUnsupportedExportFormat = fmt.Errorf("unsupported export format")

// Export renders the full log store as a versioned envelope. Only JSON is
// supported; the format field is kept so consumers can branch on it.
func (l *Logger) Export(ctx context.Context, format string) ([]byte, error) {
	if format != params.ComplianceExportFormat {
		return nil, ErrUnsupportedExportFormat
	}
	entries, err := l.logs.All(ctx)
	if err != nil {
		return nil, err
	}
	records, err := l.audits.All(ctx)
	if err != nil {
		return nil, err
	}

	envelope := map[string]any{
		"format":     format,
		"version":    params.ComplianceExportVersion,
		"exportDate": l.now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"entries":      entries,
			"auditRecords": records,
		},
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(envelope); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Statistics summarizes the current contents of the log store.
type Statistics struct {
	TotalEntries int64            `json:"totalEntries"`
	TotalAudits  int64            `json:"totalAudits"`
	ByLevel      map[string]int64 `json:"byLevel"`
	ByCategory   map[string]int64 `json:"byCategory"`
	Anonymized   int64            `json:"anonymized"`
}

func (l *Logger) Statistics(ctx context.Context) (*Statistics, error) {
	entries, err := l.logs.All(ctx)
	if err != nil {
		return nil, err
	}
	records, err := l.audits.All(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{
		TotalEntries: int64(len(entries)),
		TotalAudits:  int64(len(records)),
		ByLevel:      make(map[string]int64),
		ByCategory:   make(map[string]int64),
	}
	for _, entry := range entries {
		stats.ByLevel[entry.Level]++
		stats.ByCategory[entry.Category]++
		if entry.Anonymized {
			stats.Anonymized++
		}
	}
	return stats, nil
}

// Analytics reports recent activity trends: per-day volumes over the last
// week, the error rate, and how much of the store is security relevant.
type Analytics struct {
	EntriesPerDay  map[string]int64 `json:"entriesPerDay"`
	ErrorRate      float64          `json:"errorRate"`
	SecurityEvents int64            `json:"securityEvents"`
}

func (l *Logger) Analytics(ctx context.Context) (*Analytics, error) {
	entries, err := l.logs.All(ctx)
	if err != nil {
		return nil, err
	}
	analytics := &Analytics{
		EntriesPerDay: make(map[string]int64),
	}
	weekAgo := l.now().AddDate(0, 0, -7)
	var errors int64
	for _, entry := range entries {
		if entry.Timestamp.After(weekAgo) {
			analytics.EntriesPerDay[entry.Timestamp.UTC().Format("2006-01-02")]++
		}
		if entry.Level == string(LevelError) || entry.Level == string(LevelCritical) {
			errors++
		}
		if entry.Category == string(CategorySecurity) {
			analytics.SecurityEvents++
		}
	}
	if len(entries) > 0 {
		analytics.ErrorRate = float64(errors) / float64(len(entries))
	}
	return analytics, nil
}
