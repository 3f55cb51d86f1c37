package gdpr

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wardenhq/warden/model"
)

// RequestRepository persists compliance requests. Lookups by ID return
// ErrRequestNotFound when no request exists.
type RequestRepository interface {
	Create(ctx context.Context, req *model.GDPRRequest) error
	Update(ctx context.Context, req *model.GDPRRequest) error
	Get(ctx context.Context, id string) (*model.GDPRRequest, error)
	All(ctx context.Context) ([]model.GDPRRequest, error)
	FindPendingExpired(ctx context.Context, now time.Time) ([]model.GDPRRequest, error)
}

type memoryRequestRepository struct {
	mu       sync.Mutex
	requests map[string]model.GDPRRequest
}

func NewMemoryRequestRepository() RequestRepository {
	return &memoryRequestRepository{requests: make(map[string]model.GDPRRequest)}
}

func (r *memoryRequestRepository) Create(ctx context.Context, req *model.GDPRRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = *req
	return nil
}

func (r *memoryRequestRepository) Update(ctx context.Context, req *model.GDPRRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; !ok {
		return ErrRequestNotFound
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *memoryRequestRepository) Get(ctx context.Context, id string) (*model.GDPRRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return &req, nil
}

func (r *memoryRequestRepository) All(ctx context.Context) ([]model.GDPRRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.GDPRRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestDate.Before(out[j].RequestDate)
	})
	return out, nil
}

func (r *memoryRequestRepository) FindPendingExpired(ctx context.Context, now time.Time) ([]model.GDPRRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.GDPRRequest
	for _, req := range r.requests {
		if req.Status == string(StatusPending) && req.ExpirationDate.Before(now) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestDate.Before(out[j].RequestDate)
	})
	return out, nil
}
