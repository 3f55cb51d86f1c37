package gdpr

import (
	"context"
	"errors"
	"time"

	"github.com/wardenhq/warden/model"
	"gorm.io/gorm"
)

type gormRequestRepository struct {
	db *gorm.DB
}

func NewGormRequestRepository(db *gorm.DB) RequestRepository {
	return &gormRequestRepository{db: db}
}

func (r *gormRequestRepository) Create(ctx context.Context, req *model.GDPRRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *gormRequestRepository) Update(ctx context.Context, req *model.GDPRRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *gormRequestRepository) Get(ctx context.Context, id string) (*model.GDPRRequest, error) {
	var req model.GDPRRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *gormRequestRepository) All(ctx context.Context) ([]model.GDPRRequest, error) {
	var requests []model.GDPRRequest
	err := r.db.WithContext(ctx).Order("request_date").Find(&requests).Error
	return requests, err
}

func (r *gormRequestRepository) FindPendingExpired(ctx context.Context, now time.Time) ([]model.GDPRRequest, error) {
	var requests []model.GDPRRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND expiration_date < ?", string(StatusPending), now).
		Order("request_date").
		Find(&requests).Error
	return requests, err
}
