package ratelimit

import (
	"context"
	"errors"

	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/params"
)

// StorageTierSource reads account tiers from the shared TTL store, where the
// account system publishes them. Unknown identities are free tier.
type StorageTierSource struct {
	storage store.Storage
}

func NewStorageTierSource(storage store.Storage) *StorageTierSource {
	return &StorageTierSource{
		storage: store.StorageWithPrefix(storage, params.TierKeyPrefix),
	}
}

func (s *StorageTierSource) Tier(ctx context.Context, identity string) (Tier, error) {
	var tier Tier
	err := s.storage.Get(ctx, identity, &tier)
	if errors.Is(err, store.ErrNotFound) {
		return TierFree, nil
	}
	if err != nil {
		return TierFree, err
	}
	return tier, nil
}
