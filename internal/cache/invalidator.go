package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// Invalidator drops the cache entries a write makes stale. Invalidation is
// best effort: a failed delete is logged and the write proceeds, because the
// entries expire on their own TTLs anyway.
type Invalidator struct {
	store  Store
	logger *logger.Logger
}

// NewInvalidator wires an invalidator over the shared store.
func NewInvalidator(store Store, logg *logger.Logger) (*Invalidator, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Invalidator{store: store, logger: logg}, nil
}

// OnContributionWrite clears every entry derived from one contribution's row:
// all viewer variants of its detail plus every cached list page.
func (i *Invalidator) OnContributionWrite(ctx context.Context, contributionID uuid.UUID) {
	i.deletePrefix(ctx, DetailPrefix(contributionID))
	i.deletePrefix(ctx, ListPrefix())
}

// OnEnrollmentWrite clears the enrollment collections touched by a payment
// state change, the contribution's detail variants since enrollment state
// shapes the detail payload, and the list pages scoped to the user.
func (i *Invalidator) OnEnrollmentWrite(ctx context.Context, userID, contributionID uuid.UUID) {
	if err := i.store.Del(ctx, UserEnrollmentsKey(userID), ContributionEnrollmentsKey(contributionID)); err != nil {
		i.logger.Error(ctx, "cache invalidation: delete enrollment keys", err)
	}
	i.deletePrefix(ctx, DetailPrefix(contributionID))
	i.deletePrefix(ctx, UserListPrefix(userID))
}

// OnRatingWrite clears the entries that embed the aggregate rating.
func (i *Invalidator) OnRatingWrite(ctx context.Context, contributionID uuid.UUID) {
	i.OnContributionWrite(ctx, contributionID)
}

func (i *Invalidator) deletePrefix(ctx context.Context, prefix string) {
	deleter, ok := i.store.(PrefixDeleter)
	if !ok {
		i.logger.Warn(ctx, fmt.Sprintf("cache store cannot delete by prefix, leaving %q to expire", prefix))
		return
	}
	if _, err := deleter.DeleteByPrefix(ctx, prefix); err != nil {
		i.logger.Error(ctx, fmt.Sprintf("cache invalidation: delete prefix %q", prefix), err)
	}
}
