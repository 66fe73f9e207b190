package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kilnworks-backend/internal/firing"
	"kilnworks-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	firing.Backend
	firing.Completer

	CreateKiln(ctx context.Context, kiln *model.Kiln) error

	PutSubscription(ctx context.Context, sub *model.KilnSubscription, kilnIDs []int64) error
	GetSubscription(ctx context.Context, endpoint string) (*model.KilnSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForKiln(ctx context.Context, kilnID int64) ([]model.KilnSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gormStore{db: db, logger: logger}
}

func activeStatuses() []string {
	out := make([]string, len(model.ActiveFiringStatuses))
	for i, s := range model.ActiveFiringStatuses {
		out[i] = string(s)
	}
	return out
}

// ListKilns returns every kiln of a studio ordered by ID.
func (s *gormStore) ListKilns(ctx context.Context, studioID string) ([]model.Kiln, error) {
	var kilns []model.Kiln
	if err := s.db.WithContext(ctx).Where("studio_id = ?", studioID).Order("id").Find(&kilns).Error; err != nil {
		return nil, fmt.Errorf("failed to list kilns for studio %s: %w", studioID, err)
	}
	return kilns, nil
}

// ListFirings returns every firing of a studio, oldest first.
func (s *gormStore) ListFirings(ctx context.Context, studioID string) ([]model.Firing, error) {
	var firings []model.Firing
	if err := s.db.WithContext(ctx).Where("studio_id = ?", studioID).Order("created_at, id").Find(&firings).Error; err != nil {
		return nil, fmt.Errorf("failed to list firings for studio %s: %w", studioID, err)
	}
	return firings, nil
}

// CreateKiln validates and inserts a kiln.
func (s *gormStore) CreateKiln(ctx context.Context, kiln *model.Kiln) error {
	if !kiln.Type.Valid() {
		return fmt.Errorf("%w: unknown kiln type %q", firing.ErrInvalidRequest, kiln.Type)
	}
	if err := kiln.Specifications.Data().Validate(kiln.Type); err != nil {
		return fmt.Errorf("%w: %v", firing.ErrInvalidRequest, err)
	}
	if kiln.StoredStatus == "" {
		kiln.StoredStatus = model.KilnStatusAvailable
	}
	if err := s.db.WithContext(ctx).Create(kiln).Error; err != nil {
		return fmt.Errorf("failed to create kiln: %w", err)
	}
	return nil
}

// CreateFiring inserts a firing. Active firings are checked against the
// kiln inside the transaction and again by the partial unique index.
func (s *gormStore) CreateFiring(ctx context.Context, studioID string, f *model.Firing) (*model.Firing, error) {
	f.StudioID = studioID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := kilnExists(tx, studioID, f.KilnID); err != nil {
			return err
		}
		if f.Status.Active() {
			if err := ensureKilnFree(tx, f.KilnID, ""); err != nil {
				return err
			}
		}
		if err := tx.Create(f).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: kiln %d already has an active firing", firing.ErrKilnBusy, f.KilnID)
			}
			return fmt.Errorf("failed to create firing for kiln %d: %w", f.KilnID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateFiring applies a status patch with a compare-and-swap on the
// expected status.
func (s *gormStore) UpdateFiring(ctx context.Context, studioID, firingID string, patch firing.FiringPatch) (*model.Firing, error) {
	var updated *model.Firing
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = updateFiring(tx, studioID, firingID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("firing updated",
		zap.String("firing", firingID),
		zap.String("from", string(patch.ExpectedStatus)),
		zap.String("to", string(patch.Status)))
	return updated, nil
}

// UpdateKiln applies a kiln patch.
func (s *gormStore) UpdateKiln(ctx context.Context, studioID string, kilnID int64, patch firing.KilnPatch) (*model.Kiln, error) {
	var kiln *model.Kiln
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		kiln, err = updateKiln(tx, studioID, kilnID, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return kiln, nil
}

// CompleteFiring applies the firing patch and the kiln patch of the firing's
// kiln in one transaction.
func (s *gormStore) CompleteFiring(ctx context.Context, studioID, firingID string, patch firing.FiringPatch, kilnPatch firing.KilnPatch) (*model.Firing, *model.Kiln, error) {
	var (
		updated *model.Firing
		kiln    *model.Kiln
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if updated, err = updateFiring(tx, studioID, firingID, patch); err != nil {
			return err
		}
		kiln, err = updateKiln(tx, studioID, updated.KilnID, kilnPatch)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("firing completed",
		zap.String("firing", firingID),
		zap.Int64("kiln", kiln.ID),
		zap.Int("total_firings", kiln.TotalFirings))
	return updated, kiln, nil
}

func updateFiring(tx *gorm.DB, studioID, firingID string, patch firing.FiringPatch) (*model.Firing, error) {
	var current model.Firing
	if err := tx.Where("id = ? AND studio_id = ?", firingID, studioID).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("firing %s: %w", firingID, firing.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load firing %s: %w", firingID, err)
	}
	if current.Status != patch.ExpectedStatus {
		return nil, fmt.Errorf("%w: firing %s is %s, expected %s", firing.ErrInvalidTransition, firingID, current.Status, patch.ExpectedStatus)
	}
	if patch.Status.Active() && !current.Status.Active() {
		if err := ensureKilnFree(tx, current.KilnID, firingID); err != nil {
			return nil, err
		}
	}

	updates := map[string]any{
		"status":     patch.Status,
		"updated_at": time.Now().UTC(),
	}
	if patch.ActualStart != nil {
		updates["actual_start"] = *patch.ActualStart
	}
	if patch.ActualEnd != nil {
		updates["actual_end"] = *patch.ActualEnd
	}

	res := tx.Model(&model.Firing{}).
		Where("id = ? AND studio_id = ? AND status = ?", firingID, studioID, patch.ExpectedStatus).
		Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: kiln %d already has an active firing", firing.ErrKilnBusy, current.KilnID)
		}
		return nil, fmt.Errorf("failed to update firing %s: %w", firingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: firing %s changed concurrently", firing.ErrInvalidTransition, firingID)
	}

	var updated model.Firing
	if err := tx.Where("id = ?", firingID).First(&updated).Error; err != nil {
		return nil, fmt.Errorf("failed to reload firing %s: %w", firingID, err)
	}
	return &updated, nil
}

func updateKiln(tx *gorm.DB, studioID string, kilnID int64, patch firing.KilnPatch) (*model.Kiln, error) {
	if err := kilnExists(tx, studioID, kilnID); err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Capacity != nil {
		updates["capacity"] = *patch.Capacity
	}
	if patch.ShelfCount != nil {
		updates["shelf_count"] = *patch.ShelfCount
	}
	if patch.ShelfConfiguration != nil {
		updates["shelf_configuration"] = datatypes.NewJSONSlice(patch.ShelfConfiguration)
	}
	if patch.IncrementTotalFirings {
		updates["total_firings"] = gorm.Expr("total_firings + ?", 1)
	}
	if patch.LastFired != nil {
		updates["last_fired"] = *patch.LastFired
	}

	if err := tx.Model(&model.Kiln{}).Where("id = ?", kilnID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update kiln %d: %w", kilnID, err)
	}
	var kiln model.Kiln
	if err := tx.Where("id = ?", kilnID).First(&kiln).Error; err != nil {
		return nil, fmt.Errorf("failed to reload kiln %d: %w", kilnID, err)
	}
	return &kiln, nil
}

// PutSubscription creates or replaces a subscription and its kiln mapping.
// Kilns outside the subscription's studio are ignored. An endpoint owned by
// another studio is reported as not found and left untouched.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.KilnSubscription, kilnIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.KilnSubscription
		err := tx.Where("endpoint = ?", sub.Endpoint).Limit(1).Find(&existing).Error
		if err != nil {
			return fmt.Errorf("failed to look up subscription: %w", err)
		}
		if existing.Endpoint != "" && existing.StudioID != sub.StudioID {
			return fmt.Errorf("subscription: %w", firing.ErrNotFound)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		var kilns []*model.Kiln
		if len(kilnIDs) > 0 {
			if err := tx.Where("studio_id = ? AND id IN ?", sub.StudioID, kilnIDs).Find(&kilns).Error; err != nil {
				return fmt.Errorf("failed to load subscribed kilns: %w", err)
			}
		}

		if err := tx.Model(sub).Association("Kilns").Replace(&kilns); err != nil {
			return fmt.Errorf("failed to replace subscribed kilns: %w", err)
		}
		return nil
	})
}

// GetSubscription loads a subscription with its kilns.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.KilnSubscription, error) {
	var sub model.KilnSubscription
	if err := s.db.WithContext(ctx).Preload("Kilns").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription: %w", firing.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// DeleteSubscription removes a subscription and its kiln mapping.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.KilnSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Kilns").Clear(); err != nil {
			return fmt.Errorf("failed to clear subscribed kilns: %w", err)
		}
		if err := tx.Delete(&sub).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		return nil
	})
}

// SubscriptionsForKiln returns the subscriptions mapped to a kiln.
func (s *gormStore) SubscriptionsForKiln(ctx context.Context, kilnID int64) ([]model.KilnSubscription, error) {
	var subs []model.KilnSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_kiln_mapping skm ON skm.kiln_subscription_endpoint = kiln_subscriptions.endpoint").
		Where("skm.kiln_id = ?", kilnID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for kiln %d: %w", kilnID, err)
	}
	return subs, nil
}

func kilnExists(tx *gorm.DB, studioID string, kilnID int64) error {
	var count int64
	if err := tx.Model(&model.Kiln{}).Where("id = ? AND studio_id = ?", kilnID, studioID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up kiln %d: %w", kilnID, err)
	}
	if count == 0 {
		return fmt.Errorf("kiln %d: %w", kilnID, firing.ErrNotFound)
	}
	return nil
}

// ensureKilnFree fails with ErrKilnBusy when any firing other than except is
// active on the kiln.
func ensureKilnFree(tx *gorm.DB, kilnID int64, except string) error {
	q := tx.Model(&model.Firing{}).Where("kiln_id = ? AND status IN ?", kilnID, activeStatuses())
	if except != "" {
		q = q.Where("id <> ?", except)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check kiln %d: %w", kilnID, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: kiln %d already has an active firing", firing.ErrKilnBusy, kilnID)
	}
	return nil
}
