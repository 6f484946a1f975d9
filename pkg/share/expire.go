package share

import (
	"context"
	"time"

	"github.com/kevgathuku/server/pkg/models"
	"go.uber.org/zap"
)

// ValidateExpireDate checks an explicit expiration date against the
// policy window. shareTime anchors the enforced window; when zero it is
// looked up from the existing share of the item, falling back to now.
func (e *Engine) ValidateExpireDate(ctx context.Context, date time.Time, shareTime time.Time, itemType, itemSource string) error {
	now := e.now()
	if date.Before(now) {
		return expirationf("expiration date is in the past")
	}
	if !e.cfg.EnforceExpireDate {
		return nil
	}

	if shareTime.IsZero() {
		rows, err := e.store.Find(ctx, Filter{
			ItemTypes:  []string{itemType},
			ItemSource: itemSource,
			Limit:      1,
		})
		if err == nil && len(rows) == 1 {
			shareTime = rows[0].ShareTime
		}
	}
	if shareTime.IsZero() {
		shareTime = now
	}

	latest := shareTime.AddDate(0, 0, e.cfg.ExpireAfterDays)
	if date.After(latest) {
		return expirationf("expiration cannot exceed %d days after sharing", e.cfg.ExpireAfterDays)
	}
	return nil
}

// effectiveExpiry resolves the expiry of a link share: its explicit value
// when set, else the computed default when the default policy is active.
// The zero time means "never".
func (e *Engine) effectiveExpiry(row *models.Share) time.Time {
	if row.Expiration != nil {
		return *row.Expiration
	}
	if e.cfg.DefaultExpireDate && e.cfg.EnforceExpireDate {
		return row.ShareTime.AddDate(0, 0, e.cfg.ExpireAfterDays)
	}
	return time.Time{}
}

// expireItem lazily expires a link share on read. Expiration is only
// meaningful for link shares; values on other share types are historical
// artifacts and are ignored. Returns true when the row was expired and
// deleted (cascading).
func (e *Engine) expireItem(ctx context.Context, row *models.Share) bool {
	if row.ShareType != models.ShareTypeLink {
		return false
	}
	expiry := e.effectiveExpiry(row)
	if expiry.IsZero() || e.now().Before(expiry) {
		return false
	}

	deleted, err := e.store.DeleteCascading(ctx, row.ID)
	if err != nil {
		e.logger.Warn("failed to delete expired share",
			zap.Int64("id", row.ID), zap.Error(err))
		return true
	}
	e.logger.Info("expired link share removed",
		zap.Int64("id", row.ID),
		zap.String("item_type", row.ItemType),
		zap.String("item_source", row.ItemSource))
	e.publishUnshared(ctx, row, deleted)
	return true
}
