package setting

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KhaosKoder/khaos-settings/internal/db/models"
	"github.com/KhaosKoder/khaos-settings/internal/fault"
)

// Query filters a settings listing. Scope filters apply only when set; the
// zero value lists everything.
type Query struct {
	ApplicationID string
	InstanceID    string
	KeyPrefix     string
	IsSecret      *bool
	Offset        int
	Limit         int
}

// Get retrieves a setting by its id.
func Get(ctx context.Context, db *gorm.DB, id uint64) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var row models.Setting

	err := db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound(strconv.FormatUint(id, 10), "", "")
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &row, nil
}

// GetByKey retrieves the setting for an exact scope triplet.
func GetByKey(ctx context.Context, db *gorm.DB, appID, instID, key string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var row models.Setting

	err := db.WithContext(ctx).
		Where(map[string]any{"application_id": appID, "instance_id": instID, "key": key}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.NotFound(key, appID, instID)
	}

	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &row, nil
}

// List retrieves settings matching the query, ordered by scope then key.
func List(ctx context.Context, db *gorm.DB, q Query) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	tx := db.WithContext(ctx).Model(&models.Setting{})

	if q.ApplicationID != "" {
		tx = tx.Where("application_id = ?", q.ApplicationID)
	}

	if q.InstanceID != "" {
		tx = tx.Where("instance_id = ?", q.InstanceID)
	}

	if q.KeyPrefix != "" {
		// clause.Like quotes the column per dialect; "key" is reserved on
		// some engines.
		tx = tx.Where(clause.Like{
			Column: clause.Column{Name: "key"},
			Value:  escapeLike(q.KeyPrefix) + "%",
		})
	}

	if q.IsSecret != nil {
		tx = tx.Where("is_secret = ?", *q.IsSecret)
	}

	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	tx = tx.Order("application_id").Order("instance_id").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}})

	var rows []models.Setting
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err //nolint:wrapcheck
	}

	return rows, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '%' || s[i] == '_' || s[i] == '\\' {
			out = append(out, '\\')
		}

		out = append(out, s[i])
	}

	return string(out)
}
