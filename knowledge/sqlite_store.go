//go:build !without_sqlite

package knowledge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/internal/db"
)

// SqliteStore implements Store on a SQLite database through GORM.
type SqliteStore struct {
	db *gorm.DB
}

type itemRecord struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Text         string `gorm:"uniqueIndex:idx_items_text_scope"`
	CreatedBy    string `gorm:"uniqueIndex:idx_items_text_scope;index:idx_items_scope"`
	InstanceName string `gorm:"uniqueIndex:idx_items_text_scope;index:idx_items_scope"`
}

func (itemRecord) TableName() string {
	return "knowledge_items"
}

type historyRecord struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time

	KnowledgeItemID string `gorm:"uniqueIndex:idx_history_item_label;index"`
	RevisionLabel   string `gorm:"uniqueIndex:idx_history_item_label"`
	Description     string
}

func (historyRecord) TableName() string {
	return "update_histories"
}

type personaRecord struct {
	CreatedBy    string `gorm:"primaryKey"`
	InstanceName string `gorm:"primaryKey"`
	UpdatedAt    time.Time

	Prompt string
}

func (personaRecord) TableName() string {
	return "personas"
}

// NewSqliteStore opens (or creates) the relational knowledge database.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	gdb, err := db.OpenSqlite(dbPath)
	if err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(&itemRecord{}, &historyRecord{}, &personaRecord{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate knowledge tables")
	}

	return &SqliteStore{db: gdb}, nil
}

func (s *SqliteStore) InsertItem(ctx context.Context, text string, scope Scope) (*Item, error) {
	record := itemRecord{
		ID:           uuid.NewString(),
		Text:         text,
		CreatedBy:    scope.CreatedBy,
		InstanceName: scope.InstanceName,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to insert knowledge item")
	}

	return recordToItem(record), nil
}

func (s *SqliteStore) FindItemID(ctx context.Context, text string, scope Scope) (string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&itemRecord{}).
		Where("text = ? AND created_by = ? AND instance_name = ?", text, scope.CreatedBy, scope.InstanceName).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return "", errors.Wrapf(err, "failed to look up knowledge item")
	}

	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

func (s *SqliteStore) GetItemsByIDs(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var records []itemRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch knowledge items")
	}

	items := make([]Item, len(records))
	for i, record := range records {
		items[i] = *recordToItem(record)
	}
	return items, nil
}

func (s *SqliteStore) ListItemIDsByScope(ctx context.Context, scope Scope) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&itemRecord{}).
		Where("created_by = ? AND instance_name = ?", scope.CreatedBy, scope.InstanceName).
		Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list knowledge items by scope")
	}
	return ids, nil
}

func (s *SqliteStore) DeleteItemsByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&historyRecord{}, "knowledge_item_id IN ?", ids).Error; err != nil {
			return errors.Wrapf(err, "failed to delete history entries")
		}
		if err := tx.Delete(&itemRecord{}, "id IN ?", ids).Error; err != nil {
			return errors.Wrapf(err, "failed to delete knowledge items")
		}
		return nil
	})
}

func (s *SqliteStore) AppendHistory(ctx context.Context, itemID, revisionLabel, description string) error {
	// Existence check and insert run in one transaction; this is the single
	// guarded dedup path, no error-string matching.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&historyRecord{}).
			Where("knowledge_item_id = ? AND revision_label = ?", itemID, revisionLabel).
			Count(&count).Error; err != nil {
			return errors.Wrapf(err, "failed to check revision history")
		}
		if count > 0 {
			return errors.Wrapf(errors.ErrConflict, "revision %q already exists for item %s", revisionLabel, itemID)
		}

		record := historyRecord{
			KnowledgeItemID: itemID,
			RevisionLabel:   revisionLabel,
			Description:     description,
		}
		if err := tx.Create(&record).Error; err != nil {
			return errors.Wrapf(err, "failed to append history entry")
		}
		return nil
	})
}

func (s *SqliteStore) ListHistoryByItem(ctx context.Context, itemID string) ([]UpdateHistory, error) {
	var records []historyRecord
	if err := s.db.WithContext(ctx).
		Where("knowledge_item_id = ?", itemID).
		Order("seq").
		Find(&records).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list history entries")
	}

	histories := make([]UpdateHistory, len(records))
	for i, record := range records {
		histories[i] = UpdateHistory{
			Seq:           record.Seq,
			ItemID:        record.KnowledgeItemID,
			RevisionLabel: record.RevisionLabel,
			Description:   record.Description,
			CreatedAt:     record.CreatedAt,
		}
	}
	return histories, nil
}

func (s *SqliteStore) DeleteHistoryByLabel(ctx context.Context, itemIDs []string, revisionLabel string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Delete(&historyRecord{}, "knowledge_item_id IN ? AND revision_label = ?", itemIDs, revisionLabel)
	if result.Error != nil {
		return 0, errors.Wrapf(result.Error, "failed to delete history entries")
	}
	return result.RowsAffected, nil
}

func (s *SqliteStore) ListRevisionLabels(ctx context.Context, scope Scope) ([]string, error) {
	var labels []string
	if err := s.db.WithContext(ctx).
		Model(&historyRecord{}).
		Distinct("revision_label").
		Where("knowledge_item_id IN (?)", s.db.
			Model(&itemRecord{}).
			Select("id").
			Where("created_by = ? AND instance_name = ?", scope.CreatedBy, scope.InstanceName)).
		Pluck("revision_label", &labels).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list revision labels")
	}
	return labels, nil
}

func (s *SqliteStore) ListInstanceNames(ctx context.Context, createdBy string) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).
		Model(&itemRecord{}).
		Distinct("instance_name").
		Where("created_by = ?", createdBy).
		Pluck("instance_name", &names).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list instance names")
	}
	return names, nil
}

func (s *SqliteStore) GetPersona(ctx context.Context, scope Scope) (string, error) {
	var records []personaRecord
	if err := s.db.WithContext(ctx).
		Where("created_by = ? AND instance_name = ?", scope.CreatedBy, scope.InstanceName).
		Limit(1).
		Find(&records).Error; err != nil {
		return "", errors.Wrapf(err, "failed to get persona")
	}

	if len(records) == 0 {
		return "", nil
	}
	return records[0].Prompt, nil
}

func (s *SqliteStore) SetPersona(ctx context.Context, scope Scope, prompt string) error {
	record := personaRecord{
		CreatedBy:    scope.CreatedBy,
		InstanceName: scope.InstanceName,
		Prompt:       prompt,
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return errors.Wrapf(err, "failed to set persona")
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return db.CloseDB(s.db)
}

func recordToItem(record itemRecord) *Item {
	return &Item{
		ID:   record.ID,
		Text: record.Text,
		Scope: Scope{
			CreatedBy:    record.CreatedBy,
			InstanceName: record.InstanceName,
		},
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

var (
	_ Store = (*SqliteStore)(nil)
)
