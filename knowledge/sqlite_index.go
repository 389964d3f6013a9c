//go:build !without_sqlite

package knowledge

import (
	"context"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mechatbot/mechatbot/errors"
	"github.com/mechatbot/mechatbot/internal/db"
)

// SqliteVecIndex implements VectorIndex using SQLite with the sqlite-vec
// extension. It opens its own database handle: the index deliberately shares
// no connection, file or transaction with the relational store.
type SqliteVecIndex struct {
	db     *gorm.DB
	vecDim int
}

// vectorMetaRecord carries the scalar metadata attached to each vector entry.
// The scope columns are denormalized copies used for query-time filtering.
type vectorMetaRecord struct {
	ItemID       string `gorm:"primaryKey"`
	CreatedBy    string `gorm:"index:idx_vector_meta_scope"`
	InstanceName string `gorm:"index:idx_vector_meta_scope"`

	Metadata datatypes.JSONType[map[string]any]
}

func (vectorMetaRecord) TableName() string {
	return "vector_metadata"
}

// NewSqliteVecIndex opens (or creates) the vector index database with the
// given embedding dimension.
func NewSqliteVecIndex(dbPath string, dimension int) (*SqliteVecIndex, error) {
	sqlite_vec.Auto()

	gdb, err := db.OpenSqlite(dbPath)
	if err != nil {
		return nil, err
	}

	index := &SqliteVecIndex{
		db:     gdb,
		vecDim: dimension,
	}

	if err := gdb.AutoMigrate(&vectorMetaRecord{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate vector metadata table")
	}

	if err := index.createVectorTable(); err != nil {
		return nil, err
	}

	return index, nil
}

func (i *SqliteVecIndex) createVectorTable() error {
	var sqliteVersion, vecVersion string
	if err := i.db.Raw("SELECT sqlite_version(), vec_version()").Row().Scan(&sqliteVersion, &vecVersion); err != nil {
		return errors.Wrapf(err, "sqlite-vec extension not properly loaded")
	}

	createTableSQL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_vectors USING vec0(
			item_id TEXT PRIMARY KEY,
			embedding float[%d]
		);
	`, i.vecDim)

	if err := i.db.Exec(createTableSQL).Error; err != nil {
		return errors.Wrapf(err, "failed to create knowledge_vectors table")
	}

	return nil
}

func (i *SqliteVecIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	if len(vector) != i.vecDim {
		return errors.Errorf("vector dimension mismatch: got %d, expected %d", len(vector), i.vecDim)
	}

	serialized, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize vector")
	}

	meta := vectorMetaRecord{
		ItemID:   id,
		Metadata: datatypes.NewJSONType(metadata),
	}
	if v, ok := metadata["createdBy"].(string); ok {
		meta.CreatedBy = v
	}
	if v, ok := metadata["instanceName"].(string); ok {
		meta.InstanceName = v
	}

	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&meta).Error; err != nil {
			return errors.Wrapf(err, "failed to save vector metadata")
		}

		// vec0 virtual tables have no native upsert.
		if err := tx.Exec("DELETE FROM knowledge_vectors WHERE item_id = ?", id).Error; err != nil {
			return errors.Wrapf(err, "failed to delete existing vector")
		}
		if err := tx.Exec("INSERT INTO knowledge_vectors (item_id, embedding) VALUES (?, ?)", id, serialized).Error; err != nil {
			return errors.Wrapf(err, "failed to insert vector")
		}
		return nil
	})
}

func (i *SqliteVecIndex) Query(ctx context.Context, vector []float32, topK int, filter *Scope) ([]Match, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}

	serialized, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize query vector")
	}

	var allowedIDs []string
	if filter != nil {
		if err := i.db.WithContext(ctx).
			Model(&vectorMetaRecord{}).
			Where("created_by = ? AND instance_name = ?", filter.CreatedBy, filter.InstanceName).
			Pluck("item_id", &allowedIDs).Error; err != nil {
			return nil, errors.Wrapf(err, "failed to resolve scope filter")
		}
		if len(allowedIDs) == 0 {
			return nil, nil
		}
	}

	var (
		searchSQL string
		args      []any
	)
	if len(allowedIDs) > 0 {
		searchSQL = `
			SELECT item_id, distance
			FROM knowledge_vectors
			WHERE embedding MATCH ? AND item_id IN ?
			ORDER BY distance
			LIMIT ?
		`
		args = []any{serialized, allowedIDs, topK}
	} else {
		searchSQL = `
			SELECT item_id, distance
			FROM knowledge_vectors
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		`
		args = []any{serialized, topK}
	}

	rows, err := i.db.WithContext(ctx).Raw(searchSQL, args...).Rows()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute vector query")
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id       string
			distance float32
		)
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, errors.Wrapf(err, "failed to scan vector query row")
		}
		matches = append(matches, Match{
			ID:    id,
			Score: 1.0 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "vector query iteration failed")
	}

	return matches, nil
}

func (i *SqliteVecIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM knowledge_vectors WHERE item_id IN ?", ids).Error; err != nil {
			return errors.Wrapf(err, "failed to delete vectors")
		}
		if err := tx.Delete(&vectorMetaRecord{}, "item_id IN ?", ids).Error; err != nil {
			return errors.Wrapf(err, "failed to delete vector metadata")
		}
		return nil
	})
}

func (i *SqliteVecIndex) Close() error {
	return db.CloseDB(i.db)
}

var (
	_ VectorIndex = (*SqliteVecIndex)(nil)
)
