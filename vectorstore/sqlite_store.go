//go:build !without_sqlite

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"github.com/pensionlab/guidancecore/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SqliteStore persists one collection in a SQLite table plus a sqlite-vec
// vec0 virtual table holding the embeddings. Entities round-trip through
// a JSON payload column; the vector itself lives only in the vec table.
type SqliteStore[T Entity] struct {
	db         *gorm.DB
	collection string
	vecDim     int
	newEntity  func() T
}

// entityRecord is the row layout shared by every collection.
type entityRecord struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Seq preserves insertion order for similarity tie-breaking.
	Seq     int64 `gorm:"index"`
	Version int64

	Attributes datatypes.JSONType[map[string]any]
	Payload    datatypes.JSON
}

var _ Store[Entity] = (*SqliteStore[Entity])(nil)

// tieMargin widens the KNN fetch so similarity ties at the limit
// boundary keep their insertion-order tie-break.
const tieMargin = 16

// OpenDB opens (or creates) the shared SQLite database with the
// sqlite-vec extension loaded. All collections of one deployment share a
// single handle.
func OpenDB(dbPath string) (*gorm.DB, error) {
	sqlite_vec.Auto()

	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on", dbPath)),
		&gorm.Config{},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database at %s", dbPath)
	}

	var sqliteVersion, vecVersion string
	if err := db.Raw("SELECT sqlite_version(), vec_version()").Row().Scan(&sqliteVersion, &vecVersion); err != nil {
		return nil, errors.Wrapf(err, "sqlite-vec extension not properly loaded")
	}

	return db, nil
}

// NewSqliteStore binds a collection (e.g. "cases") to its table pair.
// newEntity allocates a fresh record for payload unmarshalling.
func NewSqliteStore[T Entity](db *gorm.DB, collection string, dimension int, newEntity func() T) (*SqliteStore[T], error) {
	store := &SqliteStore[T]{
		db:         db,
		collection: collection,
		vecDim:     dimension,
		newEntity:  newEntity,
	}

	if err := db.Table(collection).AutoMigrate(&entityRecord{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate %s table", collection)
	}

	createSQL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS %s_vectors USING vec0(
			entity_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, collection, dimension)
	if err := db.Exec(createSQL).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create %s_vectors table", collection)
	}

	return store, nil
}

func (s *SqliteStore[T]) Add(ctx context.Context, entity T) (T, error) {
	var zero T

	if len(entity.Vector()) != s.vecDim {
		return zero, errors.Wrapf(errors.ErrInvalidArgument, "embedding has %d dimensions, store configured for %d", len(entity.Vector()), s.vecDim)
	}

	if entity.EntityID() == "" {
		entity.SetEntityID(uuid.NewString())
	}
	if v, ok := any(entity).(Versioned); ok && v.Version() == 0 {
		v.SetVersion(1)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.toRecord(entity)
		if err != nil {
			return err
		}

		var maxSeq int64
		if err := tx.Table(s.collection).Select("COALESCE(MAX(seq), 0)").Row().Scan(&maxSeq); err != nil {
			return errors.Wrapf(err, "failed to read sequence for %s", s.collection)
		}
		record.Seq = maxSeq + 1

		if err := tx.Table(s.collection).Create(record).Error; err != nil {
			return errors.Wrapf(err, "failed to insert into %s", s.collection)
		}

		return s.writeVector(tx, entity.EntityID(), entity.Vector())
	})
	if err != nil {
		return zero, errors.Wrapf(errors.ErrPersistence, "%v", err)
	}

	return entity, nil
}

func (s *SqliteStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	var record entityRecord
	r := s.db.WithContext(ctx).Table(s.collection).Where("id = ?", id).Find(&record)
	if r.Error != nil {
		return zero, errors.Wrapf(errors.ErrPersistence, "failed to fetch %s: %v", id, r.Error)
	}
	if r.RowsAffected == 0 {
		return zero, errors.Wrapf(errors.ErrNotFound, "entity %s", id)
	}

	return s.fromRecord(&record)
}

func (s *SqliteStore[T]) Update(ctx context.Context, entity T) error {
	record, err := s.toRecord(entity)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"payload":    record.Payload,
			"attributes": record.Attributes,
			"updated_at": time.Now(),
		}

		query := tx.Table(s.collection).Where("id = ?", entity.EntityID())
		if v, ok := any(entity).(Versioned); ok {
			query = query.Where("version = ?", v.Version())
			updates["version"] = v.Version() + 1
		}

		r := query.Updates(updates)
		if r.Error != nil {
			return errors.Wrapf(errors.ErrPersistence, "failed to update %s: %v", entity.EntityID(), r.Error)
		}
		if r.RowsAffected == 0 {
			if _, ok := any(entity).(Versioned); ok {
				return errors.Wrapf(errors.ErrConflict, "entity %s: stale version", entity.EntityID())
			}
			return errors.Wrapf(errors.ErrNotFound, "entity %s", entity.EntityID())
		}

		if v, ok := any(entity).(Versioned); ok {
			v.SetVersion(v.Version() + 1)
		}

		if len(entity.Vector()) > 0 {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s_vectors WHERE entity_id = ?", s.collection), entity.EntityID()).Error; err != nil {
				return errors.Wrapf(errors.ErrPersistence, "failed to delete stale vector: %v", err)
			}
			return s.writeVector(tx, entity.EntityID(), entity.Vector())
		}
		return nil
	})
}

func (s *SqliteStore[T]) Search(ctx context.Context, queryEmbedding []float32, limit int, filters map[string]any) ([]Scored[T], error) {
	if limit <= 0 {
		return []Scored[T]{}, nil
	}
	if len(queryEmbedding) != s.vecDim {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "query has %d dimensions, store configured for %d", len(queryEmbedding), s.vecDim)
	}

	tx := s.db.WithContext(ctx)

	// Attribute filters run against the row table first; the vector
	// query is then restricted to the surviving ids.
	var allowedIDs []string
	if len(filters) > 0 {
		q := tx.Table(s.collection)
		for key, value := range filters {
			q = q.Where(fmt.Sprintf("json_extract(attributes, '$.%s') = ?", key), value)
		}
		if err := q.Pluck("id", &allowedIDs).Error; err != nil {
			return nil, errors.Wrapf(errors.ErrPersistence, "failed to apply filters: %v", err)
		}
		if len(allowedIDs) == 0 {
			return []Scored[T]{}, nil
		}
	}

	serializedQuery, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize query embedding")
	}

	// The KNN query truncates by distance alone, so rows tying exactly
	// at the cut boundary would be dropped before the insertion-order
	// tie-break below can run. Fetching a margin past the limit keeps
	// boundary ties deterministic up to tieMargin extra rows.
	knnLimit := limit + tieMargin

	var searchSQL string
	var args []any
	if len(allowedIDs) > 0 {
		// SQLite does not forward a LIMIT to the vec0 virtual table when
		// an IN constraint is present, so k must be a vec0 constraint.
		searchSQL = fmt.Sprintf(`
			SELECT entity_id, distance
			FROM %s_vectors
			WHERE embedding MATCH ? AND k = ? AND entity_id IN ?
			ORDER BY distance
		`, s.collection)
		args = []any{serializedQuery, knnLimit, allowedIDs}
	} else {
		searchSQL = fmt.Sprintf(`
			SELECT entity_id, distance
			FROM %s_vectors
			WHERE embedding MATCH ?
			ORDER BY distance
			LIMIT ?
		`, s.collection)
		args = []any{serializedQuery, knnLimit}
	}

	rows, err := tx.Raw(searchSQL, args...).Rows()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrPersistence, "vector search failed: %v", err)
	}
	defer rows.Close()

	similarityByID := make(map[string]float64)
	var ids []string
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, errors.Wrapf(err, "failed to scan search row")
		}
		ids = append(ids, id)
		// vec0 cosine distance is 1 - similarity.
		similarityByID[id] = 1.0 - distance
	}
	if len(ids) == 0 {
		return []Scored[T]{}, nil
	}

	var records []entityRecord
	if err := tx.Table(s.collection).Where("id IN ?", ids).Order("seq").Find(&records).Error; err != nil {
		return nil, errors.Wrapf(errors.ErrPersistence, "failed to fetch records: %v", err)
	}

	// Records arrive in insertion order; the stable sort keeps that
	// order for equal similarities.
	results := make([]Scored[T], 0, len(records))
	for i := range records {
		entity, err := s.fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		results = append(results, Scored[T]{
			Entity:     entity,
			Similarity: similarityByID[records[i].ID],
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SqliteStore[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Table(s.collection).Count(&count).Error; err != nil {
		return 0, errors.Wrapf(errors.ErrPersistence, "failed to count %s: %v", s.collection, err)
	}
	return count, nil
}

func (s *SqliteStore[T]) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SqliteStore[T]) writeVector(tx *gorm.DB, id string, vector []float32) error {
	serialized, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize embedding")
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s_vectors (entity_id, embedding) VALUES (?, ?)", s.collection)
	if err := tx.Exec(insertSQL, id, serialized).Error; err != nil {
		return errors.Wrapf(err, "failed to insert vector")
	}
	return nil
}

func (s *SqliteStore[T]) toRecord(entity T) (*entityRecord, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal entity payload")
	}

	record := &entityRecord{
		ID:         entity.EntityID(),
		Attributes: datatypes.NewJSONType(entity.Attributes()),
		Payload:    payload,
	}
	if v, ok := any(entity).(Versioned); ok {
		record.Version = v.Version()
	}
	return record, nil
}

func (s *SqliteStore[T]) fromRecord(record *entityRecord) (T, error) {
	entity := s.newEntity()
	if err := json.Unmarshal(record.Payload, entity); err != nil {
		var zero T
		return zero, errors.Wrapf(err, "failed to unmarshal entity payload")
	}
	entity.SetEntityID(record.ID)
	if v, ok := any(entity).(Versioned); ok {
		v.SetVersion(record.Version)
	}
	return entity, nil
}
