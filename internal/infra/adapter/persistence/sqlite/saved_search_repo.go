// Package sqlite implements the persistence gateway on SQLite through
// database/sql and the modernc.org/sqlite driver. It mirrors the postgres
// package with SQLite placeholders and last-insert-id semantics.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"market-watch/internal/domain/entity"
	"market-watch/internal/repository"
)

type SavedSearchRepo struct{ db *sql.DB }

func NewSavedSearchRepo(db *sql.DB) repository.SavedSearchRepository {
	return &SavedSearchRepo{db: db}
}

func marshalKnownIDs(knownIDs map[entity.ListingKey]struct{}) ([]byte, error) {
	keys := make([]string, 0, len(knownIDs))
	for k := range knownIDs {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return json.Marshal(keys)
}

func unmarshalKnownIDs(data []byte) (map[entity.ListingKey]struct{}, error) {
	known := make(map[entity.ListingKey]struct{})
	if len(data) == 0 {
		return known, nil
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("unmarshal known_listing_ids: %w", err)
	}
	for _, s := range keys {
		key, err := entity.ParseListingKey(s)
		if err != nil {
			return nil, err
		}
		known[key] = struct{}{}
	}
	return known, nil
}

func scanSavedSearch(rows *sql.Rows) (*entity.SavedSearch, error) {
	var (
		search       entity.SavedSearch
		criteriaJSON []byte
		knownJSON    []byte
	)
	if err := rows.Scan(
		&search.ID, &search.Name, &criteriaJSON,
		&search.NotificationsEnabled, &knownJSON, &search.LastCycleAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(criteriaJSON, &search.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	known, err := unmarshalKnownIDs(knownJSON)
	if err != nil {
		return nil, err
	}
	search.KnownListingIDs = known
	return &search, nil
}

func (repo *SavedSearchRepo) Get(ctx context.Context, id int64) (*entity.SavedSearch, error) {
	const query = `
SELECT id, name, criteria, notifications_enabled, known_listing_ids, last_cycle_at
FROM saved_searches
WHERE id = ?
LIMIT 1`
	var (
		search       entity.SavedSearch
		criteriaJSON []byte
		knownJSON    []byte
	)
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&search.ID, &search.Name, &criteriaJSON,
		&search.NotificationsEnabled, &knownJSON, &search.LastCycleAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if err := json.Unmarshal(criteriaJSON, &search.Criteria); err != nil {
		return nil, fmt.Errorf("Get: unmarshal criteria: %w", err)
	}
	known, err := unmarshalKnownIDs(knownJSON)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	search.KnownListingIDs = known
	return &search, nil
}

func (repo *SavedSearchRepo) List(ctx context.Context) ([]*entity.SavedSearch, error) {
	const query = `
SELECT id, name, criteria, notifications_enabled, known_listing_ids, last_cycle_at
FROM saved_searches
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	searches := make([]*entity.SavedSearch, 0, 16)
	for rows.Next() {
		search, err := scanSavedSearch(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

// ListMonitored returns every saved search; notification preferences only
// affect dispatch.
func (repo *SavedSearchRepo) ListMonitored(ctx context.Context) ([]*entity.SavedSearch, error) {
	return repo.List(ctx)
}

func (repo *SavedSearchRepo) Create(ctx context.Context, search *entity.SavedSearch) error {
	if err := search.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	criteriaJSON, err := json.Marshal(search.Criteria)
	if err != nil {
		return fmt.Errorf("Create: marshal criteria: %w", err)
	}
	knownJSON, err := marshalKnownIDs(search.KnownListingIDs)
	if err != nil {
		return fmt.Errorf("Create: marshal known_listing_ids: %w", err)
	}

	const query = `
INSERT INTO saved_searches (name, criteria, notifications_enabled, known_listing_ids, last_cycle_at)
VALUES (?, ?, ?, ?, ?)`
	res, err := repo.db.ExecContext(ctx, query,
		search.Name, criteriaJSON, search.NotificationsEnabled, knownJSON, search.LastCycleAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	search.ID = id
	return nil
}

func (repo *SavedSearchRepo) Delete(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if affected == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *SavedSearchRepo) UpdateSnapshot(ctx context.Context, id int64, knownIDs map[entity.ListingKey]struct{}, lastCycleAt time.Time) error {
	knownJSON, err := marshalKnownIDs(knownIDs)
	if err != nil {
		return fmt.Errorf("UpdateSnapshot: marshal known_listing_ids: %w", err)
	}

	const query = `
UPDATE saved_searches
SET known_listing_ids = ?, last_cycle_at = ?
WHERE id = ?`
	res, err := repo.db.ExecContext(ctx, query, knownJSON, lastCycleAt, id)
	if err != nil {
		return fmt.Errorf("UpdateSnapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateSnapshot: %w", err)
	}
	if affected == 0 {
		return entity.ErrNotFound
	}
	return nil
}
