// Package postgres implements the persistence gateway on Postgres through
// database/sql and the pgx stdlib driver.
package postgres

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

// marshalKnownIDs serializes the snapshot as a sorted JSON array of
// "site:external_id" strings. Sorting keeps the stored document stable across
// runs so row diffs stay readable.
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

// scanSavedSearch scans one row including the criteria and snapshot JSON
// documents.
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
WHERE id = $1
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

// ListMonitored returns every saved search. Notification preferences only
// affect dispatch, not monitoring, so the cycle keeps every snapshot fresh.
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
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	err = repo.db.QueryRowContext(ctx, query,
		search.Name, criteriaJSON, search.NotificationsEnabled, knownJSON, search.LastCycleAt,
	).Scan(&search.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SavedSearchRepo) Delete(ctx context.Context, id int64) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE id = $1`, id)
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

// UpdateSnapshot replaces the known-listing snapshot and advances the
// last-cycle timestamp in one statement. A zero rows-affected result means
// the search was deleted mid-cycle.
func (repo *SavedSearchRepo) UpdateSnapshot(ctx context.Context, id int64, knownIDs map[entity.ListingKey]struct{}, lastCycleAt time.Time) error {
	knownJSON, err := marshalKnownIDs(knownIDs)
	if err != nil {
		return fmt.Errorf("UpdateSnapshot: marshal known_listing_ids: %w", err)
	}

	const query = `
UPDATE saved_searches
SET known_listing_ids = $1, last_cycle_at = $2
WHERE id = $3`
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
