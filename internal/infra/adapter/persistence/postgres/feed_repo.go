package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"market-watch/internal/domain/entity"
	"market-watch/internal/repository"
)

type FeedRepo struct{ db *sql.DB }

func NewFeedRepo(db *sql.DB) repository.FeedRepository {
	return &FeedRepo{db: db}
}

// AppendEntries inserts all new listings of one cycle in a single
// transaction so the feed never shows a half-written cycle.
func (repo *FeedRepo) AppendEntries(ctx context.Context, savedSearchID int64, listings []entity.Listing, cycleAt time.Time) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("AppendEntries: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO feed_entries (saved_search_id, site, external_id, title, price_minor, currency, url, image_url, cycle_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("AppendEntries: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, l := range listings {
		if _, err := stmt.ExecContext(ctx,
			savedSearchID, string(l.Site), l.ExternalID, l.Title,
			l.PriceMinor, l.Currency, l.URL, l.ImageURL, cycleAt,
		); err != nil {
			return fmt.Errorf("AppendEntries: insert %s: %w", l.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("AppendEntries: commit: %w", err)
	}
	return nil
}

func (repo *FeedRepo) ListRecent(ctx context.Context, limit int) ([]repository.FeedEntry, error) {
	const query = `
SELECT id, saved_search_id, site, external_id, title, price_minor, currency, url, image_url, cycle_at
FROM feed_entries
ORDER BY cycle_at DESC, id DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]repository.FeedEntry, 0, limit)
	for rows.Next() {
		entry, err := scanFeedEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecent: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (repo *FeedRepo) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM feed_entries WHERE cycle_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("Prune: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("Prune: %w", err)
	}
	return affected, nil
}

func scanFeedEntry(rows *sql.Rows) (repository.FeedEntry, error) {
	var (
		entry entity.Listing
		fe    repository.FeedEntry
		site  string
	)
	if err := rows.Scan(
		&fe.ID, &fe.SavedSearchID, &site, &entry.ExternalID, &entry.Title,
		&entry.PriceMinor, &entry.Currency, &entry.URL, &entry.ImageURL, &fe.CycleAt,
	); err != nil {
		return repository.FeedEntry{}, err
	}
	entry.Site = entity.Marketplace(site)
	fe.Listing = entry
	return fe, nil
}
