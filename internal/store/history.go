package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veloxcase/cli/internal/schema"
)

// DateLayout is how history dates are stored and shown
const DateLayout = "2006-01-02 15:04"

// DefaultHistoryLimit is the number of rows History returns by default
const DefaultHistoryLimit = 50

// History row statuses
const (
	StatusSuccess = "SUCCESS"
	StatusUpdated = "UPDATED"
)

// HistoryEntry is one recorded sync
type HistoryEntry struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Task       string `json:"task"`
	ProjectID  int    `json:"project_id"`
	FolderID   int    `json:"folder_id"`
	CaseName   string `json:"case"`
	ImageCount int    `json:"images"`
	Status     string `json:"status"`
}

// Stats is the dashboard summary over all history
type Stats struct {
	TotalCases  int `json:"total_cases"`
	TotalImages int `json:"total_images"`
	TodaySyncs  int `json:"today_syncs"`
	TotalSyncs  int `json:"total_syncs"`
}

// RecordSync stores a successful entry. Other statuses are ignored.
func (d *DB) RecordSync(ctx context.Context, target schema.SyncTarget, entry schema.SyncResultEntry) error {
	if entry.Status != schema.StatusSuccess {
		return nil
	}
	status := StatusSuccess
	if entry.Action == schema.ActionUpdated {
		status = StatusUpdated
	}

	_, err := d.ExecContext(ctx, `
		INSERT INTO history (
			id, seq, date, task, project_id, folder_id,
			case_name, cases_count, images_count, status
		) VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM history), ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		uuid.NewString(), d.now().Format(DateLayout), entry.Task, target.ProjectID, target.FolderID,
		entry.CaseName, entry.ImageCount, status,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync: %w", err)
	}
	return nil
}

// History returns the most recent entries, newest first
func (d *DB) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := d.QueryContext(ctx, `
		SELECT id, date, task, project_id, folder_id, COALESCE(case_name, ''), images_count, status
		FROM history ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.Task, &e.ProjectID, &e.FolderID, &e.CaseName, &e.ImageCount, &e.Status); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes all recorded syncs
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	today := d.now().Format("2006-01-02")
	var s Stats
	row := d.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(cases_count), 0),
			COALESCE(SUM(images_count), 0),
			COALESCE(SUM(CASE WHEN date LIKE ? || '%' THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM history
	`, today)
	if err := row.Scan(&s.TotalCases, &s.TotalImages, &s.TodaySyncs, &s.TotalSyncs); err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return s, nil
}

// Clear deletes all history
func (d *DB) Clear(ctx context.Context) error {
	if _, err := d.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}
