package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
)

// RunRepository implements models.Repository[*models.ArchiveRun] for run history.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `
	id, sequence, kind, status, items_total, items_done, items_failed,
	error_message, started_at, finished_at, created_at, updated_at
`

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.ArchiveRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "archive_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	query := `INSERT INTO archive_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(run.Kind()),
		string(run.Status()),
		run.ItemsTotal(),
		run.ItemsDone(),
		run.ItemsFailed(),
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.ArchiveRun, error) {
	query := `SELECT ` + runColumns + ` FROM archive_runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// Update stores the run's status and counts
func (r *RunRepository) Update(run *models.ArchiveRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE archive_runs
		SET status = ?, items_total = ?, items_done = ?, items_failed = ?,
			error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		string(run.Status()),
		run.ItemsTotal(),
		run.ItemsDone(),
		run.ItemsFailed(),
		nullString(run.ErrorMessage()),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return expectRow(result, "run", run.ID())
}

// Delete removes a run by ID. Run history has no soft delete.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM archive_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectRow(result, "run", id)
}

// List retrieves runs newest first. Supported criteria: "kind", "status" (strings) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.ArchiveRun, error) {
	query := `SELECT ` + runColumns + ` FROM archive_runs WHERE 1 = 1`
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ArchiveRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Start records a new running run of the given kind.
func (r *RunRepository) Start(kind models.RunKind) (*models.ArchiveRun, error) {
	run := models.NewArchiveRun(kind)
	if err := r.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Finish closes run with its counts and stores it.
func (r *RunRepository) Finish(run *models.ArchiveRun, total, done, failed int, runErr error) error {
	run.Finish(total, done, failed, runErr)
	return r.Update(run)
}

func scanRun(row scanner) (*models.ArchiveRun, error) {
	var (
		id           string
		sequence     int
		kind         string
		status       string
		itemsTotal   int
		itemsDone    int
		itemsFailed  int
		errorMessage sql.NullString
		startedAt    time.Time
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(
		&id, &sequence, &kind, &status, &itemsTotal, &itemsDone, &itemsFailed,
		&errorMessage, &startedAt, &finishedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	var finished *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}

	return models.RestoreArchiveRun(
		id, sequence, models.RunKind(kind), models.RunStatus(status),
		itemsTotal, itemsDone, itemsFailed, errorMessage.String,
		startedAt, finished, createdAt, updatedAt,
	), nil
}
