package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"doerly/internal/domain"
)

const taskColumns = `id,title,description,task_type,status,created_by,assigned_to,urgency,cost_cents,proof_urls_json,created_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var description sql.NullString
	var assignedTo sql.NullString
	var proofURLs sql.NullString
	var cents int64
	err := scan(&t.ID, &t.Title, &description, &t.Type, &t.Status, &t.CreatedBy, &assignedTo, &t.Urgency, &cents, &proofURLs, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Description = description.String
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	t.EstimatedCost = FromCents(cents)
	t.ProofURLs = []string{}
	if proofURLs.Valid && proofURLs.String != "" {
		_ = json.Unmarshal([]byte(proofURLs.String), &t.ProofURLs)
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	cents, err := Cents(t.EstimatedCost)
	if err != nil {
		return err
	}
	proofs, err := json.Marshal(t.ProofURLs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.Type, t.Status, t.CreatedBy,
		nullableStringPtr(t.AssignedTo), t.Urgency, cents, string(proofs), t.CreatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

// ListTasksByCreator returns a creator's tasks, newest first.
func (r Repo) ListTasksByCreator(ctx context.Context, creatorID string, limit int) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE created_by=? ORDER BY created_at DESC, id DESC LIMIT ?`, creatorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListOpenTasks returns pending tasks available for helpers, newest first.
func (r Repo) ListOpenTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status='pending' ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListTasks returns tasks across all users, optionally filtered by status.
func (r Repo) ListTasks(ctx context.Context, status string, limit int) ([]domain.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks`
	args := []any{}
	if status != "" {
		q += ` WHERE status=?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// AcceptTask assigns a pending task to a helper and moves it to in_progress
// as a single compare-and-swap. If the task is absent the error is
// ErrNotFound; if it exists in any other status, ErrTaskUnavailable.
func (r Repo) AcceptTask(ctx context.Context, tx *sql.Tx, taskID, helperID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET assigned_to=?, status='in_progress' WHERE id=? AND status='pending'`,
		helperID, taskID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id=?`, taskID).Scan(&one)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrTaskUnavailable
	}
	return nil
}

func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTasksByCreator(ctx context.Context, tx *sql.Tx, creatorID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE created_by=?`, creatorID)
	return err
}
