package repo

import (
	"context"
	"database/sql"

	"doerly/internal/domain"
)

const automationColumns = `id,user_id,automation_type,schedule,active,last_run,created_at`

func scanAutomation(scan func(...any) error) (domain.Automation, error) {
	var a domain.Automation
	var lastRun sql.NullString
	err := scan(&a.ID, &a.UserID, &a.Type, &a.Schedule, &a.Active, &lastRun, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if lastRun.Valid {
		a.LastRun = &lastRun.String
	}
	return a, nil
}

func (r Repo) InsertAutomation(ctx context.Context, tx *sql.Tx, a domain.Automation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO automations(`+automationColumns+`) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.UserID, a.Type, a.Schedule, a.Active, nullableStringPtr(a.LastRun), a.CreatedAt)
	return err
}

func (r Repo) ListAutomationsForUser(ctx context.Context, userID string, limit int) ([]domain.Automation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+automationColumns+` FROM automations WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Automation
	for rows.Next() {
		a, err := scanAutomation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// GetAutomationForOwner returns the automation only when it belongs to
// ownerID; anything else is ErrNotFound.
func (r Repo) GetAutomationForOwner(ctx context.Context, tx *sql.Tx, id, ownerID string) (domain.Automation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+automationColumns+` FROM automations WHERE id=? AND user_id=?`, id, ownerID)
	return scanAutomation(row.Scan)
}

func (r Repo) SetAutomationActive(ctx context.Context, tx *sql.Tx, id string, active bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE automations SET active=? WHERE id=?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAutomationsForUser(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM automations WHERE user_id=?`, userID)
	return err
}
