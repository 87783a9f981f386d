package repo

import (
	"context"
	"database/sql"

	"doerly/internal/domain"
)

const disputeColumns = `id,task_id,user_id,helper_id,reason,status,resolution,created_at`

func scanDispute(scan func(...any) error) (domain.Dispute, error) {
	var d domain.Dispute
	var resolution sql.NullString
	err := scan(&d.ID, &d.TaskID, &d.UserID, &d.HelperID, &d.Reason, &d.Status, &resolution, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if resolution.Valid {
		d.Resolution = &resolution.String
	}
	return d, nil
}

func (r Repo) InsertDispute(ctx context.Context, tx *sql.Tx, d domain.Dispute) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO disputes(`+disputeColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, d.TaskID, d.UserID, d.HelperID, d.Reason, d.Status, nullableStringPtr(d.Resolution), d.CreatedAt)
	return err
}

func (r Repo) GetDispute(ctx context.Context, id string) (domain.Dispute, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id=?`, id)
	return scanDispute(row.Scan)
}

func (r Repo) GetDisputeTx(ctx context.Context, tx *sql.Tx, id string) (domain.Dispute, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id=?`, id)
	return scanDispute(row.Scan)
}

func (r Repo) ListDisputesForUser(ctx context.Context, userID string, limit int) ([]domain.Dispute, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// ResolveDispute records resolution text and moves open -> resolved as one
// compare-and-swap. Zero rows affected means the dispute was not open.
func (r Repo) ResolveDispute(ctx context.Context, tx *sql.Tx, id, resolution string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE disputes SET status='resolved', resolution=? WHERE id=? AND status='open'`, resolution, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r Repo) DeleteDisputesByRaiser(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM disputes WHERE user_id=?`, userID)
	return err
}
