package repo

import (
	"context"
	"database/sql"

	"doerly/internal/domain"
)

const txColumns = `id,task_id,from_user,to_user,amount_cents,status,created_at`

func scanTransaction(scan func(...any) error) (domain.Transaction, error) {
	var t domain.Transaction
	var toUser sql.NullString
	var cents int64
	err := scan(&t.ID, &t.TaskID, &t.FromUser, &toUser, &cents, &t.Status, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if toUser.Valid {
		t.ToUser = &toUser.String
	}
	t.Amount = FromCents(cents)
	return t, nil
}

func (r Repo) InsertTransaction(ctx context.Context, tx *sql.Tx, t domain.Transaction) error {
	cents, err := Cents(t.Amount)
	if err != nil {
		return err
	}
	if cents <= 0 {
		return ErrInvalidAmount
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO transactions(`+txColumns+`) VALUES (?,?,?,?,?,?,?)`,
		t.ID, t.TaskID, t.FromUser, nullableStringPtr(t.ToUser), cents, t.Status, t.CreatedAt)
	return err
}

func (r Repo) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id=?`, id)
	return scanTransaction(row.Scan)
}

func (r Repo) GetTransactionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Transaction, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id=?`, id)
	return scanTransaction(row.Scan)
}

// ReleaseTransaction moves an entry from escrow to completed. The returned
// bool reports whether this call performed the transition; false means the
// entry was already completed.
func (r Repo) ReleaseTransaction(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE transactions SET status='completed' WHERE id=? AND status='escrow'`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListTransactionsForUser returns entries where the user is payer or payee,
// newest first.
func (r Repo) ListTransactionsForUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE from_user=? OR to_user=? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTransactionsFrom(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE from_user=?`, userID)
	return err
}
