package repo

import (
	"context"
	"database/sql"
	"strings"

	"doerly/internal/domain"
)

func scanUser(scan func(...any) error) (domain.User, error) {
	var u domain.User
	var cents int64
	err := scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &cents, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.WalletBalance = FromCents(cents)
	return u, nil
}

const userColumns = `id,email,password_hash,full_name,role,wallet_cents,created_at`

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	cents, err := Cents(u.WalletBalance)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, cents, u.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
		return ErrDuplicateEmail
	}
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, email)
	return scanUser(row.Scan)
}

// ListHelpers returns users with the helper role, newest first.
func (r Repo) ListHelpers(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE role='helper' ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) ListUsers(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// AdjustBalance applies a signed delta to a user's wallet as one conditional
// UPDATE, so concurrent mutations against the same user cannot interleave a
// read-modify-write cycle. A delta that would take the balance below zero
// fails with ErrInsufficientFunds and leaves the row untouched.
func (r Repo) AdjustBalance(ctx context.Context, tx *sql.Tx, userID string, deltaCents int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET wallet_cents = wallet_cents + ? WHERE id=? AND wallet_cents + ? >= 0`,
		deltaCents, userID, deltaCents)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=?`, userID).Scan(&one)
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		return 0, ErrInsufficientFunds
	}
	var cents int64
	if err := tx.QueryRowContext(ctx, `SELECT wallet_cents FROM users WHERE id=?`, userID).Scan(&cents); err != nil {
		return 0, err
	}
	return cents, nil
}

func (r Repo) DeleteUser(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
