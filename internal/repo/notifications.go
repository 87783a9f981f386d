package repo

import (
	"context"
	"database/sql"

	"doerly/internal/domain"
)

const notificationColumns = `id,user_id,task_id,message,read,created_at`

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(`+notificationColumns+`) VALUES (?,?,?,?,?,?)`,
		n.ID, n.UserID, nullableStringPtr(n.TaskID), n.Message, n.Read, n.CreatedAt)
	return err
}

func (r Repo) ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var taskID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &taskID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			n.TaskID = &taskID.String
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// MarkNotificationRead sets read=true for a notification owned by userID.
// A foreign or absent id surfaces as ErrNotFound either way.
func (r Repo) MarkNotificationRead(ctx context.Context, tx *sql.Tx, id, userID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteNotificationsForUser(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE user_id=?`, userID)
	return err
}
