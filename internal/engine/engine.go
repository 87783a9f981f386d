package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"doerly/internal/domain"
	"doerly/internal/engine/authn"
	"doerly/internal/events"
	"doerly/internal/repo"
)

var (
	// ErrForbidden indicates the caller is authenticated but does not own
	// the entity it tried to act on.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput indicates a request that failed validation before
	// reaching any store.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	listPageSize         = 100
	notificationPageSize = 50
	helperPageSize       = 50
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   authn.Service
	Now    func() time.Time
}

func New(db *sql.DB, auth authn.Service) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Auth:   auth,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Register creates a user and issues a bearer token for it. Email uniqueness
// is enforced by the store; a duplicate surfaces as repo.ErrDuplicateEmail.
func (e Engine) Register(ctx context.Context, email, password, fullName, role string) (domain.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, "", fmt.Errorf("%w: valid email required", ErrInvalidInput)
	}
	if password == "" {
		return domain.User{}, "", fmt.Errorf("%w: password required", ErrInvalidInput)
	}
	if strings.TrimSpace(fullName) == "" {
		return domain.User{}, "", fmt.Errorf("%w: full_name required", ErrInvalidInput)
	}
	if role == "" {
		role = "user"
	}
	if role != "user" && role != "helper" {
		return domain.User{}, "", fmt.Errorf("%w: role must be user or helper", ErrInvalidInput)
	}
	hash, err := authn.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	u := domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  hash,
		FullName:      fullName,
		Role:          role,
		WalletBalance: decimal.Zero,
		CreatedAt:     e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, "", err
	}
	if err := e.Events.Append(ctx, tx, "user.registered", "user", u.ID, u.ID, events.EventPayload{"role": u.Role}); err != nil {
		return domain.User{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, "", err
	}
	token, err := e.Auth.IssueToken(u.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

// Login verifies credentials and issues a bearer token. An unknown email and
// a wrong password are indistinguishable to the caller.
func (e Engine) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, "", authn.ErrInvalidCredential
		}
		return domain.User{}, "", err
	}
	if err := authn.CheckPassword(password, u.PasswordHash); err != nil {
		return domain.User{}, "", err
	}
	token, err := e.Auth.IssueToken(u.ID)
	if err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

func (e Engine) Profile(ctx context.Context, userID string) (domain.User, error) {
	return e.Repo.GetUser(ctx, userID)
}

func (e Engine) Helpers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListHelpers(ctx, helperPageSize)
}

// DeleteAccount removes the user together with their tasks, automations,
// notifications, disputes, and outgoing transactions, all in one transaction.
func (e Engine) DeleteAccount(ctx context.Context, userID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteUser(ctx, tx, userID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTasksByCreator(ctx, tx, userID); err != nil {
		return err
	}
	if err := e.Repo.DeleteAutomationsForUser(ctx, tx, userID); err != nil {
		return err
	}
	if err := e.Repo.DeleteNotificationsForUser(ctx, tx, userID); err != nil {
		return err
	}
	if err := e.Repo.DeleteDisputesByRaiser(ctx, tx, userID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTransactionsFrom(ctx, tx, userID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "user.deleted", "user", userID, userID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// notify appends a notification within the caller's transaction.
func (e Engine) notify(ctx context.Context, tx *sql.Tx, userID, taskID, message string) error {
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: e.nowString(),
	}
	if taskID != "" {
		n.TaskID = &taskID
	}
	return e.Repo.InsertNotification(ctx, tx, n)
}

func (e Engine) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return e.Repo.ListNotificationsForUser(ctx, userID, notificationPageSize)
}

// MarkNotificationRead sets read=true for a notification the caller owns.
func (e Engine) MarkNotificationRead(ctx context.Context, id, userID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.MarkNotificationRead(ctx, tx, id, userID); err != nil {
		return err
	}
	return tx.Commit()
}
