package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"doerly/internal/domain"
	"doerly/internal/events"
	"doerly/internal/repo"
)

// TopUp credits the wallet and records a completed ledger entry.
func (e Engine) TopUp(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	cents, err := positiveCents(amount)
	if err != nil {
		return decimal.Zero, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()
	newCents, err := e.Repo.AdjustBalance(ctx, tx, userID, cents)
	if err != nil {
		return decimal.Zero, err
	}
	if err := e.Repo.InsertTransaction(ctx, tx, domain.Transaction{
		ID:        uuid.NewString(),
		TaskID:    domain.TxRefAddFunds,
		FromUser:  userID,
		Amount:    amount,
		Status:    "completed",
		CreatedAt: e.nowString(),
	}); err != nil {
		return decimal.Zero, err
	}
	if err := e.Events.Append(ctx, tx, "wallet.topup", "user", userID, userID, events.EventPayload{"amount": amount.String()}); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return repo.FromCents(newCents), nil
}

// Withdraw debits the wallet, failing with repo.ErrInsufficientFunds if the
// balance would go negative.
func (e Engine) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	cents, err := positiveCents(amount)
	if err != nil {
		return decimal.Zero, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()
	newCents, err := e.Repo.AdjustBalance(ctx, tx, userID, -cents)
	if err != nil {
		return decimal.Zero, err
	}
	if err := e.Repo.InsertTransaction(ctx, tx, domain.Transaction{
		ID:        uuid.NewString(),
		TaskID:    domain.TxRefWithdraw,
		FromUser:  userID,
		Amount:    amount,
		Status:    "completed",
		CreatedAt: e.nowString(),
	}); err != nil {
		return decimal.Zero, err
	}
	if err := e.Events.Append(ctx, tx, "wallet.withdraw", "user", userID, userID, events.EventPayload{"amount": amount.String()}); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return repo.FromCents(newCents), nil
}

// Transfer moves funds to the user owning recipientEmail. Debit, credit, and
// the ledger entry commit together or not at all.
func (e Engine) Transfer(ctx context.Context, fromID, recipientEmail string, amount decimal.Decimal) (domain.Transaction, error) {
	cents, err := positiveCents(amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	recipient, err := e.Repo.GetUserByEmail(ctx, recipientEmail)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Transaction{}, fmt.Errorf("recipient: %w", repo.ErrNotFound)
		}
		return domain.Transaction{}, err
	}
	if recipient.ID == fromID {
		return domain.Transaction{}, fmt.Errorf("%w: cannot send money to yourself", ErrInvalidInput)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.AdjustBalance(ctx, tx, fromID, -cents); err != nil {
		return domain.Transaction{}, err
	}
	if _, err := e.Repo.AdjustBalance(ctx, tx, recipient.ID, cents); err != nil {
		return domain.Transaction{}, err
	}
	entry := domain.Transaction{
		ID:        uuid.NewString(),
		TaskID:    domain.TxRefSend,
		FromUser:  fromID,
		ToUser:    &recipient.ID,
		Amount:    amount,
		Status:    "completed",
		CreatedAt: e.nowString(),
	}
	if err := e.Repo.InsertTransaction(ctx, tx, entry); err != nil {
		return domain.Transaction{}, err
	}
	if err := e.Events.Append(ctx, tx, "wallet.transfer", "transaction", entry.ID, fromID, events.EventPayload{
		"to":     recipient.ID,
		"amount": amount.String(),
	}); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, err
	}
	return entry, nil
}

// OpenEscrow records an escrow ledger entry against a task. The payer's
// wallet is not debited until release; the entry itself is the hold.
func (e Engine) OpenEscrow(ctx context.Context, fromID, taskID string, amount decimal.Decimal) (domain.Transaction, error) {
	if _, err := positiveCents(amount); err != nil {
		return domain.Transaction{}, err
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback()
	entry := domain.Transaction{
		ID:        uuid.NewString(),
		TaskID:    t.ID,
		FromUser:  fromID,
		ToUser:    t.AssignedTo,
		Amount:    amount,
		Status:    "escrow",
		CreatedAt: e.nowString(),
	}
	if err := e.Repo.InsertTransaction(ctx, tx, entry); err != nil {
		return domain.Transaction{}, err
	}
	if err := e.Events.Append(ctx, tx, "escrow.opened", "transaction", entry.ID, fromID, events.EventPayload{
		"task_id": t.ID,
		"amount":  amount.String(),
	}); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, err
	}
	return entry, nil
}

// ReleasePayment completes an escrow entry. Only the payer may release, and
// releasing an already-completed entry is a no-op success.
func (e Engine) ReleasePayment(ctx context.Context, txID, callerID string) (domain.Transaction, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, err
	}
	defer tx.Rollback()
	entry, err := e.Repo.GetTransactionTx(ctx, tx, txID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if entry.FromUser != callerID {
		return domain.Transaction{}, ErrForbidden
	}
	changed, err := e.Repo.ReleaseTransaction(ctx, tx, txID)
	if err != nil {
		return domain.Transaction{}, err
	}
	entry.Status = "completed"
	if !changed {
		return entry, tx.Commit()
	}
	if entry.ToUser != nil {
		if err := e.notify(ctx, tx, *entry.ToUser, entry.TaskID, "Payment released for your task"); err != nil {
			return domain.Transaction{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "escrow.released", "transaction", entry.ID, callerID, nil); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Transaction{}, err
	}
	return entry, nil
}

// Transactions lists ledger entries where the user is payer or payee.
func (e Engine) Transactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return e.Repo.ListTransactionsForUser(ctx, userID, listPageSize)
}

func positiveCents(amount decimal.Decimal) (int64, error) {
	cents, err := repo.Cents(amount)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", repo.ErrInvalidAmount)
	}
	return cents, nil
}
