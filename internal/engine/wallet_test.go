package engine_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"doerly/internal/domain"
	"doerly/internal/engine"
	"doerly/internal/repo"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestLedgerScenario(t *testing.T) {
	env := newTestEnv(t)
	alice := mustRegister(t, env, "ledger-a@example.com", "user")
	bob := mustRegister(t, env, "ledger-b@example.com", "helper")

	balance, err := env.Engine.TopUp(env.Ctx, alice.ID, decimalFromString(t, "100"))
	require.NoError(t, err)
	require.Equal(t, "100.00", balance.StringFixed(2))

	balance, err = env.Engine.Withdraw(env.Ctx, alice.ID, decimalFromString(t, "25"))
	require.NoError(t, err)
	require.Equal(t, "75.00", balance.StringFixed(2))

	entry, err := env.Engine.Transfer(env.Ctx, alice.ID, bob.Email, decimalFromString(t, "20"))
	require.NoError(t, err)
	require.Equal(t, "completed", entry.Status)
	require.Equal(t, domain.TxRefSend, entry.TaskID)
	require.NotNil(t, entry.ToUser)
	require.Equal(t, bob.ID, *entry.ToUser)

	a, err := env.Engine.Profile(env.Ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "55.00", a.WalletBalance.StringFixed(2))

	b, err := env.Engine.Profile(env.Ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, "20.00", b.WalletBalance.StringFixed(2))

	// alice's ledger: top-up, withdraw, send, all completed
	entries, err := env.Engine.Transactions(env.Ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.Equal(t, "completed", e.Status)
	}
	// bob sees the incoming transfer
	incoming, err := env.Engine.Transactions(env.Ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, entry.ID, incoming[0].ID)
}

func TestWithdrawInsufficientFundsLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "poor@example.com", "user")

	_, err := env.Engine.TopUp(env.Ctx, u.ID, decimalFromString(t, "10"))
	require.NoError(t, err)

	_, err = env.Engine.Withdraw(env.Ctx, u.ID, decimalFromString(t, "10.01"))
	require.ErrorIs(t, err, repo.ErrInsufficientFunds)

	got, err := env.Engine.Profile(env.Ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "10.00", got.WalletBalance.StringFixed(2))

	// no ledger entry for the failed withdrawal
	entries, err := env.Engine.Transactions(env.Ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWithdrawConcurrentSerialization(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "race-w@example.com", "user")

	_, err := env.Engine.TopUp(env.Ctx, u.ID, decimalFromString(t, "10"))
	require.NoError(t, err)

	// two full withdrawals race the same balance; the conditional UPDATE
	// lets exactly one through
	amount := decimalFromString(t, "10")
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := env.Engine.Withdraw(env.Ctx, u.ID, amount)
			results <- err
		}()
	}
	var ok, insufficient int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			ok++
		case errors.Is(err, repo.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected withdraw error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, insufficient)

	got, err := env.Engine.Profile(env.Ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.IsZero())
}

func TestAmountBeyondLedgerRangeRejected(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "huge@example.com", "user")

	// 2^63 cents does not fit the ledger's integer representation
	_, err := env.Engine.TopUp(env.Ctx, u.ID, decimalFromString(t, "92233720368547758.08"))
	require.ErrorIs(t, err, repo.ErrInvalidAmount)

	got, err := env.Engine.Profile(env.Ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.WalletBalance.IsZero())
}

func TestTransferFailsAtomically(t *testing.T) {
	env := newTestEnv(t)
	alice := mustRegister(t, env, "atomic-a@example.com", "user")
	bob := mustRegister(t, env, "atomic-b@example.com", "user")

	_, err := env.Engine.TopUp(env.Ctx, alice.ID, decimalFromString(t, "5"))
	require.NoError(t, err)

	_, err = env.Engine.Transfer(env.Ctx, alice.ID, bob.Email, decimalFromString(t, "6"))
	require.ErrorIs(t, err, repo.ErrInsufficientFunds)

	a, _ := env.Engine.Profile(env.Ctx, alice.ID)
	b, _ := env.Engine.Profile(env.Ctx, bob.ID)
	require.Equal(t, "5.00", a.WalletBalance.StringFixed(2))
	require.True(t, b.WalletBalance.IsZero())
}

func TestTransferValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := mustRegister(t, env, "val-a@example.com", "user")

	_, err := env.Engine.TopUp(env.Ctx, alice.ID, decimalFromString(t, "50"))
	require.NoError(t, err)

	_, err = env.Engine.Transfer(env.Ctx, alice.ID, alice.Email, decimalFromString(t, "10"))
	require.ErrorIs(t, err, engine.ErrInvalidInput)

	_, err = env.Engine.Transfer(env.Ctx, alice.ID, "ghost@example.com", decimalFromString(t, "10"))
	require.ErrorIs(t, err, repo.ErrNotFound)

	_, err = env.Engine.Transfer(env.Ctx, alice.ID, alice.Email, decimalFromString(t, "-10"))
	require.ErrorIs(t, err, repo.ErrInvalidAmount)

	// sub-cent amounts are rejected rather than silently rounded
	_, err = env.Engine.TopUp(env.Ctx, alice.ID, decimalFromString(t, "0.001"))
	require.ErrorIs(t, err, repo.ErrInvalidAmount)
}

func TestEscrowAndRelease(t *testing.T) {
	env := newTestEnv(t)
	creator := mustRegister(t, env, "esc-c@example.com", "user")
	helper := mustRegister(t, env, "esc-h@example.com", "helper")
	stranger := mustRegister(t, env, "esc-s@example.com", "user")

	task, err := env.Engine.CreateTask(env.Ctx, creator.ID, engine.TaskDraft{
		Title: "Deliver package", Description: "Across town", Type: "helper",
	})
	require.NoError(t, err)
	_, err = env.Engine.AcceptTask(env.Ctx, task.ID, helper.ID)
	require.NoError(t, err)

	entry, err := env.Engine.OpenEscrow(env.Ctx, creator.ID, task.ID, decimalFromString(t, "15"))
	require.NoError(t, err)
	require.Equal(t, "escrow", entry.Status)
	require.NotNil(t, entry.ToUser)
	require.Equal(t, helper.ID, *entry.ToUser)

	// escrow against a missing task fails
	_, err = env.Engine.OpenEscrow(env.Ctx, creator.ID, "missing", decimalFromString(t, "15"))
	require.ErrorIs(t, err, repo.ErrNotFound)

	// only the payer may release
	_, err = env.Engine.ReleasePayment(env.Ctx, entry.ID, stranger.ID)
	require.ErrorIs(t, err, engine.ErrForbidden)

	released, err := env.Engine.ReleasePayment(env.Ctx, entry.ID, creator.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", released.Status)

	// the helper was notified exactly once; repeat release is a no-op
	again, err := env.Engine.ReleasePayment(env.Ctx, entry.ID, creator.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", again.Status)

	notes, err := env.Engine.Notifications(env.Ctx, helper.ID)
	require.NoError(t, err)
	released1 := 0
	for _, n := range notes {
		if n.Message == "Payment released for your task" {
			released1++
		}
	}
	require.Equal(t, 1, released1)

	_, err = env.Engine.ReleasePayment(env.Ctx, "missing", creator.ID)
	require.ErrorIs(t, err, repo.ErrNotFound)
}
