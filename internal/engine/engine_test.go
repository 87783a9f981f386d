package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"doerly/internal/db"
	"doerly/internal/domain"
	"doerly/internal/engine"
	"doerly/internal/engine/authn"
	"doerly/internal/migrate"
	"doerly/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, authn.Service{Secret: "test-secret"})
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func mustRegister(t *testing.T, env testEnv, email, role string) domain.User {
	t.Helper()
	u, token, err := env.Engine.Register(env.Ctx, email, "hunter2", "Test "+email, role)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if token == "" {
		t.Fatalf("expected token for %s", email)
	}
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "alice@example.com", "user")
	if !u.WalletBalance.IsZero() {
		t.Fatalf("expected zero starting balance, got %s", u.WalletBalance)
	}

	logged, token, err := env.Engine.Login(env.Ctx, "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != u.ID || token == "" {
		t.Fatalf("unexpected login result")
	}
	userID, err := env.Engine.Auth.VerifyToken(token)
	if err != nil || userID != u.ID {
		t.Fatalf("verify token: %v (subject %s)", err, userID)
	}

	if _, _, err := env.Engine.Login(env.Ctx, "alice@example.com", "wrong"); !errors.Is(err, authn.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
	if _, _, err := env.Engine.Login(env.Ctx, "nobody@example.com", "hunter2"); !errors.Is(err, authn.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential for unknown email, got %v", err)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	env := newTestEnv(t)
	first := mustRegister(t, env, "dup@example.com", "user")
	_, _, err := env.Engine.Register(env.Ctx, "dup@example.com", "other", "Other", "helper")
	if !errors.Is(err, repo.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	// first account untouched
	u, err := env.Engine.Profile(env.Ctx, first.ID)
	if err != nil || u.FullName != first.FullName {
		t.Fatalf("first account changed: %v", err)
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "creator@example.com", "user")

	task, err := env.Engine.CreateTask(env.Ctx, u.ID, engine.TaskDraft{
		Title:       "Fix the sink",
		Description: "Kitchen sink is leaking",
		Type:        "helper",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "pending" || task.Urgency != "medium" {
		t.Fatalf("unexpected defaults: %s %s", task.Status, task.Urgency)
	}
	if task.EstimatedCost.StringFixed(2) != "10.00" {
		t.Fatalf("expected default cost 10.00, got %s", task.EstimatedCost)
	}
	if task.AssignedTo != nil {
		t.Fatalf("pending task must have no assignee")
	}

	if _, err := env.Engine.CreateTask(env.Ctx, u.ID, engine.TaskDraft{Title: "x", Description: "y", Type: "robot"}); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad type, got %v", err)
	}
}

func TestAcceptTaskExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	creator := mustRegister(t, env, "owner@example.com", "user")
	h1 := mustRegister(t, env, "h1@example.com", "helper")
	h2 := mustRegister(t, env, "h2@example.com", "helper")

	task, err := env.Engine.CreateTask(env.Ctx, creator.ID, engine.TaskDraft{
		Title: "Walk the dog", Description: "Morning walk", Type: "helper",
	})
	if err != nil {
		t.Fatal(err)
	}

	accepted, err := env.Engine.AcceptTask(env.Ctx, task.ID, h1.ID)
	if err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if accepted.Status != "in_progress" || accepted.AssignedTo == nil || *accepted.AssignedTo != h1.ID {
		t.Fatalf("unexpected accepted state: %+v", accepted)
	}

	if _, err := env.Engine.AcceptTask(env.Ctx, task.ID, h2.ID); !errors.Is(err, repo.ErrTaskUnavailable) {
		t.Fatalf("expected task unavailable, got %v", err)
	}
	// assignee unchanged
	got, err := env.Engine.Task(env.Ctx, task.ID)
	if err != nil || got.AssignedTo == nil || *got.AssignedTo != h1.ID {
		t.Fatalf("assignee changed after losing accept: %v", err)
	}

	if _, err := env.Engine.AcceptTask(env.Ctx, "missing", h2.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// creator got a notification
	notes, err := env.Engine.Notifications(env.Ctx, creator.ID)
	if err != nil || len(notes) != 1 {
		t.Fatalf("expected one creator notification, got %d (%v)", len(notes), err)
	}
}

func TestAcceptTaskConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	creator := mustRegister(t, env, "race-c@example.com", "user")
	h1 := mustRegister(t, env, "race-1@example.com", "helper")
	h2 := mustRegister(t, env, "race-2@example.com", "helper")

	for i := 0; i < 20; i++ {
		task, err := env.Engine.CreateTask(env.Ctx, creator.ID, engine.TaskDraft{
			Title: "Raced", Description: "claimed by whoever gets there first", Type: "helper",
		})
		if err != nil {
			t.Fatal(err)
		}
		results := make(chan error, 2)
		for _, helperID := range []string{h1.ID, h2.ID} {
			go func(id string) {
				_, err := env.Engine.AcceptTask(env.Ctx, task.ID, id)
				results <- err
			}(helperID)
		}
		var won, lost int
		for j := 0; j < 2; j++ {
			switch err := <-results; {
			case err == nil:
				won++
			case errors.Is(err, repo.ErrTaskUnavailable):
				lost++
			default:
				t.Fatalf("round %d: unexpected accept error: %v", i, err)
			}
		}
		if won != 1 || lost != 1 {
			t.Fatalf("round %d: want one winner and one loser, got %d winners %d losers", i, won, lost)
		}
		got, err := env.Engine.Task(env.Ctx, task.ID)
		if err != nil || got.Status != "in_progress" || got.AssignedTo == nil {
			t.Fatalf("round %d: task not claimed exactly once: %v", i, err)
		}
	}
}

func TestSetTaskStatusAuthorization(t *testing.T) {
	env := newTestEnv(t)
	creator := mustRegister(t, env, "c@example.com", "user")
	helper := mustRegister(t, env, "h@example.com", "helper")
	stranger := mustRegister(t, env, "s@example.com", "user")

	task, err := env.Engine.CreateTask(env.Ctx, creator.ID, engine.TaskDraft{
		Title: "Paint fence", Description: "White paint", Type: "helper",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AcceptTask(env.Ctx, task.ID, helper.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, "completed", stranger.ID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
	got, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, "completed", helper.ID)
	if err != nil || got.Status != "completed" {
		t.Fatalf("assignee completion failed: %v", err)
	}
	if _, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, "disputed", creator.ID); err != nil {
		t.Fatalf("creator status change failed: %v", err)
	}
	if _, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, "bogus", creator.ID); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad status, got %v", err)
	}
}

func TestNotificationReadOwnership(t *testing.T) {
	env := newTestEnv(t)
	creator := mustRegister(t, env, "n1@example.com", "user")
	helper := mustRegister(t, env, "n2@example.com", "helper")
	other := mustRegister(t, env, "n3@example.com", "user")

	task, err := env.Engine.CreateTask(env.Ctx, creator.ID, engine.TaskDraft{
		Title: "Mow lawn", Description: "Back yard", Type: "helper",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AcceptTask(env.Ctx, task.ID, helper.ID); err != nil {
		t.Fatal(err)
	}
	notes, err := env.Engine.Notifications(env.Ctx, creator.ID)
	if err != nil || len(notes) != 1 {
		t.Fatalf("expected one notification: %v", err)
	}

	if err := env.Engine.MarkNotificationRead(env.Ctx, notes[0].ID, other.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for non-owner, got %v", err)
	}
	if err := env.Engine.MarkNotificationRead(env.Ctx, notes[0].ID, creator.ID); err != nil {
		t.Fatalf("owner mark read: %v", err)
	}
	notes, _ = env.Engine.Notifications(env.Ctx, creator.ID)
	if !notes[0].Read {
		t.Fatalf("notification still unread")
	}
}

func TestAutomationToggle(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "auto@example.com", "user")
	other := mustRegister(t, env, "auto2@example.com", "user")

	a, err := env.Engine.CreateAutomation(env.Ctx, u.ID, "grocery_order", "weekly")
	if err != nil {
		t.Fatalf("create automation: %v", err)
	}
	if !a.Active {
		t.Fatalf("automation should start active")
	}
	if _, err := env.Engine.ToggleAutomation(env.Ctx, a.ID, other.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for non-owner, got %v", err)
	}
	active, err := env.Engine.ToggleAutomation(env.Ctx, a.ID, u.ID)
	if err != nil || active {
		t.Fatalf("expected toggle to false: %v", err)
	}
	active, err = env.Engine.ToggleAutomation(env.Ctx, a.ID, u.ID)
	if err != nil || !active {
		t.Fatalf("expected toggle back to true: %v", err)
	}
}

func TestDisputeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	creator := mustRegister(t, env, "d1@example.com", "user")
	helper := mustRegister(t, env, "d2@example.com", "helper")

	task, err := env.Engine.CreateTask(env.Ctx, creator.ID, engine.TaskDraft{
		Title: "Assemble desk", Description: "Flat pack", Type: "helper",
	})
	if err != nil {
		t.Fatal(err)
	}
	d, err := env.Engine.OpenDispute(env.Ctx, creator.ID, task.ID, helper.ID, "work not done")
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if d.Status != "open" {
		t.Fatalf("expected open dispute")
	}
	// the helper was notified
	notes, _ := env.Engine.Notifications(env.Ctx, helper.ID)
	if len(notes) != 1 {
		t.Fatalf("expected helper notification, got %d", len(notes))
	}

	if _, err := env.Engine.ResolveDispute(env.Ctx, d.ID, "refunded", helper.ID); !errors.Is(err, engine.ErrForbidden) {
		t.Fatalf("expected forbidden for non-raiser, got %v", err)
	}
	resolved, err := env.Engine.ResolveDispute(env.Ctx, d.ID, "refunded", creator.ID)
	if err != nil || resolved.Status != "resolved" {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := env.Engine.ResolveDispute(env.Ctx, d.ID, "again", creator.ID); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected conflict on double resolve, got %v", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "gone@example.com", "user")
	helper := mustRegister(t, env, "stays@example.com", "helper")

	task, err := env.Engine.CreateTask(env.Ctx, u.ID, engine.TaskDraft{
		Title: "Clean gutters", Description: "Front and back", Type: "helper",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateAutomation(env.Ctx, u.ID, "bill_pay", "monthly"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TopUp(env.Ctx, u.ID, decimalFromString(t, "50")); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.OpenDispute(env.Ctx, u.ID, task.ID, helper.ID, "late"); err != nil {
		t.Fatal(err)
	}

	if err := env.Engine.DeleteAccount(env.Ctx, u.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := env.Engine.Profile(env.Ctx, u.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}
	tasks, _ := env.Engine.Tasks(env.Ctx, u.ID)
	if len(tasks) != 0 {
		t.Fatalf("expected tasks gone, got %d", len(tasks))
	}
	autos, _ := env.Engine.Automations(env.Ctx, u.ID)
	if len(autos) != 0 {
		t.Fatalf("expected automations gone")
	}
	txs, _ := env.Engine.Transactions(env.Ctx, u.ID)
	if len(txs) != 0 {
		t.Fatalf("expected transactions gone")
	}
	disputes, _ := env.Engine.Disputes(env.Ctx, u.ID)
	if len(disputes) != 0 {
		t.Fatalf("expected disputes gone")
	}
	// deleting twice fails cleanly
	if err := env.Engine.DeleteAccount(env.Ctx, u.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestEventsAppendedOnMutations(t *testing.T) {
	env := newTestEnv(t)
	u := mustRegister(t, env, "ev@example.com", "user")
	if _, err := env.Engine.CreateTask(env.Ctx, u.ID, engine.TaskDraft{
		Title: "Evented", Description: "x", Type: "ai",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TopUp(env.Ctx, u.ID, decimalFromString(t, "5")); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", u.ID)
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	if len(events) < 3 {
		t.Fatalf("expected register/create/topup events, got %d", len(events))
	}
}
