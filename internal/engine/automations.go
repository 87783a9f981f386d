package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"doerly/internal/domain"
	"doerly/internal/events"
)

// CreateAutomation registers a recurring helper for the user, active from
// the start.
func (e Engine) CreateAutomation(ctx context.Context, userID, typ, schedule string) (domain.Automation, error) {
	if strings.TrimSpace(typ) == "" || strings.TrimSpace(schedule) == "" {
		return domain.Automation{}, fmt.Errorf("%w: automation_type and schedule required", ErrInvalidInput)
	}
	a := domain.Automation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Schedule:  schedule,
		Active:    true,
		CreatedAt: e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Automation{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAutomation(ctx, tx, a); err != nil {
		return domain.Automation{}, err
	}
	if err := e.Events.Append(ctx, tx, "automation.created", "automation", a.ID, userID, events.EventPayload{"type": a.Type}); err != nil {
		return domain.Automation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Automation{}, err
	}
	return a, nil
}

func (e Engine) Automations(ctx context.Context, userID string) ([]domain.Automation, error) {
	return e.Repo.ListAutomationsForUser(ctx, userID, listPageSize)
}

// ToggleAutomation flips the active flag of an automation the caller owns
// and returns the new state.
func (e Engine) ToggleAutomation(ctx context.Context, id, userID string) (bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	a, err := e.Repo.GetAutomationForOwner(ctx, tx, id, userID)
	if err != nil {
		return false, err
	}
	next := !a.Active
	if err := e.Repo.SetAutomationActive(ctx, tx, id, next); err != nil {
		return false, err
	}
	if err := e.Events.Append(ctx, tx, "automation.toggled", "automation", id, userID, events.EventPayload{"active": next}); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return next, nil
}
