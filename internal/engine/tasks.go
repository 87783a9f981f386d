package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"doerly/internal/domain"
	"doerly/internal/events"
)

// defaultEstimatedCost applies when a task is created without one.
var defaultEstimatedCost = decimal.NewFromInt(10)

var taskStatuses = map[string]bool{
	"pending":     true,
	"in_progress": true,
	"completed":   true,
	"disputed":    true,
}

type TaskDraft struct {
	Title         string
	Description   string
	Type          string
	Urgency       string
	EstimatedCost *decimal.Decimal
}

// CreateTask records a new pending task for the creator. Type must be ai or
// helper; urgency defaults to medium and cost to defaultEstimatedCost.
func (e Engine) CreateTask(ctx context.Context, creatorID string, draft TaskDraft) (domain.Task, error) {
	if draft.Title == "" || draft.Description == "" {
		return domain.Task{}, fmt.Errorf("%w: title and description required", ErrInvalidInput)
	}
	if draft.Type != "ai" && draft.Type != "helper" {
		return domain.Task{}, fmt.Errorf("%w: task_type must be ai or helper", ErrInvalidInput)
	}
	urgency := draft.Urgency
	if urgency == "" {
		urgency = "medium"
	}
	if urgency != "low" && urgency != "medium" && urgency != "high" {
		return domain.Task{}, fmt.Errorf("%w: urgency must be low, medium, or high", ErrInvalidInput)
	}
	cost := defaultEstimatedCost
	if draft.EstimatedCost != nil {
		if draft.EstimatedCost.IsNegative() {
			return domain.Task{}, fmt.Errorf("%w: estimated_cost must not be negative", ErrInvalidInput)
		}
		cost = *draft.EstimatedCost
	}
	t := domain.Task{
		ID:            uuid.NewString(),
		Title:         draft.Title,
		Description:   draft.Description,
		Type:          draft.Type,
		Status:        "pending",
		Urgency:       urgency,
		CreatedBy:     creatorID,
		EstimatedCost: cost,
		CreatedAt:     e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, creatorID, events.EventPayload{
		"task_type": t.Type,
		"urgency":   t.Urgency,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) Tasks(ctx context.Context, creatorID string) ([]domain.Task, error) {
	return e.Repo.ListTasksByCreator(ctx, creatorID, listPageSize)
}

func (e Engine) OpenTasks(ctx context.Context) ([]domain.Task, error) {
	return e.Repo.ListOpenTasks(ctx, listPageSize)
}

func (e Engine) Task(ctx context.Context, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, id)
}

// AcceptTask assigns a pending task to the helper. The assignment is a
// conditional update on status, so under concurrent accepts exactly one
// caller wins and the rest get repo.ErrTaskUnavailable.
func (e Engine) AcceptTask(ctx context.Context, taskID, helperID string) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.AcceptTask(ctx, tx, taskID, helperID); err != nil {
		return domain.Task{}, err
	}
	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.notify(ctx, tx, t.CreatedBy, t.ID, fmt.Sprintf("Your task %q was accepted by a helper", t.Title)); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.accepted", "task", t.ID, helperID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// SetTaskStatus moves a task to the given status. Only the creator or the
// assigned helper may do so.
func (e Engine) SetTaskStatus(ctx context.Context, taskID, status, callerID string) (domain.Task, error) {
	if !taskStatuses[status] {
		return domain.Task{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.CreatedBy != callerID && (t.AssignedTo == nil || *t.AssignedTo != callerID) {
		return domain.Task{}, ErrForbidden
	}
	if err := e.Repo.UpdateTaskStatus(ctx, tx, taskID, status); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.status_changed", "task", taskID, callerID, events.EventPayload{
		"from": t.Status,
		"to":   status,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Status = status
	return t, nil
}
