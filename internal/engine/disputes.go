package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"doerly/internal/domain"
	"doerly/internal/repo"
)

// OpenDispute raises a dispute over a task and notifies the helper it names.
func (e Engine) OpenDispute(ctx context.Context, raiserID, taskID, helperID, reason string) (domain.Dispute, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.Dispute{}, fmt.Errorf("%w: reason required", ErrInvalidInput)
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Dispute{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Dispute{}, err
	}
	defer tx.Rollback()
	d := domain.Dispute{
		ID:        uuid.NewString(),
		TaskID:    t.ID,
		UserID:    raiserID,
		HelperID:  helperID,
		Reason:    reason,
		Status:    "open",
		CreatedAt: e.nowString(),
	}
	if err := e.Repo.InsertDispute(ctx, tx, d); err != nil {
		return domain.Dispute{}, err
	}
	if err := e.notify(ctx, tx, helperID, t.ID, fmt.Sprintf("A dispute was opened on task %q", t.Title)); err != nil {
		return domain.Dispute{}, err
	}
	if err := e.Events.Append(ctx, tx, "dispute.opened", "dispute", d.ID, raiserID, nil); err != nil {
		return domain.Dispute{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Dispute{}, err
	}
	return d, nil
}

func (e Engine) Disputes(ctx context.Context, userID string) ([]domain.Dispute, error) {
	return e.Repo.ListDisputesForUser(ctx, userID, listPageSize)
}

// ResolveDispute closes an open dispute with a resolution note. Only the
// raiser may resolve; resolving twice fails with repo.ErrConflict.
func (e Engine) ResolveDispute(ctx context.Context, id, resolution, callerID string) (domain.Dispute, error) {
	if strings.TrimSpace(resolution) == "" {
		return domain.Dispute{}, fmt.Errorf("%w: resolution required", ErrInvalidInput)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Dispute{}, err
	}
	defer tx.Rollback()
	d, err := e.Repo.GetDisputeTx(ctx, tx, id)
	if err != nil {
		return domain.Dispute{}, err
	}
	if d.UserID != callerID {
		return domain.Dispute{}, ErrForbidden
	}
	changed, err := e.Repo.ResolveDispute(ctx, tx, id, resolution)
	if err != nil {
		return domain.Dispute{}, err
	}
	if !changed {
		return domain.Dispute{}, fmt.Errorf("%w: dispute already resolved", repo.ErrConflict)
	}
	if err := e.Events.Append(ctx, tx, "dispute.resolved", "dispute", d.ID, callerID, nil); err != nil {
		return domain.Dispute{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Dispute{}, err
	}
	d.Status = "resolved"
	d.Resolution = &resolution
	return d, nil
}
