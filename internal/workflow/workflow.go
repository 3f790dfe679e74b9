// Package workflow runs request and loan transitions on top of the store,
// applies who-may-do-what, and announces every committed change.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/notify"
	"github.com/gudangmitra/gudang/internal/store"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   int64
	Role string
}

// Staff reports whether the actor may manage other users' requests and loans.
func (a Actor) Staff() bool {
	return model.RoleAtLeast(a.Role, model.RoleManager)
}

// CanView reports whether the actor may see a record owned by ownerID.
func (a Actor) CanView(ownerID int64) bool {
	return a.Staff() || a.ID == ownerID
}

// Service wires the store to an event publisher.
type Service struct {
	DB       *sqlx.DB
	Events   notify.Publisher // nil disables events
	Producer string
}

// CreateRequest records a pending request for the actor.
func (s *Service) CreateRequest(ctx context.Context, actor Actor, reason string, lines []model.LineItem) (*model.Request, error) {
	r, err := store.CreateRequest(ctx, s.DB, actor.ID, reason, lines)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.RequestCreated, r.ID, notify.Payload{
		RequesterID: r.RequesterID,
		ActorID:     actor.ID,
		Status:      string(r.Status),
		Subject:     r.RequesterName,
	})
	return r, nil
}

// TransitionRequest moves a request to target. Only staff may decide requests.
func (s *Service) TransitionRequest(ctx context.Context, actor Actor, id string, target model.RequestStatus) (*model.Request, error) {
	if !actor.Staff() {
		return nil, apperr.Forbiddenf("only managers can change request status")
	}

	r, err := store.TransitionRequest(ctx, s.DB, id, target, actor.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.StatusEvent("request", string(r.Status)), r.ID, notify.Payload{
		RequesterID: r.RequesterID,
		ActorID:     actor.ID,
		Status:      string(r.Status),
		Subject:     r.RequesterName,
	})
	return r, nil
}

// DeleteRequest removes a request. Requesters may withdraw their own
// pending requests; staff may delete any.
func (s *Service) DeleteRequest(ctx context.Context, actor Actor, id string) error {
	if !actor.Staff() {
		return store.WithdrawRequest(ctx, s.DB, id, actor.ID)
	}
	return store.DeleteRequest(ctx, s.DB, id)
}

// CreateLoan records a pending loan for the actor.
func (s *Service) CreateLoan(ctx context.Context, actor Actor, in store.LoanInput) (*model.Loan, error) {
	in.BorrowerID = actor.ID
	loan, err := store.CreateLoan(ctx, s.DB, in)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.LoanCreated, loan.ID, notify.Payload{
		RequesterID: loan.BorrowerID,
		ActorID:     actor.ID,
		Status:      string(loan.Status),
		Subject:     loan.BorrowerName,
	})
	return loan, nil
}

// TransitionLoan moves a loan to target. Staff may make any legal move; a
// borrower may only cancel their own loan.
func (s *Service) TransitionLoan(ctx context.Context, actor Actor, id string, target model.LoanStatus) (*model.Loan, error) {
	target = model.ParseLoanStatus(string(target))

	if !actor.Staff() {
		loan, err := store.GetLoan(ctx, s.DB, id)
		if err != nil {
			return nil, err
		}
		if loan == nil {
			return nil, apperr.NotFoundf("loan %s not found", id)
		}
		if loan.BorrowerID != actor.ID {
			return nil, apperr.Forbiddenf("not your loan")
		}
		if target != model.LoanCancelled {
			return nil, apperr.Forbiddenf("only managers can change loan status")
		}
	}

	loan, err := store.TransitionLoan(ctx, s.DB, id, target, actor.ID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.StatusEvent("loan", string(loan.Status)), loan.ID, notify.Payload{
		RequesterID: loan.BorrowerID,
		ActorID:     actor.ID,
		Status:      string(loan.Status),
		Subject:     loan.BorrowerName,
	})
	return loan, nil
}

// SweepOverdue marks expired active loans overdue and announces each one.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	loans, err := store.MarkOverdueLoans(ctx, s.DB, now)
	if err != nil {
		return 0, err
	}
	for _, l := range loans {
		s.publish(ctx, notify.LoanOverdue, l.ID, notify.Payload{
			RequesterID: l.BorrowerID,
			Status:      string(l.Status),
			Subject:     l.BorrowerName,
		})
	}
	return len(loans), nil
}

// RunOverdueSweeper sweeps once immediately and then every interval until
// ctx is cancelled.
func (s *Service) RunOverdueSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.SweepOverdue(ctx, time.Now())
		switch {
		case err != nil && ctx.Err() == nil:
			slog.Error("overdue sweep failed", "error", err)
		case n > 0:
			slog.Info("loans marked overdue", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// publish announces a committed change. Failures are logged and never returned.
func (s *Service) publish(ctx context.Context, eventType, correlationID string, p notify.Payload) {
	if s.Events == nil {
		return
	}
	e := notify.NewEvent(s.Producer, eventType, correlationID, p)
	if err := s.Events.Publish(ctx, e); err != nil {
		slog.Warn("failed to publish event", "event", eventType, "id", correlationID, "error", err)
	}
}
