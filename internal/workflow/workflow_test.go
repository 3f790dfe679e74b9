package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/notify"
	"github.com/gudangmitra/gudang/internal/store"
)

type fixture struct {
	db      *sqlx.DB
	svc     *Service
	user    Actor
	manager Actor
	itemID  int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, database, "Budi", "budi@example.com", "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	m, err := store.CreateUser(ctx, database, "Sari", "sari@example.com", "hash", model.RoleManager)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	item, err := store.CreateItem(ctx, database, store.ItemInput{Name: "Projector", Quantity: 10, MinQuantity: 2})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	consumer := &notify.Consumer{DB: database}
	return &fixture{
		db:      database,
		svc:     &Service{DB: database, Events: notify.SyncPublisher{Handler: consumer.Handle}, Producer: "test"},
		user:    Actor{ID: u.ID, Role: u.Role},
		manager: Actor{ID: m.ID, Role: m.Role},
		itemID:  item.ID,
	}
}

func (f *fixture) notifications(t *testing.T, userID int64) []model.Notification {
	t.Helper()
	list, err := store.ListNotifications(context.Background(), f.db, userID)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	return list
}

func TestRequestFlowNotifies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.svc.CreateRequest(ctx, f.user, "meeting", []model.LineItem{{ItemID: f.itemID, Quantity: 3}})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	staff := f.notifications(t, f.manager.ID)
	if len(staff) != 1 || staff[0].Type != notify.RequestCreated || staff[0].RelatedID != r.ID {
		t.Fatalf("expected manager to hear about the new request, got %+v", staff)
	}

	if _, err := f.svc.TransitionRequest(ctx, f.manager, r.ID, model.RequestApproved); err != nil {
		t.Fatalf("TransitionRequest: %v", err)
	}

	mine := f.notifications(t, f.user.ID)
	if len(mine) != 1 || mine[0].Type != "request.approved" {
		t.Fatalf("expected requester to hear about the approval, got %+v", mine)
	}

	item, _ := store.GetItem(ctx, f.db, f.itemID)
	if item.Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", item.Quantity)
	}
}

func TestUserCannotDecideRequests(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, _ := f.svc.CreateRequest(ctx, f.user, "", []model.LineItem{{ItemID: f.itemID, Quantity: 1}})

	_, err := f.svc.TransitionRequest(ctx, f.user, r.ID, model.RequestApproved)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	got, _ := store.GetRequest(ctx, f.db, r.ID)
	if got.Status != model.RequestPending {
		t.Errorf("expected request still pending, got %s", got.Status)
	}
}

func TestDeleteRequestPolicy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other, _ := store.CreateUser(ctx, f.db, "Other", "other@example.com", "hash", model.RoleUser)
	stranger := Actor{ID: other.ID, Role: other.Role}

	lines := []model.LineItem{{ItemID: f.itemID, Quantity: 1}}
	r1, _ := f.svc.CreateRequest(ctx, f.user, "", lines)
	r2, _ := f.svc.CreateRequest(ctx, f.user, "", lines)
	f.svc.TransitionRequest(ctx, f.manager, r2.ID, model.RequestDenied)

	if err := f.svc.DeleteRequest(ctx, stranger, r1.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for another user's request, got %v", err)
	}
	if err := f.svc.DeleteRequest(ctx, f.user, r2.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for a decided request, got %v", err)
	}
	if err := f.svc.DeleteRequest(ctx, f.user, r1.ID); err != nil {
		t.Errorf("expected owner to withdraw a pending request, got %v", err)
	}
	if err := f.svc.DeleteRequest(ctx, f.manager, r2.ID); err != nil {
		t.Errorf("expected manager to delete any request, got %v", err)
	}
}

func TestBorrowerMayOnlyCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := store.LoanInput{EndDate: time.Now().Add(time.Hour), Items: []model.LineItem{{ItemID: f.itemID, Quantity: 2}}}
	loan, err := f.svc.CreateLoan(ctx, f.user, in)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if loan.BorrowerID != f.user.ID {
		t.Errorf("expected borrower to be the actor, got %d", loan.BorrowerID)
	}

	if _, err := f.svc.TransitionLoan(ctx, f.user, loan.ID, model.LoanApproved); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for self-approval, got %v", err)
	}

	cancelled, err := f.svc.TransitionLoan(ctx, f.user, loan.ID, model.LoanCancelled)
	if err != nil {
		t.Fatalf("cancel own loan: %v", err)
	}
	if cancelled.Status != model.LoanCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	if _, err := f.svc.TransitionLoan(ctx, f.user, "missing", model.LoanCancelled); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSweepOverdueNotifies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := store.LoanInput{
		StartDate: time.Now().Add(-48 * time.Hour),
		EndDate:   time.Now().Add(-time.Hour),
		Items:     []model.LineItem{{ItemID: f.itemID, Quantity: 1}},
	}
	loan, _ := f.svc.CreateLoan(ctx, f.user, in)
	if _, err := f.svc.TransitionLoan(ctx, f.manager, loan.ID, model.LoanApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	n, err := f.svc.SweepOverdue(ctx, time.Now())
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 overdue loan, got %d", n)
	}

	var overdue int
	for _, note := range f.notifications(t, f.user.ID) {
		if note.Type == notify.LoanOverdue && note.RelatedID == loan.ID {
			overdue++
		}
	}
	if overdue != 1 {
		t.Errorf("expected one overdue notification, got %d", overdue)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, notify.Event) error {
	return errors.New("broker down")
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := setup(t)
	f.svc.Events = failingPublisher{}
	ctx := context.Background()

	r, err := f.svc.CreateRequest(ctx, f.user, "", []model.LineItem{{ItemID: f.itemID, Quantity: 1}})
	if err != nil {
		t.Fatalf("expected create to succeed despite publish failure, got %v", err)
	}
	if _, err := f.svc.TransitionRequest(ctx, f.manager, r.ID, model.RequestFulfilled); err != nil {
		t.Fatalf("expected transition to succeed despite publish failure, got %v", err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func TestRunOverdueSweeperStopsOnCancel(t *testing.T) {
	f := setup(t)
	rec := &recordingPublisher{}
	f.svc.Events = rec
	ctx, cancel := context.WithCancel(context.Background())

	in := store.LoanInput{
		StartDate: time.Now().Add(-48 * time.Hour),
		EndDate:   time.Now().Add(-time.Hour),
		Items:     []model.LineItem{{ItemID: f.itemID, Quantity: 1}},
	}
	loan, _ := f.svc.CreateLoan(ctx, f.user, in)
	f.svc.TransitionLoan(ctx, f.manager, loan.ID, model.LoanApproved)

	done := make(chan struct{})
	go func() {
		f.svc.RunOverdueSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for rec.count(notify.LoanOverdue) == 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper never marked the loan overdue")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}

	if n := rec.count(notify.LoanOverdue); n != 1 {
		t.Errorf("expected exactly one overdue event, got %d", n)
	}
}
