package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/helpdesk-kit/helpdesk/internal/cache"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/queue"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	apperrors "github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

type workflowFixture struct {
	users        *fakeUserRepo
	tickets      *fakeTicketRepo
	interactions *fakeInteractionRepo
	store        *fakeAtomicWriter
	cache        *cache.Memory
	queue        *queue.MemoryQueue
	svc          *WorkflowService
}

func newWorkflowFixture(t *testing.T, tickets ...*domain.Ticket) *workflowFixture {
	t.Helper()
	f := &workflowFixture{
		users: newFakeUserRepo(
			&domain.User{ID: 1, Email: "client@example.com", Role: domain.RoleClient, Active: true},
			&domain.User{ID: 2, Email: "op@example.com", Role: domain.RoleOperator, Active: true},
			&domain.User{ID: 3, Email: "admin@example.com", Role: domain.RoleAdmin, Active: true},
			&domain.User{ID: 4, Email: "gone@example.com", Role: domain.RoleOperator, Active: false},
		),
		tickets:      newFakeTicketRepo(tickets...),
		interactions: &fakeInteractionRepo{},
		store:        &fakeAtomicWriter{},
		cache:        cache.NewMemory(),
		queue:        queue.NewMemoryQueue(),
	}
	f.svc = NewWorkflowService(WorkflowDependencies{
		UserRepo:        f.users,
		TicketRepo:      f.tickets,
		InteractionRepo: f.interactions,
		Store:           f.store,
		Cache:           f.cache,
		Queue:           f.queue,
	})
	return f
}

func (f *workflowFixture) seedCache(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if err := f.cache.Set(context.Background(), key, []byte("x"), 0); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
	}
}

func (f *workflowFixture) cacheHas(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := f.cache.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	return ok
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	return apperrors.ToDomainError(err).Code
}

func openTicket(id int64) *domain.Ticket {
	return &domain.Ticket{
		ID:          id,
		Title:       "printer on fire",
		Description: "smoke everywhere",
		OwnerID:     1,
		State:       domain.TicketStateOpen,
		Priority:    domain.TicketPriorityHigh,
	}
}

func TestCreateOpensTicketWithInitialComment(t *testing.T) {
	f := newWorkflowFixture(t)
	f.seedCache(t, cache.TicketListKey(nil, nil, "", "", 50))

	ticket, err := f.svc.Create(context.Background(), 1, TicketCreateInput{
		Title:       "  printer on fire  ",
		Description: "smoke everywhere",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ticket.State != domain.TicketStateOpen {
		t.Errorf("state = %q, want open", ticket.State)
	}
	if ticket.ClosedAt != nil {
		t.Error("new ticket must not carry closed_at")
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("priority = %q, want default medium", ticket.Priority)
	}
	if ticket.Title != "printer on fire" {
		t.Errorf("title not trimmed: %q", ticket.Title)
	}

	if len(f.tickets.interactions) != 1 {
		t.Fatalf("interactions written = %d, want 1", len(f.tickets.interactions))
	}
	initial := f.tickets.interactions[0]
	if initial.Type != domain.InteractionComment || initial.Content == nil || *initial.Content != "ticket created" {
		t.Errorf("unexpected initial interaction: %+v", initial)
	}
	if initial.ActorID != 1 {
		t.Errorf("initial interaction actor = %d, want creator", initial.ActorID)
	}

	if f.cacheHas(t, cache.TicketListKey(nil, nil, "", "", 50)) {
		t.Error("list cache entry survived create")
	}

	task, err := f.queue.PopFront(context.Background())
	if err != nil || task == nil {
		t.Fatalf("expected refresh task, got %v, %v", task, err)
	}
	if task.Type != queue.TaskRefreshTicketCache {
		t.Errorf("task type = %q", task.Type)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.svc.Create(context.Background(), 1, TicketCreateInput{Title: "", Description: "x"})
	if code := errCode(t, err); code != "VALIDATION_FAILED" {
		t.Errorf("code = %q, want VALIDATION_FAILED", code)
	}
	if len(f.tickets.tickets) != 0 {
		t.Error("validation failure must not write tickets")
	}
	if length, _ := f.queue.Length(context.Background()); length != 0 {
		t.Error("validation failure must not enqueue tasks")
	}
}

func TestCreateRejectsUnknownAssignee(t *testing.T) {
	f := newWorkflowFixture(t)
	missing := int64(99)

	_, err := f.svc.Create(context.Background(), 1, TicketCreateInput{
		Title:       "t",
		Description: "d",
		AssigneeID:  &missing,
	})
	if code := errCode(t, err); code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", code)
	}
}

func TestChangeStateForbiddenLeavesStoreUntouched(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))

	_, err := f.svc.ChangeState(context.Background(), 10, domain.TicketStateInProgress, 1, "")
	if code := errCode(t, err); code != "FORBIDDEN" {
		t.Errorf("code = %q, want FORBIDDEN", code)
	}
	if len(f.store.batches) != 0 {
		t.Error("forbidden mutation must not reach the store")
	}
	if length, _ := f.queue.Length(context.Background()); length != 0 {
		t.Error("forbidden mutation must not enqueue tasks")
	}
}

func TestChangeStateWritesAtomicAuditBatch(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))
	f.seedCache(t, cache.TicketKey(10), cache.InteractionsKey(10), cache.TicketListKey(nil, nil, "open", "", 50))

	result, err := f.svc.ChangeState(context.Background(), 10, domain.TicketStateInProgress, 2, "working on it")
	if err != nil {
		t.Fatalf("ChangeState: %v", err)
	}
	if result.State != domain.TicketStateInProgress {
		t.Errorf("result state = %q", result.State)
	}
	if result.InteractionID == 0 {
		t.Error("result missing interaction id")
	}

	batch := f.store.lastBatch()
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want update + audit insert", len(batch))
	}
	update := batch[0]
	if !update.RequireRows {
		t.Error("state update must require affected rows")
	}
	if got := update.Args[2]; got != domain.TicketStateOpen {
		t.Errorf("compare-and-swap guard = %v, want previously read state open", got)
	}

	audit := batch[1]
	if got := audit.Args[2]; got != domain.InteractionStateChange {
		t.Errorf("audit type = %v, want state_change", got)
	}
	var metadata map[string]any
	if err := json.Unmarshal(audit.Args[4].([]byte), &metadata); err != nil {
		t.Fatalf("audit metadata: %v", err)
	}
	if metadata["previous_state"] != "open" || metadata["new_state"] != "in_progress" {
		t.Errorf("audit metadata = %v", metadata)
	}

	for _, key := range []string{cache.TicketKey(10), cache.InteractionsKey(10), cache.TicketListKey(nil, nil, "open", "", 50)} {
		if f.cacheHas(t, key) {
			t.Errorf("cache key %q survived mutation", key)
		}
	}
}

func TestChangeStateRejectsUnknownState(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))

	_, err := f.svc.ChangeState(context.Background(), 10, domain.TicketState("archived"), 2, "")
	if code := errCode(t, err); code != "VALIDATION_FAILED" {
		t.Errorf("code = %q, want VALIDATION_FAILED", code)
	}
}

func TestChangeStateSurfacesConcurrentConflict(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))
	f.store.err = repository.ErrNoRowsAffected

	_, err := f.svc.ChangeState(context.Background(), 10, domain.TicketStateResolved, 2, "")
	if code := errCode(t, err); code != "CONFLICT" {
		t.Errorf("code = %q, want CONFLICT", code)
	}
}

func TestCloseStampsClosedAtAndWritesClosure(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))

	result, err := f.svc.Close(context.Background(), 10, 3, "done")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.State != domain.TicketStateClosed {
		t.Errorf("result state = %q, want closed", result.State)
	}

	batch := f.store.lastBatch()
	if !strings.Contains(batch[0].SQL, "closed_at=NOW()") {
		t.Errorf("close update must stamp closed_at: %s", batch[0].SQL)
	}
	if got := batch[1].Args[2]; got != domain.InteractionClosure {
		t.Errorf("audit type = %v, want closure", got)
	}
}

func TestCloseAlreadyClosedTicketIsPermitted(t *testing.T) {
	closed := openTicket(10)
	closed.State = domain.TicketStateClosed
	f := newWorkflowFixture(t, closed)

	if _, err := f.svc.Close(context.Background(), 10, 2, ""); err != nil {
		t.Fatalf("re-close: %v", err)
	}
	batch := f.store.lastBatch()
	if got := batch[0].Args[2]; got != domain.TicketStateClosed {
		t.Errorf("compare-and-swap guard = %v, want closed", got)
	}
}

func TestAssignRecordsPreviousAssignee(t *testing.T) {
	ticket := openTicket(10)
	previous := int64(3)
	ticket.AssigneeID = &previous
	f := newWorkflowFixture(t, ticket)

	result, err := f.svc.Assign(context.Background(), 10, 2, 3)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if result.InteractionID == 0 {
		t.Error("result missing interaction id")
	}

	batch := f.store.lastBatch()
	var metadata map[string]any
	if err := json.Unmarshal(batch[1].Args[3].([]byte), &metadata); err != nil {
		t.Fatalf("audit metadata: %v", err)
	}
	if metadata["assignee"] != float64(2) || metadata["previous_assignee"] != float64(3) {
		t.Errorf("audit metadata = %v", metadata)
	}
}

func TestAssignRejectsDeactivatedAssignee(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))

	_, err := f.svc.Assign(context.Background(), 10, 4, 2)
	if code := errCode(t, err); code != "VALIDATION_FAILED" {
		t.Errorf("code = %q, want VALIDATION_FAILED", code)
	}
	if len(f.store.batches) != 0 {
		t.Error("rejected assignment must not reach the store")
	}
}

func TestAddCommentInvalidatesInteractionStream(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))
	f.seedCache(t, cache.InteractionsKey(10))

	entry, err := f.svc.AddComment(context.Background(), 10, 1, "any update?", false)
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if entry.Type != domain.InteractionComment || entry.InternalOnly {
		t.Errorf("unexpected interaction: %+v", entry)
	}
	if f.cacheHas(t, cache.InteractionsKey(10)) {
		t.Error("interaction cache survived comment")
	}
}

func TestAddInternalCommentRequiresOperator(t *testing.T) {
	f := newWorkflowFixture(t, openTicket(10))

	if _, err := f.svc.AddComment(context.Background(), 10, 1, "note", true); errCode(t, err) != "FORBIDDEN" {
		t.Errorf("client internal note should be forbidden, got %v", err)
	}

	entry, err := f.svc.AddComment(context.Background(), 10, 2, "note", true)
	if err != nil {
		t.Fatalf("operator internal note: %v", err)
	}
	if !entry.InternalOnly {
		t.Error("internal note lost its flag")
	}
}
