package service

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
)

type fakeUserRepo struct {
	users      map[int64]*domain.User
	createErr  error
	getByIDHit int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[int64]*domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	user.ID = int64(len(r.users) + 1)
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.getByIDHit++
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email && user.Active {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListOperators(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		if user.Active && (user.Role == domain.RoleOperator || user.Role == domain.RoleAdmin) {
			result = append(result, *user)
		}
	}
	return result, nil
}

type fakeTicketRepo struct {
	tickets      map[int64]*domain.Ticket
	interactions []domain.Interaction
	nextID       int64
	listResult   []domain.Ticket
	listHit      int
	inactive     []domain.Ticket
	getHit       int
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: make(map[int64]*domain.Ticket), nextID: 100}
	for _, t := range tickets {
		repo.tickets[t.ID] = t
	}
	return repo
}

func (r *fakeTicketRepo) CreateWithInteraction(_ context.Context, ticket *domain.Ticket, interaction *domain.Interaction) error {
	r.nextID++
	now := time.Now()
	ticket.ID = r.nextID
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	copied := *ticket
	r.tickets[ticket.ID] = &copied

	interaction.TicketID = ticket.ID
	interaction.ID = r.nextID + 1000
	interaction.CreatedAt = now
	r.interactions = append(r.interactions, *interaction)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.getHit++
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) List(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	r.listHit++
	return r.listResult, nil
}

func (r *fakeTicketRepo) ListInactive(_ context.Context, _ time.Time, _ int) ([]domain.Ticket, error) {
	return r.inactive, nil
}

type fakeInteractionRepo struct {
	entries   []domain.Interaction
	nextID    int64
	listHit   int
	createErr error
	oldCount  int64
}

func (r *fakeInteractionRepo) Create(_ context.Context, interaction *domain.Interaction) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	interaction.ID = r.nextID
	interaction.CreatedAt = time.Now()
	r.entries = append(r.entries, *interaction)
	return nil
}

func (r *fakeInteractionRepo) ListByTicket(_ context.Context, ticketID int64, _ int) ([]domain.Interaction, error) {
	r.listHit++
	var result []domain.Interaction
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *fakeInteractionRepo) CountOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return r.oldCount, nil
}

// fakeAtomicWriter records batches and simulates RETURNING id capture.
type fakeAtomicWriter struct {
	batches  [][]repository.Statement
	err      error
	insertID int64
}

func (w *fakeAtomicWriter) ExecAtomic(_ context.Context, stmts []repository.Statement) ([]repository.StatementResult, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.batches = append(w.batches, stmts)

	results := make([]repository.StatementResult, 0, len(stmts))
	for _, st := range stmts {
		result := repository.StatementResult{RowsAffected: 1}
		if strings.Contains(st.SQL, "RETURNING") {
			w.insertID++
			result.InsertedID = w.insertID
		}
		results = append(results, result)
	}
	return results, nil
}

func (w *fakeAtomicWriter) lastBatch() []repository.Statement {
	if len(w.batches) == 0 {
		return nil
	}
	return w.batches[len(w.batches)-1]
}
