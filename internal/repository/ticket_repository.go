package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/display-support/internal/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgInvalidTextRepr      = "22P02"
	ticketNumberConstraint = "tickets_ticket_number_key"
)

// TicketFilter captures staff search parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	SearchTerm *string
	// Limit <= 0 returns every matching ticket.
	Limit  int
	Offset int
}

// StatusChange is the input of one status transition.
type StatusChange struct {
	ToStatus    domain.TicketStatus
	Comment     *string
	ChangedByID *string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	ExistsByTicketNumber(ctx context.Context, number string) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByTicketNumber(ctx context.Context, number string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ApplyTransition records a history entry and moves the ticket to
	// change.ToStatus in one unit of work. The returned ticket carries its
	// full history oldest-first.
	ApplyTransition(ctx context.Context, ticketID string, change StatusChange) (*domain.Ticket, *domain.StatusHistoryEntry, error)
}

type ticketRepository struct {
	pool    *pgxpool.Pool
	history TicketHistoryRepository
}

// NewTicketRepository instantiates the postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool, history: NewTicketHistoryRepository(pool)}
}

const ticketColumns = `id, ticket_number, category, problem_detail, has_restarted, shipping_option,
        account_number, display_number, display_location, alternate_return_address, email,
        additional_device_affected, different_shipping_address, shipping_address, salutation,
        contact_person, status, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, category, problem_detail, has_restarted, shipping_option,
            account_number, display_number, display_location, alternate_return_address, email,
            additional_device_affected, different_shipping_address, shipping_address, salutation,
            contact_person, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Category,
		ticket.ProblemDetail,
		ticket.HasRestarted,
		ticket.ShippingOption,
		ticket.AccountNumber,
		ticket.DisplayNumber,
		ticket.DisplayLocation,
		ticket.AlternateReturnAddress,
		ticket.Email,
		ticket.AdditionalDeviceAffected,
		ticket.DifferentShippingAddress,
		ticket.ShippingAddress,
		ticket.Salutation,
		ticket.ContactPerson,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if isTicketNumberViolation(err) {
		return ErrTicketNumberTaken
	}
	return err
}

func (r *ticketRepository) ExistsByTicketNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE ticket_number=$1)`, number).Scan(&exists)
	return exists, err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchWithHistory(ctx, query, id)
}

func (r *ticketRepository) GetByTicketNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_number=$1`
	return r.fetchWithHistory(ctx, query, number)
}

func (r *ticketRepository) fetchWithHistory(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translateLookupError(err)
	}
	history, err := r.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.History = history
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(ticket_number) LIKE %s OR LOWER(contact_person) LIKE %s OR LOWER(display_number) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id DESC`, base, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ApplyTransition(ctx context.Context, ticketID string, change StatusChange) (*domain.Ticket, *domain.StatusHistoryEntry, error) {
	entry := &domain.StatusHistoryEntry{
		TicketID:    ticketID,
		ToStatus:    change.ToStatus,
		Comment:     change.Comment,
		ChangedByID: change.ChangedByID,
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// The row lock keeps from_status truthful when two staff members race;
		// the later writer still wins the current status.
		var from domain.TicketStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id=$1 FOR UPDATE`, ticketID).Scan(&from); err != nil {
			return translateLookupError(err)
		}
		entry.FromStatus = &from

		const insert = `
            INSERT INTO ticket_status_history (ticket_id, from_status, to_status, comment, changed_by, created_at)
            VALUES ($1,$2,$3,$4,$5,clock_timestamp())
            RETURNING id, seq, created_at`
		if err := tx.QueryRow(ctx, insert,
			ticketID,
			entry.FromStatus,
			entry.ToStatus,
			entry.Comment,
			entry.ChangedByID,
		).Scan(&entry.ID, &entry.Seq, &entry.CreatedAt); err != nil {
			return err
		}

		cmd, err := tx.Exec(ctx, `UPDATE tickets SET status=$1, updated_at=$2 WHERE id=$3`,
			entry.ToStatus, entry.CreatedAt, ticketID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	ticket, err := r.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, entry, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Category,
		&ticket.ProblemDetail,
		&ticket.HasRestarted,
		&ticket.ShippingOption,
		&ticket.AccountNumber,
		&ticket.DisplayNumber,
		&ticket.DisplayLocation,
		&ticket.AlternateReturnAddress,
		&ticket.Email,
		&ticket.AdditionalDeviceAffected,
		&ticket.DifferentShippingAddress,
		&ticket.ShippingAddress,
		&ticket.Salutation,
		&ticket.ContactPerson,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// translateLookupError maps "no row" and malformed uuid input to ErrNotFound.
func translateLookupError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepr {
		return ErrNotFound
	}
	return err
}

func isTicketNumberViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == ticketNumberConstraint
}
