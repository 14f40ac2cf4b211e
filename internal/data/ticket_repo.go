package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sous-os/sous-core/internal/domain/model"
)

// TicketRepo provides database operations for triaged support reports.
type TicketRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewTicketRepo creates a new TicketRepo.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

const ticketColumns = `id, organization_id, subject, body, severity, team, created_at`

// Create inserts a triaged report and returns the stored row.
func (r *TicketRepo) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	if ticket == nil {
		return nil, errors.New("ticket is required")
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO tickets(organization_id, subject, body, severity, team, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+ticketColumns,
		ticket.OrganizationID, ticket.Subject, ticket.Body, ticket.Severity, ticket.Team,
		r.timeProvider.Now().UTC(),
	)

	created, err := scanTicket(row)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return created, nil
}

// ListByOrganization returns an organization's most recent tickets.
func (r *TicketRepo) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*model.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, organizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tickets []*model.Ticket
	for rows.Next() {
		ticket, scanErr := scanTicket(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan ticket: %w", scanErr)
		}
		tickets = append(tickets, ticket)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate tickets: %w", rowsErr)
	}
	return tickets, nil
}

func scanTicket(scanner jobRowScanner) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := scanner.Scan(
		&ticket.ID,
		&ticket.OrganizationID,
		&ticket.Subject,
		&ticket.Body,
		&ticket.Severity,
		&ticket.Team,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	return &ticket, nil
}
