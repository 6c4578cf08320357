package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// ActiveStatuses are the states that count toward a staff member's workload.
var ActiveStatuses = []domain.TicketStatus{
	domain.TicketStatusAssigned,
	domain.TicketStatusInProgress,
	domain.TicketStatusReopened,
}

// TicketFilter narrows list queries. Nil fields are ignored.
type TicketFilter struct {
	CreatedBy     *string
	AssignedStaff *string
	Statuses      []domain.TicketStatus
	Priorities    []domain.TicketPriority
	Categories    []domain.TicketCategory
	Limit         int
	Offset        int
}

// TicketRepository encapsulates complaint persistence.
//
// Update is a compare-and-swap on Version: it succeeds only when the stored
// version equals ticket.Version and bumps ticket.Version on success.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountActiveByAssignee(ctx context.Context, staffIDs []string) (map[string]int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, created_by, category, priority, status, description, location,
       media, assigned_staff, last_assignee, work_updates, comments, internal_notes, admin_media,
       rating, priority_history, status_history, created_at, updated_at, resolved_at, closed_at,
       cancelled_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO complaints (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,1)`

	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.ExternalKey,
		ticket.CreatedBy,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.Description,
		ticket.Location,
		jsonArray(ticket.Media),
		ticket.AssignedStaff,
		ticket.LastAssignee,
		jsonArray(ticket.WorkUpdates),
		jsonArray(ticket.Comments),
		jsonArray(ticket.InternalNotes),
		jsonArray(ticket.AdminMedia),
		ticket.Rating,
		jsonArray(ticket.PriorityHistory),
		jsonArray(ticket.StatusHistory),
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.CancelledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return err
	}
	ticket.Version = 1
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE complaints SET priority=$3, status=$4, assigned_staff=$5, last_assignee=$6,
            work_updates=$7, comments=$8, internal_notes=$9, admin_media=$10, rating=$11,
            priority_history=$12, status_history=$13, updated_at=$14, resolved_at=$15,
            closed_at=$16, cancelled_at=$17, version=version+1
        WHERE id=$1 AND version=$2`

	cmd, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Version,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedStaff,
		ticket.LastAssignee,
		jsonArray(ticket.WorkUpdates),
		jsonArray(ticket.Comments),
		jsonArray(ticket.InternalNotes),
		jsonArray(ticket.AdminMedia),
		ticket.Rating,
		jsonArray(ticket.PriorityHistory),
		jsonArray(ticket.StatusHistory),
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.CancelledAt,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM complaints WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM complaints WHERE id=$1`, id)
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM complaints WHERE external_key=$1`, key)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedStaff != nil {
		args = append(args, *filter.AssignedStaff)
		clauses = append(clauses, fmt.Sprintf("assigned_staff=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, toStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		args = append(args, toStrings(filter.Priorities))
		clauses = append(clauses, fmt.Sprintf("priority = ANY($%d)", len(args)))
	}
	if len(filter.Categories) > 0 {
		args = append(args, toStrings(filter.Categories))
		clauses = append(clauses, fmt.Sprintf("category = ANY($%d)", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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

func (r *ticketRepository) CountActiveByAssignee(ctx context.Context, staffIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(staffIDs))
	if len(staffIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assigned_staff, COUNT(*) FROM complaints
        WHERE assigned_staff = ANY($1) AND status = ANY($2)
        GROUP BY assigned_staff`

	rows, err := r.pool.Query(ctx, query, staffIDs, toStrings(ActiveStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := row.Scan(
		&t.ID,
		&t.ExternalKey,
		&t.CreatedBy,
		&t.Category,
		&t.Priority,
		&t.Status,
		&t.Description,
		&t.Location,
		&t.Media,
		&t.AssignedStaff,
		&t.LastAssignee,
		&t.WorkUpdates,
		&t.Comments,
		&t.InternalNotes,
		&t.AdminMedia,
		&t.Rating,
		&t.PriorityHistory,
		&t.StatusHistory,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ResolvedAt,
		&t.ClosedAt,
		&t.CancelledAt,
		&t.Version,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// jsonArray keeps empty trails as [] rather than JSON null.
func jsonArray[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
