package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// IncidentFilter captures listing parameters. Relation and visibility fields
// come from the access scope; status and severity are the admin refinements.
type IncidentFilter struct {
	CreatedBy         *string
	AssignedTo        *string
	VisibleToReporter *bool
	VisibleToSupport  *bool
	Status            *domain.IncidentStatus
	Severity          *domain.IncidentSeverity
	Limit             int
	Offset            int
}

// IncidentStats aggregates dashboard counters over a filtered set.
type IncidentStats struct {
	Total    int64
	Critical int64
	Open     int64
	Resolved int64
}

// IncidentRepository encapsulates incident persistence.
//
// AssignIfUnassigned and UpdateStatusCAS are the only mutation paths; both
// are single conditional statements so concurrent writers to the same row
// cannot interleave a check with a stale write.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	AssignIfUnassigned(ctx context.Context, id, assigneeID string) (bool, error)
	UpdateStatusCAS(ctx context.Context, id string, status domain.IncidentStatus, expectedUpdatedAt time.Time) (bool, error)
	Stats(ctx context.Context, filter IncidentFilter) (IncidentStats, error)
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	const query = `
        INSERT INTO incidents (title, description, severity, status, created_by, assigned_to,
                               visible_to_reporter, visible_to_support, attachment_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Severity,
		incident.Status,
		incident.CreatedBy,
		incident.AssignedTo,
		incident.VisibleToReporter,
		incident.VisibleToSupport,
		incident.AttachmentKey,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
}

func (r *incidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	const query = `
        SELECT id, title, description, severity, status, created_by, assigned_to,
               visible_to_reporter, visible_to_support, attachment_key, created_at, updated_at
        FROM incidents WHERE id=$1`
	var incident domain.Incident
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Severity,
		&incident.Status,
		&incident.CreatedBy,
		&incident.AssignedTo,
		&incident.VisibleToReporter,
		&incident.VisibleToSupport,
		&incident.AttachmentKey,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &incident, nil
}

// AssignIfUnassigned sets assigned_to only when it is still NULL. The guard
// lives in the WHERE clause, so two racing assigns can never both win: the
// loser affects zero rows and reports applied=false.
func (r *incidentRepository) AssignIfUnassigned(ctx context.Context, id, assigneeID string) (bool, error) {
	const query = `
        UPDATE incidents SET assigned_to=$1, updated_at=NOW()
        WHERE id=$2 AND assigned_to IS NULL`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// UpdateStatusCAS writes the status guarded by the updated_at the caller
// read, and clears both visibility flags in the same statement whenever the
// new status is RESOLVED. A zero-row result means a concurrent writer got
// there first; the caller re-reads and retries.
func (r *incidentRepository) UpdateStatusCAS(ctx context.Context, id string, status domain.IncidentStatus, expectedUpdatedAt time.Time) (bool, error) {
	const query = `
        UPDATE incidents SET status=$1,
            visible_to_reporter = CASE WHEN $1 = 'RESOLVED' THEN FALSE ELSE visible_to_reporter END,
            visible_to_support  = CASE WHEN $1 = 'RESOLVED' THEN FALSE ELSE visible_to_support END,
            updated_at = NOW()
        WHERE id=$2 AND updated_at=$3`
	cmd, err := r.pool.Exec(ctx, query, status, id, expectedUpdatedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	base := `SELECT id, title, description, severity, status, created_by, assigned_to,
                    visible_to_reporter, visible_to_support, attachment_key, created_at, updated_at
             FROM incidents`
	clauses, args := filterClauses(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) Stats(ctx context.Context, filter IncidentFilter) (IncidentStats, error) {
	base := `SELECT COUNT(*),
                    COUNT(*) FILTER (WHERE severity='CRITICAL'),
                    COUNT(*) FILTER (WHERE status='OPEN'),
                    COUNT(*) FILTER (WHERE status='RESOLVED')
             FROM incidents`
	clauses, args := filterClauses(filter)
	query := fmt.Sprintf(`%s WHERE %s`, base, strings.Join(clauses, " AND "))

	var stats IncidentStats
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Critical,
		&stats.Open,
		&stats.Resolved,
	); err != nil {
		return IncidentStats{}, err
	}
	return stats, nil
}

func filterClauses(filter IncidentFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.VisibleToReporter != nil {
		args = append(args, *filter.VisibleToReporter)
		clauses = append(clauses, fmt.Sprintf("visible_to_reporter=$%d", len(args)))
	}
	if filter.VisibleToSupport != nil {
		args = append(args, *filter.VisibleToSupport)
		clauses = append(clauses, fmt.Sprintf("visible_to_support=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Severity != nil {
		args = append(args, *filter.Severity)
		clauses = append(clauses, fmt.Sprintf("severity=$%d", len(args)))
	}
	return clauses, args
}

func scanIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	var result []domain.Incident
	for rows.Next() {
		var incident domain.Incident
		if err := rows.Scan(
			&incident.ID,
			&incident.Title,
			&incident.Description,
			&incident.Severity,
			&incident.Status,
			&incident.CreatedBy,
			&incident.AssignedTo,
			&incident.VisibleToReporter,
			&incident.VisibleToSupport,
			&incident.AttachmentKey,
			&incident.CreatedAt,
			&incident.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}
