package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CommentRepository manages the append-only comment sequence per incident.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO incident_comments (incident_id, author_id, text)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		comment.IncidentID,
		comment.AuthorID,
		comment.Text,
	).Scan(&comment.ID, &comment.CreatedAt)
}

// ListByIncident returns comments newest first, the display order. Creation
// order stays recoverable from created_at.
func (r *commentRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, incident_id, author_id, text, created_at
        FROM incident_comments WHERE incident_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.IncidentID,
			&comment.AuthorID,
			&comment.Text,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
