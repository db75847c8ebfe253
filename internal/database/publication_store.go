package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mikelady/showcase/internal/services"
)

// Postgres error codes mapped to domain errors
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Compile-time interface compliance check
var _ services.PublicationStore = (*PublicationStore)(nil)

// publicationColumns is the column list every publication query selects, in scan order.
const publicationColumns = `id::text, order_id, external_post_id, permalink, image_url, caption,
	publish_path, state, is_simulated, failure_reason, takedown_reason, created_by,
	published_at, taken_down_at, deleted, deleted_at, created_at, updated_at`

// PublicationStore implements services.PublicationStore using PostgreSQL
type PublicationStore struct {
	db DBTX
}

// NewPublicationStore creates a new database-backed publication store
func NewPublicationStore(pool *Pool) *PublicationStore {
	return &PublicationStore{db: pool}
}

// NewPublicationStoreWithDB creates a publication store over any DBTX (used with pgxmock).
func NewPublicationStoreWithDB(db DBTX) *PublicationStore {
	return &PublicationStore{db: db}
}

// CreatePublication inserts a record. The partial unique index on order_id rejects a
// second non-deleted record for the same order.
func (s *PublicationStore) CreatePublication(ctx context.Context, p *services.Publication) (*services.Publication, error) {
	if p.State == services.StateDraft || !p.State.Valid() {
		return nil, fmt.Errorf("%w: cannot persist state %q", services.ErrInvalidTransition, p.State)
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO publications (order_id, external_post_id, permalink, image_url, caption,
		     publish_path, state, is_simulated, failure_reason, takedown_reason, created_by,
		     published_at, taken_down_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+publicationColumns,
		p.OrderID, p.ExternalPostID, p.Permalink, p.ImageURL, p.Caption,
		string(p.Path), string(p.State), p.IsSimulated, p.FailureReason, p.TakedownReason, p.CreatedBy,
		p.PublishedAt, p.TakenDownAt,
	)

	saved, err := scanPublication(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return saved, nil
}

// GetPublication returns services.ErrPublicationNotFound when no row matches.
func (s *PublicationStore) GetPublication(ctx context.Context, id string) (*services.Publication, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+publicationColumns+` FROM publications WHERE id::text = $1`,
		id,
	)

	p, err := scanPublication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrPublicationNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetActivePublicationByOrder returns nil, nil when the order has no non-deleted record.
func (s *PublicationStore) GetActivePublicationByOrder(ctx context.Context, orderID string) (*services.Publication, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+publicationColumns+` FROM publications WHERE order_id = $1 AND NOT deleted`,
		orderID,
	)

	p, err := scanPublication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePublicationState writes the mutable lifecycle fields of p, but only while the
// stored state still equals from and the record is not deleted.
func (s *PublicationStore) UpdatePublicationState(ctx context.Context, p *services.Publication, from services.PublicationState) error {
	var updatedAt time.Time
	err := s.db.QueryRow(ctx,
		`UPDATE publications
		 SET state = $1, external_post_id = $2, permalink = $3, failure_reason = $4,
		     takedown_reason = $5, published_at = $6, taken_down_at = $7, updated_at = NOW()
		 WHERE id::text = $8 AND state = $9 AND NOT deleted
		 RETURNING updated_at`,
		string(p.State), p.ExternalPostID, p.Permalink, p.FailureReason,
		p.TakedownReason, p.PublishedAt, p.TakenDownAt,
		p.ID, string(from),
	).Scan(&updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing record from a lost race
		exists, existsErr := s.exists(ctx, p.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return services.ErrPublicationNotFound
		}
		return fmt.Errorf("%w: record is no longer %s", services.ErrInvalidTransition, from)
	}
	if err != nil {
		return mapWriteError(err)
	}

	p.UpdatedAt = updatedAt
	return nil
}

// SetPublicationDeleted sets or clears the soft-delete flags. Clearing them fails with
// services.ErrDuplicatePublication when another active record exists for the order.
func (s *PublicationStore) SetPublicationDeleted(ctx context.Context, id string, deletedAt *time.Time) error {
	result, err := s.db.Exec(ctx,
		`UPDATE publications SET deleted = $1, deleted_at = $2, updated_at = NOW() WHERE id::text = $3`,
		deletedAt != nil, deletedAt, id,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if result.RowsAffected() == 0 {
		return services.ErrPublicationNotFound
	}
	return nil
}

// ListPublications returns records newest first.
func (s *PublicationStore) ListPublications(ctx context.Context, filter services.ListFilter) ([]*services.Publication, error) {
	filter = filter.Normalize()

	var (
		where []string
		args  []any
	)
	if filter.OrderID != "" {
		args = append(args, filter.OrderID)
		where = append(where, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if !filter.IncludeDeleted {
		where = append(where, "NOT deleted")
	}

	query := `SELECT ` + publicationColumns + ` FROM publications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*services.Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PublicationStore) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM publications WHERE id::text = $1)", id).Scan(&exists)
	return exists, err
}

// scanPublication reads one row in publicationColumns order.
func scanPublication(row pgx.Row) (*services.Publication, error) {
	var (
		p     services.Publication
		path  string
		state string
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.ExternalPostID, &p.Permalink, &p.ImageURL, &p.Caption,
		&path, &state, &p.IsSimulated, &p.FailureReason, &p.TakedownReason, &p.CreatedBy,
		&p.PublishedAt, &p.TakenDownAt, &p.Deleted, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Path = services.PublishPath(path)
	p.State = services.PublicationState(state)
	return &p, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return services.ErrDuplicatePublication
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", services.ErrInvalidTransition, pgErr.ConstraintName)
		}
	}
	return err
}
