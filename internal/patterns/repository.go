package patterns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"screener/internal/constants"
	pkgerrors "screener/pkg/errors"
)

type Repository interface {
	Create(ctx context.Context, pattern *Pattern) error
	Get(ctx context.Context, id string) (*Pattern, error)
	List(ctx context.Context, filter ListFilter) ([]Pattern, error)
	Update(ctx context.Context, pattern *Pattern) error
	Delete(ctx context.Context, id string) error
	ListActiveByField(ctx context.Context) (map[TargetField][]Pattern, error)
	IncrementMatchCount(ctx context.Context, id string) error
	TopPatterns(ctx context.Context, limit int) ([]Pattern, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const patternColumns = `id, name, description, pattern, type, target_field, priority, is_active, match_count, category_id, created_at, updated_at`

func scanPattern(row interface{ Scan(...interface{}) error }) (*Pattern, error) {
	var p Pattern
	var description sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &description, &p.Pattern, &p.Type, &p.TargetField,
		&p.Priority, &p.IsActive, &p.MatchCount, &p.CategoryID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	return &p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, pattern *Pattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.New().String()
	}
	now := time.Now()
	pattern.CreatedAt = now
	pattern.UpdatedAt = now

	query := `
		INSERT INTO classification_patterns (` + patternColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		pattern.ID, pattern.Name, pattern.Description, pattern.Pattern,
		pattern.Type, pattern.TargetField, pattern.Priority, pattern.IsActive,
		pattern.MatchCount, pattern.CategoryID, pattern.CreatedAt, pattern.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("pattern with name '%s' already exists", pattern.Name))
		}
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM classification_patterns WHERE id = $1`

	pattern, err := scanPattern(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("pattern_id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}

	return pattern, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Pattern, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, column+" = $"+strconv.Itoa(len(args)))
	}

	if filter.Type != nil {
		addCondition("type", *filter.Type)
	}
	if filter.TargetField != nil {
		addCondition("target_field", *filter.TargetField)
	}
	if filter.IsActive != nil {
		addCondition("is_active", *filter.IsActive)
	}
	if filter.CategoryID != nil {
		addCondition("category_id", *filter.CategoryID)
	}

	query := `SELECT ` + patternColumns + ` FROM classification_patterns`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY priority DESC, id ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}
	args = append(args, limit)
	query += " LIMIT $" + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	return r.queryPatterns(ctx, query, args...)
}

func (r *PostgresRepository) queryPatterns(ctx context.Context, query string, args ...interface{}) ([]Pattern, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var result []Pattern
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		result = append(result, *pattern)
	}

	return result, rows.Err()
}

func (r *PostgresRepository) Update(ctx context.Context, pattern *Pattern) error {
	pattern.UpdatedAt = time.Now()

	query := `
		UPDATE classification_patterns
		SET name = $1, description = $2, pattern = $3, type = $4, target_field = $5,
		    priority = $6, is_active = $7, category_id = $8, updated_at = $9
		WHERE id = $10
	`

	res, err := r.db.ExecContext(ctx, query,
		pattern.Name, pattern.Description, pattern.Pattern, pattern.Type,
		pattern.TargetField, pattern.Priority, pattern.IsActive,
		pattern.CategoryID, pattern.UpdatedAt, pattern.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("pattern with name '%s' already exists", pattern.Name))
		}
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("pattern_id", pattern.ID)
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classification_patterns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("pattern_id", id)
	}

	return nil
}

// ListActiveByField returns active patterns grouped per target field.
// Within a field, matching order is priority DESC with id ASC breaking
// ties, which keeps evaluation deterministic.
func (r *PostgresRepository) ListActiveByField(ctx context.Context) (map[TargetField][]Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM classification_patterns WHERE is_active = true ORDER BY priority DESC, id ASC`

	all, err := r.queryPatterns(ctx, query)
	if err != nil {
		return nil, err
	}

	grouped := make(map[TargetField][]Pattern, len(TargetFields))
	for _, p := range all {
		grouped[p.TargetField] = append(grouped[p.TargetField], p)
	}

	return grouped, nil
}

func (r *PostgresRepository) IncrementMatchCount(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE classification_patterns SET match_count = match_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment match count: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TopPatterns(ctx context.Context, limit int) ([]Pattern, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}

	query := `SELECT ` + patternColumns + ` FROM classification_patterns ORDER BY match_count DESC, id ASC LIMIT $1`
	return r.queryPatterns(ctx, query, limit)
}
