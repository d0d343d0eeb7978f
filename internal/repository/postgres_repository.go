package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/Kosench/tinylink/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	linkColumns = `id, short_code, target_url, total_clicks, last_clicked_time, created_at`

	pgUniqueViolation = "23505"
)

type PostgresLinkRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLinkRepository(pool *pgxpool.Pool) *PostgresLinkRepository {
	return &PostgresLinkRepository{
		pool: pool,
	}
}

func (r *PostgresLinkRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	link, err := scanLink(r.pool.QueryRow(ctx, query, shortCode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("find", err)
	}

	return link, nil
}

// Create - атомарная вставка: уникальность проверяет ограничение links_short_code_key
func (r *PostgresLinkRepository) Create(ctx context.Context, shortCode, targetURL string) (*model.Link, error) {
	query := `
	INSERT INTO links (short_code, target_url)
	VALUES ($1, $2)
	ON CONFLICT (short_code) DO NOTHING
	RETURNING ` + linkColumns

	link, err := scanLink(r.pool.QueryRow(ctx, query, shortCode, targetURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewConflictError(shortCode)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperrors.NewConflictError(shortCode)
		}
		return nil, apperrors.NewStorageError("create", err)
	}

	return link, nil
}

// RegisterClick увеличивает счетчик одним UPDATE, без read-modify-write в приложении
func (r *PostgresLinkRepository) RegisterClick(ctx context.Context, id int64) (*model.Link, error) {
	query := `
	UPDATE links
	SET total_clicks = total_clicks + 1,
	    last_clicked_time = GREATEST(now(), created_at)
	WHERE id = $1
	RETURNING ` + linkColumns

	link, err := scanLink(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("link with ID %d: %w", id, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("click", err)
	}

	return link, nil
}

func (r *PostgresLinkRepository) DeleteByCode(ctx context.Context, shortCode string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM links WHERE short_code = $1`, shortCode)
	if err != nil {
		return apperrors.NewStorageError("delete", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
	}

	return nil
}

func (r *PostgresLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("list", err)
	}
	defer rows.Close()

	links := make([]*model.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("list", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list", err)
	}

	return links, nil
}

func (r *PostgresLinkRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return apperrors.NewStorageError("ping", err)
	}
	return nil
}

func scanLink(row pgx.Row) (*model.Link, error) {
	link := &model.Link{}
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.TargetURL,
		&link.TotalClicks,
		&link.LastClickedTime,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.CreatedAt = link.CreatedAt.UTC()
	if link.LastClickedTime != nil {
		t := link.LastClickedTime.UTC()
		link.LastClickedTime = &t
	}

	return link, nil
}
