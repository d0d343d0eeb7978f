package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Kosench/tinylink/internal/errors"
	"github.com/Kosench/tinylink/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteLinkRepository - встроенное хранилище (modernc.org/sqlite).
// Время хранится в микросекундах unix, чтобы не зависеть от форматов драйвера.
type SQLiteLinkRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteLinkRepository(db *sql.DB) *SQLiteLinkRepository {
	return &SQLiteLinkRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *SQLiteLinkRepository) FindByCode(ctx context.Context, shortCode string) (*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = ?`

	link, err := scanSQLiteLink(r.db.QueryRowContext(ctx, query, shortCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("find", err)
	}

	return link, nil
}

func (r *SQLiteLinkRepository) Create(ctx context.Context, shortCode, targetURL string) (*model.Link, error) {
	query := `
	INSERT INTO links (short_code, target_url, total_clicks, created_at)
	VALUES (?, ?, 0, ?)
	ON CONFLICT (short_code) DO NOTHING
	RETURNING ` + linkColumns

	link, err := scanSQLiteLink(r.db.QueryRowContext(ctx, query, shortCode, targetURL, r.now().UnixMicro()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewConflictError(shortCode)
	}
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, apperrors.NewConflictError(shortCode)
		}
		return nil, apperrors.NewStorageError("create", err)
	}

	return link, nil
}

func (r *SQLiteLinkRepository) RegisterClick(ctx context.Context, id int64) (*model.Link, error) {
	query := `
	UPDATE links
	SET total_clicks = total_clicks + 1,
	    last_clicked_time = MAX(?, created_at)
	WHERE id = ?
	RETURNING ` + linkColumns

	link, err := scanSQLiteLink(r.db.QueryRowContext(ctx, query, r.now().UnixMicro(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link with ID %d: %w", id, apperrors.ErrLinkNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("click", err)
	}

	return link, nil
}

func (r *SQLiteLinkRepository) DeleteByCode(ctx context.Context, shortCode string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE short_code = ?`, shortCode)
	if err != nil {
		return apperrors.NewStorageError("delete", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError("delete", err)
	}

	if affected == 0 {
		return fmt.Errorf("link with short code '%s': %w", shortCode, apperrors.ErrLinkNotFound)
	}

	return nil
}

func (r *SQLiteLinkRepository) ListAll(ctx context.Context) ([]*model.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError("list", err)
	}
	defer rows.Close()

	links := make([]*model.Link, 0)
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
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

func (r *SQLiteLinkRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("ping", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row rowScanner) (*model.Link, error) {
	var (
		link        model.Link
		lastClicked sql.NullInt64
		createdAt   int64
	)

	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.TargetURL,
		&link.TotalClicks,
		&lastClicked,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	link.CreatedAt = time.UnixMicro(createdAt).UTC()
	if lastClicked.Valid {
		t := time.UnixMicro(lastClicked.Int64).UTC()
		link.LastClickedTime = &t
	}

	return &link, nil
}

// isSQLiteUniqueViolation - драйвер включает расширенные коды результата
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
