package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pinger — проверка соединения (*pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

const selectColumns = `id, name, type, size, upload_date, file_path, file_url, subject`

// PostgresTable — Table поверх таблицы uploaded_files.
type PostgresTable struct {
	db     DBTX
	pinger Pinger
}

// NewPostgresTable создаёт таблицу. pinger может быть nil.
func NewPostgresTable(db DBTX, pinger Pinger) *PostgresTable {
	return &PostgresTable{db: db, pinger: pinger}
}

func (t *PostgresTable) Insert(ctx context.Context, rec *model.UploadRecord) error {
	row, err := RowFromRecord(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO uploaded_files (id, name, type, size, upload_date, file_path, file_url, subject)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = t.db.Exec(ctx, query,
		row.ID, row.Name, row.Type, row.Size, row.UploadDate, row.FilePath, row.FileURL, row.Subject,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %s уже зарегистрирован", ErrConflict, row.ID)
		}
		return fmt.Errorf("ошибка вставки метаданных: %w", err)
	}
	return nil
}

func (t *PostgresTable) Query(ctx context.Context, f Filter) ([]*model.UploadRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM uploaded_files`
	var args []any
	if f.Subject != "" {
		args = append(args, f.Subject)
		query += fmt.Sprintf(" WHERE subject = $%d", len(args))
	}
	query += " ORDER BY upload_date DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.UploadRecord
	for rows.Next() {
		var r Row
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Type, &r.Size, &r.UploadDate, &r.FilePath, &r.FileURL, &r.Subject,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		result = append(result, r.Record())
	}
	return result, rows.Err()
}

func (t *PostgresTable) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM uploaded_files WHERE id = $1`

	var r Row
	err := t.db.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.Name, &r.Type, &r.Size, &r.UploadDate, &r.FilePath, &r.FileURL, &r.Subject,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return r.Record(), nil
}

func (t *PostgresTable) DeleteByID(ctx context.Context, id string) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM uploaded_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления метаданных: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *PostgresTable) Ping(ctx context.Context) error {
	if t.pinger == nil {
		return nil
	}
	return t.pinger.Ping(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
