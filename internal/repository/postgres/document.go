package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/repository"
)

type documentRepository struct {
	BaseRepository
	now func() time.Time
}

type documentRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	Version   int64     `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func NewDocumentRepository(base BaseRepository) repository.DocumentStore {
	return &documentRepository{BaseRepository: base, now: time.Now}
}

func (row *documentRow) toDocument() (*model.Document, error) {
	fields := make(map[string]interface{})
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", row.ID, err)
		}
	}
	return &model.Document{
		ID:        row.ID,
		Fields:    fields,
		Version:   row.Version,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func encodeFields(fields map[string]interface{}) (string, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(b), nil
}

// listQuery renders equality filters as JSONB containment, which matches
// the value and its JSON type exactly.
func listQuery(collection string, filters []repository.Filter) (string, []interface{}, error) {
	q := psql.Select("id", "data", "version", "created_at", "updated_at").
		From("documents").
		Where(sq.Eq{"collection": collection})

	for _, f := range filters {
		probe, err := encodeFields(map[string]interface{}{f.Field: f.Value})
		if err != nil {
			return "", nil, err
		}
		q = q.Where("data @> ?::jsonb", probe)
	}
	return q.ToSql()
}

func (r *documentRepository) List(ctx context.Context, collection string, filters ...repository.Filter) ([]*model.Document, error) {
	query, args, err := listQuery(collection, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	docs := make([]*model.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *documentRepository) Get(ctx context.Context, collection, id string) (*model.Document, error) {
	query := `
		SELECT id, data, version, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`
	var row documentRow
	if err := r.db.GetContext(ctx, &row, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return row.toDocument()
}

func (r *documentRepository) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, $4, $4)
	`
	id := uuid.New().String()
	if _, err := r.db.ExecContext(ctx, query, collection, id, data, r.now()); err != nil {
		return "", fmt.Errorf("failed to create %s document: %w", collection, err)
	}
	return id, nil
}

func (r *documentRepository) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET data = data || $1::jsonb, version = version + 1, updated_at = $2
		WHERE collection = $3 AND id = $4
	`
	result, err := r.db.ExecContext(ctx, query, data, r.now(), collection, id)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return expectOneRow(result)
}

func (r *documentRepository) Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	onConflict := "data = EXCLUDED.data"
	if merge {
		onConflict = "data = documents.data || EXCLUDED.data"
	}
	query := `
		INSERT INTO documents (collection, id, data, version, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, $4, $4)
		ON CONFLICT (collection, id) DO UPDATE
		SET ` + onConflict + `, version = documents.version + 1, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, collection, id, data, r.now()); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return expectOneRow(result)
}

// Commit applies every write in one transaction. A write whose expected
// version no longer matches rolls back the whole batch.
func (r *documentRepository) Commit(ctx context.Context, collection string, writes []repository.Write) error {
	now := r.now()
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, w := range writes {
			if err := commitWrite(ctx, tx, collection, w, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func commitWrite(ctx context.Context, tx *sqlx.Tx, collection string, w repository.Write, now time.Time) error {
	data, err := encodeFields(w.Fields)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET data = data || $1::jsonb, version = version + 1, updated_at = $2
		WHERE collection = $3 AND id = $4 AND ($5::bigint = 0 OR version = $5)
	`
	result, err := tx.ExecContext(ctx, query, data, now, collection, w.ID, w.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, w.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var version int64
	err = tx.GetContext(ctx, &version, `SELECT version FROM documents WHERE collection = $1 AND id = $2`, collection, w.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, w.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to read version of %s/%s: %w", collection, w.ID, err)
	}
	return fmt.Errorf("%w: %s at version %d, expected %d", repository.ErrConflict, w.ID, version, w.ExpectedVersion)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}
