package core

import (
	"context"
	"errors"
	"fmt"

	db "github.com/JonMunkholm/fileentity/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PostgresFileRepository stores committed files and their field values.
type PostgresFileRepository struct {
	pool Pool
}

// NewPostgresFileRepository returns a repository backed by pool.
func NewPostgresFileRepository(pool Pool) *PostgresFileRepository {
	return &PostgresFileRepository{pool: pool}
}

// Insert writes the file row and its field values in one transaction.
// The id is the upload session's reserved file id, so a second commit of
// the same session inserts no row and reports ErrConflict.
func (p *PostgresFileRepository) Insert(ctx context.Context, f *File) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		q := db.New(p.pool).WithTx(tx)

		n, err := q.InsertFile(ctx, db.InsertFileParams{
			ID:         toPgUUID(f.ID),
			FileTypeID: f.TypeID,
			Scheme:     f.Scheme,
			Uri:        f.URI,
			Filename:   f.Filename,
			MimeType:   f.MimeType,
			Size:       f.Size,
			Owner:      f.Owner,
		})
		if err != nil {
			return fmt.Errorf("insert file %s: %w", f.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("file %s already committed: %w", f.ID, ErrConflict)
		}

		for name, value := range f.FieldValues {
			err := q.InsertFileFieldValue(ctx, db.FileFieldValue{
				FileID:    toPgUUID(f.ID),
				FieldName: name,
				Value:     value,
			})
			if err != nil {
				return fmt.Errorf("insert field %q of file %s: %w", name, f.ID, err)
			}
		}
		return nil
	})
}

func (p *PostgresFileRepository) Get(ctx context.Context, id uuid.UUID) (*File, error) {
	q := db.New(p.pool)

	row, err := q.GetFile(ctx, toPgUUID(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w", id, err)
	}

	values, err := q.ListFileFieldValues(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("load field values of %s: %w", id, err)
	}

	f := &File{
		ID:        fromPgUUID(row.ID),
		TypeID:    row.FileTypeID,
		Scheme:    row.Scheme,
		URI:       row.Uri,
		Filename:  row.Filename,
		MimeType:  row.MimeType,
		Size:      row.Size,
		Owner:     row.Owner,
		CreatedAt: fromPgTime(row.CreatedAt),
	}
	if len(values) > 0 {
		f.FieldValues = make(map[string]string, len(values))
		for _, v := range values {
			f.FieldValues[v.FieldName] = v.Value
		}
	}
	return f, nil
}

func (p *PostgresFileRepository) CountByType(ctx context.Context, typeID string) (int64, error) {
	n, err := db.New(p.pool).CountFilesByType(ctx, typeID)
	if err != nil {
		return 0, fmt.Errorf("count files of %q: %w", typeID, err)
	}
	return n, nil
}
