package core

import (
	"context"
	"errors"
	"fmt"

	db "github.com/JonMunkholm/fileentity/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// foreignKeyViolation is the SQLSTATE raised when a committed file still
// references a file type being deleted.
const foreignKeyViolation = "23503"

// Pool is the subset of *pgxpool.Pool used by the Postgres-backed stores.
type Pool interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRegistry stores file types in PostgreSQL.
type PostgresRegistry struct {
	pool Pool
}

// NewPostgresRegistry returns a registry backed by pool. Call EnsureDefaults
// once at startup to seed the system image type.
func NewPostgresRegistry(pool Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// EnsureDefaults inserts the system image type when it is missing.
func (r *PostgresRegistry) EnsureDefaults(ctx context.Context) error {
	seed := DefaultImageType()
	_, err := db.New(r.pool).InsertFileType(ctx, insertParams(seed))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("seed %s type: %w", seed.ID, err)
	}
	return nil
}

func (r *PostgresRegistry) Load(ctx context.Context, id string) (*FileType, error) {
	q := db.New(r.pool)

	row, err := q.GetFileType(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("file type %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load file type %q: %w", id, err)
	}

	fields, err := q.ListFileTypeFields(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("load fields of %q: %w", id, err)
	}

	t := fileTypeFromRow(row)
	for _, f := range fields {
		t.Fields = append(t.Fields, fieldFromRow(f))
	}
	return &t, nil
}

func (r *PostgresRegistry) LoadAll(ctx context.Context, includeDisabled bool) ([]FileType, error) {
	q := db.New(r.pool)

	rows, err := q.ListFileTypes(ctx, includeDisabled)
	if err != nil {
		return nil, fmt.Errorf("list file types: %w", err)
	}

	types := make([]FileType, len(rows))
	ids := make([]string, len(rows))
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		types[i] = fileTypeFromRow(row)
		ids[i] = row.ID
		index[row.ID] = i
	}
	if len(ids) == 0 {
		return types, nil
	}

	fields, err := q.ListFileTypeFields(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list file type fields: %w", err)
	}
	for _, f := range fields {
		i := index[f.FileTypeID]
		types[i].Fields = append(types[i].Fields, fieldFromRow(f))
	}
	return types, nil
}

func (r *PostgresRegistry) Insert(ctx context.Context, t *FileType) error {
	if err := t.validate(); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		q := db.New(r.pool).WithTx(tx)

		row, err := q.InsertFileType(ctx, insertParams(t))
		if errors.Is(err, pgx.ErrNoRows) {
			return Invalid("id", "The machine-readable name is already in use. It must be unique.")
		}
		if err != nil {
			return fmt.Errorf("insert file type %q: %w", t.ID, err)
		}
		if err := replaceFields(ctx, q, t.ID, t.Fields, false); err != nil {
			return err
		}

		stored := fileTypeFromRow(row)
		t.Weight, t.Status, t.CreatedAt, t.UpdatedAt = stored.Weight, stored.Status, stored.CreatedAt, stored.UpdatedAt
		return nil
	})
}

func (r *PostgresRegistry) Save(ctx context.Context, t *FileType) error {
	if err := t.validate(); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		q := db.New(r.pool).WithTx(tx)

		row, err := q.UpdateFileType(ctx, db.UpdateFileTypeParams{
			ID:          t.ID,
			Label:       t.Label,
			Description: t.Description,
			MimeTypes:   t.MimeTypes,
			Schemes:     nonNil(t.Schemes),
			Enabled:     t.Enabled(),
		})
		if errors.Is(err, pgx.ErrNoRows) {
			row, err = q.InsertFileType(ctx, insertParams(t))
		}
		if err != nil {
			return fmt.Errorf("save file type %q: %w", t.ID, err)
		}
		if err := replaceFields(ctx, q, t.ID, t.Fields, true); err != nil {
			return err
		}

		stored := fileTypeFromRow(row)
		t.Weight, t.System, t.CreatedAt, t.UpdatedAt = stored.Weight, stored.System, stored.CreatedAt, stored.UpdatedAt
		return nil
	})
}

func (r *PostgresRegistry) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		q := db.New(r.pool).WithTx(tx)

		row, err := q.GetFileType(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("file type %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load file type %q: %w", id, err)
		}
		if row.System {
			return fmt.Errorf("file type %q is a system type: %w", id, ErrConflict)
		}

		if _, err := q.DeleteFileType(ctx, id); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return fmt.Errorf("delete file type %q: %w", id, ErrTypeHasFiles)
			}
			return fmt.Errorf("delete file type %q: %w", id, err)
		}
		return nil
	})
}

func replaceFields(ctx context.Context, q *db.Queries, typeID string, fields []FieldDefinition, replace bool) error {
	if replace {
		if err := q.DeleteFileTypeFields(ctx, typeID); err != nil {
			return fmt.Errorf("clear fields of %q: %w", typeID, err)
		}
	}
	for _, f := range fields {
		f = f.Normalize()
		err := q.InsertFileTypeField(ctx, db.FileTypeField{
			FileTypeID: typeID,
			Name:       f.Name,
			Label:      f.Label,
			FieldType:  string(f.Type),
			MaxLength:  int32(f.MaxLength),
			Required:   f.Required,
			Weight:     int32(f.Weight),
		})
		if err != nil {
			return fmt.Errorf("attach field %q to %q: %w", f.Name, typeID, err)
		}
	}
	return nil
}

func insertParams(t *FileType) db.InsertFileTypeParams {
	return db.InsertFileTypeParams{
		ID:          t.ID,
		Label:       t.Label,
		Description: t.Description,
		MimeTypes:   t.MimeTypes,
		Schemes:     nonNil(t.Schemes),
		Enabled:     t.Enabled(),
		System:      t.System,
	}
}

func fileTypeFromRow(row db.FileType) FileType {
	status := StatusEnabled
	if !row.Enabled {
		status = StatusDisabled
	}
	return FileType{
		ID:          row.ID,
		Label:       row.Label,
		Description: row.Description,
		MimeTypes:   row.MimeTypes,
		Schemes:     row.Schemes,
		Status:      status,
		Weight:      int(row.Weight),
		System:      row.System,
		CreatedAt:   fromPgTime(row.CreatedAt),
		UpdatedAt:   fromPgTime(row.UpdatedAt),
	}
}

func fieldFromRow(row db.FileTypeField) FieldDefinition {
	return FieldDefinition{
		Name:      row.Name,
		Label:     row.Label,
		Type:      FieldType(row.FieldType),
		MaxLength: int(row.MaxLength),
		Required:  row.Required,
		Weight:    int(row.Weight),
	}
}

// nonNil keeps NOT NULL array columns happy.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
