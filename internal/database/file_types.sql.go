package database

import (
	"context"
)

const fileTypeColumns = `id, label, description, mime_types, schemes, enabled, weight, system, created_at, updated_at`

func scanFileType(row interface{ Scan(...any) error }) (FileType, error) {
	var i FileType
	err := row.Scan(
		&i.ID,
		&i.Label,
		&i.Description,
		&i.MimeTypes,
		&i.Schemes,
		&i.Enabled,
		&i.Weight,
		&i.System,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getFileType = `SELECT ` + fileTypeColumns + ` FROM file_types WHERE id = $1`

func (q *Queries) GetFileType(ctx context.Context, id string) (FileType, error) {
	return scanFileType(q.db.QueryRow(ctx, getFileType, id))
}

const listFileTypes = `SELECT ` + fileTypeColumns + ` FROM file_types
WHERE enabled OR $1::boolean
ORDER BY weight, created_at, id`

func (q *Queries) ListFileTypes(ctx context.Context, includeDisabled bool) ([]FileType, error) {
	rows, err := q.db.Query(ctx, listFileTypes, includeDisabled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FileType
	for rows.Next() {
		i, err := scanFileType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type InsertFileTypeParams struct {
	ID          string
	Label       string
	Description string
	MimeTypes   []string
	Schemes     []string
	Enabled     bool
	System      bool
}

// insertFileType appends the new type to the end of the display order.
// Returns no row when the id already exists.
const insertFileType = `INSERT INTO file_types (id, label, description, mime_types, schemes, enabled, system, weight)
VALUES ($1, $2, $3, $4, $5, $6, $7, (SELECT COALESCE(MAX(weight), 0) + 1 FROM file_types))
ON CONFLICT (id) DO NOTHING
RETURNING ` + fileTypeColumns

func (q *Queries) InsertFileType(ctx context.Context, arg InsertFileTypeParams) (FileType, error) {
	return scanFileType(q.db.QueryRow(ctx, insertFileType,
		arg.ID,
		arg.Label,
		arg.Description,
		arg.MimeTypes,
		arg.Schemes,
		arg.Enabled,
		arg.System,
	))
}

type UpdateFileTypeParams struct {
	ID          string
	Label       string
	Description string
	MimeTypes   []string
	Schemes     []string
	Enabled     bool
}

const updateFileType = `UPDATE file_types
SET label = $2, description = $3, mime_types = $4, schemes = $5, enabled = $6, updated_at = now()
WHERE id = $1
RETURNING ` + fileTypeColumns

func (q *Queries) UpdateFileType(ctx context.Context, arg UpdateFileTypeParams) (FileType, error) {
	return scanFileType(q.db.QueryRow(ctx, updateFileType,
		arg.ID,
		arg.Label,
		arg.Description,
		arg.MimeTypes,
		arg.Schemes,
		arg.Enabled,
	))
}

const deleteFileType = `DELETE FROM file_types WHERE id = $1`

func (q *Queries) DeleteFileType(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteFileType, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listFileTypeFields = `SELECT file_type_id, name, label, field_type, max_length, required, weight
FROM file_type_fields
WHERE file_type_id = ANY($1::text[])
ORDER BY file_type_id, weight, name`

func (q *Queries) ListFileTypeFields(ctx context.Context, fileTypeIDs []string) ([]FileTypeField, error) {
	rows, err := q.db.Query(ctx, listFileTypeFields, fileTypeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FileTypeField
	for rows.Next() {
		var i FileTypeField
		if err := rows.Scan(
			&i.FileTypeID,
			&i.Name,
			&i.Label,
			&i.FieldType,
			&i.MaxLength,
			&i.Required,
			&i.Weight,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteFileTypeFields = `DELETE FROM file_type_fields WHERE file_type_id = $1`

func (q *Queries) DeleteFileTypeFields(ctx context.Context, fileTypeID string) error {
	_, err := q.db.Exec(ctx, deleteFileTypeFields, fileTypeID)
	return err
}

const insertFileTypeField = `INSERT INTO file_type_fields (file_type_id, name, label, field_type, max_length, required, weight)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (q *Queries) InsertFileTypeField(ctx context.Context, arg FileTypeField) error {
	_, err := q.db.Exec(ctx, insertFileTypeField,
		arg.FileTypeID,
		arg.Name,
		arg.Label,
		arg.FieldType,
		arg.MaxLength,
		arg.Required,
		arg.Weight,
	)
	return err
}
