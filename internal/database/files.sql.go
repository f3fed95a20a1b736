package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type InsertFileParams struct {
	ID         pgtype.UUID
	FileTypeID string
	Scheme     string
	Uri        string
	Filename   string
	MimeType   string
	Size       int64
	Owner      string
}

// insertFile is keyed by the id the upload session reserved, so a repeated
// commit inserts nothing.
const insertFile = `INSERT INTO files (id, file_type_id, scheme, uri, filename, mime_type, size, owner)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

func (q *Queries) InsertFile(ctx context.Context, arg InsertFileParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertFile,
		arg.ID,
		arg.FileTypeID,
		arg.Scheme,
		arg.Uri,
		arg.Filename,
		arg.MimeType,
		arg.Size,
		arg.Owner,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertFileFieldValue = `INSERT INTO file_field_values (file_id, field_name, value) VALUES ($1, $2, $3)`

func (q *Queries) InsertFileFieldValue(ctx context.Context, arg FileFieldValue) error {
	_, err := q.db.Exec(ctx, insertFileFieldValue, arg.FileID, arg.FieldName, arg.Value)
	return err
}

const getFile = `SELECT id, file_type_id, scheme, uri, filename, mime_type, size, owner, created_at
FROM files WHERE id = $1`

func (q *Queries) GetFile(ctx context.Context, id pgtype.UUID) (File, error) {
	var i File
	err := q.db.QueryRow(ctx, getFile, id).Scan(
		&i.ID,
		&i.FileTypeID,
		&i.Scheme,
		&i.Uri,
		&i.Filename,
		&i.MimeType,
		&i.Size,
		&i.Owner,
		&i.CreatedAt,
	)
	return i, err
}

const listFileFieldValues = `SELECT file_id, field_name, value FROM file_field_values WHERE file_id = $1 ORDER BY field_name`

func (q *Queries) ListFileFieldValues(ctx context.Context, fileID pgtype.UUID) ([]FileFieldValue, error) {
	rows, err := q.db.Query(ctx, listFileFieldValues, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []FileFieldValue
	for rows.Next() {
		var i FileFieldValue
		if err := rows.Scan(&i.FileID, &i.FieldName, &i.Value); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countFilesByType = `SELECT count(*) FROM files WHERE file_type_id = $1`

func (q *Queries) CountFilesByType(ctx context.Context, fileTypeID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countFilesByType, fileTypeID).Scan(&n)
	return n, err
}
