package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type FileType struct {
	ID          string
	Label       string
	Description string
	MimeTypes   []string
	Schemes     []string
	Enabled     bool
	Weight      int32
	System      bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type FileTypeField struct {
	FileTypeID string
	Name       string
	Label      string
	FieldType  string
	MaxLength  int32
	Required   bool
	Weight     int32
}

type File struct {
	ID         pgtype.UUID
	FileTypeID string
	Scheme     string
	Uri        string
	Filename   string
	MimeType   string
	Size       int64
	Owner      string
	CreatedAt  pgtype.Timestamptz
}

type FileFieldValue struct {
	FileID    pgtype.UUID
	FieldName string
	Value     string
}

type AuditLog struct {
	ID        pgtype.UUID
	Action    string
	Severity  string
	Subject   string
	Actor     string
	IpAddress string
	UserAgent string
	Detail    []byte
	CreatedAt pgtype.Timestamptz
}
