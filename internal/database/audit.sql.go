package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type InsertAuditLogParams struct {
	ID        pgtype.UUID
	Action    string
	Severity  string
	Subject   string
	Actor     string
	IpAddress string
	UserAgent string
	Detail    []byte
}

const insertAuditLog = `INSERT INTO audit_log (id, action, severity, subject, actor, ip_address, user_agent, detail)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, action, severity, subject, actor, ip_address, user_agent, detail, created_at`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (AuditLog, error) {
	var i AuditLog
	err := q.db.QueryRow(ctx, insertAuditLog,
		arg.ID,
		arg.Action,
		arg.Severity,
		arg.Subject,
		arg.Actor,
		arg.IpAddress,
		arg.UserAgent,
		arg.Detail,
	).Scan(
		&i.ID,
		&i.Action,
		&i.Severity,
		&i.Subject,
		&i.Actor,
		&i.IpAddress,
		&i.UserAgent,
		&i.Detail,
		&i.CreatedAt,
	)
	return i, err
}

const listAuditLog = `SELECT id, action, severity, subject, actor, ip_address, user_agent, detail, created_at
FROM audit_log ORDER BY created_at DESC LIMIT $1`

func (q *Queries) ListAuditLog(ctx context.Context, limit int32) ([]AuditLog, error) {
	rows, err := q.db.Query(ctx, listAuditLog, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AuditLog
	for rows.Next() {
		var i AuditLog
		if err := rows.Scan(
			&i.ID,
			&i.Action,
			&i.Severity,
			&i.Subject,
			&i.Actor,
			&i.IpAddress,
			&i.UserAgent,
			&i.Detail,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
