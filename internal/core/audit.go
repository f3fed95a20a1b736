package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	db "github.com/JonMunkholm/fileentity/internal/database"
	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionTypeCreate     AuditAction = "file_type_create"
	ActionTypeUpdate     AuditAction = "file_type_update"
	ActionTypeEnable     AuditAction = "file_type_enable"
	ActionTypeDisable    AuditAction = "file_type_disable"
	ActionTypeDelete     AuditAction = "file_type_delete"
	ActionFieldAttach    AuditAction = "field_attach"
	ActionFieldDetach    AuditAction = "field_detach"
	ActionFileCommit     AuditAction = "file_commit"
	ActionUploadAbandon  AuditAction = "upload_abandon"
	ActionUploadRejected AuditAction = "upload_rejected"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    AuditAction    `json:"action"`
	Severity  AuditSeverity  `json:"severity"`
	Subject   string         `json:"subject"`
	Actor     string         `json:"actor,omitempty"`
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionTypeDelete:
		return SeverityCritical
	case ActionTypeDisable, ActionFieldDetach, ActionUploadRejected:
		return SeverityHigh
	case ActionFileCommit, ActionUploadAbandon:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// AuditLog records mutations.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditReader lists recorded entries, newest first.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}

// NewAuditEntry fills id, severity, request metadata and timestamp.
func NewAuditEntry(ctx context.Context, action AuditAction, subject, actor string, detail map[string]any) AuditEntry {
	return AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Severity:  determineSeverity(action),
		Subject:   subject,
		Actor:     actor,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		Detail:    detail,
		CreatedAt: time.Now(),
	}
}

// RecordAudit writes entry and logs, rather than returns, a failure: the
// mutation it describes has already happened.
func RecordAudit(ctx context.Context, log AuditLog, entry AuditEntry) {
	if log == nil {
		return
	}
	if err := log.Record(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "audit write failed",
			"action", entry.Action,
			"subject", entry.Subject,
			"error", err,
		)
	}
}

// MemoryAuditLog keeps entries in memory, newest last.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *MemoryAuditLog) Entries() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Recent returns up to limit entries, newest first.
func (m *MemoryAuditLog) Recent(_ context.Context, limit int) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]AuditEntry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// PostgresAuditLog writes entries to the audit_log table.
type PostgresAuditLog struct {
	db db.DBTX
}

// NewPostgresAuditLog returns an audit log backed by conn.
func NewPostgresAuditLog(conn db.DBTX) *PostgresAuditLog {
	return &PostgresAuditLog{db: conn}
}

func (p *PostgresAuditLog) Record(ctx context.Context, entry AuditEntry) error {
	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			detail = nil
		}
	}

	id, err := uuid.Parse(entry.ID)
	if err != nil {
		id = uuid.New()
	}

	_, err = db.New(p.db).InsertAuditLog(ctx, db.InsertAuditLogParams{
		ID:        toPgUUID(id),
		Action:    string(entry.Action),
		Severity:  string(entry.Severity),
		Subject:   entry.Subject,
		Actor:     entry.Actor,
		IpAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		Detail:    detail,
	})
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest limit entries.
func (p *PostgresAuditLog) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := db.New(p.db).ListAuditLog(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}

	entries := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		e := AuditEntry{
			ID:        fromPgUUID(row.ID).String(),
			Action:    AuditAction(row.Action),
			Severity:  AuditSeverity(row.Severity),
			Subject:   row.Subject,
			Actor:     row.Actor,
			IPAddress: row.IpAddress,
			UserAgent: row.UserAgent,
			CreatedAt: fromPgTime(row.CreatedAt),
		}
		if len(row.Detail) > 0 {
			_ = json.Unmarshal(row.Detail, &e.Detail)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
