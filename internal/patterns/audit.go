package patterns

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"screener/internal/constants"
)

// AuditLogger records every pattern mutation in pattern_audit_logs.
// Entries are append-only.
type AuditLogger struct {
	db *sql.DB
}

func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

func (a *AuditLogger) LogChange(ctx context.Context, entry AuditLogEntry) error {
	query := `
		INSERT INTO pattern_audit_logs (id, pattern_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}

	oldValueJSON, _ := json.Marshal(entry.OldValue)
	newValueJSON, _ := json.Marshal(entry.NewValue)

	var patternID *string
	if entry.PatternID != "" {
		patternID = &entry.PatternID
	}

	var changeReason *string
	if entry.ChangeReason != "" {
		changeReason = &entry.ChangeReason
	}

	var ipAddress *string
	if entry.IPAddress != "" {
		ipAddress = &entry.IPAddress
	}

	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err := a.db.ExecContext(ctx, query,
		id, patternID, entry.Action,
		oldValueJSON, newValueJSON,
		entry.ChangedBy, changeReason, ipAddress, timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}

	return nil
}

func (a *AuditLogger) ListByPattern(ctx context.Context, patternID string, limit int) ([]AuditLogEntry, error) {
	query := `
		SELECT id, pattern_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
		FROM pattern_audit_logs
		WHERE pattern_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	return a.queryEntries(ctx, query, patternID, clampLimit(limit))
}

func (a *AuditLogger) ListRecent(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	query := `
		SELECT id, pattern_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
		FROM pattern_audit_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`
	return a.queryEntries(ctx, query, clampLimit(limit))
}

func (a *AuditLogger) queryEntries(ctx context.Context, query string, args ...interface{}) ([]AuditLogEntry, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditLogEntry
	for rows.Next() {
		var entry AuditLogEntry
		var patternID, changedBy, changeReason, ipAddress sql.NullString
		var oldValueJSON, newValueJSON []byte

		if err := rows.Scan(
			&entry.ID, &patternID, &entry.Action,
			&oldValueJSON, &newValueJSON,
			&changedBy, &changeReason, &ipAddress, &entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.PatternID = patternID.String
		entry.ChangedBy = changedBy.String
		entry.ChangeReason = changeReason.String
		entry.IPAddress = ipAddress.String

		if len(oldValueJSON) > 0 {
			json.Unmarshal(oldValueJSON, &entry.OldValue)
		}
		if len(newValueJSON) > 0 {
			json.Unmarshal(newValueJSON, &entry.NewValue)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		return constants.MaxLimit
	}
	return limit
}
