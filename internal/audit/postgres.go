package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetgate/internal/logging"
)

const insertAuditLog = `
INSERT INTO audit_log (action, severity, outcome, subject_id, email, ip_address, user_agent, reason, details, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9, $10)`

// PostgresRecorder inserts entries into the audit_log table.
type PostgresRecorder struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ Recorder = (*PostgresRecorder)(nil)

// NewPostgresRecorder creates a recorder writing through pool.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool, timeout: 5 * time.Second}
}

// Record inserts the entry. A failed insert is logged together with the
// entry so nothing is lost.
func (r *PostgresRecorder) Record(ctx context.Context, p Params) {
	e := newEntry(ctx, p)

	var details []byte
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			details = nil
		}
	}

	// The request may be cancelled right after the response is written.
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	_, err := r.pool.Exec(insertCtx, insertAuditLog,
		string(e.Action), string(e.Severity), string(e.Outcome),
		e.SubjectID, e.Email, e.IPAddress, e.UserAgent, e.Reason,
		details, e.CreatedAt,
	)
	if err != nil {
		attrs := append(entryAttrs(e), slogError(err))
		logging.FromContext(ctx).LogAttrs(ctx, levelError, "audit insert failed", attrs...)
	}
}
