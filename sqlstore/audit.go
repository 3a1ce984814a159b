package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/caseflow-io/authengine"
)

// AuditStore persists audit records. Log never returns an error to its
// caller: a failed insert is dropped, honoring the sink contract that audit
// writes cannot disturb the primary flow.
type AuditStore struct {
	db *sql.DB
}

var _ authengine.AuditSink = (*AuditStore)(nil)

// Log implements authengine.AuditSink.
func (s *AuditStore) Log(ctx context.Context, record authengine.AuditRecord) {
	var metadata []byte
	if len(record.Metadata) > 0 {
		metadata, _ = json.Marshal(record.Metadata)
	}
	_, _ = s.db.ExecContext(ctx,
		`insert into audit_log(timestamp, tenant_id, user_id, action, entity_type, entity_id,
			ip, user_agent, request_id, success, error, metadata)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		record.Timestamp, record.TenantID, record.UserID, record.Action,
		record.EntityType, record.EntityID, record.IP, record.UserAgent,
		record.RequestID, record.Success, record.Error, metadata)
}

// PurgeOlderThan deletes audit rows past the retention horizon and returns
// how many were removed.
func (s *AuditStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`delete from audit_log where timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RecentForTenant lists a tenant's newest audit rows, newest first.
func (s *AuditStore) RecentForTenant(ctx context.Context, tenantID string, limit int) ([]authengine.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`select timestamp, tenant_id, user_id, action, entity_type, entity_id,
			ip, user_agent, request_id, success, error, metadata
		 from audit_log where tenant_id=$1 order by timestamp desc limit $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []authengine.AuditRecord
	for rows.Next() {
		var (
			record   authengine.AuditRecord
			metadata []byte
		)
		if err := rows.Scan(&record.Timestamp, &record.TenantID, &record.UserID, &record.Action,
			&record.EntityType, &record.EntityID, &record.IP, &record.UserAgent,
			&record.RequestID, &record.Success, &record.Error, &metadata); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &record.Metadata)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
