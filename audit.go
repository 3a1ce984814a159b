package authengine

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditRecord is one append-only entry describing a security or business
// action. Records are write-once: nothing in the engine updates or deletes
// them (retention purging is the sink's own concern).
type AuditRecord struct {
	Timestamp  time.Time         `json:"timestamp"`
	TenantID   string            `json:"tenant_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Action     string            `json:"action"`
	EntityType string            `json:"entity_type,omitempty"`
	EntityID   string            `json:"entity_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit records. Implementations must never propagate
// their own failures to the caller; a sink that cannot write swallows the
// record and reports the problem through its own channels.
type AuditSink interface {
	Log(ctx context.Context, record AuditRecord)
}

// NoOpSink discards every record.
type NoOpSink struct{}

// Log implements [AuditSink].
func (NoOpSink) Log(context.Context, AuditRecord) {}

// ChannelSink forwards records to a buffered channel, mostly useful in
// tests and for custom fan-out.
type ChannelSink struct {
	records chan AuditRecord
}

// NewChannelSink returns a sink buffering up to buffer records.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{records: make(chan AuditRecord, buffer)}
}

// Log implements [AuditSink].
func (s *ChannelSink) Log(ctx context.Context, record AuditRecord) {
	select {
	case s.records <- record:
	case <-ctx.Done():
	}
}

// Records exposes the receiving end of the channel.
func (s *ChannelSink) Records() <-chan AuditRecord {
	return s.records
}

// JSONWriterSink appends one JSON line per record to a writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink wraps w; writes are serialized.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Log implements [AuditSink]. Marshal and write failures are swallowed.
func (s *JSONWriterSink) Log(_ context.Context, record AuditRecord) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
