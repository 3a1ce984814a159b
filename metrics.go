package authengine

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a single counter maintained by the engine.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLockedOut
	MetricAccountLocked
	MetricMFARequired
	MetricMFASuccess
	MetricMFAFailure
	MetricBackupCodeUsed
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReplayDetected
	MetricSessionCreated
	MetricSessionEvicted
	MetricLogout
	MetricLogoutAll
	MetricRegistrationSuccess
	MetricRegistrationDuplicate
	MetricOrganizationCreated
	MetricOrganizationRolledBack
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricEmailVerified
	MetricVerifyAccessLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:           "login_success",
	MetricLoginFailure:           "login_failure",
	MetricLoginLockedOut:         "login_locked_out",
	MetricAccountLocked:          "account_locked",
	MetricMFARequired:            "mfa_required",
	MetricMFASuccess:             "mfa_success",
	MetricMFAFailure:             "mfa_failure",
	MetricBackupCodeUsed:         "backup_code_used",
	MetricRefreshSuccess:         "refresh_success",
	MetricRefreshFailure:         "refresh_failure",
	MetricRefreshReplayDetected:  "refresh_replay_detected",
	MetricSessionCreated:         "session_created",
	MetricSessionEvicted:         "session_evicted",
	MetricLogout:                 "logout",
	MetricLogoutAll:              "logout_all",
	MetricRegistrationSuccess:    "registration_success",
	MetricRegistrationDuplicate:  "registration_duplicate",
	MetricOrganizationCreated:    "organization_created",
	MetricOrganizationRolledBack: "organization_rolled_back",
	MetricPasswordChangeSuccess:  "password_change_success",
	MetricPasswordChangeFailure:  "password_change_failure",
	MetricPasswordResetRequest:   "password_reset_request",
	MetricPasswordResetSuccess:   "password_reset_success",
	MetricPasswordResetFailure:   "password_reset_failure",
	MetricEmailVerified:          "email_verified",
	MetricVerifyAccessLatency:    "verify_access_latency",
}

// String returns the stable snake_case name of the metric, suitable for
// exporters. Unknown IDs return "unknown".
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line so hot counters
// incremented from different goroutines do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size set of atomic counters plus one latency histogram
// for token verification. All methods are safe for concurrent use and are
// no-ops on a nil or disabled receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics set from config. A disabled set accepts calls
// and records nothing.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether the set records anything at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a verification latency sample. Only
// MetricVerifyAccessLatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricVerifyAccessLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter (and the latency histogram when enabled)
// into maps keyed by MetricID.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyAccessLatency].buckets[i])
		}
		s.Histograms[MetricVerifyAccessLatency] = buckets
	}

	return s
}

// HistogramBounds returns the upper bounds, in milliseconds, of the latency
// buckets. The final bucket is unbounded.
func HistogramBounds() []int64 {
	return []int64{5, 10, 25, 50, 100, 250, 500}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
