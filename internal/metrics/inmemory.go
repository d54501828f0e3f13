package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated      uint64
	UsersUpdated      uint64
	UsersDeleted      uint64
	EmailsAdded       uint64
	EmailsDeleted     uint64
	PrimaryChanges    uint64
	WelcomeQueued     uint64
	WelcomeSent       uint64
	WelcomeRetried    uint64
	WelcomeDead       uint64
	WelcomeQueueDepth int64
	HTTPRequests      uint64
	HTTPServerErrors  uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	usersCreated      uint64
	usersUpdated      uint64
	usersDeleted      uint64
	emailsAdded       uint64
	emailsDeleted     uint64
	primaryChanges    uint64
	welcomeQueued     uint64
	welcomeSent       uint64
	welcomeRetried    uint64
	welcomeDead       uint64
	welcomeQueueDepth int64
	httpRequests      uint64
	httpServerErrors  uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersCreated:      atomic.LoadUint64(&m.usersCreated),
		UsersUpdated:      atomic.LoadUint64(&m.usersUpdated),
		UsersDeleted:      atomic.LoadUint64(&m.usersDeleted),
		EmailsAdded:       atomic.LoadUint64(&m.emailsAdded),
		EmailsDeleted:     atomic.LoadUint64(&m.emailsDeleted),
		PrimaryChanges:    atomic.LoadUint64(&m.primaryChanges),
		WelcomeQueued:     atomic.LoadUint64(&m.welcomeQueued),
		WelcomeSent:       atomic.LoadUint64(&m.welcomeSent),
		WelcomeRetried:    atomic.LoadUint64(&m.welcomeRetried),
		WelcomeDead:       atomic.LoadUint64(&m.welcomeDead),
		WelcomeQueueDepth: atomic.LoadInt64(&m.welcomeQueueDepth),
		HTTPRequests:      atomic.LoadUint64(&m.httpRequests),
		HTTPServerErrors:  atomic.LoadUint64(&m.httpServerErrors),
	}
}

func (m *InMemoryRecorder) IncUserCreated()    { atomic.AddUint64(&m.usersCreated, 1) }
func (m *InMemoryRecorder) IncUserUpdated()    { atomic.AddUint64(&m.usersUpdated, 1) }
func (m *InMemoryRecorder) IncUserDeleted()    { atomic.AddUint64(&m.usersDeleted, 1) }
func (m *InMemoryRecorder) IncEmailAdded()     { atomic.AddUint64(&m.emailsAdded, 1) }
func (m *InMemoryRecorder) IncEmailDeleted()   { atomic.AddUint64(&m.emailsDeleted, 1) }
func (m *InMemoryRecorder) IncPrimaryChanged() { atomic.AddUint64(&m.primaryChanges, 1) }

// AddWelcomeQueued adds n queued welcome jobs.
func (m *InMemoryRecorder) AddWelcomeQueued(n int) {
	atomic.AddUint64(&m.welcomeQueued, uint64(n))
}

// IncWelcomeProcessed counts a job outcome by status.
func (m *InMemoryRecorder) IncWelcomeProcessed(status string) {
	switch status {
	case WelcomeSent:
		atomic.AddUint64(&m.welcomeSent, 1)
	case WelcomeRetried:
		atomic.AddUint64(&m.welcomeRetried, 1)
	case WelcomeDead:
		atomic.AddUint64(&m.welcomeDead, 1)
	}
}

// ObserveWelcomeSendDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveWelcomeSendDuration(time.Duration) {}

// SetWelcomeQueueDepth stores the latest observed queue depth.
func (m *InMemoryRecorder) SetWelcomeQueueDepth(depth int64) {
	atomic.StoreInt64(&m.welcomeQueueDepth, depth)
}

// ObserveHTTPRequest counts requests and 5xx responses.
func (m *InMemoryRecorder) ObserveHTTPRequest(_, _ string, status int, _ time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&m.httpServerErrors, 1)
	}
}
