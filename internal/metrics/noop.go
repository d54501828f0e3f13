package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncUserCreated()                                       {}
func (n *NoopRecorder) IncUserUpdated()                                       {}
func (n *NoopRecorder) IncUserDeleted()                                       {}
func (n *NoopRecorder) IncEmailAdded()                                        {}
func (n *NoopRecorder) IncEmailDeleted()                                      {}
func (n *NoopRecorder) IncPrimaryChanged()                                    {}
func (n *NoopRecorder) AddWelcomeQueued(int)                                  {}
func (n *NoopRecorder) IncWelcomeProcessed(string)                            {}
func (n *NoopRecorder) ObserveWelcomeSendDuration(time.Duration)              {}
func (n *NoopRecorder) SetWelcomeQueueDepth(int64)                            {}
func (n *NoopRecorder) ObserveHTTPRequest(string, string, int, time.Duration) {}
