// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Welcome job outcomes passed to IncWelcomeProcessed.
const (
	WelcomeSent    = "sent"
	WelcomeRetried = "retried"
	WelcomeDead    = "dead"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Account metrics
	IncUserCreated()
	IncUserUpdated()
	IncUserDeleted()
	IncEmailAdded()
	IncEmailDeleted()
	IncPrimaryChanged()

	// Welcome mail pipeline metrics
	AddWelcomeQueued(n int)
	IncWelcomeProcessed(status string)
	ObserveWelcomeSendDuration(duration time.Duration)
	SetWelcomeQueueDepth(depth int64)

	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}
