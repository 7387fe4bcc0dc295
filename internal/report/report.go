// internal/report/report.go
package report

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

var enabled bool

// Init configures Sentry error reporting. An empty DSN disables reporting
// without error so local development needs no setup.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		enabled = false
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags["service"] = "outreach-backend"
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	enabled = true
	return nil
}

// CaptureError sends err to Sentry with optional tags. No-op when disabled.
func CaptureError(err error, tags map[string]string) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent. Call before process exit.
func Flush() {
	if !enabled {
		return
	}
	sentry.Flush(2 * time.Second)
}
