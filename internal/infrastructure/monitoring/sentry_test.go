package monitoring

import (
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/infrastructure/config"
)

// events never leave the process: BeforeSend drops them
const testDSN = "https://public@sentry.example.com/1"

type captured struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (c *captured) hook(opts *sentry.ClientOptions) {
	opts.BeforeSend = func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, event)
		return nil
	}
}

func TestSentryReporter(t *testing.T) {
	t.Run("captures billing errors with tags", func(t *testing.T) {
		var c captured
		reporter, err := NewSentryReporter(config.SentryConfig{DSN: testDSN, Environment: "test"}, nil, c.hook)
		require.NoError(t, err)

		reporter.Report(domainErrors.PurchaseDataError(6, "failed"), map[string]string{"command": "fetch:purchases"})

		require.Len(t, c.events, 1)
		assert.Equal(t, "fetch:purchases", c.events[0].Tags["command"])
		assert.Equal(t, "6", c.events[0].Tags["billing_code"])
	})

	t.Run("plain errors have no code tag", func(t *testing.T) {
		var c captured
		reporter, err := NewSentryReporter(config.SentryConfig{DSN: testDSN}, nil, c.hook)
		require.NoError(t, err)

		reporter.Report(errors.New("boom"), nil)

		require.Len(t, c.events, 1)
		_, ok := c.events[0].Tags["billing_code"]
		assert.False(t, ok)
	})

	t.Run("nil error is ignored", func(t *testing.T) {
		var c captured
		reporter, err := NewSentryReporter(config.SentryConfig{DSN: testDSN}, nil, c.hook)
		require.NoError(t, err)

		reporter.Report(nil, nil)
		assert.Empty(t, c.events)
	})

	t.Run("invalid dsn", func(t *testing.T) {
		_, err := NewSentryReporter(config.SentryConfig{DSN: "::not a dsn"}, nil)
		assert.Error(t, err)
	})
}
