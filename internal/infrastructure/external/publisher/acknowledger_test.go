package publisher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/bivex/iab-client/internal/domain/valueobject"
)

type call struct {
	path string
	body map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	calls  []call
	status int
	server *httptest.Server
}

func newFakePublisher(t *testing.T, status int) *fakePublisher {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fakePublisher{status: status}
	router := gin.New()
	// acknowledge paths end in ":acknowledge", which gin cannot route by pattern
	router.NoRoute(func(c *gin.Context) {
		raw, _ := io.ReadAll(c.Request.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		f.mu.Lock()
		f.calls = append(f.calls, call{path: c.Request.URL.Path, body: body})
		f.mu.Unlock()
		c.Status(f.status)
	})
	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePublisher) acknowledger(t *testing.T) *Acknowledger {
	t.Helper()
	a, err := NewAcknowledger(context.Background(), "com.example.app", nil, nil,
		option.WithEndpoint(f.server.URL+"/"),
		option.WithHTTPClient(f.server.Client()),
	)
	require.NoError(t, err)
	return a
}

func TestAcknowledger(t *testing.T) {
	ctx := context.Background()

	t.Run("one-time product", func(t *testing.T) {
		f := newFakePublisher(t, http.StatusNoContent)

		err := f.acknowledger(t).Acknowledge(ctx, valueobject.KindInApp, "coins", "tok", "payload")

		require.NoError(t, err)
		require.Len(t, f.calls, 1)
		assert.Contains(t, f.calls[0].path, "/applications/com.example.app/purchases/products/coins/tokens/tok:acknowledge")
		assert.Equal(t, "payload", f.calls[0].body["developerPayload"])
	})

	t.Run("subscription", func(t *testing.T) {
		f := newFakePublisher(t, http.StatusNoContent)

		err := f.acknowledger(t).Acknowledge(ctx, valueobject.KindSubscription, "monthly", "tok", "")

		require.NoError(t, err)
		require.Len(t, f.calls, 1)
		assert.Contains(t, f.calls[0].path, "/purchases/subscriptions/monthly/tokens/tok:acknowledge")
	})

	t.Run("api error", func(t *testing.T) {
		f := newFakePublisher(t, http.StatusForbidden)

		err := f.acknowledger(t).Acknowledge(ctx, valueobject.KindInApp, "coins", "tok", "")
		assert.Error(t, err)
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newFakePublisher(t, http.StatusNoContent)

		err := f.acknowledger(t).Acknowledge(ctx, "bogus", "coins", "tok", "")
		assert.Error(t, err)
		assert.Empty(t, f.calls)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := NewAcknowledger(ctx, "com.example.app", []byte("{not json"), nil)
		assert.Error(t, err)
	})
}
