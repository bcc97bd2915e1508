package activity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingNotifier struct{ calls atomic.Int32 }

func (f *failingNotifier) Notify(context.Context, Event) error {
	f.calls.Add(1)
	return errors.New("unreachable")
}

func TestSinkRecordsAndSwallowsNotifierErrors(t *testing.T) {
	store := &MemoryStore{}
	notifier := &failingNotifier{}
	sink := NewSink(store, notifier, zap.NewNop())

	sink.Record(context.Background(), Event{DownloadID: "d1", TargetKey: "movie:1", Event: "failed", Message: "vanished"})
	sink.Wait()

	events, err := sink.History(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "failed", events[0].Event)
	assert.False(t, events[0].CreatedAt.IsZero())
	assert.Equal(t, int32(1), notifier.calls.Load())
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, time.Second)
	hook.delay = time.Millisecond

	err := hook.Notify(context.Background(), Event{DownloadID: "d1", TargetKey: "movie:1", Event: "completed"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "completed", got.Type)
	assert.Equal(t, "movie:1", got.Target)
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, time.Second)
	hook.delay = time.Millisecond

	err := hook.Notify(context.Background(), Event{DownloadID: "d1"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
