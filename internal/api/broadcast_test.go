package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/sweeper/internal/monitoring"
	"github.com/banshee-data/sweeper/internal/sweep"
	"github.com/banshee-data/sweeper/internal/testutil"
)

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	id1, c1 := b.Subscribe()
	_, c2 := b.Subscribe()
	assert.NotEqual(t, "", id1)
	assert.Equal(t, 2, b.Len())

	b.Publish(sweep.Event{Kind: sweep.EventLog, Seq: 1, Text: "hello"})
	assert.Equal(t, "hello", testutil.Recv(t, c1).Text)
	assert.Equal(t, "hello", testutil.Recv(t, c2).Text)

	b.Unsubscribe(id1)
	assert.Empty(t, testutil.Drain(t, c1))
	assert.Equal(t, 1, b.Len())
	b.Unsubscribe(id1) // no-op

	b.Close()
	assert.Empty(t, testutil.Drain(t, c2))
	assert.Equal(t, 0, b.Len())

	_, late := b.Subscribe()
	assert.Empty(t, testutil.Drain(t, late))
}

func TestBroadcaster_DropsWhenFull(t *testing.T) {
	b := NewBroadcaster()
	id, c := b.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(sweep.Event{Seq: i + 1})
	}
	b.Unsubscribe(id)
	got := testutil.Drain(t, c)
	assert.Len(t, got, subscriberBuffer)
	assert.Equal(t, 1, got[0].Seq)
}

func TestLoggingMiddleware(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.(http.Flusher).Flush()
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sweep?x=1", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.True(t, w.Flushed)
	if assert.Len(t, logged, 1) {
		assert.Contains(t, logged[0], "418")
		assert.Contains(t, logged[0], "GET")
		assert.Contains(t, logged[0], "/api/sweep?x=1")
	}
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"409"+colorReset, statusCodeColor(409))
	assert.Equal(t, colorBoldRed+"502"+colorReset, statusCodeColor(502))
	assert.Equal(t, "100", statusCodeColor(100))
}
