// Package testutil provides shared test helpers for channels and HTTP
// handlers.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// DefaultTimeout bounds the channel helpers.
const DefaultTimeout = 5 * time.Second

// Recv returns the next value from ch, failing the test if none arrives
// within DefaultTimeout or ch is closed.
func Recv[T any](t testing.TB, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(DefaultTimeout):
		t.Fatalf("no value received within %s", DefaultTimeout)
	}
	var zero T
	return zero
}

// Drain collects values from ch until it is closed, failing the test if that
// takes longer than DefaultTimeout.
func Drain[T any](t testing.TB, ch <-chan T) []T {
	t.Helper()
	var out []T
	deadline := time.After(DefaultTimeout)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-deadline:
			t.Fatalf("channel not closed within %s (%d values received)", DefaultTimeout, len(out))
			return out
		}
	}
}

// WaitClosed fails the test unless ch is closed within DefaultTimeout.
func WaitClosed(t testing.TB, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(DefaultTimeout):
		t.Fatalf("channel not closed within %s", DefaultTimeout)
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// LocalRequest creates a request that appears to come from localhost, which
// the tsweb debug handlers require.
func LocalRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}
