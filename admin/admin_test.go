package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/chatrelay/metrics"
	"github.com/cyberinferno/chatrelay/status"
)

type fixedSource struct {
	snap status.Snapshot
	err  error
}

func (s fixedSource) Current(context.Context) (status.Snapshot, error) { return s.snap, s.err }

func TestHandler_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(fixedSource{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestHandler_Metrics(t *testing.T) {
	metrics.IncConnection()

	rec := httptest.NewRecorder()
	NewHandler(fixedSource{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatrelay_connections_total")
}

func TestHandler_Clients(t *testing.T) {
	want := status.Snapshot{
		Instance:    "relay-1",
		Clients:     []uint64{1, 3},
		Connected:   2,
		LastIssued:  3,
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("returns the snapshot as json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(fixedSource{snap: want}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got status.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, want, got)
	})

	t.Run("source failure is unavailable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(fixedSource{err: assert.AnError}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clients", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("other methods are rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(fixedSource{snap: want}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/clients", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), fixedSource{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok\n", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("admin server did not shut down")
	}
}

func TestServer_RunBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = NewServer(ln.Addr().String(), fixedSource{}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin listen")
}
