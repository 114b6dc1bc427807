package upstream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/typerank/internal/common"
	"github.com/dmitrijs2005/typerank/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 2*time.Second, "time", 60, testLogger())
	return c, srv
}

func TestClient_PersonalBests_PicksMaximumAcrossVariants(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "ApeKey key-1", r.Header.Get("Authorization"))
		io.WriteString(w, `{"message":"ok","data":{"60":[
			{"wpm":88.2,"acc":96.1,"language":"english"},
			{"wpm":91.7,"acc":94.0,"language":"english_1k"},
			{"wpm":85.0,"acc":99.0,"language":"latvian"}
		],"15":[{"wpm":120,"acc":99}]}}`)
	})

	c, _ := newTestClient(t, mux)

	res, err := c.BestQualifyingResult(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	require.Equal(t, 92, res.Score)
	require.Equal(t, 94.0, res.Accuracy)
	require.NotEmpty(t, res.Raw)
}

func TestClient_FallsBackToLastResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{"15":[{"wpm":120,"acc":99}]}}`)
	})
	mux.HandleFunc("/results/last", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{"mode":"time","mode2":"60","wpm":77.4,"acc":95.55}}`)
	})

	c, _ := newTestClient(t, mux)

	res, err := c.BestQualifyingResult(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	require.Equal(t, 77, res.Score)
	require.Equal(t, 95.55, res.Accuracy)
}

func TestClient_FallsBackToRecentWindow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{}}`)
	})
	mux.HandleFunc("/results/last", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{"mode":"words","mode2":"25","wpm":50,"acc":90}}`)
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":[
			{"mode":"words","mode2":"25","wpm":50,"acc":90},
			{"mode":"time","mode2":"60","wpm":68.9,"acc":93.2},
			{"mode":"time","mode2":"60","wpm":80,"acc":99}
		]}`)
	})

	c, _ := newTestClient(t, mux)

	res, err := c.BestQualifyingResult(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	// first (most recent) qualifying entry wins, not the best one
	require.Equal(t, 69, res.Score)
}

func TestClient_NoQualifyingResultAnywhere(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{}}`)
	})
	mux.HandleFunc("/results/last", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{"mode":"words","mode2":"25","wpm":50,"acc":90}}`)
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":[]}`)
	})

	c, _ := newTestClient(t, mux)

	_, err := c.BestQualifyingResult(context.Background(), "alice", "key-1")
	require.ErrorIs(t, err, common.ErrNoQualifyingResult)
}

func TestClient_AuthRejectionShortCircuitsChain(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	c, _ := newTestClient(t, mux)

	_, err := c.BestQualifyingResult(context.Background(), "alice", "bad-key")
	require.ErrorIs(t, err, common.ErrUnauthorized)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "auth rejection must not burn the fallback calls")
}

func TestClient_RetriesPersonalBestsOnTransientFailure(t *testing.T) {
	oldDelays := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { retryDelays = oldDelays })

	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"message":"ok","data":{"60":[{"wpm":70,"acc":95}]}}`)
	})

	c, _ := newTestClient(t, mux)

	res, err := c.BestQualifyingResult(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	require.Equal(t, 70, res.Score)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ClampsUpstreamNoise(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{"60":[{"wpm":5000,"acc":150}]}}`)
	})

	c, _ := newTestClient(t, mux)

	res, err := c.BestQualifyingResult(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	require.Equal(t, 500, res.Score)
	require.Equal(t, 100.0, res.Accuracy)
}

func TestClient_NegativeScoreClampedToZero(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/personalBests", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","data":{"60":[{"wpm":-5,"acc":-1}]}}`)
	})

	c, _ := newTestClient(t, mux)

	res, err := c.BestQualifyingResult(context.Background(), "alice", "key-1")
	require.NoError(t, err)
	require.Equal(t, 0, res.Score)
	require.Equal(t, 0.0, res.Accuracy)
}
