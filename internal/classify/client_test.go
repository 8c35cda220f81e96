package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adscrub/internal/domain"
)

func testFeatures(n int) []domain.Features {
	out := make([]domain.Features, n)
	for i := range out {
		out[i] = domain.Features{Tag: "DIV", ID: "cand", KeywordHit: true}
	}
	return out
}

func TestPredictDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req domain.PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.AdCandidates, 2)

		json.NewEncoder(w).Encode(domain.PredictResponse{
			Predictions: []domain.Prediction{
				{Index: 1, IsAd: true, Confidence: 92, Selector: "#cand"},
			},
			TotalScanned: 2,
			AdsDetected:  1,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{}, zap.NewNop())
	resp, err := c.Predict(context.Background(), testFeatures(2))
	require.NoError(t, err)

	require.Len(t, resp.Predictions, 1)
	assert.Equal(t, 1, resp.Predictions[0].Index)
	assert.Equal(t, 92, resp.Predictions[0].Confidence)
	assert.Equal(t, 2, resp.TotalScanned)
}

func TestPredictEmptyBatchFailsFast(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{}, zap.NewNop())
	_, err := c.Predict(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestPredictTimeoutIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{Timeout: 50 * time.Millisecond, MaxRetries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	_, err := c.Predict(context.Background(), testFeatures(1))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPredictRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			// Drop the connection mid-flight; the client sees a transport
			// error, not an HTTP status.
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(domain.PredictResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{MaxRetries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	resp, err := c.Predict(context.Background(), testFeatures(1))

	require.NoError(t, err)
	assert.Empty(t, resp.Predictions)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPredictGivesUpAfterRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{MaxRetries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	_, err := c.Predict(context.Background(), testFeatures(1))

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPredictHTTPErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{MaxRetries: 2, BackoffBase: time.Millisecond}, zap.NewNop())
	_, err := c.Predict(context.Background(), testFeatures(1))

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPredictRejectsMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions": "not-a-list"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{MaxRetries: 0, BackoffBase: time.Millisecond}, zap.NewNop())
	_, err := c.Predict(context.Background(), testFeatures(1))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPredictRejectsOutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.PredictResponse{
			Predictions: []domain.Prediction{{Index: 7, Confidence: 90, Selector: "#x"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{}, zap.NewNop())
	_, err := c.Predict(context.Background(), testFeatures(2))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPredictTruncatesOversizedBatch(t *testing.T) {
	var got int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req domain.PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		atomic.StoreInt32(&got, int32(len(req.AdCandidates)))
		json.NewEncoder(w).Encode(domain.PredictResponse{
			Predictions: []domain.Prediction{{Index: 1, Confidence: 90, Selector: "#cand"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{MaxBatch: 2}, zap.NewNop())
	resp, err := c.Predict(context.Background(), testFeatures(5))

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&got))
	assert.Len(t, resp.Predictions, 1)
}

func TestHealth(t *testing.T) {
	status := int32(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{}, zap.NewNop())
	assert.NoError(t, c.Health(context.Background()))

	atomic.StoreInt32(&status, http.StatusServiceUnavailable)
	assert.Error(t, c.Health(context.Background()))
}
