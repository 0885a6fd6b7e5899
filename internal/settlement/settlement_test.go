package settlement_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantapay/payrolld/internal/settlement"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTransfer_Success(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := settlement.NewClient(discardLogger(), server.URL)

	err := client.Transfer(context.Background(), "ETH", "0xalice", 1500)
	require.NoError(t, err)
	assert.Equal(t, "ETH", got["asset"])
	assert.Equal(t, "0xalice", got["to"])
	assert.InDelta(t, 1500, got["amount"], 0)
}

func TestTransfer_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := settlement.NewClient(discardLogger(), server.URL)

	err := client.Transfer(context.Background(), "ETH", "0xalice", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestTransfer_ClientErrorIsFinal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := settlement.NewClient(discardLogger(), server.URL)

	err := client.Transfer(context.Background(), "ETH", "0xalice", 10)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
