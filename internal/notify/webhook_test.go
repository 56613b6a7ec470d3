package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func samplePayload() ReceiptPayload {
	return ReceiptPayload{
		OrderID:       "o-1",
		TransactionID: "SQ_1735689600123_000000001",
		ReceiptNumber: "REC_89600123",
		Amount:        3250,
		Currency:      "JPY",
		SettledAt:     time.Unix(1735689600, 0).UTC(),
	}
}

func TestSendPostsReceipt(t *testing.T) {
	var got ReceiptPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewReceiptSender(srv.URL, time.Second, zerolog.Nop())
	require.NoError(t, sender.Send(context.Background(), samplePayload()))
	require.Equal(t, "SQ_1735689600123_000000001", got.TransactionID)
	require.EqualValues(t, 3250, got.Amount)
}

func TestSendTreatsNon2xxAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewReceiptSender(srv.URL, time.Second, zerolog.Nop())
	require.Error(t, sender.Send(context.Background(), samplePayload()), "non-2xx must error so the queue retries")
}

func TestSendRequiresURL(t *testing.T) {
	sender := NewReceiptSender("", time.Second, zerolog.Nop())
	require.Error(t, sender.Send(context.Background(), samplePayload()))
}
