package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWebhookDeliverPostsPayload(t *testing.T) {
	var got WebhookPayload
	var gotIdempotencyKey, gotSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		gotSecret = r.Header.Get("X-Webhook-Secret")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewWebhookDeliverer(WebhookConfig{URL: server.URL, Secret: "hunter2"})
	err := d.Deliver(context.Background(), "sam", "Reminder: check the generator", "token-1")
	require.NoError(t, err)

	require.Equal(t, "reminder.fired", got.Event)
	require.Equal(t, "sam", got.RecipientID)
	require.Equal(t, "Reminder: check the generator", got.Message)
	require.Equal(t, "token-1", got.IdempotencyToken)
	require.Equal(t, "token-1", gotIdempotencyKey)
	require.Equal(t, "hunter2", gotSecret)
}

func TestWebhookDeliverRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := NewWebhookDeliverer(WebhookConfig{URL: server.URL})
	err := d.Deliver(context.Background(), "sam", "msg", "token-2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestWebhookDeliverUnreachableHost(t *testing.T) {
	d := NewWebhookDeliverer(WebhookConfig{URL: "http://127.0.0.1:1/hook"})
	err := d.Deliver(context.Background(), "sam", "msg", "token-3")
	require.Error(t, err)
}
