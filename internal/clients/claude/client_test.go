package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestComplete_SendsStopSequences(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Thought: I now know the final answer\nFinal Answer: {\"ok\": true}"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 12}
		}`))
	}))
	defer srv.Close()

	client, err := NewClient("sk-ant-test", WithBaseURL(srv.URL), WithMaxTokens(512))
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "Question: AAPL", []string{"\nObservation"})
	require.NoError(t, err)
	assert.Contains(t, out, "Final Answer:")

	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
	assert.Equal(t, float64(512), body["max_tokens"])
	assert.Equal(t, []any{"\nObservation"}, body["stop_sequences"])
	assert.Equal(t, "claude:claude-3-5-haiku-latest", client.Name())
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	client, err := NewClient("k", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hi", nil)
	assert.Error(t, err)
}
