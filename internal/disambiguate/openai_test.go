package disambiguate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"upstream down","type":"server_error"}}`)
			return
		}
		msg, _ := json.Marshal(content)
		fmt.Fprintf(w, `{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, msg)
	}))
}

func TestOpenAIKeywords(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"keywords":"Dog, Beach"}`)
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "m"}, zap.NewNop())
	got, err := o.Keywords(context.Background(), "show me dogs on the beach", "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "beach"}, got)
}

func TestOpenAIUnparseableReply(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "dogs")
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "m"}, zap.NewNop())
	got, err := o.Keywords(context.Background(), "dogs", "s")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenAIFailure(t *testing.T) {
	srv := chatServer(t, http.StatusBadGateway, "")
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "m"}, zap.NewNop())
	_, err := o.Keywords(context.Background(), "dogs", "s")
	assert.Error(t, err)
}

func TestOpenAIDisabledWithoutKey(t *testing.T) {
	o := NewOpenAI(OpenAIConfig{BaseURL: "http://127.0.0.1:1", Model: "m"}, zap.NewNop())
	got, err := o.Keywords(context.Background(), "dogs", "s")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDisabled(t *testing.T) {
	got, err := Disabled{}.Keywords(context.Background(), "dogs", "s")
	require.NoError(t, err)
	assert.Empty(t, got)
}
