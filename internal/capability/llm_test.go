package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clipforge/highlighter/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestLLMClientCallDecodesValidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{{"topic": "intro", "summary": "says hello"}})
	}))
	defer srv.Close()

	client := NewLLMClient(srv.URL, "test-key", "test-provider")
	var out []struct {
		Topic   string `json:"topic"`
		Summary string `json:"summary"`
	}
	err := client.Call(context.Background(), pipeline.LLMOutline, map[string]string{"transcript": "hello world"}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "intro", out[0].Topic)
}

func TestLLMClientRepairsInvalidResponseOnce(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"not": "an array"}`))
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{{"topic": "intro", "summary": "fixed"}})
	}))
	defer srv.Close()

	client := NewLLMClient(srv.URL, "", "")
	var out []struct {
		Topic string `json:"topic"`
	}
	err := client.Call(context.Background(), pipeline.LLMOutline, map[string]string{}, &out)
	require.NoError(t, err)
	require.Equal(t, 2, calls, "an invalid first response should trigger exactly one repair call")
	require.Len(t, out, 1)
}
