package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Answer(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": " two cats \n"}]},
				"finishReason": "STOP"
			}]
		}`))
	}))
	defer ts.Close()

	client, err := NewGeminiClient(context.Background(), GeminiOptions{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	answer, err := client.Answer(context.Background(), testImage, "what is on the sofa?")
	require.NoError(t, err)
	require.Equal(t, "two cats", answer.Text)
	require.Equal(t, BackendGemini, answer.Backend)

	require.True(t, strings.HasSuffix(gotPath, DefaultGeminiModel+":generateContent"), gotPath)
	require.Contains(t, gotBody, "contents")
}

func TestGeminiClient_NoCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer ts.Close()

	client, err := NewGeminiClient(context.Background(), GeminiOptions{APIKey: "test-key", BaseURL: ts.URL})
	require.NoError(t, err)

	_, err = client.Answer(context.Background(), testImage, "q")
	require.Error(t, err)
}
