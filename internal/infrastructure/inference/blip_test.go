package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"vqa-bot/internal/domain/entity"
)

var testImage = entity.Image{Data: []byte("\x89PNG\r\n\x1a\nfake"), MIMEType: entity.MIMEPNG}

func TestBLIPClient_Answer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req blipRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "how many dogs?", req.Inputs.Question)
		require.Equal(t, base64.StdEncoding.EncodeToString(testImage.Data), req.Inputs.Image)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"answer":"1","score":0.2},{"answer":" 2 ","score":0.7},{"answer":"3","score":0.1}]`))
	}))
	defer ts.Close()

	client := NewBLIPClient(BLIPOptions{URL: ts.URL, Token: "secret"})
	answer, err := client.Answer(context.Background(), testImage, "how many dogs?")
	require.NoError(t, err)
	require.Equal(t, "2", answer.Text)
	require.InDelta(t, 0.7, answer.Score, 1e-9)
	require.Equal(t, BackendBLIP, answer.Backend)
}

func TestBLIPClient_SingleObjectResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"yes","score":0.99}`))
	}))
	defer ts.Close()

	answer, err := NewBLIPClient(BLIPOptions{URL: ts.URL}).Answer(context.Background(), testImage, "is it red?")
	require.NoError(t, err)
	require.Equal(t, "yes", answer.Text)
}

func TestBLIPClient_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad image"}`))
	}))
	defer ts.Close()

	_, err := NewBLIPClient(BLIPOptions{URL: ts.URL}).Answer(context.Background(), testImage, "q")
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad image")
	require.Contains(t, err.Error(), "400")
}

func TestBLIPClient_RetriesWhileModelLoads(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Model is currently loading"}`))
			return
		}
		w.Write([]byte(`[{"answer":"cat","score":0.8}]`))
	}))
	defer ts.Close()

	answer, err := NewBLIPClient(BLIPOptions{URL: ts.URL, Retries: 2}).Answer(context.Background(), testImage, "what animal?")
	require.NoError(t, err)
	require.Equal(t, "cat", answer.Text)
	require.Equal(t, int32(2), calls.Load())
}

func TestParseBLIPResponse(t *testing.T) {
	_, err := parseBLIPResponse([]byte(`[]`))
	require.Error(t, err)

	_, err = parseBLIPResponse([]byte(`not json`))
	require.Error(t, err)

	_, err = parseBLIPResponse([]byte(`[{"answer":"  ","score":1}]`))
	require.Error(t, err)
}
