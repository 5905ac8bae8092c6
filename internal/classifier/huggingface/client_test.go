package huggingface_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greengig/greengig/internal/classifier"
	"github.com/greengig/greengig/internal/classifier/huggingface"
	"github.com/greengig/greengig/internal/provider/resilience"
)

func newTestClient(t *testing.T, baseURL string) *huggingface.Client {
	t.Helper()
	client, err := huggingface.NewClient(huggingface.ClientConfig{
		Model:   huggingface.PrimaryModel,
		BaseURL: baseURL,
		Token:   "hf_test",
		Timeout: time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestClient_Classify(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/microsoft/resnet-50", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, image, body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"label": "passenger car, coach, carriage", "score": 0.12},
			{"label": "mountain bike, all-terrain bike", "score": 0.71},
			{"label": "unicycle"}
		]`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/models")
	assert.Equal(t, huggingface.PrimaryModel, client.Name())

	preds, err := client.Classify(context.Background(), image)
	require.NoError(t, err)
	require.Len(t, preds, 3)

	assert.Equal(t, "mountain bike, all-terrain bike", preds[0].Label)
	assert.InDelta(t, 0.71, preds[0].Score, 1e-9)
	// Missing score counts as 0.5.
	assert.Equal(t, "unicycle", preds[1].Label)
	assert.Equal(t, 0.5, preds[1].Score)
}

func TestClient_ModelLoadingIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Model facebook/detr-resnet-50 is currently loading","estimated_time":20.0}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Classify(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.ErrorIs(t, err, classifier.ErrUnavailable)
	assert.Contains(t, err.Error(), "currently loading")
}

func TestClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid credentials in Authorization header"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Classify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, classifier.ErrUnavailable)
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Classify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, classifier.ErrUnavailable)
}

func TestClient_DeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, server.URL).Classify(ctx, []byte("img"))
	assert.ErrorIs(t, err, classifier.ErrTimeout)
}

func TestClient_NoRetryOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Classify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, classifier.ErrUnavailable)
	assert.Equal(t, 1, calls)
}

func TestClient_RegistersBreaker(t *testing.T) {
	registry := resilience.NewRegistry()
	_, err := huggingface.NewClient(huggingface.ClientConfig{
		Model:    huggingface.FallbackModel,
		Registry: registry,
	})
	require.NoError(t, err)

	assert.NotNil(t, registry.GetHealth(huggingface.FallbackModel))
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := huggingface.NewClient(huggingface.ClientConfig{})
	assert.Error(t, err)
}
