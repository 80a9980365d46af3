package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func modelAnswer(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	encoded, _ := json.Marshal(resp)
	return string(encoded)
}

func TestExtractEAN(t *testing.T) {
	var gotPath, gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		fmt.Fprint(w, modelAnswer(`{"ean":"5012345678900","confidence":0.92}`))
	})

	result, err := client.ExtractEAN(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "5012345678900", result.EAN)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
	assert.Equal(t, "test-key", gotKey)
	assert.True(t, strings.HasSuffix(gotPath, ":generateContent"), "path %q", gotPath)
}

func TestExtractEANTolerantOfCodeFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelAnswer("```json\n{\"ean\":\"630870296793\",\"confidence\":0.7}\n```"))
	})

	result, err := client.ExtractEAN(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.Equal(t, "630870296793", result.EAN)
}

func TestExtractEANRejectsMalformedDigits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelAnswer(`{"ean":"12345","confidence":0.9}`))
	})

	result, err := client.ExtractEAN(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.Empty(t, result.EAN)
	assert.Zero(t, result.Confidence)
}

func TestExtractEANNoBarcode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelAnswer(`{"ean":"","confidence":0}`))
	})

	result, err := client.ExtractEAN(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.Empty(t, result.EAN)
}

func TestExtractEANServiceError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	})

	_, err := client.ExtractEAN(context.Background(), []byte("img"), "")
	assert.Error(t, err)
}

func TestExtractEANProseAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, modelAnswer("The barcode appears to be 5012345678900."))
	})

	_, err := client.ExtractEAN(context.Background(), []byte("img"), "")
	assert.Error(t, err)
}
