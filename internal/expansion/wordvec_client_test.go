package expansion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPWordVectorClient_Similar(t *testing.T) {
	t.Run("decodes neighbors and forwards query parameters", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/similar", r.URL.Path)
			assert.Equal(t, "mauer", r.URL.Query().Get("word"))
			assert.Equal(t, "6", r.URL.Query().Get("count"))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"neighbors":[{"word":"grenzmauer","similarity":0.87,"frequency":412}]}`))
		}))
		defer srv.Close()

		client := NewHTTPWordVectorClient(srv.URL, time.Second)
		neighbors, err := client.Similar(context.Background(), "mauer", 6)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, "grenzmauer", neighbors[0].Word)
		assert.InDelta(t, 0.87, neighbors[0].Similarity, 1e-9)
		assert.Equal(t, 412, neighbors[0].Frequency)
	})

	t.Run("maps 404 to out-of-vocabulary", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewHTTPWordVectorClient(srv.URL, time.Second)
		_, err := client.Similar(context.Background(), "xyzzy", 5)
		assert.ErrorIs(t, err, ErrOutOfVocabulary)
	})

	t.Run("surfaces server errors with the status code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewHTTPWordVectorClient(srv.URL, time.Second)
		_, err := client.Similar(context.Background(), "mauer", 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("circuit opens after repeated failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewHTTPWordVectorClient(srv.URL, time.Second)
		for i := 0; i < 10; i++ {
			_, _ = client.Similar(context.Background(), "mauer", 5)
		}

		srv.Close()
		_, err := client.Similar(context.Background(), "mauer", 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "circuit breaker")
	})
}
