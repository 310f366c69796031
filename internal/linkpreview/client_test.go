package linkpreview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Preview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("X-Linkpreview-Api-Key"))
		require.Equal(t, "https://example.com/p/sql?x=1", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"title":"SQL tips","description":null,"url":"https://example.com/p/sql"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	p, err := c.Preview(context.Background(), "https://example.com/p/sql?x=1")
	require.NoError(t, err)
	require.Equal(t, "SQL tips", p.Title)
	require.Equal(t, "", p.Description)
	require.Equal(t, "https://example.com/p/sql", p.URL)
}

func TestClient_PreviewErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":423}`, http.StatusLocked)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key").Preview(context.Background(), "https://x")
	require.Error(t, err)

	_, err = New(srv.URL, "").Preview(context.Background(), "https://x")
	require.Error(t, err)
}

func TestClient_RateHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", WithRate(0.01), WithHTTPClient(srv.Client()))
	_, err := c.Preview(context.Background(), "https://a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Preview(ctx, "https://b")
	require.Error(t, err)
}
