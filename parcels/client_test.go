package parcels

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		switch r.URL.Path {
		case "/api/v1.0/property/0906_100_5.json":
			_, _ = w.Write([]byte("{\n  \"type\": \"Feature\"\n}\n"))
		case "/api/v1.0/property/0906_100_6.json":
			_, _ = w.Write([]byte(`<html>maintenance</html>`))
		case "/api/v1.0/property/0906_100_7.json":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	c := NewClient(Options{BaseURL: srv.URL, Region: "0906"})

	body, err := c.Fetch(context.Background(), "100", "5")
	require.NoError(t, err)
	require.Equal(t, "/api/v1.0/property/0906_100_5.json", gotPath)
	require.Equal(t, "{\n  \"type\": \"Feature\"\n}\n", string(body), "body is stored as sent")

	_, err = c.Fetch(context.Background(), "999", "1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = c.Fetch(context.Background(), "100", "6")
	require.ErrorIs(t, err, ErrInvalidJSON)

	_, err = c.Fetch(context.Background(), "100", "7")
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusTooManyRequests, he.StatusCode)

	_, err = c.Fetch(context.Background(), "", "7")
	require.Error(t, err)
}
