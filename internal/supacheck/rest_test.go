package supacheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRESTClientValidation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		key     string
		wantErr error
	}{
		{name: "missing url", url: "", key: "anon", wantErr: ErrMissingURL},
		{name: "blank url", url: "   ", key: "anon", wantErr: ErrMissingURL},
		{name: "missing key", url: "https://abc.supabase.co", key: "", wantErr: ErrMissingKey},
		{name: "not a url", url: "abc.supabase.co", key: "anon", wantErr: ErrInvalidURL},
		{name: "wrong scheme", url: "ftp://abc.supabase.co", key: "anon", wantErr: ErrInvalidURL},
		{name: "unparsable", url: "https://abc supabase.co/%zz", key: "anon", wantErr: ErrInvalidURL},
		{name: "valid", url: "https://abc.supabase.co", key: "anon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewRESTClient(tt.url, tt.key)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestRESTClientSelect(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/users", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "supacheck/"+Version, r.Header.Get("X-Client-Info"))
		_, err := uuid.Parse(r.Header.Get("X-Request-Id"))
		assert.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"email":"sam@example.com"}]`))
	}))
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "anon-key")
	require.NoError(t, err)

	resp, err := c.Select(context.Background(), "users", "*", 1)
	require.NoError(t, err)
	require.Nil(t, resp.Err)

	require.Len(t, resp.Rows, 1)
	assert.Equal(t, json.Number("1"), resp.Rows[0]["id"])
	assert.Equal(t, "sam@example.com", resp.Rows[0]["email"])
	assert.Equal(t, []string{"email", "id"}, resp.Columns)
}

func TestRESTClientSelectKeepsBasePath(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewRESTClient(srv.URL+"/project/", "anon-key")
	require.NoError(t, err)

	resp, err := c.Select(context.Background(), "users", "id,email", 1)
	require.NoError(t, err)
	assert.Equal(t, "/project/rest/v1/users", gotPath)
	assert.NotNil(t, resp.Rows)
	assert.Empty(t, resp.Rows)
}

func TestRESTClientSelectTruncatesToLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	}))
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "anon-key")
	require.NoError(t, err)

	resp, err := c.Select(context.Background(), "users", "*", 1)
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, json.Number("1"), resp.Rows[0]["id"])
}

func TestRESTClientSelectReportedError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"42P01","details":null,"hint":null,"message":"relation \"public.missing\" does not exist"}`))
	}))
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "anon-key")
	require.NoError(t, err)

	resp, err := c.Select(context.Background(), "missing", "*", 1)
	require.NoError(t, err)
	require.NotNil(t, resp.Err)

	assert.Equal(t, "42P01", resp.Err.Code)
	assert.Equal(t, `relation "public.missing" does not exist`, resp.Err.Message)
	assert.Equal(t, http.StatusNotFound, resp.Err.Status)
	assert.Empty(t, resp.Rows)
}

func TestRESTClientSelectNonJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "plain text", body: "upstream unavailable", message: "upstream unavailable"},
		{name: "empty body", body: "", message: http.StatusText(http.StatusBadGateway)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewRESTClient(srv.URL, "anon-key")
			require.NoError(t, err)

			resp, err := c.Select(context.Background(), "users", "*", 1)
			require.NoError(t, err)
			require.NotNil(t, resp.Err)
			assert.Equal(t, tt.message, resp.Err.Message)
			assert.Equal(t, http.StatusBadGateway, resp.Err.Status)
		})
	}
}

func TestRESTClientSelectUndecodableBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "anon-key")
	require.NoError(t, err)

	_, err = c.Select(context.Background(), "users", "*", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestRESTClientSelectUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := NewRESTClient(addr, "anon-key")
	require.NoError(t, err)

	resp, err := c.Select(context.Background(), "users", "*", 1)
	require.Error(t, err)
	assert.Nil(t, resp.Err)
	assert.Nil(t, resp.Rows)
}

func TestRESTClientSelectCancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "anon-key", WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Select(ctx, "users", "*", 1)
	require.ErrorIs(t, err, context.Canceled)
}
