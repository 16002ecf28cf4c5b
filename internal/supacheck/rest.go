package supacheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const Version = "0.1.0"

// RESTClient queries a Supabase project through its PostgREST endpoint.
type RESTClient struct {
	baseURL    *url.URL
	key        string
	httpClient *http.Client
	requestID  func() string
}

type RESTOption func(*RESTClient)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(rc *RESTClient) {
		if c != nil {
			rc.httpClient = c
		}
	}
}

func NewRESTClient(rawURL, key string, opts ...RESTOption) (*RESTClient, error) {
	rawURL = strings.TrimSpace(rawURL)
	key = strings.TrimSpace(key)

	if rawURL == "" {
		return nil, ErrMissingURL
	}
	if key == "" {
		return nil, ErrMissingKey
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q must be an absolute http or https URL", ErrInvalidURL, rawURL)
	}

	c := &RESTClient{
		baseURL:    u,
		key:        key,
		httpClient: http.DefaultClient,
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Select fetches up to limit rows of table. A non-2xx answer from the service
// is returned in Response.Err; transport and decoding failures are returned as
// the error.
func (c *RESTClient) Select(ctx context.Context, table, columns string, limit int) (Response, error) {
	if strings.TrimSpace(table) == "" {
		return Response{}, fmt.Errorf("table name cannot be empty")
	}
	if limit <= 0 {
		return Response{}, fmt.Errorf("limit must be > 0, got %d", limit)
	}
	if strings.TrimSpace(columns) == "" {
		columns = "*"
	}

	endpoint := c.baseURL.JoinPath("rest", "v1", table)
	q := url.Values{}
	q.Set("select", columns)
	q.Set("limit", strconv.Itoa(limit))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Info", "supacheck/"+Version)
	req.Header.Set("X-Request-Id", c.requestID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{Err: decodeAPIError(resp.StatusCode, body)}, nil
	}

	var rows []Row
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	if rows == nil {
		rows = make([]Row, 0)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	return Response{Columns: columnsOf(rows), Rows: rows}, nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Unmarshal(trimmed, apiErr) == nil && apiErr.Message != "" {
		return apiErr
	}

	apiErr = &APIError{Status: status, Message: string(trimmed)}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
