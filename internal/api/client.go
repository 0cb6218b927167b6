package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gv-go/internal/gv"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 << 20

// ErrMissingBaseURL indicates that the client was configured without an API address.
var ErrMissingBaseURL = errors.New("api: base url is required")

// Options configures the REST client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Session        *gv.Session
	Logger         gv.Logger
	IDGen          gv.IDGenerator
	UserAgent      string
}

// Client performs authenticated HTTP calls against the platform API.
// The bearer token is read from the session on every request.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    *gv.Session
	logger     gv.Logger
	idgen      gv.IDGenerator
	userAgent  string
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("api: parsing base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported base url scheme %q", base.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	session := opts.Session
	if session == nil {
		session = gv.NewSession(nil, nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = gv.NewNopLogger()
	}
	idgen := opts.IDGen
	if idgen == nil {
		idgen = gv.UUIDGenerator{}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "gv"
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		session:    session,
		logger:     logger,
		idgen:      idgen,
		userAgent:  userAgent,
	}, nil
}

// Remote builds the full set of resource clients the service uses.
func (c *Client) Remote() gv.Remote {
	return gv.Remote{
		Auth:          NewAuth(c),
		Donations:     NewDonations(c),
		Requests:      NewResource[gv.Request](c, gv.ResourceRequests),
		Verifications: NewResource[gv.Verification](c, gv.ResourceVerifications),
		Notifications: NewNotifications(c),
		Posts:         NewPosts(c),
	}
}

// request describes one call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	// write marks endpoints that require a credential.
	write bool
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return bytes.NewReader(b), nil
}

// do performs r and returns the raw response body of a 2xx response.
// Every failure is an *gv.Error.
func (c *Client) do(ctx context.Context, r request) (int, []byte, error) {
	token := c.session.Token()
	if r.write && token == "" {
		return 0, nil, &gv.Error{Kind: gv.KindUnauthenticated, Message: "authentication required"}
	}

	u := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return 0, nil, &gv.Error{Kind: gv.KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	requestID := c.idgen.New()
	req.Header.Set("X-Request-ID", requestID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", r.method, "path", r.path, "request_id", requestID, "error", err)
		return 0, nil, &gv.Error{Kind: gv.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, &gv.Error{Kind: gv.KindNetwork, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	c.logger.Debug("request", "method", r.method, "path", r.path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start).Truncate(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, errorFromResponse(resp.StatusCode, body)
	}
	return resp.StatusCode, body, nil
}

// decode unmarshals a 2xx body, mapping failures to MalformedResponse.
func decode(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return gv.Malformed(errors.New("empty response body"))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return gv.Malformed(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
