package nomad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/config"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/utils"
)

const (
	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 32 * 1024 * 1024

	UserAgent = "nomad-reconciler"
)

// Params become query parameters, ex: {"namespace": "*"}.
type Params map[string]string

// Namespace is a shorthand for the only filter the reconciler uses.
func Namespace(ns string) Params {
	if ns == "" {
		return nil
	}
	return Params{"namespace": ns}
}

// Options configures a Client.
type Options struct {
	Endpoint   string        // ex: "http://127.0.0.1:4646"
	Version    string        // API path segment, default "v1"
	Token      string        // optional bearer token
	Timeout    time.Duration // open/read/write timeout, default 30s
	Verbose    bool          // dump request/response bodies at debug level
	Headers    http.Header   // extra headers sent on POST (default content-type: application/json)
	Instrument func(http.RoundTripper) http.RoundTripper
}

// Client is a typed gateway to the subset of the Nomad HTTP API the
// reconciler needs. Calls are sequential; the underlying connection is
// created on first use and reused for the client's lifetime.
type Client struct {
	endpoint string
	version  string
	token    string
	timeout  time.Duration
	verbose  bool
	headers  http.Header
	wrap     func(http.RoundTripper) http.RoundTripper
	logger   logger.Logger

	once sync.Once
	http *http.Client
}

// New validates the endpoint and returns a client. No connection is opened.
func New(opts Options, log logger.Logger) (*Client, error) {
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if err := config.ValidateEndpoint(endpoint); err != nil {
		return nil, &EndpointError{Endpoint: opts.Endpoint, Err: err}
	}
	if opts.Version == "" {
		opts.Version = config.DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultAPITimeout
	}
	if opts.Headers == nil {
		opts.Headers = http.Header{"Content-Type": []string{"application/json"}}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		endpoint: endpoint,
		version:  strings.Trim(opts.Version, "/"),
		token:    opts.Token,
		timeout:  opts.Timeout,
		verbose:  opts.Verbose,
		headers:  opts.Headers,
		wrap:     opts.Instrument,
		logger:   log,
	}, nil
}

func (c *Client) Endpoint() string { return c.endpoint }
func (c *Client) Version() string  { return c.version }

// HasToken reports whether a non-empty bearer token was configured.
func (c *Client) HasToken() bool { return c.token != "" }

// ListJobs returns GET /{version}/jobs.
func (c *Client) ListJobs(ctx context.Context, params Params) ([]JobStub, error) {
	var out []JobStub
	return out, c.get(ctx, "jobs", params, &out)
}

// GetJob returns GET /{version}/job/{id}.
func (c *Client) GetJob(ctx context.Context, id string, params Params) (*Job, error) {
	var out Job
	if err := c.get(ctx, "job/"+url.PathEscape(id), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobAllocations returns GET /{version}/job/{id}/allocations.
func (c *Client) ListJobAllocations(ctx context.Context, jobID string, params Params) ([]AllocationStub, error) {
	var out []AllocationStub
	return out, c.get(ctx, "job/"+url.PathEscape(jobID)+"/allocations", params, &out)
}

// ListJobServices returns GET /{version}/job/{id}/services.
func (c *Client) ListJobServices(ctx context.Context, jobID string, params Params) ([]ServiceRegistration, error) {
	var out []ServiceRegistration
	return out, c.get(ctx, "job/"+url.PathEscape(jobID)+"/services", params, &out)
}

// ListServices returns GET /{version}/services.
func (c *Client) ListServices(ctx context.Context, params Params) ([]ServiceNamespace, error) {
	var out []ServiceNamespace
	return out, c.get(ctx, "services", params, &out)
}

// GetService returns the registrations of one service, GET /{version}/service/{name}.
func (c *Client) GetService(ctx context.Context, name string, params Params) ([]ServiceRegistration, error) {
	var out []ServiceRegistration
	return out, c.get(ctx, "service/"+url.PathEscape(name), params, &out)
}

// GetAllocation returns GET /{version}/allocation/{id}.
func (c *Client) GetAllocation(ctx context.Context, id string, params Params) (*Allocation, error) {
	var out Allocation
	if err := c.get(ctx, "allocation/"+url.PathEscape(id), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteService issues DELETE /{version}/service/{name}/{id}. The boolean is
// true iff the API answered exactly 200. The error is non-nil only when the
// API could not be reached or answered 403.
func (c *Client) DeleteService(ctx context.Context, name, id string, params Params) (bool, error) {
	resp, err := c.do(ctx, http.MethodDelete, "service/"+url.PathEscape(name)+"/"+url.PathEscape(id), params, nil)
	if err != nil {
		return false, err
	}
	body, _ := readBody(resp)

	if resp.StatusCode == http.StatusForbidden {
		return false, &NotAuthorizedError{ResponseError: *newResponseError(resp, body)}
	}
	return resp.StatusCode == http.StatusOK, nil
}

// RestartAllocation issues POST /{version}/client/allocation/{id}/restart.
func (c *Client) RestartAllocation(ctx context.Context, id string, body RestartRequest, params Params) (*WriteResponse, error) {
	var out WriteResponse
	if err := c.post(ctx, "client/allocation/"+url.PathEscape(id)+"/restart", params, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopAllocation issues POST /{version}/allocation/{id}/stop.
func (c *Client) StopAllocation(ctx context.Context, id string, params Params) (*WriteResponse, error) {
	var out WriteResponse
	if err := c.post(ctx, "allocation/"+url.PathEscape(id)+"/stop", params, struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, params Params, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.handleResponse(resp, out)
}

func (c *Client) post(ctx context.Context, path string, params Params, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("nomad: encoding request body: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, params, data)
	if err != nil {
		return err
	}
	return c.handleResponse(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, params Params, body []byte) (*http.Response, error) {
	target := c.uri(path, params)

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		for k, vs := range c.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	if c.HasToken() {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.connection().Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: target, Err: err}
	}
	return resp, nil
}

// handleResponse maps 200/204 to success, 403 to NotAuthorizedError and
// anything else to ResponseError.
func (c *Client) handleResponse(resp *http.Response, out any) error {
	body, err := readBody(resp)
	if err != nil {
		return &TransportError{Method: resp.Request.Method, URL: resp.Request.URL.String(), Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("nomad: decoding %s: %w", resp.Request.URL.Path, err)
		}
		return nil
	case http.StatusForbidden:
		return &NotAuthorizedError{ResponseError: *newResponseError(resp, body)}
	default:
		return newResponseError(resp, body)
	}
}

func (c *Client) uri(path string, params Params) string {
	u := c.endpoint + "/" + c.version + "/" + path
	if len(params) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return u + "?" + q.Encode()
}

// connection lazily builds the shared http.Client.
func (c *Client) connection() *http.Client {
	c.once.Do(func() {
		var rt http.RoundTripper = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   c.timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   c.timeout,
			ResponseHeaderTimeout: c.timeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   2,
		}
		if c.verbose {
			rt = &verboseTransport{next: rt, logger: c.logger}
		}
		if c.wrap != nil {
			rt = c.wrap(rt)
		}
		c.http = &http.Client{
			Transport: rt,
			// open + write + read, each bounded by the configured timeout
			Timeout: 3 * c.timeout,
		}
	})
	return c.http
}

func newResponseError(resp *http.Response, body []byte) *ResponseError {
	return &ResponseError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	defer utils.Close(resp.Body)
	return io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
}
