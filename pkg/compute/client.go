// Package compute talks to the remote raster-compute service: it materializes
// metadata of deferred graphs and submits export tasks.
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/resilience"
)

const defaultBaseURL = "https://earthengine.googleapis.com/v1"

// Client performs compute service operations.
type Client interface {
	CollectionInfo(ctx context.Context, c graph.Collection) (*CollectionInfo, error)
	ImageInfo(ctx context.Context, img graph.Image) (*ImageInfo, error)
	StartExport(ctx context.Context, req ExportRequest) (*Task, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry overrides the retry policy applied to metadata requests.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	project string
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a compute service client for a cloud project.
func NewClient(project, token string, opts ...Option) Client {
	c := &httpClient{
		project: project,
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 5 * time.Minute,
		},
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("compute", "value:compute")
	}
	return c
}

type computeRequest struct {
	Expression *graph.Expression `json:"expression"`
}

type computeResponse struct {
	Result json.RawMessage `json:"result"`
}

type exportRequest struct {
	Expression *graph.Expression `json:"expression"`
	ExportRequest
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *httpClient) CollectionInfo(ctx context.Context, coll graph.Collection) (*CollectionInfo, error) {
	if coll.IsZero() {
		return nil, eris.New("compute: empty collection graph")
	}
	var info CollectionInfo
	if err := c.computeValue(ctx, coll.Node(), &info); err != nil {
		return nil, eris.Wrap(err, "compute: collection info")
	}
	return &info, nil
}

func (c *httpClient) ImageInfo(ctx context.Context, img graph.Image) (*ImageInfo, error) {
	if img.IsZero() {
		return nil, eris.New("compute: empty image graph")
	}
	var info ImageInfo
	if err := c.computeValue(ctx, img.Node(), &info); err != nil {
		return nil, eris.Wrap(err, "compute: image info")
	}
	return &info, nil
}

// StartExport submits once. Callers decide whether to retry.
func (c *httpClient) StartExport(ctx context.Context, req ExportRequest) (*Task, error) {
	if req.Image.IsZero() {
		return nil, eris.New("compute: export without image")
	}
	expr, err := graph.Encode(req.Image.Node())
	if err != nil {
		return nil, eris.Wrap(err, "compute: encode export image")
	}

	var task Task
	if err := c.post(ctx, "/image:export", exportRequest{Expression: expr, ExportRequest: req}, &task); err != nil {
		return nil, eris.Wrapf(err, "compute: start export %s", req.Description)
	}
	if task.Description == "" {
		task.Description = req.Description
	}
	return &task, nil
}

func (c *httpClient) computeValue(ctx context.Context, n *graph.Node, out any) error {
	expr, err := graph.Encode(n)
	if err != nil {
		return eris.Wrap(err, "compute: encode expression")
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*computeResponse, error) {
		var r computeResponse
		if err := c.post(ctx, "/value:compute", computeRequest{Expression: expr}, &r); err != nil {
			return nil, err
		}
		return &r, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return eris.Wrap(err, "compute: unmarshal result")
	}
	return nil
}

func (c *httpClient) post(ctx context.Context, path string, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "compute: rate limit wait")
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "compute: marshal request")
	}

	url := c.baseURL + "/projects/" + c.project + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "compute: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "compute: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "compute: read response")
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		var er errorResponse
		if json.Unmarshal(respBody, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		err := eris.Wrapf(ErrRemote, "status %d: %s", resp.StatusCode, msg)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "compute: unmarshal response")
	}
	return nil
}
