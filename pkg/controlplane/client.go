package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	resty "github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
	"github.com/jdziat/simple-cdc-handoff/pkg/security"
)

// DefaultBasePath is the API prefix of the control plane.
const DefaultBasePath = "/connect/api/v1"

const (
	pathConfig     = "/job/config/{job}"
	pathTransition = "/job/transition/start/{job}/{mode}"
	pathJobs       = "/cluster/jobs/claim/all"
	pathCheckpoint = "/job/checkpoint/{id}"
)

// BaseURL builds the API root from host, port and base path.
func BaseURL(host string, port int, basePath string) string {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/" + strings.Trim(basePath, "/")
}

// Client implements core.ControlPlane over HTTP.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

var _ core.ControlPlane = (*Client)(nil)

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		requestTimeout: DefaultRequestTimeout,
		retryCount:     DefaultRetryCount,
		retryWait:      DefaultRetryWait,
		retryMaxWait:   DefaultRetryMaxWait,
		userAgent:      "simple-cdc-handoff",
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt.ApplyClient(cfg)
	}

	c := &Client{logger: cfg.logger}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(cfg.requestTimeout).
		SetHeader("User-Agent", cfg.userAgent).
		SetLogger(&clientLogger{logger: cfg.logger.Sugar()}).
		SetRetryCount(cfg.retryCount).
		SetRetryWaitTime(cfg.retryWait).
		SetRetryMaxWaitTime(cfg.retryMaxWait).
		AddRetryCondition(retryableStatus)
	return c
}

func retryableStatus(resp *resty.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	switch resp.StatusCode() {
	case
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// SubmitConfiguration uploads the job configuration as a multipart file.
func (c *Client) SubmitConfiguration(ctx context.Context, job core.JobName, cfg core.JobConfiguration) error {
	body, contentType, err := multipartFile("file", cfg.FileName, cfg.Payload)
	if err != nil {
		return fmt.Errorf("%w: encode upload: %w", core.ErrConfigRejected, err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetPathParam("job", job.String()).
		SetHeader("Content-Type", contentType).
		SetBody(body)
	if _, err := c.do(req, http.MethodPost, pathConfig, core.ErrConfigRejected); err != nil {
		return err
	}
	c.logger.Info("job configuration loaded",
		zap.String("job", job.String()),
		zap.String("file", cfg.FileName),
		zap.Int("bytes", len(cfg.Payload)))
	return nil
}

// RequestTransition asks the control plane to start job in mode.
// It returns once the request is accepted, not when the transition completes.
func (c *Client) RequestTransition(ctx context.Context, job core.JobName, mode core.Mode) error {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("job", job.String()).
		SetPathParam("mode", mode.PathSegment())
	if _, err := c.do(req, http.MethodPost, pathTransition, core.ErrTransitionRejected); err != nil {
		return fmt.Errorf("%s: %w", mode, err)
	}
	c.logger.Info("job transition requested",
		zap.String("job", job.String()),
		zap.String("mode", string(mode)))
	return nil
}

type jobEntry struct {
	JobName   string `json:"jobName"`
	JobStatus string `json:"jobStatus"`
	JobOwner  string `json:"jobOwner"`
}

// ListJobs returns the status of every job in the cluster.
func (c *Client) ListJobs(ctx context.Context) ([]core.JobState, error) {
	resp, err := c.do(c.http.R().SetContext(ctx), http.MethodGet, pathJobs, core.ErrControlPlaneUnreachable)
	if err != nil {
		return nil, err
	}

	var entries []jobEntry
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, fmt.Errorf("%w: decode job list: %w", core.ErrControlPlaneUnreachable, err)
	}

	states := make([]core.JobState, 0, len(entries))
	for _, e := range entries {
		s := core.JobState{
			Name:   core.JobName(e.JobName),
			Status: core.ParseJobStatus(e.JobStatus),
		}
		if s.Status == core.StatusClaimed {
			s.Owner = e.JobOwner
		}
		states = append(states, s)
	}
	return states, nil
}

type checkpointBody struct {
	Scn       flexString `json:"scn"`
	CommitScn flexString `json:"commit_scn"`
}

// WriteCheckpoint stores cp as the job's resume position.
func (c *Client) WriteCheckpoint(ctx context.Context, job core.JobName, cp core.Checkpoint) error {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", job.CheckpointID()).
		SetBody(checkpointBody{Scn: flexString(cp.Marker), CommitScn: flexString(cp.CommitMarker)})
	if _, err := c.do(req, http.MethodPost, pathCheckpoint, core.ErrCheckpointWriteFailed); err != nil {
		return err
	}
	c.logger.Info("checkpoint set",
		zap.String("job", job.String()),
		zap.String("checkpoint_id", job.CheckpointID()),
		zap.String("scn", cp.Marker.String()),
		zap.String("commit_scn", cp.CommitMarker.String()))
	return nil
}

// ReadCheckpoint returns the checkpoint stored for job.
func (c *Client) ReadCheckpoint(ctx context.Context, job core.JobName) (core.Checkpoint, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", job.CheckpointID())
	resp, err := c.do(req, http.MethodGet, pathCheckpoint, core.ErrControlPlaneUnreachable)
	if err != nil {
		return core.Checkpoint{}, err
	}

	var body checkpointBody
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return core.Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return core.Checkpoint{Marker: core.Marker(body.Scn), CommitMarker: core.Marker(body.CommitScn)}, nil
}

// do executes req and maps failures onto the handoff error taxonomy.
// Transport failures match both sentinel and core.ErrControlPlaneUnreachable.
func (c *Client) do(req *resty.Request, method, path string, sentinel error) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Debug("control plane request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		if errors.Is(sentinel, core.ErrControlPlaneUnreachable) {
			return nil, fmt.Errorf("%w: %w", sentinel, err)
		}
		return nil, fmt.Errorf("%w: %w: %w", sentinel, core.ErrControlPlaneUnreachable, err)
	}

	c.logger.Debug("control plane response",
		zap.String("method", method),
		zap.String("url", resp.Request.URL),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("took", resp.Time()))

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %w", sentinel, &core.ResponseError{
			Method:     method,
			URL:        resp.Request.URL,
			StatusCode: resp.StatusCode(),
			Body:       security.SanitizeResponseBody(resp.Body()),
		})
	}
	return resp, nil
}

// multipartFile encodes a single file field. The body is built up front so
// retried requests resend the full payload.
func multipartFile(field, fileName string, payload []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// flexString accepts JSON strings and numbers and always encodes as a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// clientLogger adapts zap to resty's logger interface.
type clientLogger struct {
	logger *zap.SugaredLogger
}

func (l *clientLogger) Errorf(format string, v ...interface{}) {
	l.logger.Errorf("HTTP "+format, v...)
}

func (l *clientLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warnf("HTTP "+format, v...)
}

func (l *clientLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debugf("HTTP "+format, v...)
}
