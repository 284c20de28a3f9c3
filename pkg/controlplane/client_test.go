package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-cdc-handoff/pkg/core"
)

const testBase = "http://cp.test:8282/connect/api/v1"

// newTestClient returns a client wired to a fresh mock transport.
func newTestClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	opts = append([]Option{Retries(0), RetryWait(time.Millisecond, 2*time.Millisecond)}, opts...)
	c := NewClient(testBase, opts...)
	transport := httpmock.NewMockTransport()
	c.http.SetTransport(transport)
	return c, transport
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://34.170.196.119:8282/connect/api/v1", BaseURL("34.170.196.119", 8282, ""))
	assert.Equal(t, "http://localhost:9000/api", BaseURL("localhost", 9000, "/api/"))
	assert.Equal(t, "http://[::1]:8282/connect/api/v1", BaseURL("::1", 8282, DefaultBasePath))
}

// ──────────────────────────────────────────────────────────────────────────────
// SubmitConfiguration
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmitConfiguration_UploadsMultipartFile(t *testing.T) {
	c, transport := newTestClient(t)
	payload := []byte(`{"source":{"database":"CHINOOK"}}`)

	var gotName, gotType string
	var gotBody []byte
	transport.RegisterResponder(http.MethodPost, testBase+"/job/config/oracle-job",
		func(req *http.Request) (*http.Response, error) {
			file, header, err := req.FormFile("file")
			if err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			defer file.Close()
			gotName = header.Filename
			gotType = header.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(file)
			return httpmock.NewStringResponse(http.StatusOK, "loaded"), nil
		})

	err := c.SubmitConfiguration(context.Background(), "oracle-job", core.JobConfiguration{
		FileName: "redis_connect_oracle_CHINOOK.json",
		Payload:  payload,
	})

	require.NoError(t, err)
	assert.Equal(t, "redis_connect_oracle_CHINOOK.json", gotName)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, payload, gotBody)
}

func TestSubmitConfiguration_Rejected(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/job/config/oracle-job",
		httpmock.NewStringResponder(http.StatusBadRequest, "invalid pipeline"))

	err := c.SubmitConfiguration(context.Background(), "oracle-job", core.JobConfiguration{FileName: "a.json"})

	assert.ErrorIs(t, err, core.ErrConfigRejected)
	assert.NotErrorIs(t, err, core.ErrControlPlaneUnreachable)
	var respErr *core.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusBadRequest, respErr.StatusCode)
	assert.Equal(t, "invalid pipeline", respErr.Body)
}

func TestSubmitConfiguration_RetriesResendPayload(t *testing.T) {
	c, transport := newTestClient(t, Retries(2))
	var calls atomic.Int32
	transport.RegisterResponder(http.MethodPost, testBase+"/job/config/oracle-job",
		func(req *http.Request) (*http.Response, error) {
			n := calls.Add(1)
			file, _, err := req.FormFile("file")
			if err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			body, _ := io.ReadAll(file)
			if string(body) != `{"a":1}` {
				return httpmock.NewStringResponse(http.StatusBadRequest, "truncated"), nil
			}
			if n == 1 {
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		})

	err := c.SubmitConfiguration(context.Background(), "oracle-job", core.JobConfiguration{
		FileName: "a.json",
		Payload:  []byte(`{"a":1}`),
	})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

// ──────────────────────────────────────────────────────────────────────────────
// RequestTransition
// ──────────────────────────────────────────────────────────────────────────────

func TestRequestTransition(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/job/transition/start/oracle-job/load",
		httpmock.NewStringResponder(http.StatusOK, ""))
	transport.RegisterResponder(http.MethodPost, testBase+"/job/transition/start/oracle-job/stream",
		httpmock.NewStringResponder(http.StatusOK, ""))

	require.NoError(t, c.RequestTransition(context.Background(), "oracle-job", core.ModeLoad))
	require.NoError(t, c.RequestTransition(context.Background(), "oracle-job", core.ModeStream))

	info := transport.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+testBase+"/job/transition/start/oracle-job/load"])
	assert.Equal(t, 1, info["POST "+testBase+"/job/transition/start/oracle-job/stream"])
}

func TestRequestTransition_Rejected(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/job/transition/start/oracle-job/stream",
		httpmock.NewStringResponder(http.StatusConflict, "job not stopped"))

	err := c.RequestTransition(context.Background(), "oracle-job", core.ModeStream)

	assert.ErrorIs(t, err, core.ErrTransitionRejected)
	assert.Contains(t, err.Error(), "STREAM")
	assert.Contains(t, err.Error(), "job not stopped")
}

func TestRequestTransition_TransportError(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, testBase+"/job/transition/start/oracle-job/load",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	err := c.RequestTransition(context.Background(), "oracle-job", core.ModeLoad)

	assert.ErrorIs(t, err, core.ErrTransitionRejected)
	assert.ErrorIs(t, err, core.ErrControlPlaneUnreachable)
}

// ──────────────────────────────────────────────────────────────────────────────
// ListJobs
// ──────────────────────────────────────────────────────────────────────────────

func TestListJobs(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, testBase+"/cluster/jobs/claim/all",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"jobName":"oracle-job","jobStatus":"CLAIMED","jobOwner":"worker-1"},
			{"jobName":"other","jobStatus":"STOPPED","jobOwner":"stale-owner"},
			{"jobName":"third","jobStatus":"UNASSIGNED"}
		]`))

	states, err := c.ListJobs(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []core.JobState{
		{Name: "oracle-job", Status: core.StatusClaimed, Owner: "worker-1"},
		{Name: "other", Status: core.StatusStopped},
		{Name: "third", Status: core.StatusUnknown},
	}, states)
}

func TestListJobs_Errors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"transport", httpmock.NewErrorResponder(errors.New("dial tcp: i/o timeout"))},
		{"status", httpmock.NewStringResponder(http.StatusInternalServerError, "oops")},
		{"decode", httpmock.NewStringResponder(http.StatusOK, `{"not":"a list"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)
			transport.RegisterResponder(http.MethodGet, testBase+"/cluster/jobs/claim/all", tt.responder)

			_, err := c.ListJobs(context.Background())
			assert.ErrorIs(t, err, core.ErrControlPlaneUnreachable)
		})
	}
}

func TestListJobs_RetriesServerErrors(t *testing.T) {
	c, transport := newTestClient(t, Retries(3))
	var calls atomic.Int32
	transport.RegisterResponder(http.MethodGet, testBase+"/cluster/jobs/claim/all",
		func(*http.Request) (*http.Response, error) {
			if calls.Add(1) < 3 {
				return httpmock.NewStringResponse(http.StatusBadGateway, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `[]`), nil
		})

	states, err := c.ListJobs(context.Background())

	require.NoError(t, err)
	assert.Empty(t, states)
	assert.Equal(t, int32(3), calls.Load())
}

// ──────────────────────────────────────────────────────────────────────────────
// Checkpoints
// ──────────────────────────────────────────────────────────────────────────────

const checkpointPath = "/connect/api/v1/job/checkpoint/{connect}:job:oracle-job"

func TestWriteCheckpoint(t *testing.T) {
	c, transport := newTestClient(t)
	var got map[string]any
	var gotPath string
	transport.RegisterResponder(http.MethodPost, `=~^http://cp\.test:8282/connect/api/v1/job/checkpoint/`,
		func(req *http.Request) (*http.Response, error) {
			gotPath = req.URL.Path
			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		})

	err := c.WriteCheckpoint(context.Background(), "oracle-job", core.BootstrapCheckpoint("1001"))

	require.NoError(t, err)
	assert.Equal(t, checkpointPath, gotPath)
	assert.Equal(t, map[string]any{"scn": "1001", "commit_scn": "1001"}, got)
}

func TestWriteCheckpoint_Failed(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodPost, `=~/job/checkpoint/`,
		httpmock.NewStringResponder(http.StatusInternalServerError, "redis down"))

	err := c.WriteCheckpoint(context.Background(), "oracle-job", core.BootstrapCheckpoint("1"))

	assert.ErrorIs(t, err, core.ErrCheckpointWriteFailed)
}

func TestReadCheckpoint(t *testing.T) {
	tests := []struct {
		name string
		body string
		want core.Checkpoint
	}{
		{"strings", `{"scn":"1001","commit_scn":"1001"}`, core.Checkpoint{Marker: "1001", CommitMarker: "1001"}},
		{"numbers", `{"scn":98765432101234,"commit_scn":98765432101230}`, core.Checkpoint{Marker: "98765432101234", CommitMarker: "98765432101230"}},
		{"null", `{"scn":null}`, core.Checkpoint{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)
			transport.RegisterResponder(http.MethodGet, `=~/job/checkpoint/`,
				httpmock.NewStringResponder(http.StatusOK, tt.body))

			cp, err := c.ReadCheckpoint(context.Background(), "oracle-job")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cp)
		})
	}
}

func TestReadCheckpoint_Errors(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, `=~/job/checkpoint/`,
		httpmock.NewStringResponder(http.StatusNotFound, "no checkpoint"))

	_, err := c.ReadCheckpoint(context.Background(), "oracle-job")
	assert.ErrorIs(t, err, core.ErrControlPlaneUnreachable)

	transport.Reset()
	transport.RegisterResponder(http.MethodGet, `=~/job/checkpoint/`,
		httpmock.NewStringResponder(http.StatusOK, `not json`))
	_, err = c.ReadCheckpoint(context.Background(), "oracle-job")
	assert.ErrorContains(t, err, "decode checkpoint")
}

func TestClient_ContextCancelled(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder(http.MethodGet, testBase+"/cluster/jobs/claim/all",
		httpmock.NewStringResponder(http.StatusOK, `[]`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListJobs(ctx)

	assert.ErrorIs(t, err, core.ErrControlPlaneUnreachable)
	assert.ErrorIs(t, err, context.Canceled)
}
