package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/jobcopilot/constants"
	"github.com/joseph-ayodele/jobcopilot/internal/common"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
	"github.com/joseph-ayodele/jobcopilot/internal/repository"
	"github.com/joseph-ayodele/jobcopilot/internal/services/analysis"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSubmitter struct {
	gotUser string
	gotReq  analysis.SubmitRequest
	err     error
}

func (f *fakeSubmitter) Submit(_ context.Context, userID string, req analysis.SubmitRequest) (*analysis.SubmitResponse, error) {
	f.gotUser, f.gotReq = userID, req
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.SubmitResponse{
		JobID:       uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		ProfileID:   req.ProfileID,
		Status:      constants.JobStatusPending,
		SubmittedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

type fakeJobs struct {
	jobs map[uuid.UUID]*entity.Job
	err  error
}

func (f *fakeJobs) Get(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	j, ok := f.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return j, nil
}

func (f *fakeJobs) ListByProfile(_ context.Context, userID, profileID string) ([]*entity.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*entity.Job
	for _, j := range f.jobs {
		if j.UserID == userID && j.ProfileID == profileID {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeExporter struct{}

func (fakeExporter) ExportJobsXLSX(_ context.Context, _, profileID string) ([]byte, error) {
	return []byte("xlsx:" + profileID), nil
}

type fakeResumes struct {
	fileName string
	data     []byte
}

func (f *fakeResumes) ParseText(_ context.Context, text string) (*entity.ParsedResume, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.NewAppError("VALIDATION_ERROR", "text is required", common.ErrValidation)
	}
	return &entity.ParsedResume{RawText: text, Skills: []string{"GO"}}, nil
}

func (f *fakeResumes) ParseFile(_ context.Context, data []byte, fileName, _ string) (*entity.ParsedResume, error) {
	f.fileName, f.data = fileName, data
	return &entity.ParsedResume{RawText: string(data)}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context, time.Duration) error { return f.err }

func newTestServer(sub Submitter, jobs JobReader) *HTTPServer {
	return NewHTTPServer(Deps{
		Submitter: sub,
		Jobs:      jobs,
		Exporter:  fakeExporter{},
		Resumes:   &fakeResumes{},
		Store:     fakePinger{},
	}, 0, testLogger)
}

func do(t *testing.T, s *HTTPServer, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func jsonRequest(method, path, user, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(common.UserIDHeader, user)
	}
	return req
}

func messageOf(t *testing.T, body []byte) string {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	return er.Message
}

func TestSubmit_Accepted(t *testing.T) {
	sub := &fakeSubmitter{}
	s := newTestServer(sub, &fakeJobs{})

	status, body := do(t, s, jsonRequest(http.MethodPost, "/job/analysis/submit", "u1",
		`{"profileId":"p1","type":"PASTED","text":"Senior Go engineer","displayName":"Acme"}`))

	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "u1", sub.gotUser)
	assert.Equal(t, "http", sub.gotReq.Source)
	assert.Equal(t, "Acme", sub.gotReq.DisplayName)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", resp["jobId"])
	assert.Equal(t, "PENDING", resp["status"])
}

func TestSubmit_ErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", common.NewAppError("VALIDATION_ERROR", "text is required", common.ErrValidation), http.StatusBadRequest, "text is required"},
		{"unauthorized", common.NewAppError("MISSING_USER_ID", "Missing X-User-Id header", common.ErrUnauthorized), http.StatusUnauthorized, "Missing X-User-Id header"},
		{"forbidden", common.NewAppError("PROFILE_FORBIDDEN", "Profile does not belong to the authenticated user: p1", common.ErrForbidden), http.StatusForbidden, "Profile does not belong to the authenticated user: p1"},
		{"upstream", common.NewAppError("PROFILE_SERVICE_UNAVAILABLE", "Profile service unavailable.", common.ErrUpstream), http.StatusBadGateway, "Profile service unavailable."},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeSubmitter{err: tc.err}, &fakeJobs{})
			status, body := do(t, s, jsonRequest(http.MethodPost, "/job/analysis/submit", "u1", `{"profileId":"p1"}`))
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.message, messageOf(t, body))
		})
	}
}

func TestSubmit_MalformedBody(t *testing.T) {
	s := newTestServer(&fakeSubmitter{}, &fakeJobs{})
	status, body := do(t, s, jsonRequest(http.MethodPost, "/job/analysis/submit", "u1", `{"profileId":`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Malformed request body", messageOf(t, body))
}

func TestGetJob(t *testing.T) {
	id := uuid.New()
	jobs := &fakeJobs{jobs: map[uuid.UUID]*entity.Job{
		id: {ID: id, UserID: "u1", ProfileID: "p1", Analysis: entity.Analysis{Status: constants.JobStatusCompleted}},
	}}
	s := newTestServer(&fakeSubmitter{}, jobs)

	status, body := do(t, s, jsonRequest(http.MethodGet, "/job/analysis/"+id.String(), "u1", ""))
	require.Equal(t, http.StatusOK, status)
	var got entity.Job
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, constants.JobStatusCompleted, got.Analysis.Status)

	status, _ = do(t, s, jsonRequest(http.MethodGet, "/job/analysis/"+id.String(), "u2", ""))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, s, jsonRequest(http.MethodGet, "/job/analysis/"+uuid.NewString(), "u1", ""))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, s, jsonRequest(http.MethodGet, "/job/analysis/not-a-uuid", "u1", ""))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, s, jsonRequest(http.MethodGet, "/job/analysis/"+id.String(), "", ""))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestListJobs(t *testing.T) {
	id := uuid.New()
	jobs := &fakeJobs{jobs: map[uuid.UUID]*entity.Job{
		id: {ID: id, UserID: "u1", ProfileID: "p1"},
	}}
	s := newTestServer(&fakeSubmitter{}, jobs)

	status, body := do(t, s, jsonRequest(http.MethodGet, "/job/analysis?profileId=p1", "u1", ""))
	require.Equal(t, http.StatusOK, status)
	var resp struct {
		Jobs []entity.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, id, resp.Jobs[0].ID)

	status, body = do(t, s, jsonRequest(http.MethodGet, "/job/analysis?profileId=other", "u1", ""))
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"jobs":[]}`, string(body))

	status, _ = do(t, s, jsonRequest(http.MethodGet, "/job/analysis", "u1", ""))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListJobs_StoreFailure(t *testing.T) {
	s := newTestServer(&fakeSubmitter{}, &fakeJobs{err: errors.New("db down")})
	status, body := do(t, s, jsonRequest(http.MethodGet, "/job/analysis?profileId=p1", "u1", ""))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", messageOf(t, body))
}

func TestExport(t *testing.T) {
	s := newTestServer(&fakeSubmitter{}, &fakeJobs{})
	req := jsonRequest(http.MethodGet, "/job/analysis/export?profileId=p1", "u1", "")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "jobs-p1.xlsx")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "xlsx:p1", string(body))
}

func TestExport_DispositionIgnoresHeaderSyntaxInProfileID(t *testing.T) {
	s := newTestServer(&fakeSubmitter{}, &fakeJobs{})
	q := url.Values{"profileId": {`p1"; filename=evil.sh; x="`}}
	resp, err := s.App().Test(jsonRequest(http.MethodGet, "/job/analysis/export?"+q.Encode(), "u1", ""), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	disposition, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, map[string]string{"filename": "jobs-p1_filename_evil.sh_x.xlsx"}, params)
}

func TestExportDisposition(t *testing.T) {
	assert.Equal(t, "attachment; filename=jobs-p1.xlsx", exportDisposition("p1"))
	assert.Equal(t, "attachment; filename=jobs-etc_passwd.xlsx", exportDisposition("../etc/passwd"))
	assert.Equal(t, "attachment; filename=jobs-r_sum.xlsx", exportDisposition("résumé"))
}

func TestParseResume(t *testing.T) {
	resumes := &fakeResumes{}
	s := NewHTTPServer(Deps{Resumes: resumes}, 0, testLogger)

	status, body := do(t, s, jsonRequest(http.MethodPost, "/profile/resume/parse", "u1", `{"text":"Go developer"}`))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"GO"`)

	status, _ = do(t, s, jsonRequest(http.MethodPost, "/profile/resume/parse", "u1", `{"text":"  "}`))
	assert.Equal(t, http.StatusBadRequest, status)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "cv.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/profile/resume/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(common.UserIDHeader, "u1")
	status, _ = do(t, s, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cv.pdf", resumes.fileName)
	assert.Equal(t, "%PDF-1.4", string(resumes.data))
}

func TestHealthzAndMetrics(t *testing.T) {
	s := NewHTTPServer(Deps{Store: fakePinger{}}, 0, testLogger)
	status, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)

	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "go_goroutines")

	down := NewHTTPServer(Deps{Store: fakePinger{err: errors.New("down")}}, 0, testLogger)
	status, _ = do(t, down, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestUnknownRoute(t *testing.T) {
	s := NewHTTPServer(Deps{}, 0, testLogger)
	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, messageOf(t, body))
}

func TestHealthServer_Check(t *testing.T) {
	ctx := context.Background()
	h := NewHealthServer(fakePinger{}, testLogger)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, h.Check(ctx, time.Second))

	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	h.store = fakePinger{err: errors.New("down")}
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.Check(ctx, time.Second))
	resp, err = h.health.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
