package server

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/jobcopilot/internal/common"
	"github.com/joseph-ayodele/jobcopilot/internal/entity"
	"github.com/joseph-ayodele/jobcopilot/internal/services/analysis"
)

type Submitter interface {
	Submit(ctx context.Context, userID string, req analysis.SubmitRequest) (*analysis.SubmitResponse, error)
}

type JobReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListByProfile(ctx context.Context, userID, profileID string) ([]*entity.Job, error)
}

type Exporter interface {
	ExportJobsXLSX(ctx context.Context, userID, profileID string) ([]byte, error)
}

type ResumeParser interface {
	ParseText(ctx context.Context, text string) (*entity.ParsedResume, error)
	ParseFile(ctx context.Context, data []byte, fileName, contentType string) (*entity.ParsedResume, error)
}

type Pinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// Deps are the services behind the HTTP routes. Nil services leave their routes unregistered.
type Deps struct {
	Submitter Submitter
	Jobs      JobReader
	Exporter  Exporter
	Resumes   ResumeParser
	Store     Pinger
}

// HTTPServer is the fiber intake for submissions, reads and exports.
type HTTPServer struct {
	app    *fiber.App
	deps   Deps
	logger *slog.Logger
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func NewHTTPServer(deps Deps, bodyLimit int, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{deps: deps, logger: logger}
	cfg := fiber.Config{
		AppName:               "jobcopilot",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	}
	if bodyLimit > 0 {
		cfg.BodyLimit = bodyLimit
	}
	s.app = fiber.New(cfg)
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.accessLog)
	s.routes()
	return s
}

func (s *HTTPServer) routes() {
	s.app.Get("/healthz", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	job := s.app.Group("/job/analysis")
	if s.deps.Submitter != nil {
		job.Post("/submit", s.submit)
	}
	if s.deps.Exporter != nil {
		job.Get("/export", s.export)
	}
	if s.deps.Jobs != nil {
		job.Get("/", s.listJobs)
		job.Get("/:id", s.getJob)
	}
	if s.deps.Resumes != nil {
		s.app.Post("/profile/resume/parse", s.parseResume)
	}
}

// App exposes the fiber app for tests and custom listeners.
func (s *HTTPServer) App() *fiber.App { return s.app }

func (s *HTTPServer) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *HTTPServer) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"request_id", c.Locals("requestid"),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return err
}

// userID reads the caller identity header and stores it on the request context.
func userID(c *fiber.Ctx) (context.Context, string, error) {
	uid := strings.TrimSpace(c.Get(common.UserIDHeader))
	if uid == "" {
		return nil, "", common.NewAppError("MISSING_USER_ID", "Missing "+common.UserIDHeader+" header", common.ErrUnauthorized)
	}
	ctx := common.WithUserID(c.UserContext(), uid)
	if rid, ok := c.Locals("requestid").(string); ok {
		ctx = common.WithRequestID(ctx, rid)
	}
	return ctx, uid, nil
}

func (s *HTTPServer) health(c *fiber.Ctx) error {
	if s.deps.Store == nil {
		return writeJSON(c, http.StatusOK, fiber.Map{"status": "ok"})
	}
	if err := s.deps.Store.Ping(c.UserContext(), 2*time.Second); err != nil {
		s.logger.Warn("health check failed", "error", err)
		return writeJSON(c, http.StatusServiceUnavailable, fiber.Map{"status": "unavailable"})
	}
	return writeJSON(c, http.StatusOK, fiber.Map{"status": "ok"})
}

func (s *HTTPServer) submit(c *fiber.Ctx) error {
	uid := strings.TrimSpace(c.Get(common.UserIDHeader))
	var req analysis.SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return writeMessage(c, http.StatusBadRequest, "Malformed request body")
	}
	req.Source = "http"

	ctx := c.UserContext()
	if uid != "" {
		ctx = common.WithUserID(ctx, uid)
	}
	resp, err := s.deps.Submitter.Submit(ctx, uid, req)
	if err != nil {
		return s.writeError(c, err)
	}
	return writeJSON(c, http.StatusAccepted, resp)
}

func (s *HTTPServer) getJob(c *fiber.Ctx) error {
	ctx, uid, err := userID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeMessage(c, http.StatusBadRequest, "id must be a UUID")
	}
	job, err := s.deps.Jobs.Get(ctx, id)
	if err != nil {
		return s.writeError(c, err)
	}
	// other users' jobs are reported as missing
	if job.UserID != uid {
		return writeMessage(c, http.StatusNotFound, "Job not found: "+id.String())
	}
	return writeJSON(c, http.StatusOK, job)
}

func (s *HTTPServer) listJobs(c *fiber.Ctx) error {
	ctx, uid, err := userID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	profileID := strings.TrimSpace(c.Query("profileId"))
	if profileID == "" {
		return writeMessage(c, http.StatusBadRequest, "profileId is required")
	}
	jobs, err := s.deps.Jobs.ListByProfile(ctx, uid, profileID)
	if err != nil {
		return s.writeError(c, err)
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	return writeJSON(c, http.StatusOK, fiber.Map{"jobs": jobs})
}

func (s *HTTPServer) export(c *fiber.Ctx) error {
	ctx, uid, err := userID(c)
	if err != nil {
		return s.writeError(c, err)
	}
	profileID := strings.TrimSpace(c.Query("profileId"))
	if profileID == "" {
		return writeMessage(c, http.StatusBadRequest, "profileId is required")
	}
	data, err := s.deps.Exporter.ExportJobsXLSX(ctx, uid, profileID)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "profile_id", profileID, "err", err)
		return s.writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, exportDisposition(profileID))
	return c.Status(http.StatusOK).Send(data)
}

var reUnsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// exportDisposition names the download after the profile, keeping only
// characters that are safe in a header parameter and a file name.
func exportDisposition(profileID string) string {
	name := "jobs-" + strings.Trim(reUnsafeFileChars.ReplaceAllString(profileID, "_"), "._") + ".xlsx"
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

type parseResumeRequest struct {
	Text string `json:"text"`
}

// parseResume accepts either a JSON {"text": ...} body or a multipart "file" upload.
func (s *HTTPServer) parseResume(c *fiber.Ctx) error {
	ctx, _, err := userID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	if fh, ferr := c.FormFile("file"); ferr == nil {
		f, err := fh.Open()
		if err != nil {
			return writeMessage(c, http.StatusBadRequest, "Unreadable upload")
		}
		defer f.Close()
		data := make([]byte, fh.Size)
		if _, err := io.ReadFull(f, data); err != nil {
			return writeMessage(c, http.StatusBadRequest, "Unreadable upload")
		}
		res, err := s.deps.Resumes.ParseFile(ctx, data, fh.Filename, fh.Header.Get(fiber.HeaderContentType))
		if err != nil {
			return s.writeError(c, err)
		}
		return writeJSON(c, http.StatusOK, res)
	}

	var req parseResumeRequest
	if err := c.BodyParser(&req); err != nil {
		return writeMessage(c, http.StatusBadRequest, "Malformed request body")
	}
	res, err := s.deps.Resumes.ParseText(ctx, req.Text)
	if err != nil {
		return s.writeError(c, err)
	}
	return writeJSON(c, http.StatusOK, res)
}
