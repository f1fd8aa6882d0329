// Package ownership answers whether a profile belongs to a user.
package ownership

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/joseph-ayodele/jobcopilot/internal/common"
)

// Checker looks up profile ownership. A transport failure is an error wrapping
// common.ErrUpstream; an unknown or foreign profile is (false, nil).
type Checker interface {
	IsOwnedByUser(ctx context.Context, profileID, userID string) (bool, error)
}

// Static checks against a fixed profile -> user map.
type Static struct {
	owners map[string]string
}

func NewStatic(owners map[string]string) *Static {
	cp := make(map[string]string, len(owners))
	for p, u := range owners {
		cp[strings.TrimSpace(p)] = strings.TrimSpace(u)
	}
	return &Static{owners: cp}
}

func (s *Static) IsOwnedByUser(_ context.Context, profileID, userID string) (bool, error) {
	owner, ok := s.owners[profileID]
	return ok && owner == userID, nil
}

// AllowAll accepts every pair. Only meant for local runs without a profile service.
type AllowAll struct{}

func (AllowAll) IsOwnedByUser(context.Context, string, string) (bool, error) { return true, nil }

// HTTPChecker asks the profile service for GET {base}/profile/{id} on behalf of the user.
type HTTPChecker struct {
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

func NewHTTPChecker(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPChecker {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChecker{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, logger: logger}
}

func (c *HTTPChecker) IsOwnedByUser(ctx context.Context, profileID, userID string) (bool, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return false, fmt.Errorf("%w: %v", common.ErrUpstream, context.DeadlineExceeded)
	}

	agent := fiber.Get(c.baseURL + "/profile/" + url.PathEscape(profileID))
	agent.Set(common.UserIDHeader, userID)
	agent.Timeout(timeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		c.logger.Error("profile lookup failed", "profile_id", profileID, "error", errs[0])
		return false, fmt.Errorf("%w: profile lookup: %v", common.ErrUpstream, errs[0])
	}

	switch {
	case code >= 200 && code < 300:
		return true, nil
	case code == http.StatusNotFound:
		c.logger.Info("profile not owned by user", "profile_id", profileID, "user_id", userID)
		return false, nil
	default:
		c.logger.Error("profile lookup rejected", "profile_id", profileID, "status", code)
		return false, fmt.Errorf("%w: profile lookup returned %d", common.ErrUpstream, code)
	}
}
