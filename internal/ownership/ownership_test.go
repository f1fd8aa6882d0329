package ownership

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/jobcopilot/internal/common"
)

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]string{" p1 ": "u1"})
	ctx := context.Background()

	ok, err := s.IsOwnedByUser(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.IsOwnedByUser(ctx, "p1", "u2")
	assert.False(t, ok)
	ok, _ = s.IsOwnedByUser(ctx, "p2", "u1")
	assert.False(t, ok)
}

func TestHTTPChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/profile/p1" && r.Header.Get(common.UserIDHeader) == "u1":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/profile/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPChecker(srv.URL+"/", time.Second, nil)
	ctx := context.Background()

	ok, err := c.IsOwnedByUser(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsOwnedByUser(ctx, "p1", "intruder")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.IsOwnedByUser(ctx, "broken", "u1")
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestHTTPChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPChecker(addr, 200*time.Millisecond, nil).IsOwnedByUser(context.Background(), "p1", "u1")
	assert.ErrorIs(t, err, common.ErrUpstream)
}
