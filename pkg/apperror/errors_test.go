package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: fmt.Errorf("thread not found: %w", ErrNotFound), want: http.StatusNotFound},
		{name: "unauthenticated", err: ErrUnauthenticated, want: http.StatusUnauthorized},
		{name: "legacy unauthorized", err: ErrUnauthorized, want: http.StatusUnauthorized},
		{name: "denied", err: Denied("followers only"), want: http.StatusForbidden},
		{name: "forbidden", err: ErrForbidden, want: http.StatusForbidden},
		{name: "invalid", err: fmt.Errorf("empty content: %w", ErrInvalidInput), want: http.StatusBadRequest},
		{name: "rate limited", err: ErrRateLimitExceeded, want: http.StatusTooManyRequests},
		{name: "internal", err: Internal(errors.New("connection reset")), want: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "wrapped rate limit", err: fmt.Errorf("create: %w", ErrRateLimitExceeded), want: http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapErrorToStatus(tc.err))
		})
	}
}

func TestDeniedKeepsReason(t *testing.T) {
	err := Denied("only followers of the author can view this thread")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "only followers")
}

func TestInternalNil(t *testing.T) {
	assert.NoError(t, Internal(nil))
}
