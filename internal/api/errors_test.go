package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"rentacar/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.Validation("bad"), http.StatusBadRequest},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrInvalidCredential, http.StatusUnauthorized},
		{domain.Forbidden("no"), http.StatusForbidden},
		{domain.ErrInactiveAccount, http.StatusForbidden},
		{domain.NotFound("car 1 not found"), http.StatusNotFound},
		{domain.ErrDuplicateEmail, http.StatusConflict},
		{domain.InvalidTransition("no"), http.StatusConflict},
		{domain.ErrTooManyAttempts, http.StatusTooManyRequests},
		{domain.Persistence(errors.New("disk"), "could not save"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), http.StatusNotFound},
		{errors.New("foreign"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
