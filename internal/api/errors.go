package api

import (
	"net/http"

	"rentacar/internal/domain"
)

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:        http.StatusBadRequest,
	domain.KindUnauthenticated:   http.StatusUnauthorized,
	domain.KindInvalidCredential: http.StatusUnauthorized,
	domain.KindForbidden:         http.StatusForbidden,
	domain.KindInactiveAccount:   http.StatusForbidden,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindDuplicateEmail:    http.StatusConflict,
	domain.KindInvalidTransition: http.StatusConflict,
	domain.KindTooManyAttempts:   http.StatusTooManyRequests,
}

func statusFor(err error) int {
	if code, ok := kindStatus[domain.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// writeDomainError renders err with its user-facing message.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, code, domain.UserMessage(err))
}
