package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/greengig/greengig/internal/api/middleware"
	"github.com/greengig/greengig/internal/api/response"
	"github.com/greengig/greengig/internal/concert"
	"github.com/greengig/greengig/internal/featureflags"
	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/submission"
	"github.com/greengig/greengig/internal/user"
)

// writeError maps a service error to a problem response. Unexpected errors
// are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	if rej, ok := submission.IsRejection(err); ok {
		response.ProofRejected(w, r, rej.Reason)
		return
	}

	switch {
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, concert.ErrConcertNotFound),
		errors.Is(err, proof.ErrProofNotFound),
		errors.Is(err, featureflags.ErrFlagNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, concert.ErrMissingCoordinates):
		response.ProofRejected(w, r, "Concert location is not available yet")
	case errors.Is(err, proof.ErrInvalidTransition), errors.Is(err, proof.ErrProofExists):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, submission.ErrInvalidReview):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, submission.ErrSubmissionsDisabled),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		response.ServiceUnavailable(w, r, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "request was cancelled")
	default:
		log.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
