package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/greengig/greengig/internal/api/middleware"
	"github.com/greengig/greengig/internal/api/models"
	"github.com/greengig/greengig/internal/api/response"
	"github.com/greengig/greengig/internal/proof"
	"github.com/greengig/greengig/internal/submission"
	"github.com/greengig/greengig/internal/travel"
)

// Multipart field names of the upload form.
const (
	FieldConcertID   = "concertId"
	FieldTravelMode  = "travelMode"
	FieldOriginLat   = "originLat"
	FieldOriginLng   = "originLng"
	FieldDescription = "proofDescription"
	FieldImage       = "proofImage"
)

// DefaultMaxUploadBytes bounds the whole multipart body. It leaves room above
// the quality gate's 10 MiB image limit so oversize images get the gate's
// own rejection reason.
const DefaultMaxUploadBytes = 11 << 20

const multipartMemory = 4 << 20

// ProofHandler handles travel proof endpoints.
type ProofHandler struct {
	service        *submission.Service
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewProofHandler creates a new ProofHandler. maxUploadBytes <= 0 uses
// DefaultMaxUploadBytes.
func NewProofHandler(service *submission.Service, maxUploadBytes int64, log zerolog.Logger) *ProofHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ProofHandler{service: service, maxUploadBytes: maxUploadBytes, log: log}
}

// Submit handles POST /v1/travel-proofs - upload a proof for the caller.
func (h *ProofHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, r, fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.BadRequest(w, r, "expected multipart/form-data body", nil)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup is best-effort

	origin, fieldErrs := parseOrigin(r.FormValue(FieldOriginLat), r.FormValue(FieldOriginLng))
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid origin", fieldErrs)
		return
	}

	in := submission.Input{
		UserID:      GetUserID(r.Context()),
		ConcertID:   strings.TrimSpace(r.FormValue(FieldConcertID)),
		TravelMode:  strings.TrimSpace(r.FormValue(FieldTravelMode)),
		Origin:      origin,
		Description: r.FormValue(FieldDescription),
	}

	file, header, err := r.FormFile(FieldImage)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// The service rejects a missing image with its own reason.
	case err != nil:
		response.BadRequest(w, r, "could not read proof image", nil)
		return
	default:
		defer file.Close() //nolint:errcheck // read-only multipart part
		in.ImageName = header.Filename
		in.Image, err = io.ReadAll(file)
		if err != nil {
			response.BadRequest(w, r, "could not read proof image", nil)
			return
		}
	}

	outcome, err := h.service.Submit(r.Context(), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	response.Created(w, r, "/v1/travel-proofs/"+outcome.Proof.ID, models.FromOutcome(outcome))
}

// Get handles GET /v1/travel-proofs/{proofId}.
func (h *ProofHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProof(r.Context(), chi.URLParam(r, "proofId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if !authorizeUser(w, r, p.UserID) {
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromProof(p))
}

// List handles GET /v1/users/{userId}/travel-proofs?status=.
func (h *ProofHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !authorizeUser(w, r, userID) {
		return
	}

	var status proof.Status
	if v := r.URL.Query().Get("status"); v != "" {
		s, err := proof.ParseStatus(v)
		if err != nil {
			response.BadRequest(w, r, "invalid status filter", []models.FieldError{
				{Field: "status", Message: err.Error(), Code: "INVALID_ENUM"},
			})
			return
		}
		status = s
	}

	proofs, err := h.service.ListProofs(r.Context(), userID, status)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewTravelProofList(proofs))
}

// Stats handles GET /v1/travel-proofs/stats.
func (h *ProofHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

// Suggestions handles GET /v1/concerts/{concertId}/emission-suggestions.
func (h *ProofHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin, fieldErrs := parseOrigin(q.Get(FieldOriginLat), q.Get(FieldOriginLng))
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid origin", fieldErrs)
		return
	}

	s, err := h.service.Suggest(r.Context(), chi.URLParam(r, "concertId"), origin)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromSuggestions(s, origin))
}

// EmissionFactors handles GET /v1/emission-factors.
func (h *ProofHandler) EmissionFactors(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewEmissionFactorList(h.service.EmissionFactors()))
}

// Review handles POST /v1/admin/travel-proofs/{proofId}/review.
func (h *ProofHandler) Review(w http.ResponseWriter, r *http.Request) {
	var body models.ReviewRequest
	if err := response.DecodeJSON(w, r, &body); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	reviewed, err := h.service.Review(r.Context(), submission.ReviewInput{
		ProofID:    chi.URLParam(r, "proofId"),
		ReviewerID: middleware.GetUserID(r.Context()),
		Decision:   body.Status,
		Notes:      body.Notes,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.FromProof(reviewed))
}

// parseOrigin parses the coordinate pair. Range checks are left to the
// service so they surface as rejections.
func parseOrigin(lat, lng string) (travel.GeoPoint, []models.FieldError) {
	var (
		p    travel.GeoPoint
		errs []models.FieldError
		err  error
	)
	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		errs = append(errs, models.FieldError{Field: FieldOriginLat, Message: "must be a number", Code: "INVALID_NUMBER"})
	}
	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		errs = append(errs, models.FieldError{Field: FieldOriginLng, Message: "must be a number", Code: "INVALID_NUMBER"})
	}
	return p, errs
}
