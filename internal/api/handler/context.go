package handler

import (
	"context"
	"net/http"

	"github.com/greengig/greengig/internal/api/middleware"
	"github.com/greengig/greengig/internal/api/response"
)

// GetUserID retrieves the authenticated user ID from the context.
// This is a convenience wrapper around middleware.GetUserID.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// authorizeUser lets a caller act on userID when it is their own account or
// they are a reviewer. It writes 403 and returns false otherwise.
func authorizeUser(w http.ResponseWriter, r *http.Request, userID string) bool {
	p := middleware.GetPrincipal(r.Context())
	if p.UserID == userID || p.IsReviewer() {
		return true
	}
	response.Forbidden(w, r, "cannot access another user's data")
	return false
}
