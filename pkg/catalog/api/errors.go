package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-product/pkg/catalog"
)

// ErrorResponse is the body returned for non-validation failures
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Detail: detail})
}

// writeError maps service errors onto HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if verr, ok := catalog.AsValidationError(err); ok {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, verr.Messages())
		return
	}

	var authErr *catalog.AuthorizationError
	switch {
	case errors.As(err, &authErr):
		detail := "You do not have permission to perform this action."
		if errors.Is(authErr, catalog.ErrUnauthenticated) {
			detail = "Authentication credentials were not provided."
		}
		writeDetail(w, r, http.StatusForbidden, detail)
	case errors.Is(err, catalog.ErrProductNotFound):
		writeDetail(w, r, http.StatusNotFound, "Not found.")
	case errors.Is(err, catalog.ErrSearchUnavailable):
		slog.Error("Search failed", "op", op, "error", err)
		writeDetail(w, r, http.StatusBadGateway, "Search is temporarily unavailable.")
	case errors.Is(err, catalog.ErrInvalidRequest):
		writeDetail(w, r, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Request failed", "op", op, "error", err)
		writeDetail(w, r, http.StatusInternalServerError, "A server error occurred.")
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	writeDetail(w, r, http.StatusMethodNotAllowed, "Method \""+r.Method+"\" not allowed.")
}
