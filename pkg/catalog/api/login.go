package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-product/pkg/catalog/auth"
)

// LoginRequest is the body accepted by the token endpoint
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token string `json:"token"`
}

// LoginHandler exchanges credentials for a bearer token
type LoginHandler struct {
	users  *auth.Directory
	tokens *auth.Tokens
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(users *auth.Directory, tokens *auth.Tokens) *LoginHandler {
	return &LoginHandler{users: users, tokens: tokens}
}

// Dispatch accepts only POST; any other method gets 405 with an Allow header.
func (h *LoginHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	h.Login(w, r)
}

// Login verifies the credentials and returns a signed token
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, r, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return
	}

	fieldErrors := map[string][]string{}
	if req.Username == "" {
		fieldErrors["username"] = []string{"This field is required."}
	}
	if req.Password == "" {
		fieldErrors["password"] = []string{"This field is required."}
	}
	if len(fieldErrors) > 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, fieldErrors)
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string][]string{"non_field_errors": {"Unable to log in with provided credentials."}})
			return
		}
		slog.Error("Failed to authenticate", "username", req.Username, "error", err)
		writeDetail(w, r, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		slog.Error("Failed to issue token", "username", user.Username, "error", err)
		writeDetail(w, r, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	slog.Info("Token issued", "username", user.Username)
	render.JSON(w, r, LoginResponse{Token: token})
}
