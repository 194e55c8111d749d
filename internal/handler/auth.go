package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/imitation/backend/internal/auth"
	"github.com/imitation/backend/internal/service"
)

// AuthHandler manages password accounts, cookie sessions and the optional
// GitHub login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup          → create a password account (no session yet)
//   - HandleLogin           → check the password, set the session cookie
//   - HandleLogout          → clear the cookie and revoke the session row
//   - HandleSession         → report who the cookie belongs to, if anyone
//   - HandleGitHubLogin     → redirect the browser to GitHub
//   - HandleGitHubCallback  → exchange the code, get-or-create, set the cookie
//
// github is nil when OAuth is not configured; the server then never mounts
// the GitHub routes.
type AuthHandler struct {
	sessions     *service.AuthService
	github       *auth.GitHubProvider
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(
	sessions *service.AuthService,
	github *auth.GitHubProvider,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		github:       github,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionUser is the short user shape the auth routes return.
type sessionUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type signupUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type signupResponse struct {
	Message string     `json:"message"`
	User    signupUser `json:"user"`
}

type loginResponse struct {
	Message string      `json:"message"`
	User    sessionUser `json:"user"`
}

type sessionResponse struct {
	User *sessionUser `json:"user"`
}

// HandleSignup creates an account. The caller still has to log in.
//
// HTTP: POST /api/auth/signup
// BODY: {"username": "ada", "password": "at-least-8"}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.sessions.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, signupResponse{
		Message: "account created",
		User:    signupUser{ID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt},
	})
}

// HandleLogin verifies the password and sets the session cookie.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	issued, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, issued.Token, issued.ExpiresAt, h.secureCookie)
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "login successful",
		User:    sessionUser{ID: issued.User.ID, Username: issued.User.Username},
	})
}

// HandleLogout revokes the session and clears the cookie.
//
// HTTP: POST /api/auth/logout
//
// The cookie is cleared even if revoking the row fails, so the browser is
// logged out either way.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.SessionTokenFromRequest(r)
	auth.ClearSessionCookie(w, h.secureCookie)

	if err := h.sessions.Logout(r.Context(), token); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// HandleSession reports the signed-in user, or {"user": null}.
//
// HTTP: GET /api/auth/session
//
// Authenticate has already resolved the cookie, so an expired or revoked
// session simply arrives here as no user.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		User: &sessionUser{ID: user.ID, Username: user.Username},
	})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /api/auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived cookie and into the redirect. The
// callback only proceeds when GitHub echoes the same value back.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.NewOAuthState()
	auth.SetOAuthStateCookie(w, state, h.secureCookie)
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub identity
//  3. Get-or-create the user and open a session
//  4. Set the session cookie and redirect home
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !auth.ConsumeOAuthState(w, r) {
		h.logger.Warn("auth callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid OAuth state"})
		return
	}

	// GitHub sends ?error=access_denied when the user declines.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "missing OAuth code"})
		return
	}

	identity, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Detail: "authentication failed"})
		return
	}

	issued, err := h.sessions.LoginWithIdentity(r.Context(), identity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", issued.User.ID),
		slog.String("username", issued.User.Username),
	)
	auth.SetSessionCookie(w, issued.Token, issued.ExpiresAt, h.secureCookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
