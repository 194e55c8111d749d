package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
)

// contextKey is private so no other package can read or overwrite the
// user stored by Authenticate.
type contextKey string

const userKey contextKey = "user"

// Resolver turns credentials into users. service.AuthService implements it;
// the interface lives here so auth does not import the service layer.
type Resolver interface {
	// ResolveSession returns the user owning the raw session token, or an
	// apperror.ErrUnauthorized error when the session is absent or expired.
	ResolveSession(ctx context.Context, token string) (*model.User, error)
	// ResolveIdentity returns the user bound to a verified identity,
	// creating it on first sight.
	ResolveIdentity(ctx context.Context, id model.Identity) (*model.User, error)
}

// Authenticator resolves the current user for every request.
//
// CREDENTIAL ORDER:
//  1. the "session_token" cookie, looked up in the session store
//  2. "Authorization: Bearer <jwt>", only when a verifier is configured
//
// A missing, invalid or expired credential is not an error here: the request
// continues anonymously and RequireUser decides whether that is acceptable.
// Only infrastructure failures (database down) stop the request with a 500.
type Authenticator struct {
	resolver Resolver
	verifier *IdentityVerifier // nil disables bearer tokens
	logger   *slog.Logger
}

func NewAuthenticator(resolver Resolver, verifier *IdentityVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{resolver: resolver, verifier: verifier, logger: logger}
}

// Authenticate is the middleware form of the lookup above.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			a.logger.Error("resolving request user",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if user != nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolve(r *http.Request) (*model.User, error) {
	ctx := r.Context()

	if token := SessionTokenFromRequest(r); token != "" {
		user, err := a.resolver.ResolveSession(ctx, token)
		if err == nil {
			return user, nil
		}
		if !isCredentialError(err) {
			return nil, err
		}
	}

	if a.verifier == nil {
		return nil, nil
	}
	bearer := bearerToken(r)
	if bearer == "" {
		return nil, nil
	}
	id, err := a.verifier.Verify(bearer)
	if err != nil {
		a.logger.Debug("ignoring bearer token", slog.String("error", err.Error()))
		return nil, nil
	}
	return a.resolver.ResolveIdentity(ctx, id)
}

// RequireUser rejects anonymous requests with 401. It must run after
// Authenticate.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user resolved by Authenticate, or
// (nil, false) for an anonymous request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func isCredentialError(err error) bool {
	return errors.Is(err, apperror.ErrUnauthorized) || errors.Is(err, apperror.ErrNotFound)
}

// writeDetail mirrors the handler package's error shape. auth sits below
// handler in the import graph, so it cannot reuse that helper.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
