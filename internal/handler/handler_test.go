package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/imitation/backend/internal/auth"
	"github.com/imitation/backend/internal/repository/sqlstore"
	"github.com/imitation/backend/internal/service"
)

// testEnv is a router over a real SQLite file, wired the way the server
// wires it but without CORS or request logging.
type testEnv struct {
	router http.Handler
	db     *sqlstore.DB
	auth   *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlstore.New(context.Background(), sqlstore.Options{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "handler.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := service.NewUserService(db, logger)
	tweets := service.NewTweetService(db, logger)
	scores := service.NewScoreService(db, logger)
	decks := service.NewDeckService(db, logger)
	sessions := service.NewAuthService(db, db, users,
		auth.NewPasswordServiceWithCost(bcrypt.MinCost), auth.SessionTTL, logger)

	authH := NewAuthHandler(sessions, nil, false, logger)
	userH := NewUserHandler(users, logger)
	tweetH := NewTweetHandler(tweets, logger)
	scoreH := NewScoreHandler(scores, logger)
	deckH := NewDeckHandler(decks, logger)

	r := chi.NewRouter()
	r.Use(auth.NewAuthenticator(sessions, nil, logger).Authenticate)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authH.HandleSignup)
		r.Post("/auth/login", authH.HandleLogin)
		r.Post("/auth/logout", authH.HandleLogout)
		r.Get("/auth/session", authH.HandleSession)

		r.Post("/user", userH.HandleCreate)
		r.Get("/user/{userId}", userH.HandleGet)

		r.Get("/home", tweetH.HandleHome)
		r.Get("/tweet/{tweetId}", tweetH.HandleGet)
		r.Get("/tweet/{tweetId}/comments", tweetH.HandleComments)
		r.Get("/comments", tweetH.HandleCommentsQuery)

		r.Get("/asteroid-scores", scoreH.HandleLeaderboard)
		r.Get("/color-game/scores", scoreH.HandleStandings)
		r.Post("/color-game/scores", scoreH.HandleRecordColorRound)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Post("/create-tweet/user/{userId}", tweetH.HandleCreate)
			r.Post("/asteroid-scores", scoreH.HandleSubmitAsteroid)

			r.Get("/decks", deckH.HandleList)
			r.Post("/decks", deckH.HandleCreate)
			r.Get("/decks/{deckId}", deckH.HandleGet)
			r.Put("/decks/{deckId}", deckH.HandleUpdate)
			r.Delete("/decks/{deckId}", deckH.HandleDelete)
			r.Get("/decks/{deckId}/cards", deckH.HandleCards)
			r.Post("/decks/{deckId}/cards", deckH.HandleAddCard)
			r.Get("/decks/{deckId}/study", deckH.HandleStudy)
			r.Get("/decks/{deckId}/study-all", deckH.HandleStudyAll)
			r.Put("/cards/{cardId}", deckH.HandleUpdateCard)
			r.Delete("/cards/{cardId}", deckH.HandleDeleteCard)
			r.Post("/cards/{cardId}/review", deckH.HandleReview)
		})
	})

	return &testEnv{router: r, db: db, auth: sessions}
}

// do sends body (a string is sent verbatim, anything else as JSON).
func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// login creates a password account and returns its session cookie.
func (e *testEnv) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	ctx := context.Background()
	_, err := e.auth.Signup(ctx, username, "correct-horse")
	require.NoError(t, err)
	issued, err := e.auth.Login(ctx, username, "correct-horse")
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: issued.Token}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertDetail(t *testing.T, rec *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, detail, decode[ErrorResponse](t, rec).Detail)
}
