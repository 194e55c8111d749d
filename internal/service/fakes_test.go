package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/imitation/backend/internal/apperror"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// In-memory stand-ins for the SQL store. They enforce the same unique
// constraints the schema does (username, external_uid, token_hash) so the
// duplicate-handling paths in the services run for real. A mutex makes them
// safe for the concurrent tests.

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64

	createCalls int
	createErr   error // returned by every CreateUser when set
	lookupErr   error // returned by GetUserByExternalUID when set
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return fmt.Errorf("fake: %w: username", repository.ErrDuplicate)
		}
		if u.ExternalUID != nil && existing.ExternalUID != nil && *existing.ExternalUID == *u.ExternalUID {
			return fmt.Errorf("fake: %w: external_uid", repository.ErrDuplicate)
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now().UTC()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("User")
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, name string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == name })
}

func (f *fakeUserRepo) GetUserByExternalUID(_ context.Context, uid string) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.find(func(u *model.User) bool { return u.ExternalUID != nil && *u.ExternalUID == uid })
}

func (f *fakeUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("User")
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeTweetRepo struct {
	tweets map[int64]*model.Tweet
	nextID int64
	err    error
}

func newFakeTweetRepo() *fakeTweetRepo {
	return &fakeTweetRepo{tweets: make(map[int64]*model.Tweet)}
}

func (f *fakeTweetRepo) CreateTweet(_ context.Context, t *model.Tweet) error {
	if f.err != nil {
		return f.err
	}
	if t.IsComment && t.ParentTweetID != nil {
		parent, ok := f.tweets[*t.ParentTweetID]
		if !ok {
			return apperror.NotFound("Parent tweet")
		}
		parent.Replies++
	}
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now().UTC()
	stored := *t
	f.tweets[t.ID] = &stored
	return nil
}

func (f *fakeTweetRepo) GetTweet(_ context.Context, id int64) (*model.Tweet, error) {
	t, ok := f.tweets[id]
	if !ok {
		return nil, apperror.NotFound("Tweet")
	}
	out := *t
	return &out, nil
}

func (f *fakeTweetRepo) TweetExists(_ context.Context, id int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.tweets[id]
	return ok, nil
}

func (f *fakeTweetRepo) ListFeed(_ context.Context, opts repository.ListOptions) ([]model.Tweet, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Tweet
	for _, t := range f.sorted() {
		if !t.IsComment {
			out = append(out, t)
		}
	}
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if opts.Offset >= len(out) {
		return []model.Tweet{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeTweetRepo) ListComments(_ context.Context, parentID int64) ([]model.Tweet, error) {
	out := []model.Tweet{}
	for _, t := range f.sorted() {
		if t.IsComment && t.ParentTweetID != nil && *t.ParentTweetID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTweetRepo) sorted() []model.Tweet {
	out := make([]model.Tweet, 0, len(f.tweets))
	for _, t := range f.tweets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeScoreRepo struct {
	asteroid []model.AsteroidScore
	color    []model.ColorGameScore
	lastN    int
}

func (f *fakeScoreRepo) CreateAsteroidScore(_ context.Context, s *model.AsteroidScore) error {
	s.ID = int64(len(f.asteroid) + 1)
	f.asteroid = append(f.asteroid, *s)
	return nil
}

func (f *fakeScoreRepo) TopAsteroidScores(_ context.Context, n int) ([]model.LeaderboardEntry, error) {
	f.lastN = n
	sorted := append([]model.AsteroidScore(nil), f.asteroid...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	out := []model.LeaderboardEntry{}
	for i := 0; i < len(sorted) && i < n; i++ {
		out = append(out, model.LeaderboardEntry{PlayerName: sorted[i].PlayerName, Score: sorted[i].Score})
	}
	return out, nil
}

func (f *fakeScoreRepo) CreateColorGameScore(_ context.Context, s *model.ColorGameScore) error {
	s.ID = int64(len(f.color) + 1)
	f.color = append(f.color, *s)
	return nil
}

func (f *fakeScoreRepo) ColorGameStandings(_ context.Context, room string) ([]model.ColorGameStanding, error) {
	totals := map[string]*model.ColorGameStanding{}
	var order []string
	for _, s := range f.color {
		if s.RoomCode != room {
			continue
		}
		st, ok := totals[s.Nickname]
		if !ok {
			st = &model.ColorGameStanding{Nickname: s.Nickname}
			totals[s.Nickname] = st
			order = append(order, s.Nickname)
		}
		st.TotalPoints += s.Points
		st.RoundsPlayed++
	}
	out := []model.ColorGameStanding{}
	for _, name := range order {
		out = append(out, *totals[name])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	return out, nil
}

type fakeSessionRepo struct {
	sessions   map[string]model.Session
	sweptAt    time.Time
	deletedFor []string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]model.Session)}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, s *model.Session) error {
	if _, ok := f.sessions[s.TokenHash]; ok {
		return repository.ErrDuplicate
	}
	f.sessions[s.TokenHash] = *s
	return nil
}

func (f *fakeSessionRepo) GetSession(_ context.Context, hash string) (*model.Session, error) {
	s, ok := f.sessions[hash]
	if !ok {
		return nil, apperror.NotFound("Session")
	}
	return &s, nil
}

func (f *fakeSessionRepo) DeleteSession(_ context.Context, hash string) error {
	f.deletedFor = append(f.deletedFor, hash)
	delete(f.sessions, hash)
	return nil
}

func (f *fakeSessionRepo) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.sweptAt = now
	var n int64
	for hash, s := range f.sessions {
		if s.Expired(now) {
			delete(f.sessions, hash)
			n++
		}
	}
	return n, nil
}

type studyKey struct{ cardID, userID int64 }

type fakeDeckRepo struct {
	decks   map[int64]*model.Deck
	cards   map[int64]*model.Card
	entries map[studyKey]model.StudyEntry
	nextID  int64

	lastAsOf  time.Time
	lastLimit int
}

func newFakeDeckRepo() *fakeDeckRepo {
	return &fakeDeckRepo{
		decks:   make(map[int64]*model.Deck),
		cards:   make(map[int64]*model.Card),
		entries: make(map[studyKey]model.StudyEntry),
	}
}

func (f *fakeDeckRepo) CreateDeck(_ context.Context, d *model.Deck) error {
	f.nextID++
	d.ID = f.nextID
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	stored := *d
	f.decks[d.ID] = &stored
	return nil
}

func (f *fakeDeckRepo) ListDecks(_ context.Context, userID int64, asOf time.Time) ([]model.Deck, error) {
	f.lastAsOf = asOf
	out := []model.Deck{}
	for _, d := range f.decks {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeDeckRepo) GetDeck(_ context.Context, deckID, userID int64, asOf time.Time) (*model.Deck, error) {
	f.lastAsOf = asOf
	d, ok := f.decks[deckID]
	if !ok || d.UserID != userID {
		return nil, apperror.NotFound("Deck")
	}
	out := *d
	for _, c := range f.cards {
		if c.DeckID == deckID {
			out.CardCount++
		}
	}
	return &out, nil
}

func (f *fakeDeckRepo) UpdateDeck(_ context.Context, d *model.Deck) error {
	stored, ok := f.decks[d.ID]
	if !ok || stored.UserID != d.UserID {
		return apperror.NotFound("Deck")
	}
	d.UpdatedAt = time.Now().UTC()
	*stored = *d
	return nil
}

func (f *fakeDeckRepo) DeleteDeck(_ context.Context, deckID, userID int64) error {
	d, ok := f.decks[deckID]
	if !ok || d.UserID != userID {
		return apperror.NotFound("Deck")
	}
	delete(f.decks, deckID)
	for id, c := range f.cards {
		if c.DeckID == deckID {
			delete(f.cards, id)
		}
	}
	return nil
}

func (f *fakeDeckRepo) CreateCard(_ context.Context, c *model.Card) error {
	d, ok := f.decks[c.DeckID]
	if !ok {
		return fmt.Errorf("fake: deck %d missing", c.DeckID)
	}
	f.nextID++
	c.ID = f.nextID
	c.OwnerID = d.UserID
	c.Status = model.StudyStatusNew
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	f.cards[c.ID] = &stored
	return nil
}

func (f *fakeDeckRepo) ListCards(_ context.Context, deckID, userID int64) ([]model.Card, error) {
	out := []model.Card{}
	for _, c := range f.cards {
		if c.DeckID == deckID {
			out = append(out, f.withStudy(*c, userID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDeckRepo) GetCard(_ context.Context, cardID, userID int64) (*model.Card, error) {
	c, ok := f.cards[cardID]
	if !ok {
		return nil, apperror.NotFound("Card")
	}
	out := f.withStudy(*c, userID)
	return &out, nil
}

func (f *fakeDeckRepo) withStudy(c model.Card, userID int64) model.Card {
	c.Status = model.StudyStatusNew
	c.NextReviewAt = nil
	if e, ok := f.entries[studyKey{c.ID, userID}]; ok {
		c.Status = e.Status
		next := e.NextReviewAt
		c.NextReviewAt = &next
	}
	return c
}

func (f *fakeDeckRepo) UpdateCard(_ context.Context, c *model.Card) error {
	stored, ok := f.cards[c.ID]
	if !ok {
		return apperror.NotFound("Card")
	}
	c.UpdatedAt = time.Now().UTC()
	stored.Front, stored.Back, stored.UpdatedAt = c.Front, c.Back, c.UpdatedAt
	return nil
}

func (f *fakeDeckRepo) DeleteCard(_ context.Context, cardID int64) error {
	if _, ok := f.cards[cardID]; !ok {
		return apperror.NotFound("Card")
	}
	delete(f.cards, cardID)
	return nil
}

func (f *fakeDeckRepo) DueCards(_ context.Context, deckID, userID int64, asOf time.Time, limit int) ([]model.StudyCard, error) {
	f.lastAsOf = asOf
	f.lastLimit = limit
	out := []model.StudyCard{}
	for _, c := range f.sortedCards(deckID) {
		e, ok := f.entries[studyKey{c.ID, userID}]
		if ok && e.NextReviewAt.After(asOf) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, f.studyCard(c, userID))
	}
	return out, nil
}

func (f *fakeDeckRepo) StudyCards(_ context.Context, deckID, userID int64) ([]model.StudyCard, error) {
	out := []model.StudyCard{}
	for _, c := range f.sortedCards(deckID) {
		out = append(out, f.studyCard(c, userID))
	}
	return out, nil
}

func (f *fakeDeckRepo) sortedCards(deckID int64) []model.Card {
	var out []model.Card
	for _, c := range f.cards {
		if c.DeckID == deckID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeDeckRepo) studyCard(c model.Card, userID int64) model.StudyCard {
	sc := model.StudyCard{ID: c.ID, Front: c.Front, Back: c.Back, Status: model.StudyStatusNew}
	if e, ok := f.entries[studyKey{c.ID, userID}]; ok {
		sc.Status = e.Status
		sc.ReviewCount = e.ReviewCount
	}
	return sc
}

func (f *fakeDeckRepo) GetStudyEntry(_ context.Context, cardID, userID int64) (*model.StudyEntry, error) {
	e, ok := f.entries[studyKey{cardID, userID}]
	if !ok {
		return nil, apperror.NotFound("Study entry")
	}
	return &e, nil
}

func (f *fakeDeckRepo) SaveStudyEntry(_ context.Context, e *model.StudyEntry) error {
	f.entries[studyKey{e.CardID, e.UserID}] = *e
	return nil
}
