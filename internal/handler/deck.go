package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/imitation/backend/internal/auth"
	"github.com/imitation/backend/internal/model"
	"github.com/imitation/backend/internal/service"
)

// DeckHandler serves flashcard decks, their cards and study sessions.
// Every route sits behind auth.RequireUser.
//
// HANDLER RESPONSIBILITIES:
//   - HandleList / HandleCreate          → the caller's decks
//   - HandleGet / HandleUpdate / HandleDelete
//   - HandleCards / HandleAddCard        → cards inside one deck
//   - HandleStudy / HandleStudyAll       → due cards, or every card
//   - HandleUpdateCard / HandleDeleteCard / HandleReview → one card by ID
type DeckHandler struct {
	decks  *service.DeckService
	logger *slog.Logger
}

func NewDeckHandler(decks *service.DeckService, logger *slog.Logger) *DeckHandler {
	return &DeckHandler{decks: decks, logger: logger}
}

type deckRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type cardRequest struct {
	Front *string `json:"front"`
	Back  *string `json:"back"`
}

// reviewRequest keeps remind_value raw: clients send both 5 and "5".
type reviewRequest struct {
	RemindValue json.RawMessage `json:"remind_value"`
	RemindUnit  string          `json:"remind_unit"`
}

// user is only nil if the route was mounted without RequireUser.
func (h *DeckHandler) user(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Detail: "Not authenticated"})
	}
	return user, ok
}

// HandleList: GET /api/decks
func (h *DeckHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	decks, err := h.decks.List(r.Context(), user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decks)
}

// HandleCreate creates a deck.
//
// HTTP: POST /api/decks
// BODY: {"name": "Spanish", "description": "optional"}
func (h *DeckHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req deckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	deck, err := h.decks.Create(r.Context(), user, service.DeckInput{
		Name:        deref(req.Name),
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}

// HandleGet: GET /api/decks/{deckId}
func (h *DeckHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	deckID, err := pathID(r, "deckId", "Deck")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	deck, err := h.decks.Get(r.Context(), user, deckID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

// HandleUpdate renames or redescribes a deck. Omitted or null fields keep
// their value.
//
// HTTP: PUT /api/decks/{deckId}
func (h *DeckHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	deckID, err := pathID(r, "deckId", "Deck")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req deckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	deck, err := h.decks.Update(r.Context(), user, deckID, service.DeckUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

// HandleDelete: DELETE /api/decks/{deckId} → 204
func (h *DeckHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	deckID, err := pathID(r, "deckId", "Deck")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.decks.Delete(r.Context(), user, deckID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCards: GET /api/decks/{deckId}/cards
func (h *DeckHandler) HandleCards(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	deckID, err := pathID(r, "deckId", "Deck")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cards, err := h.decks.Cards(r.Context(), user, deckID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// HandleAddCard adds a card to a deck.
//
// HTTP: POST /api/decks/{deckId}/cards
// BODY: {"front": "hola", "back": "hello"}
func (h *DeckHandler) HandleAddCard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	deckID, err := pathID(r, "deckId", "Deck")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	card, err := h.decks.AddCard(r.Context(), user, deckID, service.CardInput{
		Front: deref(req.Front),
		Back:  deref(req.Back),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// HandleStudy returns the cards due for review now.
//
// HTTP: GET /api/decks/{deckId}/study?limit=10
func (h *DeckHandler) HandleStudy(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	deckID, err := pathID(r, "deckId", "Deck")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit := service.ParseStudyLimit(r.URL.Query().Get("limit"))
	cards, err := h.decks.StudyQueue(r.Context(), user, deckID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// HandleStudyAll: GET /api/decks/{deckId}/study-all
func (h *DeckHandler) HandleStudyAll(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	deckID, err := pathID(r, "deckId", "Deck")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cards, err := h.decks.StudyAll(r.Context(), user, deckID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// HandleUpdateCard edits a card. Omitted or null sides keep their value.
//
// HTTP: PUT /api/cards/{cardId}
func (h *DeckHandler) HandleUpdateCard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	cardID, err := pathID(r, "cardId", "Card")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	card, err := h.decks.UpdateCard(r.Context(), user, cardID, service.CardUpdate{
		Front: req.Front,
		Back:  req.Back,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// HandleDeleteCard: DELETE /api/cards/{cardId} → 204
func (h *DeckHandler) HandleDeleteCard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	cardID, err := pathID(r, "cardId", "Card")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.decks.DeleteCard(r.Context(), user, cardID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReview records a review and schedules the next reminder.
//
// HTTP: POST /api/cards/{cardId}/review
// BODY: {"remind_value": 10, "remind_unit": "min" | "hr" | "day"}
func (h *DeckHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	cardID, err := pathID(r, "cardId", "Card")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.decks.Review(r.Context(), user, cardID, service.ReviewInput{
		RemindValue: strings.Trim(string(req.RemindValue), `"`),
		RemindUnit:  req.RemindUnit,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
