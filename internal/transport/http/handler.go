package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/app"
	"github.com/ACM-VIT/codex-portal/internal/auth"
	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	defaultSubmissionLimit  = 50
	defaultLeaderboardLimit = 100
	liveWriteTimeout        = 10 * time.Second
)

// Handler wires the portal use cases into HTTP routes.
type Handler struct {
	submissions *app.SubmissionService
	catalog     *app.CatalogService
	live        *Broadcaster
	auth        *auth.Authenticator
	upgrader    websocket.Upgrader
}

func NewHandler(submissions *app.SubmissionService, catalog *app.CatalogService, live *Broadcaster, authn *auth.Authenticator) *Handler {
	return &Handler{
		submissions: submissions,
		catalog:     catalog,
		live:        live,
		auth:        authn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes builds the portal mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Handle("POST /api/answer", h.auth.Middleware(http.HandlerFunc(h.submitAnswer)))
	mux.Handle("GET /api/challenges", h.auth.Middleware(http.HandlerFunc(h.listChallenges)))
	mux.Handle("POST /api/challenges", h.auth.RequireAdmin(http.HandlerFunc(h.createChallenge)))
	mux.Handle("DELETE /api/challenges/{id}", h.auth.RequireAdmin(http.HandlerFunc(h.deleteChallenge)))
	mux.Handle("GET /api/submissions", h.auth.RequireAdmin(http.HandlerFunc(h.listSubmissions)))
	mux.HandleFunc("GET /api/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /ws/leaderboard", h.serveLive)
	return mux
}

type answerRequest struct {
	ChallengeID int64  `json:"challengeId"`
	Answer      string `json:"answer"`
}

type answerResponse struct {
	Correct          bool `json:"correct"`
	AlreadyCompleted bool `json:"alreadyCompleted"`
	Awarded          int  `json:"awarded"`
	TotalPoints      int  `json:"totalPoints"`
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "challenge ID and answer are required.")
		return
	}
	if req.ChallengeID <= 0 || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "challenge ID and answer are required.")
		return
	}

	if err := h.submissions.RegisterUser(r.Context(), id.Name); err != nil {
		log.Printf("register user %q: %v", id.Name, err)
	}

	result, err := h.submissions.SubmitAnswer(r.Context(), id.Name, req.ChallengeID, req.Answer)
	if err != nil {
		h.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		Correct:          result.Correct,
		AlreadyCompleted: result.AlreadyCompleted,
		Awarded:          result.Awarded,
		TotalPoints:      result.TotalPoints,
	})
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, "challenge not found.")
	case errors.Is(err, domain.ErrMalformedPattern), errors.Is(err, domain.ErrNoAnswerConfigured):
		// Configuration faults need an operator; detail stays in the logs.
		log.Printf("answer configuration fault: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to process the answer.")
	default:
		log.Printf("submit answer failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to process the answer.")
	}
}

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	if err := h.submissions.RegisterUser(r.Context(), id.Name); err != nil {
		log.Printf("register user %q: %v", id.Name, err)
	}

	summaries, err := h.catalog.ListForUser(r.Context(), id.Name)
	if err != nil {
		log.Printf("list challenges: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch challenges.")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type createChallengeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	MustInclude string `json:"mustInclude"`
	Answer      string `json:"answer"`
}

func (h *Handler) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req createChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid challenge payload.")
		return
	}

	ch, err := h.catalog.Create(r.Context(), domain.Challenge{
		Name:        req.Name,
		Description: req.Description,
		Difficulty:  domain.Difficulty(req.Difficulty),
		MustInclude: req.MustInclude,
		Answer:      req.Answer,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidChallenge) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("create challenge: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add challenge.")
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *Handler) deleteChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || challengeID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid challenge ID format.")
		return
	}

	if err := h.catalog.Delete(r.Context(), challengeID); err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found.")
			return
		}
		log.Printf("delete challenge %d: %v", challengeID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete challenge.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "challenge deleted"})
}

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultSubmissionLimit)
	views, err := h.catalog.RecentSubmissions(r.Context(), limit)
	if err != nil {
		log.Printf("list submissions: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch submissions.")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultLeaderboardLimit)
	lb, err := h.submissions.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Printf("leaderboard: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch leaderboard.")
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// serveLive upgrades to a websocket and streams leaderboard snapshots until
// the client disconnects.
func (h *Handler) serveLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.live.Subscribe()
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteJSON(lb); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
