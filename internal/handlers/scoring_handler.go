package handlers

import (
	"net/http"

	"mathquest/internal/service"
)

// ScoringHandler handles answer outcomes and difficulty routes
type ScoringHandler struct {
	scoring  *service.ScoringService
	leveling *service.LevelingService
}

// NewScoringHandler creates a new scoring handler
func NewScoringHandler(scoring *service.ScoringService, leveling *service.LevelingService) *ScoringHandler {
	return &ScoringHandler{scoring: scoring, leveling: leveling}
}

type scoreRequest struct {
	Username  string `json:"username"`
	IsCorrect *bool  `json:"isCorrect"`
	Points    int    `json:"points"`
}

// RecordScore records a graded answer for the topic in the path
func (h *ScoringHandler) RecordScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.scoring.RecordAnswerOutcome(r.Context(), service.AnswerOutcome{
		Username:  req.Username,
		Topic:     r.PathValue("topic"),
		IsCorrect: req.IsCorrect,
		Points:    req.Points,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": result})
}

// GetFrequency returns the frequency counter of a topic for ?username=
func (h *ScoringHandler) GetFrequency(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")
	tier, err := h.leveling.GetFrequencyTier(r.Context(), r.URL.Query().Get("username"), topic)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"topic":         topic,
		"frequencyTier": tier,
		"tier":          service.CurrentTier(tier),
	})
}

type frequencyRequest struct {
	Username string `json:"username"`
	Tier     int    `json:"tier"`
}

// SetFrequency stores the frequency counter of a topic
func (h *ScoringHandler) SetFrequency(w http.ResponseWriter, r *http.Request) {
	var req frequencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	topic := r.PathValue("topic")
	if err := h.leveling.SetFrequencyTier(r.Context(), req.Username, topic, req.Tier); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "topic": topic, "frequencyTier": req.Tier})
}

// Levels returns the difficulty of every topic for the learner in the path
func (h *ScoringHandler) Levels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.leveling.Levels(r.Context(), r.PathValue("username"))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "levels": levels})
}
