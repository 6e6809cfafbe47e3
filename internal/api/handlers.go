package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cryptoscout/pkg/cryptoscout"
)

// maxChatBodySize caps chat request bodies; history grows client-side.
const maxChatBodySize = 256 << 10

const maxSparklineDays = 365

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) getCoins(w http.ResponseWriter, r *http.Request) {
	assets, err := h.core.GetTopAssets(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to fetch market data: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	take := parseIntDefault(r.URL.Query().Get("take"), 0)
	result, err := h.core.Recommend(r.Context(), take)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to fetch market data: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getSparkline(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	id := query.Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	days := parseIntDefault(query.Get("days"), maxSparklineDays)
	if days < 1 {
		days = 1
	}
	if days > maxSparklineDays {
		days = maxSparklineDays
	}
	writeJSON(w, http.StatusOK, h.core.GetSparkline(r.Context(), id, days))
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply := h.core.Chat(r.Context(), payload.Messages)
	writeJSON(w, http.StatusOK, chatResponse{
		Messages: []cryptoscout.ChatMessage{
			{Role: cryptoscout.RoleAssistant, Content: reply},
		},
	})
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxChatBodySize))
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
