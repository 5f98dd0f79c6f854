package handlers

import (
	"net/http"

	"campusmarket/internal/apperr"
	"campusmarket/models"
)

func (h *Handler) GetChatRoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Store.ListChatRoomsForUser(r.Context(), principal(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []models.ChatRoom{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// GetChatMessagesHandler отдает историю комнаты только ее участникам
func (h *Handler) GetChatMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID, err := urlID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	room, err := h.Store.GetChatRoom(r.Context(), roomID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !room.HasParticipant(principal(r).UserID) {
		h.writeError(w, r, apperr.NotFound("Chat room not found"))
		return
	}

	params := parsePaginationParams(r)
	messages, err := h.Store.ListMessages(r.Context(), roomID, params.Limit, params.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}
