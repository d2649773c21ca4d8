package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	mm "github.com/tickertape-app/tickertape/internal/middleware"
)

func (s server) listConversations(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /messages Messages ListConversations
	//
	// List the caller's conversations, most recently active first.
	//
	// ---
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/ListConversationsResponse"

	cc, err := s.s.ListConversations(r.Context(), mm.Username(r.Context()))
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to list conversations: %s", err.Error())
		return
	}

	out := make([]*Conversation, len(cc))
	for i, c := range cc {
		out[i] = toAPIConversation(c)
	}

	writeOK(w, http.StatusOK, ListConversationsResponse{Conversations: out})
}

func (s server) listMessages(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /messages/{username} Messages ListMessages
	//
	// List the conversation thread between the caller and the given user,
	// oldest first.
	//
	// ---
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/ListMessagesResponse"
	//   '404':
	//     description: no conversation with that user yet

	msgs, err := s.s.ListMessages(
		r.Context(),
		mm.Username(r.Context()),
		chi.URLParam(r, "username"),
		extractPageFromQuery(r.URL.Query()),
	)
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to list messages")
		return
	}

	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		out[i] = toAPIMessage(m)
	}

	writeOK(w, http.StatusOK, ListMessagesResponse{Messages: out})
}

func (s server) sendMessage(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /messages/{username} Messages SendMessage
	//
	// Send a direct message to the given user, creating the conversation on
	// the first message.
	//
	// ---
	// responses:
	//   '201':
	//     schema:
	//       "$ref": "#/definitions/Message"
	//   '400':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	msg, err := s.s.SendMessage(r.Context(), mm.Username(r.Context()), chi.URLParam(r, "username"), req.Text)
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to send message")
		return
	}

	writeOK(w, http.StatusCreated, toAPIMessage(msg))
}
