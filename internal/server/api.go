package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"

	"github.com/tickertape-app/tickertape/internal/entities"
	"github.com/tickertape-app/tickertape/internal/service"
	"github.com/tickertape-app/tickertape/internal/storage"
)

// Error ...
// swagger:model
type Error struct {
	Error string `json:"error"`
}

// Post ...
type Post struct {
	ID           string   `json:"id"`
	Author       string   `json:"author"`
	Content      string   `json:"content"`
	Ticker       string   `json:"ticker,omitempty"`
	Image        string   `json:"image,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	DateTraded   uint64   `json:"dateTraded"`
	TotalUpvotes uint32   `json:"totalUpvotes"`
	CreatedAt    uint64   `json:"createdAt"`
}

// ListPostsResponse wraps post listings, key spelling is part of the public contract.
// swagger:model
type ListPostsResponse struct {
	Response []*Post `json:"response"`
}

// PostNotFoundResponse is the contract shape for a missing post.
type PostNotFoundResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Comment ...
type Comment struct {
	ID        string `json:"id"`
	PostID    string `json:"postId"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt uint64 `json:"createdAt"`
}

// GetPostResponse ...
// swagger:model
type GetPostResponse struct {
	Post
	Comments []*Comment `json:"comments"`
}

// Profile ...
type Profile struct {
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	Bio       string `json:"bio"`
	Followers uint32 `json:"followers"`
	Following uint32 `json:"following"`
	CreatedAt uint64 `json:"createdAt"`
}

// GetUserResponse ...
// swagger:model
type GetUserResponse struct {
	Profile     Profile `json:"profile"`
	Posts       []*Post `json:"posts"`
	IsFollowing bool    `json:"isFollowing"`
}

// ListUsersResponse ...
// swagger:model
type ListUsersResponse struct {
	Users []string `json:"users"`
}

// ListConversationsResponse ...
// swagger:model
type ListConversationsResponse struct {
	Conversations []*Conversation `json:"conversations"`
}

// ListMessagesResponse ...
// swagger:model
type ListMessagesResponse struct {
	Messages []*Message `json:"messages"`
}

// UpvoteResponse ...
type UpvoteResponse struct {
	ID      string `json:"id"`
	Upvoted bool   `json:"upvoted"`
}

// Conversation ...
type Conversation struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	LastMessage  string   `json:"lastMessage"`
	CreatedAt    uint64   `json:"createdAt"`
}

// Message ...
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Sender         string `json:"sender"`
	Recipient      string `json:"recipient"`
	Text           string `json:"text"`
	SentAt         uint64 `json:"sentAt"`
}

// CreatePostRequest ...
type CreatePostRequest struct {
	Content    string   `json:"content"`
	Ticker     string   `json:"ticker"`
	Image      string   `json:"image"`
	Tags       []string `json:"tags"`
	DateTraded uint64   `json:"dateTraded"`
}

// UpdateProfileRequest ...
type UpdateProfileRequest struct {
	Avatar string `json:"avatar"`
	Bio    string `json:"bio"`
}

// AddCommentRequest ...
type AddCommentRequest struct {
	Content string `json:"content"`
}

// SendMessageRequest ...
type SendMessageRequest struct {
	Text string `json:"text"`
}

func writeOK(w http.ResponseWriter, status int, v interface{}) {
	b, _ := json.Marshal(v)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b) // nolint
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeOK(w, status, Error{Error: message})
}

func writeInternalErrorf(ctx context.Context, w http.ResponseWriter, format string, args ...interface{}) {
	logrus.WithField("request_id", middleware.GetReqID(ctx)).Errorf(format, args...)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// writeDomainError maps service errors to status codes, msg is used for the
// internal-error log line.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	var vErr *service.ValidationError

	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	default:
		writeInternalErrorf(ctx, w, "%s: %s", msg, err.Error())
	}
}

func toAPIPost(p *entities.Post) *Post {
	if p == nil {
		return nil
	}

	return &Post{
		ID:           p.ID,
		Author:       p.Author,
		Content:      p.Content,
		Ticker:       p.Ticker,
		Image:        p.Image,
		Tags:         p.Tags,
		DateTraded:   uint64(p.DateTraded.Unix()),
		TotalUpvotes: p.TotalUpvotes,
		CreatedAt:    uint64(p.CreatedAt.Unix()),
	}
}

func toAPIPosts(pp []*entities.Post) []*Post {
	out := make([]*Post, len(pp))
	for i, v := range pp {
		out[i] = toAPIPost(v)
	}

	return out
}

func toAPIComment(c *entities.Comment) *Comment {
	if c == nil {
		return nil
	}

	return &Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    c.Author,
		Content:   c.Content,
		CreatedAt: uint64(c.CreatedAt.Unix()),
	}
}

func toAPIProfile(p *entities.Profile) Profile {
	out := Profile{
		Username:  p.Username,
		Avatar:    p.Avatar,
		Bio:       p.Bio,
		Followers: p.Followers,
		Following: p.Following,
	}

	// placeholder profiles have no stored row
	if !p.CreatedAt.IsZero() {
		out.CreatedAt = uint64(p.CreatedAt.Unix())
	}

	return out
}

func toAPIConversation(c *entities.Conversation) *Conversation {
	return &Conversation{
		ID:           c.ID,
		Participants: c.Participants,
		LastMessage:  c.LastMessage,
		CreatedAt:    uint64(c.CreatedAt.Unix()),
	}
}

func toAPIMessage(m *entities.Message) *Message {
	return &Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Recipient:      m.Recipient,
		Text:           m.Text,
		SentAt:         uint64(m.SentAt.Unix()),
	}
}
