// Package service contains interface for service business-logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tickertape-app/tickertape/internal/entities"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

// ErrForbidden is returned when a caller mutates an entity they do not own.
var ErrForbidden = errors.New("forbidden")

// FeedPageSize is a fixed page size for the follow feed.
const FeedPageSize = 5

// DefaultPageSize is a fixed page size for home, top, search and profile listings.
const DefaultPageSize = 10

// MessagesPageSize is a fixed page size for a conversation thread.
const MessagesPageSize = 50

// ValidationError reports a field-level input violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Window restricts top views to posts created within [now-window, now).
type Window string

const (
	// DayWindow ...
	DayWindow Window = "day"
	// WeekWindow ...
	WeekWindow Window = "week"
	// MonthWindow ...
	MonthWindow Window = "month"
	// YearWindow ...
	YearWindow Window = "year"
	// AllWindow ...
	AllWindow Window = "all"
)

// Duration returns window size and false for the unbounded window.
func (w Window) Duration() (time.Duration, bool) {
	switch w {
	case DayWindow:
		return 24 * time.Hour, true
	case WeekWindow:
		return 7 * 24 * time.Hour, true
	case MonthWindow:
		return 30 * 24 * time.Hour, true
	case YearWindow:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// UpdateProfileParams ...
type UpdateProfileParams struct {
	Avatar string
	Bio    string
}

// CreatePostParams ...
type CreatePostParams struct {
	Content    string
	Ticker     string
	Image      string
	Tags       []string
	DateTraded time.Time
}

// UpdatePostParams ...
type UpdatePostParams struct {
	Content    string
	Ticker     string
	Image      string
	Tags       []string
	DateTraded time.Time
}

// ListPostsParams is a page-number view over the post store.
type ListPostsParams struct {
	Page   uint32
	Author *string
	Ticker *string
	Tag    *string
	Query  *string
}

// Service ...
type Service interface {
	GetProfile(ctx context.Context, username string) (*entities.Profile, error)
	UpdateProfile(ctx context.Context, username string, p UpdateProfileParams) error

	Follow(ctx context.Context, follower, followee string) error
	Unfollow(ctx context.Context, follower, followee string) error
	IsFollowing(ctx context.Context, follower, followee string) (bool, error)
	ListFollowing(ctx context.Context, username string) ([]string, error)
	ListFollowers(ctx context.Context, username string) ([]string, error)

	CreatePost(ctx context.Context, author string, p CreatePostParams) (*entities.Post, error)
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	UpdatePost(ctx context.Context, editor, id string, p UpdatePostParams) (*entities.Post, error)
	DeletePost(ctx context.Context, deleter, id string) error
	ListPosts(ctx context.Context, p ListPostsParams) ([]*entities.Post, error)
	Feed(ctx context.Context, username string, page uint32) ([]*entities.Post, error)
	Top(ctx context.Context, w Window, page uint32) ([]*entities.Post, error)

	AddComment(ctx context.Context, author, postID, content string) (*entities.Comment, error)
	DeleteComment(ctx context.Context, deleter, commentID string) error
	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)

	ToggleUpvote(ctx context.Context, username, postID string) (bool, error)

	SendMessage(ctx context.Context, sender, recipient, text string) (*entities.Message, error)
	ListConversations(ctx context.Context, username string) ([]*entities.Conversation, error)
	ListMessages(ctx context.Context, username, peer string, page uint32) ([]*entities.Message, error)
}
