// Package storage contains a storage interface.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tickertape-app/tickertape/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

// ErrNotFound ...
var ErrNotFound = fmt.Errorf("not found")

// Storage provides methods for interacting with database.
type Storage interface {
	InTx(ctx context.Context, f func(s Storage) error) error
	Ping(ctx context.Context) error

	GetProfile(ctx context.Context, username string) (*entities.Profile, error)
	SetProfile(ctx context.Context, p *SetProfileParams) error

	Follow(ctx context.Context, follower, followee string) error
	Unfollow(ctx context.Context, follower, followee string) error
	IsFollowing(ctx context.Context, follower, followee string) (bool, error)
	ListFollowing(ctx context.Context, username string) ([]string, error)
	ListFollowers(ctx context.Context, username string) ([]string, error)

	CreatePost(ctx context.Context, p *CreatePostParams) error
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	UpdatePost(ctx context.Context, p *UpdatePostParams) error
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, p *ListPostsParams) ([]*entities.Post, error)

	CreateComment(ctx context.Context, p *CreateCommentParams) error
	GetComment(ctx context.Context, id string) (*entities.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string) ([]*entities.Comment, error)

	HasUpvote(ctx context.Context, username, postID string) (bool, error)
	AddUpvote(ctx context.Context, username, postID string, timestamp time.Time) error
	RemoveUpvote(ctx context.Context, username, postID string) error

	GetConversation(ctx context.Context, userA, userB string) (*entities.Conversation, error)
	CreateConversation(ctx context.Context, p *CreateConversationParams) error
	ListConversations(ctx context.Context, username string) ([]*entities.Conversation, error)
	CreateMessage(ctx context.Context, p *CreateMessageParams) error
	ListMessages(ctx context.Context, conversationID string, limit uint16, offset uint32) ([]*entities.Message, error)
}

// SortType ...
type SortType string

const (
	// CreatedAtSortType ...
	CreatedAtSortType SortType = "created_at"
	// UpvotesSortType ...
	UpvotesSortType SortType = "total_upvotes"
)

// OrderType ...
type OrderType string

const (
	// AscendingOrder ...
	AscendingOrder OrderType = "asc"
	// DescendingOrder ...
	DescendingOrder OrderType = "desc"
)

// SetProfileParams ...
type SetProfileParams struct {
	Username  string
	Avatar    string
	Bio       string
	CreatedAt time.Time
}

// CreatePostParams ...
type CreatePostParams struct {
	ID         string
	Author     string
	Content    string
	Ticker     string
	Image      string
	Tags       []string
	DateTraded time.Time
	CreatedAt  time.Time
}

// UpdatePostParams ...
type UpdatePostParams struct {
	ID         string
	Content    string
	Ticker     string
	Image      string
	Tags       []string
	DateTraded time.Time
}

// ListPostsParams ...
type ListPostsParams struct {
	SortBy  SortType
	OrderBy OrderType
	Limit   uint16
	Offset  uint32

	// Author filters posts by their author.
	Author *string
	// FollowedBy filters posts to the given user's feed: posts authored by the
	// user themself or by anybody the user follows.
	FollowedBy *string
	Ticker     *string
	Tag        *string
	// Query filters posts by a content substring match.
	Query *string
	// From sets a lower bound for created_at, half-open [From, now).
	From *time.Time
}

// CreateCommentParams ...
type CreateCommentParams struct {
	ID        string
	PostID    string
	Author    string
	Content   string
	CreatedAt time.Time
}

// CreateConversationParams ...
type CreateConversationParams struct {
	ID        string
	UserA     string
	UserB     string
	CreatedAt time.Time
}

// CreateMessageParams ...
type CreateMessageParams struct {
	ID             string
	ConversationID string
	Sender         string
	Recipient      string
	Text           string
	SentAt         time.Time
}
