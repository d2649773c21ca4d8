// Package impl is implementation of service interface.
package impl

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tickertape-app/tickertape/internal/entities"
	"github.com/tickertape-app/tickertape/internal/service"
	"github.com/tickertape-app/tickertape/internal/storage"
)

const (
	maxBioLength     = 1000
	maxTickerLength  = 5
	maxCommentLength = 120
	maxMessageLength = 500
)

type srv struct {
	s storage.Storage

	now func() time.Time
}

// New creates new instance of service.
func New(s storage.Storage) service.Service {
	return &srv{
		s:   s,
		now: time.Now,
	}
}

func (s *srv) GetProfile(ctx context.Context, username string) (*entities.Profile, error) {
	p, err := s.s.GetProfile(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

func (s *srv) UpdateProfile(ctx context.Context, username string, p service.UpdateProfileParams) error {
	if utf8.RuneCountInString(p.Bio) > maxBioLength {
		return &service.ValidationError{Field: "bio", Message: fmt.Sprintf("must be at most %d characters", maxBioLength)}
	}

	if err := s.s.SetProfile(ctx, &storage.SetProfileParams{
		Username:  username,
		Avatar:    p.Avatar,
		Bio:       p.Bio,
		CreatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("failed to set profile: %w", err)
	}

	return nil
}

func (s *srv) Follow(ctx context.Context, follower, followee string) error {
	if follower == followee {
		return &service.ValidationError{Field: "follow", Message: "can not follow yourself"}
	}

	if err := s.s.Follow(ctx, follower, followee); err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}

	return nil
}

func (s *srv) Unfollow(ctx context.Context, follower, followee string) error {
	if err := s.s.Unfollow(ctx, follower, followee); err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}

	return nil
}

func (s *srv) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	ok, err := s.s.IsFollowing(ctx, follower, followee)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}

	return ok, nil
}

func (s *srv) ListFollowing(ctx context.Context, username string) ([]string, error) {
	out, err := s.s.ListFollowing(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list following: %w", err)
	}

	return out, nil
}

func (s *srv) ListFollowers(ctx context.Context, username string) ([]string, error) {
	out, err := s.s.ListFollowers(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}

	return out, nil
}

func validatePostParams(content, ticker string, dateTraded time.Time) error {
	if content == "" {
		return &service.ValidationError{Field: "content", Message: "is required"}
	}

	if utf8.RuneCountInString(ticker) > maxTickerLength {
		return &service.ValidationError{Field: "ticker", Message: fmt.Sprintf("must be at most %d characters", maxTickerLength)}
	}

	if dateTraded.IsZero() {
		return &service.ValidationError{Field: "dateTraded", Message: "is required"}
	}

	return nil
}

func (s *srv) CreatePost(ctx context.Context, author string, p service.CreatePostParams) (*entities.Post, error) {
	if err := validatePostParams(p.Content, p.Ticker, p.DateTraded); err != nil {
		return nil, err
	}

	post := &entities.Post{
		ID:         uuid.New().String(),
		Author:     author,
		Content:    p.Content,
		Ticker:     p.Ticker,
		Image:      p.Image,
		Tags:       p.Tags,
		DateTraded: p.DateTraded,
		CreatedAt:  s.now(),
	}

	if err := s.s.CreatePost(ctx, &storage.CreatePostParams{
		ID:         post.ID,
		Author:     post.Author,
		Content:    post.Content,
		Ticker:     post.Ticker,
		Image:      post.Image,
		Tags:       post.Tags,
		DateTraded: post.DateTraded,
		CreatedAt:  post.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return post, nil
}

func (s *srv) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	p, err := s.s.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return p, nil
}

func (s *srv) UpdatePost(ctx context.Context, editor, id string, p service.UpdatePostParams) (*entities.Post, error) {
	if err := validatePostParams(p.Content, p.Ticker, p.DateTraded); err != nil {
		return nil, err
	}

	post, err := s.s.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	if post.Author != editor {
		return nil, service.ErrForbidden
	}

	if err := s.s.UpdatePost(ctx, &storage.UpdatePostParams{
		ID:         id,
		Content:    p.Content,
		Ticker:     p.Ticker,
		Image:      p.Image,
		Tags:       p.Tags,
		DateTraded: p.DateTraded,
	}); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	post.Content = p.Content
	post.Ticker = p.Ticker
	post.Image = p.Image
	post.Tags = p.Tags
	post.DateTraded = p.DateTraded

	return post, nil
}

func (s *srv) DeletePost(ctx context.Context, deleter, id string) error {
	post, err := s.s.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}

		return fmt.Errorf("failed to get post: %w", err)
	}

	if post.Author != deleter {
		return service.ErrForbidden
	}

	if err := s.s.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

func (s *srv) ListPosts(ctx context.Context, p service.ListPostsParams) ([]*entities.Post, error) {
	out, err := s.s.ListPosts(ctx, &storage.ListPostsParams{
		SortBy:  storage.CreatedAtSortType,
		OrderBy: storage.DescendingOrder,
		Limit:   service.DefaultPageSize,
		Offset:  pageOffset(p.Page, service.DefaultPageSize),
		Author:  p.Author,
		Ticker:  p.Ticker,
		Tag:     p.Tag,
		Query:   p.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return out, nil
}

func (s *srv) Feed(ctx context.Context, username string, page uint32) ([]*entities.Post, error) {
	out, err := s.s.ListPosts(ctx, &storage.ListPostsParams{
		SortBy:     storage.CreatedAtSortType,
		OrderBy:    storage.DescendingOrder,
		Limit:      service.FeedPageSize,
		Offset:     pageOffset(page, service.FeedPageSize),
		FollowedBy: &username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}

	return out, nil
}

func (s *srv) Top(ctx context.Context, w service.Window, page uint32) ([]*entities.Post, error) {
	params := storage.ListPostsParams{
		SortBy:  storage.UpvotesSortType,
		OrderBy: storage.DescendingOrder,
		Limit:   service.DefaultPageSize,
		Offset:  pageOffset(page, service.DefaultPageSize),
	}

	if d, ok := w.Duration(); ok {
		from := s.now().Add(-d)
		params.From = &from
	} else if w != service.AllWindow {
		return nil, &service.ValidationError{Field: "window", Message: "must be one of all, day, week, month, year"}
	}

	out, err := s.s.ListPosts(ctx, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to list top posts: %w", err)
	}

	return out, nil
}

func (s *srv) AddComment(ctx context.Context, author, postID, content string) (*entities.Comment, error) {
	if content == "" {
		return nil, &service.ValidationError{Field: "content", Message: "is required"}
	}

	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, &service.ValidationError{Field: "content", Message: fmt.Sprintf("must be at most %d characters", maxCommentLength)}
	}

	c := &entities.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		Author:    author,
		Content:   content,
		CreatedAt: s.now(),
	}

	if err := s.s.CreateComment(ctx, &storage.CreateCommentParams{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    c.Author,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return c, nil
}

func (s *srv) DeleteComment(ctx context.Context, deleter, commentID string) error {
	c, err := s.s.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}

		return fmt.Errorf("failed to get comment: %w", err)
	}

	if c.Author != deleter {
		return service.ErrForbidden
	}

	if err := s.s.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	return nil
}

func (s *srv) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	out, err := s.s.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return out, nil
}

// ToggleUpvote inserts an upvote if the user has none on the post, otherwise
// removes it. The membership row and the denormalized counter commit together.
func (s *srv) ToggleUpvote(ctx context.Context, username, postID string) (bool, error) {
	var upvoted bool

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		if _, err := tx.GetPost(ctx, postID); err != nil {
			return err
		}

		has, err := tx.HasUpvote(ctx, username, postID)
		if err != nil {
			return err
		}

		if has {
			return tx.RemoveUpvote(ctx, username, postID)
		}

		upvoted = true
		return tx.AddUpvote(ctx, username, postID, s.now())
	}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, err
		}

		return false, fmt.Errorf("failed to toggle upvote: %w", err)
	}

	return upvoted, nil
}

// SendMessage resolves or creates the pair conversation and writes the message
// together with the last_message cache in one transaction.
func (s *srv) SendMessage(ctx context.Context, sender, recipient, text string) (*entities.Message, error) {
	if sender == recipient {
		return nil, &service.ValidationError{Field: "recipient", Message: "can not message yourself"}
	}

	if text == "" {
		return nil, &service.ValidationError{Field: "text", Message: "is required"}
	}

	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, &service.ValidationError{Field: "text", Message: fmt.Sprintf("must be at most %d characters", maxMessageLength)}
	}

	msg := &entities.Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		SentAt:    s.now(),
	}

	if err := s.s.InTx(ctx, func(tx storage.Storage) error {
		conv, err := tx.GetConversation(ctx, sender, recipient)
		if errors.Is(err, storage.ErrNotFound) {
			if err := tx.CreateConversation(ctx, &storage.CreateConversationParams{
				ID:        uuid.New().String(),
				UserA:     sender,
				UserB:     recipient,
				CreatedAt: msg.SentAt,
			}); err != nil {
				return err
			}

			// re-read to pick up the id, a concurrent sender may have won
			conv, err = tx.GetConversation(ctx, sender, recipient)
		}
		if err != nil {
			return err
		}

		msg.ConversationID = conv.ID

		return tx.CreateMessage(ctx, &storage.CreateMessageParams{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Sender:         msg.Sender,
			Recipient:      msg.Recipient,
			Text:           msg.Text,
			SentAt:         msg.SentAt,
		})
	}); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return msg, nil
}

func (s *srv) ListConversations(ctx context.Context, username string) ([]*entities.Conversation, error) {
	out, err := s.s.ListConversations(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return out, nil
}

func (s *srv) ListMessages(ctx context.Context, username, peer string, page uint32) ([]*entities.Message, error) {
	conv, err := s.s.GetConversation(ctx, username, peer)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	out, err := s.s.ListMessages(ctx, conv.ID, service.MessagesPageSize, pageOffset(page, service.MessagesPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return out, nil
}

// pageOffset converts a 1-based page number to an offset.
func pageOffset(page uint32, size uint16) uint32 {
	if page <= 1 {
		return 0
	}

	return (page - 1) * uint32(size)
}
