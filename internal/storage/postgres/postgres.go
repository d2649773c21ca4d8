// Package postgres is implementation of storage interface.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tickertape-app/tickertape/internal/entities"
	"github.com/tickertape-app/tickertape/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "postgres")
var errBeginCalledWithinTx = errors.New("can not run InTx in tx")

const (
	foreignKeyViolation       = "23503"
	invalidTextRepresentation = "22P02"
)

// isMissingRowError reports pq errors which mean the referenced row can not
// exist: broken foreign keys and ids that do not parse as uuid.
func isMissingRowError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code == foreignKeyViolation || pqErr.Code == invalidTextRepresentation
}

type pg struct {
	ext sqlx.ExtContext
}

type profileDTO struct {
	Username  string    `db:"username"`
	Avatar    string    `db:"avatar"`
	Bio       string    `db:"bio"`
	Followers uint32    `db:"followers"`
	Following uint32    `db:"following"`
	CreatedAt time.Time `db:"created_at"`
}

type postDTO struct {
	ID           string         `db:"id"`
	Author       string         `db:"author"`
	Content      string         `db:"content"`
	Ticker       string         `db:"ticker"`
	Image        string         `db:"image"`
	Tags         pq.StringArray `db:"tags"`
	DateTraded   time.Time      `db:"date_traded"`
	TotalUpvotes uint32         `db:"total_upvotes"`
	CreatedAt    time.Time      `db:"created_at"`
}

type commentDTO struct {
	ID        string    `db:"id"`
	PostID    string    `db:"post_id"`
	Author    string    `db:"author"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

type conversationDTO struct {
	ID          string    `db:"id"`
	UserLo      string    `db:"user_lo"`
	UserHi      string    `db:"user_hi"`
	LastMessage string    `db:"last_message"`
	CreatedAt   time.Time `db:"created_at"`
}

type messageDTO struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Sender         string    `db:"sender"`
	Recipient      string    `db:"recipient"`
	Text           string    `db:"text"`
	SentAt         time.Time `db:"sent_at"`
}

// New creates new instance of pg.
func New(db *sql.DB) storage.Storage {
	return pg{
		ext: sqlx.NewDb(db, "postgres"),
	}
}

func (s pg) InTx(ctx context.Context, f func(s storage.Storage) error) error {
	db, ok := s.ext.(*sqlx.DB)
	if !ok {
		return errBeginCalledWithinTx
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", err)
	}

	if err := f(pg{ext: tx}); err != nil {
		if err := tx.Rollback(); err != nil {
			log.WithError(err).Error("failed to rollback tx")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (s pg) Ping(ctx context.Context) error {
	if _, err := s.ext.ExecContext(ctx, `SELECT 1`); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetProfile(ctx context.Context, username string) (*entities.Profile, error) {
	var p profileDTO

	if err := sqlx.GetContext(ctx, s.ext, &p, `
			SELECT username, avatar, bio, created_at,
				(SELECT COUNT(*) FROM follow WHERE followee = profile.username) AS followers,
				(SELECT COUNT(*) FROM follow WHERE follower = profile.username) AS following
			FROM profile
			WHERE username = $1
		`,
		username,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.Profile{
		Username:  p.Username,
		Avatar:    p.Avatar,
		Bio:       p.Bio,
		Followers: p.Followers,
		Following: p.Following,
		CreatedAt: p.CreatedAt,
	}, nil
}

func (s pg) SetProfile(ctx context.Context, p *storage.SetProfileParams) error {
	profile := profileDTO{
		Username:  p.Username,
		Avatar:    p.Avatar,
		Bio:       p.Bio,
		CreatedAt: p.CreatedAt.UTC(),
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO profile(username, avatar, bio, created_at)
			VALUES(:username, :avatar, :bio, :created_at)
			ON CONFLICT(username) DO UPDATE SET
			avatar=excluded.avatar, bio=excluded.bio
		`, profile,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) Follow(ctx context.Context, follower, followee string) error {
	if _, err := s.ext.ExecContext(ctx,
		`
			INSERT INTO follow(follower, followee) VALUES($1, $2) ON CONFLICT DO NOTHING
		`, follower, followee,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) Unfollow(ctx context.Context, follower, followee string) error {
	if _, err := s.ext.ExecContext(ctx,
		`
			DELETE FROM follow WHERE follower=$1 AND followee=$2
		`, follower, followee,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	var ok bool
	if err := sqlx.GetContext(ctx, s.ext, &ok,
		`SELECT EXISTS(SELECT 1 FROM follow WHERE follower=$1 AND followee=$2)`,
		follower, followee,
	); err != nil {
		return false, fmt.Errorf("failed to query: %w", err)
	}

	return ok, nil
}

func (s pg) ListFollowing(ctx context.Context, username string) ([]string, error) {
	out := make([]string, 0)
	if err := sqlx.SelectContext(ctx, s.ext, &out,
		`SELECT followee FROM follow WHERE follower=$1 ORDER BY followed_at DESC`,
		username,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return out, nil
}

func (s pg) ListFollowers(ctx context.Context, username string) ([]string, error) {
	out := make([]string, 0)
	if err := sqlx.SelectContext(ctx, s.ext, &out,
		`SELECT follower FROM follow WHERE followee=$1 ORDER BY followed_at DESC`,
		username,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return out, nil
}

func (s pg) CreatePost(ctx context.Context, p *storage.CreatePostParams) error {
	post := postDTO{
		ID:         p.ID,
		Author:     p.Author,
		Content:    p.Content,
		Ticker:     p.Ticker,
		Image:      p.Image,
		Tags:       p.Tags,
		DateTraded: p.DateTraded.UTC(),
		CreatedAt:  p.CreatedAt.UTC(),
	}

	if post.Tags == nil {
		post.Tags = pq.StringArray{}
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO post(id, author, content, ticker, image, tags, date_traded, created_at)
			VALUES(:id, :author, :content, :ticker, :image, :tags, :date_traded, :created_at)
		`, post,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	var p postDTO

	if err := sqlx.GetContext(ctx, s.ext, &p, `
			SELECT id, author, content, ticker, image, tags, date_traded, total_upvotes, created_at
			FROM post
			WHERE id = $1
		`,
		id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingRowError(err) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toPost(&p), nil
}

func (s pg) UpdatePost(ctx context.Context, p *storage.UpdatePostParams) error {
	tags := pq.StringArray(p.Tags)
	if tags == nil {
		tags = pq.StringArray{}
	}

	res, err := s.ext.ExecContext(ctx,
		`UPDATE post SET content=$2, ticker=$3, image=$4, tags=$5, date_traded=$6 WHERE id=$1`,
		p.ID, p.Content, p.Ticker, p.Image, tags, p.DateTraded.UTC(),
	)
	if err != nil {
		if isMissingRowError(err) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) DeletePost(ctx context.Context, id string) error {
	// comments and upvotes go with the post, ON DELETE CASCADE
	res, err := s.ext.ExecContext(ctx, `DELETE FROM post WHERE id=$1`, id)
	if err != nil {
		if isMissingRowError(err) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// nolint: gocyclo
func (s pg) ListPosts(ctx context.Context, p *storage.ListPostsParams) ([]*entities.Post, error) {
	where := make([]string, 0)
	args := make([]interface{}, 0)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if p.Author != nil {
		where = append(where, fmt.Sprintf("author = %s", arg(*p.Author)))
	}

	if p.FollowedBy != nil {
		n := arg(*p.FollowedBy)
		where = append(where, fmt.Sprintf(
			"(author = %s OR author IN (SELECT followee FROM follow WHERE follower = %s))", n, n,
		))
	}

	if p.Ticker != nil {
		where = append(where, fmt.Sprintf("ticker = %s", arg(*p.Ticker)))
	}

	if p.Tag != nil {
		where = append(where, fmt.Sprintf("%s = ANY(tags)", arg(*p.Tag)))
	}

	if p.Query != nil {
		where = append(where, fmt.Sprintf("content ILIKE '%%' || %s || '%%'", arg(*p.Query)))
	}

	if p.From != nil {
		where = append(where, fmt.Sprintf("created_at >= %s", arg(p.From.UTC())))
	}

	var sortBy string
	switch p.SortBy {
	case storage.CreatedAtSortType:
		sortBy = "created_at"
	case storage.UpvotesSortType:
		sortBy = "total_upvotes"
	default:
		return nil, fmt.Errorf("unknown sort type %s", p.SortBy)
	}

	var orderBy string
	switch p.OrderBy {
	case storage.AscendingOrder:
		orderBy = "ASC"
	case storage.DescendingOrder:
		orderBy = "DESC"
	default:
		return nil, fmt.Errorf("unknown order type %s", p.OrderBy)
	}

	query := `
		SELECT id, author, content, ticker, image, tags, date_traded, total_upvotes, created_at
		FROM post
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// created_at tie-break keeps pagination stable when sorting by upvotes
	query += fmt.Sprintf(" ORDER BY %s %s, created_at DESC LIMIT %s OFFSET %s",
		sortBy, orderBy, arg(p.Limit), arg(p.Offset))

	var posts []*postDTO
	if err := sqlx.SelectContext(ctx, s.ext, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Post, len(posts))
	for i, v := range posts {
		out[i] = toPost(v)
	}

	return out, nil
}

func (s pg) CreateComment(ctx context.Context, p *storage.CreateCommentParams) error {
	comment := commentDTO{
		ID:        p.ID,
		PostID:    p.PostID,
		Author:    p.Author,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UTC(),
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO comment(id, post_id, author, content, created_at)
			VALUES(:id, :post_id, :author, :content, :created_at)
		`, comment,
	); err != nil {
		if isMissingRowError(err) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetComment(ctx context.Context, id string) (*entities.Comment, error) {
	var c commentDTO

	if err := sqlx.GetContext(ctx, s.ext, &c, `
			SELECT id, post_id, author, content, created_at FROM comment WHERE id = $1
		`,
		id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingRowError(err) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return &entities.Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    c.Author,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}, nil
}

func (s pg) DeleteComment(ctx context.Context, id string) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM comment WHERE id=$1`, id)
	if err != nil {
		if isMissingRowError(err) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s pg) ListComments(ctx context.Context, postID string) ([]*entities.Comment, error) {
	var cc []*commentDTO

	if err := sqlx.SelectContext(ctx, s.ext, &cc, `
			SELECT id, post_id, author, content, created_at
			FROM comment
			WHERE post_id = $1
			ORDER BY created_at ASC
		`,
		postID,
	); err != nil {
		if isMissingRowError(err) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Comment, len(cc))
	for i, v := range cc {
		out[i] = &entities.Comment{
			ID:        v.ID,
			PostID:    v.PostID,
			Author:    v.Author,
			Content:   v.Content,
			CreatedAt: v.CreatedAt,
		}
	}

	return out, nil
}

func (s pg) HasUpvote(ctx context.Context, username, postID string) (bool, error) {
	var ok bool
	if err := sqlx.GetContext(ctx, s.ext, &ok,
		`SELECT EXISTS(SELECT 1 FROM upvote WHERE username=$1 AND post_id=$2)`,
		username, postID,
	); err != nil {
		if isMissingRowError(err) {
			return false, storage.ErrNotFound
		}

		return false, fmt.Errorf("failed to query: %w", err)
	}

	return ok, nil
}

// AddUpvote inserts the unique (username, post_id) row and moves the
// total_upvotes counter only when the insert took effect, so concurrent
// toggles can not double-count. Must be called within InTx.
func (s pg) AddUpvote(ctx context.Context, username, postID string, timestamp time.Time) error {
	res, err := s.ext.ExecContext(ctx, `
			INSERT INTO upvote(username, post_id, created_at) VALUES($1, $2, $3)
			ON CONFLICT(username, post_id) DO NOTHING`,
		username, postID, timestamp.UTC(),
	)
	if err != nil {
		if isMissingRowError(err) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return nil
	}

	if _, err := s.ext.ExecContext(ctx,
		`UPDATE post SET total_upvotes = total_upvotes + 1 WHERE id=$1`, postID,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) RemoveUpvote(ctx context.Context, username, postID string) error {
	res, err := s.ext.ExecContext(ctx,
		`DELETE FROM upvote WHERE username=$1 AND post_id=$2`, username, postID,
	)
	if err != nil {
		if isMissingRowError(err) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	if c, _ := res.RowsAffected(); c == 0 {
		return nil
	}

	if _, err := s.ext.ExecContext(ctx,
		`UPDATE post SET total_upvotes = total_upvotes - 1 WHERE id=$1 AND total_upvotes > 0`, postID,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) GetConversation(ctx context.Context, userA, userB string) (*entities.Conversation, error) {
	var c conversationDTO

	if err := sqlx.GetContext(ctx, s.ext, &c, `
			SELECT id, user_lo, user_hi, last_message, created_at
			FROM conversation
			WHERE user_lo = LEAST($1, $2) AND user_hi = GREATEST($1, $2)
		`,
		userA, userB,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	return toConversation(&c), nil
}

func (s pg) CreateConversation(ctx context.Context, p *storage.CreateConversationParams) error {
	// ON CONFLICT DO NOTHING keeps the pair unique under concurrent first
	// messages, the caller re-reads to pick the winner up
	if _, err := s.ext.ExecContext(ctx, `
			INSERT INTO conversation(id, user_lo, user_hi, created_at)
			VALUES($1, LEAST($2, $3), GREATEST($2, $3), $4)
			ON CONFLICT(user_lo, user_hi) DO NOTHING`,
		p.ID, p.UserA, p.UserB, p.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) ListConversations(ctx context.Context, username string) ([]*entities.Conversation, error) {
	var cc []*conversationDTO

	if err := sqlx.SelectContext(ctx, s.ext, &cc, `
			SELECT id, user_lo, user_hi, last_message, created_at
			FROM conversation c
			WHERE user_lo = $1 OR user_hi = $1
			ORDER BY (SELECT COALESCE(MAX(sent_at), c.created_at) FROM message m WHERE m.conversation_id = c.id) DESC
		`,
		username,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Conversation, len(cc))
	for i, v := range cc {
		out[i] = toConversation(v)
	}

	return out, nil
}

func (s pg) CreateMessage(ctx context.Context, p *storage.CreateMessageParams) error {
	msg := messageDTO{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		Sender:         p.Sender,
		Recipient:      p.Recipient,
		Text:           p.Text,
		SentAt:         p.SentAt.UTC(),
	}

	if _, err := sqlx.NamedExecContext(ctx, s.ext,
		`
			INSERT INTO message(id, conversation_id, sender, recipient, text, sent_at)
			VALUES(:id, :conversation_id, :sender, :recipient, :text, :sent_at)
		`, msg,
	); err != nil {
		if isMissingRowError(err) {
			return storage.ErrNotFound
		}

		return fmt.Errorf("failed to exec: %w", err)
	}

	// last_message cache follows the insert, callers wrap both in InTx
	if _, err := s.ext.ExecContext(ctx,
		`UPDATE conversation SET last_message=$2 WHERE id=$1`,
		p.ConversationID, p.Text,
	); err != nil {
		return fmt.Errorf("failed to exec: %w", err)
	}

	return nil
}

func (s pg) ListMessages(ctx context.Context, conversationID string, limit uint16, offset uint32) ([]*entities.Message, error) {
	var mm []*messageDTO

	if err := sqlx.SelectContext(ctx, s.ext, &mm, `
			SELECT id, conversation_id, sender, recipient, text, sent_at
			FROM message
			WHERE conversation_id = $1
			ORDER BY sent_at ASC
			LIMIT $2 OFFSET $3
		`,
		conversationID, limit, offset,
	); err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	out := make([]*entities.Message, len(mm))
	for i, v := range mm {
		out[i] = &entities.Message{
			ID:             v.ID,
			ConversationID: v.ConversationID,
			Sender:         v.Sender,
			Recipient:      v.Recipient,
			Text:           v.Text,
			SentAt:         v.SentAt,
		}
	}

	return out, nil
}

func toPost(p *postDTO) *entities.Post {
	return &entities.Post{
		ID:           p.ID,
		Author:       p.Author,
		Content:      p.Content,
		Ticker:       p.Ticker,
		Image:        p.Image,
		Tags:         p.Tags,
		DateTraded:   p.DateTraded,
		TotalUpvotes: p.TotalUpvotes,
		CreatedAt:    p.CreatedAt,
	}
}

func toConversation(c *conversationDTO) *entities.Conversation {
	return &entities.Conversation{
		ID:           c.ID,
		Participants: []string{c.UserLo, c.UserHi},
		LastMessage:  c.LastMessage,
		CreatedAt:    c.CreatedAt,
	}
}
