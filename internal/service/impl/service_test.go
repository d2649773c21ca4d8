package impl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/tickertape-app/tickertape/internal/entities"
	"github.com/tickertape-app/tickertape/internal/service"
	storageinterface "github.com/tickertape-app/tickertape/internal/storage"
	storage "github.com/tickertape-app/tickertape/internal/storage/mock"
)

func newTestSrv(s storageinterface.Storage, now time.Time) *srv {
	return &srv{
		s:   s,
		now: func() time.Time { return now },
	}
}

func TestSrv_GetProfile(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	p := &entities.Profile{
		Username:  "jack",
		Avatar:    "avatar",
		Bio:       "bio",
		CreatedAt: time.Now(),
	}

	s.EXPECT().GetProfile(gomock.Any(), "jack").Return(p, nil)
	out, err := srv.GetProfile(context.Background(), "jack")
	require.NoError(t, err)
	require.Equal(t, p, out)

	s.EXPECT().GetProfile(gomock.Any(), "jack").Return(nil, storageinterface.ErrNotFound)
	out, err = srv.GetProfile(context.Background(), "jack")
	require.True(t, errors.Is(err, storageinterface.ErrNotFound))
	require.Nil(t, out)
}

func TestSrv_UpdateProfile(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	now := time.Now()
	srv := newTestSrv(s, now)

	s.EXPECT().SetProfile(gomock.Any(), &storageinterface.SetProfileParams{
		Username:  "jack",
		Avatar:    "avatar",
		Bio:       "bio",
		CreatedAt: now,
	}).Return(nil)

	require.NoError(t, srv.UpdateProfile(context.Background(), "jack", service.UpdateProfileParams{
		Avatar: "avatar",
		Bio:    "bio",
	}))
}

func TestSrv_UpdateProfile_bioTooLong(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	long := make([]byte, maxBioLength+1)
	for i := range long {
		long[i] = 'a'
	}

	err := srv.UpdateProfile(context.Background(), "jack", service.UpdateProfileParams{Bio: string(long)})

	var v *service.ValidationError
	require.True(t, errors.As(err, &v))
	require.Equal(t, "bio", v.Field)
}

func TestSrv_Follow(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().Follow(gomock.Any(), "follower", "followee").Return(nil)
	require.NoError(t, srv.Follow(context.Background(), "follower", "followee"))

	s.EXPECT().Follow(gomock.Any(), "follower", "followee").Return(context.Canceled)
	require.Error(t, srv.Follow(context.Background(), "follower", "followee"))
}

func TestSrv_Follow_self(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	err := srv.Follow(context.Background(), "jack", "jack")

	var v *service.ValidationError
	require.True(t, errors.As(err, &v))
}

func TestSrv_Unfollow(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().Unfollow(gomock.Any(), "follower", "followee").Return(nil)
	require.NoError(t, srv.Unfollow(context.Background(), "follower", "followee"))

	s.EXPECT().Unfollow(gomock.Any(), "follower", "followee").Return(context.Canceled)
	require.Error(t, srv.Unfollow(context.Background(), "follower", "followee"))
}

func TestSrv_CreatePost(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	now := time.Now()
	srv := newTestSrv(s, now)

	traded := now.Add(-24 * time.Hour)

	s.EXPECT().CreatePost(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *storageinterface.CreatePostParams) error {
		require.NotEmpty(t, p.ID)
		require.Equal(t, "jack", p.Author)
		require.Equal(t, "content", p.Content)
		require.Equal(t, "GME", p.Ticker)
		require.Equal(t, []string{"yolo"}, p.Tags)
		require.Equal(t, traded, p.DateTraded)
		require.Equal(t, now, p.CreatedAt)
		return nil
	})

	post, err := srv.CreatePost(context.Background(), "jack", service.CreatePostParams{
		Content:    "content",
		Ticker:     "GME",
		Tags:       []string{"yolo"},
		DateTraded: traded,
	})
	require.NoError(t, err)
	require.Equal(t, "jack", post.Author)
	require.NotEmpty(t, post.ID)
}

func TestSrv_CreatePost_invalid(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	tt := []struct {
		name  string
		p     service.CreatePostParams
		field string
	}{
		{
			name:  "empty content",
			p:     service.CreatePostParams{Ticker: "GME", DateTraded: time.Now()},
			field: "content",
		},
		{
			name:  "ticker too long",
			p:     service.CreatePostParams{Content: "c", Ticker: "TOOLONG", DateTraded: time.Now()},
			field: "ticker",
		},
		{
			name:  "missing trade date",
			p:     service.CreatePostParams{Content: "c", Ticker: "GME"},
			field: "dateTraded",
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.CreatePost(context.Background(), "jack", tc.p)

			var v *service.ValidationError
			require.True(t, errors.As(err, &v))
			require.Equal(t, tc.field, v.Field)
		})
	}
}

func TestSrv_UpdatePost(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	traded := time.Now()

	s.EXPECT().GetPost(gomock.Any(), "id").Return(&entities.Post{ID: "id", Author: "jack", Content: "old"}, nil)
	s.EXPECT().UpdatePost(gomock.Any(), &storageinterface.UpdatePostParams{
		ID:         "id",
		Content:    "new",
		Ticker:     "GME",
		DateTraded: traded,
	}).Return(nil)

	post, err := srv.UpdatePost(context.Background(), "jack", "id", service.UpdatePostParams{
		Content:    "new",
		Ticker:     "GME",
		DateTraded: traded,
	})
	require.NoError(t, err)
	require.Equal(t, "new", post.Content)
}

func TestSrv_UpdatePost_notOwner(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().GetPost(gomock.Any(), "id").Return(&entities.Post{ID: "id", Author: "jill"}, nil)

	_, err := srv.UpdatePost(context.Background(), "jack", "id", service.UpdatePostParams{
		Content:    "new",
		Ticker:     "GME",
		DateTraded: time.Now(),
	})
	require.True(t, errors.Is(err, service.ErrForbidden))
}

func TestSrv_DeletePost(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().GetPost(gomock.Any(), "id").Return(&entities.Post{ID: "id", Author: "jack"}, nil)
	s.EXPECT().DeletePost(gomock.Any(), "id").Return(nil)
	require.NoError(t, srv.DeletePost(context.Background(), "jack", "id"))

	s.EXPECT().GetPost(gomock.Any(), "id").Return(&entities.Post{ID: "id", Author: "jill"}, nil)
	require.True(t, errors.Is(srv.DeletePost(context.Background(), "jack", "id"), service.ErrForbidden))

	s.EXPECT().GetPost(gomock.Any(), "id").Return(nil, storageinterface.ErrNotFound)
	require.True(t, errors.Is(srv.DeletePost(context.Background(), "jack", "id"), storageinterface.ErrNotFound))
}

func TestSrv_ListPosts(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	ticker := "GME"

	s.EXPECT().ListPosts(gomock.Any(), &storageinterface.ListPostsParams{
		SortBy:  storageinterface.CreatedAtSortType,
		OrderBy: storageinterface.DescendingOrder,
		Limit:   service.DefaultPageSize,
		Offset:  service.DefaultPageSize,
		Ticker:  &ticker,
	}).Return([]*entities.Post{}, nil)

	_, err := srv.ListPosts(context.Background(), service.ListPostsParams{
		Page:   2,
		Ticker: &ticker,
	})
	require.NoError(t, err)
}

func TestSrv_Feed(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	username := "jack"

	s.EXPECT().ListPosts(gomock.Any(), &storageinterface.ListPostsParams{
		SortBy:     storageinterface.CreatedAtSortType,
		OrderBy:    storageinterface.DescendingOrder,
		Limit:      service.FeedPageSize,
		Offset:     0,
		FollowedBy: &username,
	}).Return([]*entities.Post{}, nil)

	out, err := srv.Feed(context.Background(), username, 1)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestSrv_Top(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	now := time.Now()
	srv := newTestSrv(s, now)

	from := now.Add(-24 * time.Hour)

	s.EXPECT().ListPosts(gomock.Any(), &storageinterface.ListPostsParams{
		SortBy:  storageinterface.UpvotesSortType,
		OrderBy: storageinterface.DescendingOrder,
		Limit:   service.DefaultPageSize,
		Offset:  0,
		From:    &from,
	}).Return([]*entities.Post{}, nil)

	_, err := srv.Top(context.Background(), service.DayWindow, 1)
	require.NoError(t, err)
}

func TestSrv_Top_all(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().ListPosts(gomock.Any(), &storageinterface.ListPostsParams{
		SortBy:  storageinterface.UpvotesSortType,
		OrderBy: storageinterface.DescendingOrder,
		Limit:   service.DefaultPageSize,
		Offset:  0,
	}).Return([]*entities.Post{}, nil)

	_, err := srv.Top(context.Background(), service.AllWindow, 1)
	require.NoError(t, err)
}

func TestSrv_Top_unknownWindow(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	_, err := srv.Top(context.Background(), service.Window("fortnight"), 1)

	var v *service.ValidationError
	require.True(t, errors.As(err, &v))
	require.Equal(t, "window", v.Field)
}

func TestSrv_AddComment(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	now := time.Now()
	srv := newTestSrv(s, now)

	s.EXPECT().CreateComment(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *storageinterface.CreateCommentParams) error {
		require.NotEmpty(t, p.ID)
		require.Equal(t, "post", p.PostID)
		require.Equal(t, "jack", p.Author)
		require.Equal(t, "nice trade", p.Content)
		require.Equal(t, now, p.CreatedAt)
		return nil
	})

	c, err := srv.AddComment(context.Background(), "jack", "post", "nice trade")
	require.NoError(t, err)
	require.Equal(t, "nice trade", c.Content)
}

func TestSrv_AddComment_missingPost(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().CreateComment(gomock.Any(), gomock.Any()).Return(storageinterface.ErrNotFound)

	_, err := srv.AddComment(context.Background(), "jack", "missing", "nice trade")
	require.True(t, errors.Is(err, storageinterface.ErrNotFound))
}

func TestSrv_AddComment_multibyteAtLimit(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	// limits count characters, not bytes
	content := strings.Repeat("ц", maxCommentLength)

	s.EXPECT().CreateComment(gomock.Any(), gomock.Any()).Return(nil)

	c, err := srv.AddComment(context.Background(), "jack", "post", content)
	require.NoError(t, err)
	require.Equal(t, content, c.Content)
}

func TestSrv_SendMessage_multibyteAtLimit(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	text := strings.Repeat("ц", maxMessageLength)

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f func(s storageinterface.Storage) error) error {
		return f(s)
	})
	s.EXPECT().GetConversation(gomock.Any(), "jack", "jill").Return(&entities.Conversation{ID: "conv"}, nil)
	s.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Return(nil)

	msg, err := srv.SendMessage(context.Background(), "jack", "jill", text)
	require.NoError(t, err)
	require.Equal(t, text, msg.Text)
}

func TestSrv_AddComment_tooLong(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	long := make([]byte, maxCommentLength+1)
	for i := range long {
		long[i] = 'a'
	}

	_, err := srv.AddComment(context.Background(), "jack", "post", string(long))

	var v *service.ValidationError
	require.True(t, errors.As(err, &v))
	require.Equal(t, "content", v.Field)
}

func TestSrv_DeleteComment(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().GetComment(gomock.Any(), "id").Return(&entities.Comment{ID: "id", Author: "jack"}, nil)
	s.EXPECT().DeleteComment(gomock.Any(), "id").Return(nil)
	require.NoError(t, srv.DeleteComment(context.Background(), "jack", "id"))

	s.EXPECT().GetComment(gomock.Any(), "id").Return(&entities.Comment{ID: "id", Author: "jill"}, nil)
	require.True(t, errors.Is(srv.DeleteComment(context.Background(), "jack", "id"), service.ErrForbidden))
}

func TestSrv_ToggleUpvote(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	now := time.Now()
	srv := newTestSrv(s, now)

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f func(s storageinterface.Storage) error) error {
		return f(s)
	}).Times(2)

	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{ID: "post"}, nil)
	s.EXPECT().HasUpvote(gomock.Any(), "jack", "post").Return(false, nil)
	s.EXPECT().AddUpvote(gomock.Any(), "jack", "post", now).Return(nil)

	upvoted, err := srv.ToggleUpvote(context.Background(), "jack", "post")
	require.NoError(t, err)
	require.True(t, upvoted)

	s.EXPECT().GetPost(gomock.Any(), "post").Return(&entities.Post{ID: "post"}, nil)
	s.EXPECT().HasUpvote(gomock.Any(), "jack", "post").Return(true, nil)
	s.EXPECT().RemoveUpvote(gomock.Any(), "jack", "post").Return(nil)

	upvoted, err = srv.ToggleUpvote(context.Background(), "jack", "post")
	require.NoError(t, err)
	require.False(t, upvoted)
}

func TestSrv_ToggleUpvote_missingPost(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f func(s storageinterface.Storage) error) error {
		return f(s)
	})
	s.EXPECT().GetPost(gomock.Any(), "missing").Return(nil, storageinterface.ErrNotFound)

	_, err := srv.ToggleUpvote(context.Background(), "jack", "missing")
	require.True(t, errors.Is(err, storageinterface.ErrNotFound))
}

func TestSrv_SendMessage(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	now := time.Now()
	srv := newTestSrv(s, now)

	conv := &entities.Conversation{ID: "conv", Participants: []string{"jack", "jill"}}

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f func(s storageinterface.Storage) error) error {
		return f(s)
	})
	s.EXPECT().GetConversation(gomock.Any(), "jack", "jill").Return(conv, nil)
	s.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p *storageinterface.CreateMessageParams) error {
		require.Equal(t, "conv", p.ConversationID)
		require.Equal(t, "jack", p.Sender)
		require.Equal(t, "jill", p.Recipient)
		require.Equal(t, "hi", p.Text)
		require.Equal(t, now, p.SentAt)
		return nil
	})

	msg, err := srv.SendMessage(context.Background(), "jack", "jill", "hi")
	require.NoError(t, err)
	require.Equal(t, "conv", msg.ConversationID)
}

func TestSrv_SendMessage_newConversation(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	now := time.Now()
	srv := newTestSrv(s, now)

	s.EXPECT().InTx(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f func(s storageinterface.Storage) error) error {
		return f(s)
	})

	gomock.InOrder(
		s.EXPECT().GetConversation(gomock.Any(), "jack", "jill").Return(nil, storageinterface.ErrNotFound),
		s.EXPECT().CreateConversation(gomock.Any(), gomock.Any()).Return(nil),
		s.EXPECT().GetConversation(gomock.Any(), "jack", "jill").Return(&entities.Conversation{ID: "conv"}, nil),
		s.EXPECT().CreateMessage(gomock.Any(), gomock.Any()).Return(nil),
	)

	msg, err := srv.SendMessage(context.Background(), "jack", "jill", "hi")
	require.NoError(t, err)
	require.Equal(t, "conv", msg.ConversationID)
}

func TestSrv_SendMessage_invalid(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	long := make([]byte, maxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}

	tt := []struct {
		name      string
		recipient string
		text      string
	}{
		{name: "self message", recipient: "jack", text: "hi"},
		{name: "empty text", recipient: "jill", text: ""},
		{name: "text too long", recipient: "jill", text: string(long)},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.SendMessage(context.Background(), "jack", tc.recipient, tc.text)

			var v *service.ValidationError
			require.True(t, errors.As(err, &v))
		})
	}
}

func TestSrv_ListMessages(t *testing.T) {
	ctrl := gomock.NewController(t)

	s := storage.NewMockStorage(ctrl)

	srv := New(s)

	s.EXPECT().GetConversation(gomock.Any(), "jack", "jill").Return(&entities.Conversation{ID: "conv"}, nil)
	s.EXPECT().ListMessages(gomock.Any(), "conv", uint16(service.MessagesPageSize), uint32(0)).Return([]*entities.Message{}, nil)

	out, err := srv.ListMessages(context.Background(), "jack", "jill", 1)
	require.NoError(t, err)
	require.Empty(t, out)

	s.EXPECT().GetConversation(gomock.Any(), "jack", "jill").Return(nil, storageinterface.ErrNotFound)
	_, err = srv.ListMessages(context.Background(), "jack", "jill", 1)
	require.True(t, errors.Is(err, storageinterface.ErrNotFound))
}

func TestPageOffset(t *testing.T) {
	require.EqualValues(t, 0, pageOffset(0, 10))
	require.EqualValues(t, 0, pageOffset(1, 10))
	require.EqualValues(t, 10, pageOffset(2, 10))
	require.EqualValues(t, 45, pageOffset(10, 5))
}
