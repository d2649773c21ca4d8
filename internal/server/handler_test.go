package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickertape-app/tickertape/internal/entities"
	mm "github.com/tickertape-app/tickertape/internal/middleware"
	"github.com/tickertape-app/tickertape/internal/service"
	"github.com/tickertape-app/tickertape/internal/service/mock"
	"github.com/tickertape-app/tickertape/internal/storage"
)

func authorized(r *http.Request, username string) *http.Request {
	return r.WithContext(mm.WithUsername(r.Context(), username))
}

func Test_listPosts(t *testing.T) {
	timestamp := time.Unix(100, 0)

	r, err := http.NewRequest(http.MethodGet, "/home?page=2", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().ListPosts(gomock.Any(), service.ListPostsParams{Page: 2}).Return([]*entities.Post{
		{
			ID:           "uuid",
			Author:       "jack",
			Content:      "bought the dip",
			Ticker:       "GME",
			Image:        "chart.png",
			Tags:         []string{"yolo", "stonks"},
			DateTraded:   timestamp,
			TotalUpvotes: 3,
			CreatedAt:    timestamp,
		},
		{
			ID:         "uuid2",
			Author:     "jill",
			Content:    "sold everything",
			DateTraded: timestamp,
			CreatedAt:  timestamp,
		},
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/home", srv.listPosts)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `
{
	"response": [
		{
			"id": "uuid",
			"author": "jack",
			"content": "bought the dip",
			"ticker": "GME",
			"image": "chart.png",
			"tags": ["yolo", "stonks"],
			"dateTraded": 100,
			"totalUpvotes": 3,
			"createdAt": 100
		},
		{
			"id": "uuid2",
			"author": "jill",
			"content": "sold everything",
			"dateTraded": 100,
			"totalUpvotes": 0,
			"createdAt": 100
		}
	]
}
	`, w.Body.String())
}

func Test_feed(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/feed", nil)
	require.NoError(t, err)
	r = authorized(r, "jack")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().Feed(gomock.Any(), "jack", uint32(1)).Return([]*entities.Post{}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/feed", srv.feed)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response": []}`, w.Body.String())
}

func Test_top(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/top/day", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().Top(gomock.Any(), service.DayWindow, uint32(1)).Return([]*entities.Post{}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/top/{window}", srv.top)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func Test_top_unknownWindow(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/top/fortnight", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().Top(gomock.Any(), service.Window("fortnight"), uint32(1)).
		Return(nil, &service.ValidationError{Field: "window", Message: "must be one of all, day, week, month, year"})

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/top/{window}", srv.top)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func Test_search(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/search?q=dip", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().ListPosts(gomock.Any(), gomock.Any()).Do(func(_ context.Context, p service.ListPostsParams) {
		assert.Equal(t, "dip", *p.Query)
	}).Return([]*entities.Post{}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/search", srv.search)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func Test_search_missingQuery(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/search", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := chi.NewRouter()
	srv := server{s: mock.NewMockService(ctrl)}
	router.Get("/search", srv.search)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "q is required"}`, w.Body.String())
}

func Test_searchFilter(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/search/filter?ticker=GME&tag=yolo", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().ListPosts(gomock.Any(), gomock.Any()).Do(func(_ context.Context, p service.ListPostsParams) {
		assert.Equal(t, "GME", *p.Ticker)
		assert.Equal(t, "yolo", *p.Tag)
	}).Return([]*entities.Post{}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/search/filter", srv.searchFilter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func Test_searchFilter_missingFilters(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/search/filter", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := chi.NewRouter()
	srv := server{s: mock.NewMockService(ctrl)}
	router.Get("/search/filter", srv.searchFilter)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func Test_createPost(t *testing.T) {
	timestamp := time.Unix(200, 0)

	body := `{"content":"bought the dip","ticker":"GME","tags":["yolo"],"dateTraded":100}`
	r, err := http.NewRequest(http.MethodPost, "/post/create", bytes.NewBufferString(body))
	require.NoError(t, err)
	r = authorized(r, "jack")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().CreatePost(gomock.Any(), "jack", service.CreatePostParams{
		Content:    "bought the dip",
		Ticker:     "GME",
		Tags:       []string{"yolo"},
		DateTraded: time.Unix(100, 0),
	}).Return(&entities.Post{
		ID:         "uuid",
		Author:     "jack",
		Content:    "bought the dip",
		Ticker:     "GME",
		Tags:       []string{"yolo"},
		DateTraded: time.Unix(100, 0),
		CreatedAt:  timestamp,
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/post/create", srv.createPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `
{
	"id": "uuid",
	"author": "jack",
	"content": "bought the dip",
	"ticker": "GME",
	"tags": ["yolo"],
	"dateTraded": 100,
	"totalUpvotes": 0,
	"createdAt": 200
}
	`, w.Body.String())
}

func Test_createPost_invalid(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/post/create", strings.NewReader(`{"ticker":"GME"}`))
	require.NoError(t, err)
	r = authorized(r, "jack")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().CreatePost(gomock.Any(), "jack", gomock.Any()).
		Return(nil, &service.ValidationError{Field: "content", Message: "is required"})

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/post/create", srv.createPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "content: is required"}`, w.Body.String())
}

func Test_getPost(t *testing.T) {
	timestamp := time.Unix(300, 0)

	r, err := http.NewRequest(http.MethodGet, "/post/uuid", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().GetPost(gomock.Any(), "uuid").Return(&entities.Post{
		ID:           "uuid",
		Author:       "jack",
		Content:      "bought the dip",
		Ticker:       "GME",
		DateTraded:   timestamp,
		TotalUpvotes: 1,
		CreatedAt:    timestamp,
	}, nil)

	s.EXPECT().ListComments(gomock.Any(), "uuid").Return([]*entities.Comment{
		{
			ID:        "c1",
			PostID:    "uuid",
			Author:    "jill",
			Content:   "nice trade",
			CreatedAt: timestamp,
		},
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/post/{id}", srv.getPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `
{
	"id": "uuid",
	"author": "jack",
	"content": "bought the dip",
	"ticker": "GME",
	"dateTraded": 300,
	"totalUpvotes": 1,
	"createdAt": 300,
	"comments": [
		{
			"id": "c1",
			"postId": "uuid",
			"author": "jill",
			"content": "nice trade",
			"createdAt": 300
		}
	]
}
	`, w.Body.String())
}

func Test_getPost_notFound(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/post/missing", nil)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().GetPost(gomock.Any(), "missing").Return(nil, storage.ErrNotFound)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Get("/post/{id}", srv.getPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"id": "missing", "message": "Not Found"}`, w.Body.String())
}

func Test_updatePost(t *testing.T) {
	body := `{"content":"edited","ticker":"GME","dateTraded":100}`
	r, err := http.NewRequest(http.MethodPost, "/post/uuid/update", strings.NewReader(body))
	require.NoError(t, err)
	r = authorized(r, "jack")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().UpdatePost(gomock.Any(), "jack", "uuid", service.UpdatePostParams{
		Content:    "edited",
		Ticker:     "GME",
		DateTraded: time.Unix(100, 0),
	}).Return(&entities.Post{
		ID:         "uuid",
		Author:     "jack",
		Content:    "edited",
		Ticker:     "GME",
		DateTraded: time.Unix(100, 0),
		CreatedAt:  time.Unix(50, 0),
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/post/{id}/update", srv.updatePost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func Test_updatePost_forbidden(t *testing.T) {
	body := `{"content":"edited","ticker":"GME","dateTraded":100}`
	r, err := http.NewRequest(http.MethodPost, "/post/uuid/update", strings.NewReader(body))
	require.NoError(t, err)
	r = authorized(r, "jill")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().UpdatePost(gomock.Any(), "jill", "uuid", gomock.Any()).Return(nil, service.ErrForbidden)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/post/{id}/update", srv.updatePost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error": "forbidden"}`, w.Body.String())
}

func Test_deletePost(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/post/uuid/delete", nil)
	require.NoError(t, err)
	r = authorized(r, "jack")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().DeletePost(gomock.Any(), "jack", "uuid").Return(nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/post/{id}/delete", srv.deletePost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func Test_addComment(t *testing.T) {
	timestamp := time.Unix(400, 0)

	r, err := http.NewRequest(http.MethodPost, "/post/uuid", strings.NewReader(`{"content":"nice trade"}`))
	require.NoError(t, err)
	r = authorized(r, "jill")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().AddComment(gomock.Any(), "jill", "uuid", "nice trade").Return(&entities.Comment{
		ID:        "c1",
		PostID:    "uuid",
		Author:    "jill",
		Content:   "nice trade",
		CreatedAt: timestamp,
	}, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/post/{id}", srv.addComment)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `
{
	"id": "c1",
	"postId": "uuid",
	"author": "jill",
	"content": "nice trade",
	"createdAt": 400
}
	`, w.Body.String())
}

func Test_addComment_missingPost(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/post/missing", strings.NewReader(`{"content":"nice trade"}`))
	require.NoError(t, err)
	r = authorized(r, "jill")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().AddComment(gomock.Any(), "jill", "missing", "nice trade").Return(nil, storage.ErrNotFound)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/post/{id}", srv.addComment)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func Test_deleteComment(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/comment/c1/delete", nil)
	require.NoError(t, err)
	r = authorized(r, "jill")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().DeleteComment(gomock.Any(), "jill", "c1").Return(nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/comment/{id}/delete", srv.deleteComment)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func Test_upvote(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/upvote", strings.NewReader("id=uuid"))
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r = authorized(r, "jack")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	s := mock.NewMockService(ctrl)

	s.EXPECT().ToggleUpvote(gomock.Any(), "jack", "uuid").Return(true, nil)

	router := chi.NewRouter()
	srv := server{s: s}
	router.Post("/upvote", srv.upvote)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": "uuid", "upvoted": true}`, w.Body.String())
}

func Test_upvote_missingID(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, "/upvote", nil)
	require.NoError(t, err)
	r = authorized(r, "jack")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := chi.NewRouter()
	srv := server{s: mock.NewMockService(ctrl)}
	router.Post("/upvote", srv.upvote)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "id is required"}`, w.Body.String())
}

func Test_extractPageFromQuery(t *testing.T) {
	tt := []struct {
		query string
		page  uint32
	}{
		{query: "", page: 1},
		{query: "page=0", page: 1},
		{query: "page=nan", page: 1},
		{query: "page=3", page: 3},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(fmt.Sprintf("query=%s", tc.query), func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, fmt.Sprintf("/home?%s", tc.query), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.page, extractPageFromQuery(r.URL.Query()))
		})
	}
}
