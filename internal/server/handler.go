package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	mm "github.com/tickertape-app/tickertape/internal/middleware"
	"github.com/tickertape-app/tickertape/internal/service"
	"github.com/tickertape-app/tickertape/internal/storage"
)

func (s server) listPosts(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /home Posts ListPosts
	//
	// Return the public post listing, newest first, paginated.
	//
	// ---
	// parameters:
	// - name: page
	//   in: query
	//   required: false
	//   default: 1
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/ListPostsResponse"

	posts, err := s.s.ListPosts(r.Context(), service.ListPostsParams{
		Page: extractPageFromQuery(r.URL.Query()),
	})
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to list posts: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Response: toAPIPosts(posts)})
}

func (s server) feed(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /feed Posts Feed
	//
	// Return posts authored by the caller and everybody the caller follows,
	// newest first, pages of 5.
	//
	// ---
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/ListPostsResponse"

	posts, err := s.s.Feed(r.Context(), mm.Username(r.Context()), extractPageFromQuery(r.URL.Query()))
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to list feed: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Response: toAPIPosts(posts)})
}

func (s server) top(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /top/{window} Posts Top
	//
	// Return posts ranked by upvotes within a time window.
	//
	// ---
	// parameters:
	// - name: window
	//   in: path
	//   required: true
	//   enum: [all, day, week, month, year]
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/ListPostsResponse"

	posts, err := s.s.Top(r.Context(), service.Window(chi.URLParam(r, "window")), extractPageFromQuery(r.URL.Query()))
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to list top posts")
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Response: toAPIPosts(posts)})
}

func (s server) search(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /search Posts Search
	//
	// Search posts by a content substring.

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	posts, err := s.s.ListPosts(r.Context(), service.ListPostsParams{
		Page:  extractPageFromQuery(r.URL.Query()),
		Query: &q,
	})
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to search posts: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Response: toAPIPosts(posts)})
}

func (s server) searchFilter(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /search/filter Posts SearchFilter
	//
	// Filter posts by ticker and/or tag.

	params := service.ListPostsParams{
		Page: extractPageFromQuery(r.URL.Query()),
	}

	if v := r.URL.Query().Get("ticker"); v != "" {
		params.Ticker = &v
	}

	if v := r.URL.Query().Get("tag"); v != "" {
		params.Tag = &v
	}

	if params.Ticker == nil && params.Tag == nil {
		writeError(w, http.StatusBadRequest, "ticker or tag is required")
		return
	}

	posts, err := s.s.ListPosts(r.Context(), params)
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to filter posts: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, ListPostsResponse{Response: toAPIPosts(posts)})
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /post/create Posts CreatePost
	//
	// Create a post owned by the caller.
	//
	// ---
	// responses:
	//   '201':
	//     schema:
	//       "$ref": "#/definitions/GetPostResponse"
	//   '400':
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	post, err := s.s.CreatePost(r.Context(), mm.Username(r.Context()), service.CreatePostParams{
		Content:    req.Content,
		Ticker:     req.Ticker,
		Image:      req.Image,
		Tags:       req.Tags,
		DateTraded: time.Unix(int64(req.DateTraded), 0),
	})
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to create post")
		return
	}

	writeOK(w, http.StatusCreated, toAPIPost(post))
}

func (s server) getPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /post/{id} Posts GetPost
	//
	// Get post with its comments.
	//
	// ---
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/GetPostResponse"
	//   '404':
	//     description: post not found

	id := chi.URLParam(r, "id")

	post, err := s.s.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// 404 body shape is part of the public contract
			writeOK(w, http.StatusNotFound, PostNotFoundResponse{ID: id, Message: "Not Found"})
			return
		}
		writeInternalErrorf(r.Context(), w, "failed to get post: %s", err.Error())
		return
	}

	comments, err := s.s.ListComments(r.Context(), id)
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to list comments: %s", err.Error())
		return
	}

	resp := GetPostResponse{
		Post:     *toAPIPost(post),
		Comments: make([]*Comment, len(comments)),
	}
	for i, c := range comments {
		resp.Comments[i] = toAPIComment(c)
	}

	writeOK(w, http.StatusOK, resp)
}

func (s server) updatePost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /post/{id}/update Posts UpdatePost
	//
	// Update a post, author only.

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	post, err := s.s.UpdatePost(r.Context(), mm.Username(r.Context()), chi.URLParam(r, "id"), service.UpdatePostParams{
		Content:    req.Content,
		Ticker:     req.Ticker,
		Image:      req.Image,
		Tags:       req.Tags,
		DateTraded: time.Unix(int64(req.DateTraded), 0),
	})
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to update post")
		return
	}

	writeOK(w, http.StatusOK, toAPIPost(post))
}

func (s server) deletePost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /post/{id}/delete Posts DeletePost
	//
	// Delete a post, author only. Comments and upvotes go with it.

	if err := s.s.DeletePost(r.Context(), mm.Username(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeDomainError(r.Context(), w, err, "failed to delete post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) addComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /post/{id} Comments AddComment
	//
	// Comment on a post.

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	comment, err := s.s.AddComment(r.Context(), mm.Username(r.Context()), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to add comment")
		return
	}

	writeOK(w, http.StatusCreated, toAPIComment(comment))
}

func (s server) deleteComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /comment/{id}/delete Comments DeleteComment
	//
	// Delete a comment, author only.

	if err := s.s.DeleteComment(r.Context(), mm.Username(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeDomainError(r.Context(), w, err, "failed to delete comment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) upvote(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /upvote Posts Upvote
	//
	// Toggle the caller's upvote on a post, id comes as a form field.
	//
	// ---
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/UpvoteResponse"

	id := r.PostFormValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	upvoted, err := s.s.ToggleUpvote(r.Context(), mm.Username(r.Context()), id)
	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to toggle upvote")
		return
	}

	writeOK(w, http.StatusOK, UpvoteResponse{ID: id, Upvoted: upvoted})
}

func extractPageFromQuery(q url.Values) uint32 {
	s := q.Get("page")
	if s == "" {
		return 1
	}

	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 1
	}

	return uint32(v)
}
