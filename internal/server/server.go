// Package server Tickertape
//
// The Tickertape API provides access to social trading entities
// (posts, upvotes, comments, follows, profiles and direct messages)
//
//     Schemes: https
//     Version: 1.0.0
//
//     Produces:
//     - application/json
//     Consumes:
//     - application/json
//
// swagger:meta
package server

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	mm "github.com/tickertape-app/tickertape/internal/middleware"
	"github.com/tickertape-app/tickertape/internal/service"
)

//go:generate swagger generate spec -t swagger -m -c . -o ../../static/swagger.json

const maxBodySize = 64 * 1024

const topCacheTTL = time.Minute

type server struct {
	s service.Service
}

// SetupRouter setups handlers to chi router.
func SetupRouter(s service.Service, r chi.Router, jwtSecret []byte, timeout time.Duration) {
	r.Use(
		middleware.RequestID,
		mm.Logger,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		mm.BodyLimiter(maxBodySize),
		mm.Metrics,
	)

	srv := server{
		s: s,
	}

	auth := mm.Auth(jwtSecret)

	r.Get("/home", srv.listPosts)
	r.Get("/post/{id}", srv.getPost)
	// identified but not guarded, a signed-in viewer sees their follow state
	r.With(mm.Identify(jwtSecret)).Get("/user/{username}", srv.getUser)
	r.Get("/user/{username}/following", srv.listFollowing)
	r.Get("/user/{username}/followers", srv.listFollowers)
	r.Get("/search", srv.search)
	r.Get("/search/filter", srv.searchFilter)
	r.Get("/top/{window}", mm.Cached(topCacheTTL, srv.top))

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/feed", srv.feed)
		r.Post("/post/create", srv.createPost)
		r.Post("/post/{id}", srv.addComment)
		r.Post("/post/{id}/update", srv.updatePost)
		r.Post("/post/{id}/delete", srv.deletePost)
		r.Post("/comment/{id}/delete", srv.deleteComment)
		r.Post("/upvote", srv.upvote)
		r.Get("/profile", srv.getOwnProfile)
		r.Post("/profile", srv.updateProfile)
		r.Post("/user/{username}", srv.toggleFollow)
		r.Get("/messages", srv.listConversations)
		r.Get("/messages/{username}", srv.listMessages)
		r.Post("/messages/{username}", srv.sendMessage)
	})
}
