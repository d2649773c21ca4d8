package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	mm "github.com/tickertape-app/tickertape/internal/middleware"
	"github.com/tickertape-app/tickertape/internal/entities"
	"github.com/tickertape-app/tickertape/internal/service"
	"github.com/tickertape-app/tickertape/internal/storage"
)

func (s server) getOwnProfile(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /profile Users GetOwnProfile
	//
	// Return the caller's profile with derived follower/following counts.

	username := mm.Username(r.Context())

	profile, err := s.s.GetProfile(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// the caller has not written a profile yet
			writeOK(w, http.StatusOK, toAPIProfile(&entities.Profile{Username: username}))
			return
		}
		writeInternalErrorf(r.Context(), w, "failed to get profile: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, toAPIProfile(profile))
}

func (s server) updateProfile(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /profile Users UpdateProfile
	//
	// Set the caller's bio and avatar.

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode json")
		return
	}

	if err := s.s.UpdateProfile(r.Context(), mm.Username(r.Context()), service.UpdateProfileParams{
		Avatar: req.Avatar,
		Bio:    req.Bio,
	}); err != nil {
		writeDomainError(r.Context(), w, err, "failed to update profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) getUser(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /user/{username} Users GetUser
	//
	// Return a user's profile and their posts, newest first.
	//
	// ---
	// responses:
	//   '200':
	//     schema:
	//       "$ref": "#/definitions/GetUserResponse"
	//   '404':
	//     description: user not found

	username := chi.URLParam(r, "username")

	posts, err := s.s.ListPosts(r.Context(), service.ListPostsParams{
		Page:   extractPageFromQuery(r.URL.Query()),
		Author: &username,
	})
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to list posts: %s", err.Error())
		return
	}

	profile, err := s.s.GetProfile(r.Context(), username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			writeInternalErrorf(r.Context(), w, "failed to get profile: %s", err.Error())
			return
		}

		// identity lives with the provider, a user is visible here once they
		// have either a profile row or posts
		if len(posts) == 0 {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}

		profile = &entities.Profile{Username: username}
	}

	var isFollowing bool
	if viewer := mm.Username(r.Context()); viewer != "" && viewer != username {
		isFollowing, err = s.s.IsFollowing(r.Context(), viewer, username)
		if err != nil {
			writeInternalErrorf(r.Context(), w, "failed to check follow: %s", err.Error())
			return
		}
	}

	writeOK(w, http.StatusOK, GetUserResponse{
		Profile:     toAPIProfile(profile),
		Posts:       toAPIPosts(posts),
		IsFollowing: isFollowing,
	})
}

func (s server) toggleFollow(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /user/{username} Users ToggleFollow
	//
	// Follow or unfollow a user via `follow`/`unfollow` form fields.

	follower := mm.Username(r.Context())
	followee := chi.URLParam(r, "username")

	var err error
	switch {
	case r.PostFormValue("follow") != "":
		err = s.s.Follow(r.Context(), follower, followee)
	case r.PostFormValue("unfollow") != "":
		err = s.s.Unfollow(r.Context(), follower, followee)
	default:
		writeError(w, http.StatusBadRequest, "follow or unfollow field is required")
		return
	}

	if err != nil {
		writeDomainError(r.Context(), w, err, "failed to toggle follow")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) listFollowing(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /user/{username}/following Users ListFollowing
	//
	// List usernames the given user follows.

	users, err := s.s.ListFollowing(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to list following: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, ListUsersResponse{Users: users})
}

func (s server) listFollowers(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /user/{username}/followers Users ListFollowers
	//
	// List usernames following the given user.

	users, err := s.s.ListFollowers(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeInternalErrorf(r.Context(), w, "failed to list followers: %s", err.Error())
		return
	}

	writeOK(w, http.StatusOK, ListUsersResponse{Users: users})
}
