package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/gallery/internal/auth"
	"github.com/kalambet/gallery/internal/media"
	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/worker"
)

type messageResponse struct {
	Message string `json:"message"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON: %v", err)
		return false
	}
	return true
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		p, err := deps.Profiles.Get(r.Context(), username)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p.Document(auth.ViewerFrom(r.Context())))
	}
}

func handleCheckUsername(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := deps.Profiles.UsernameAvailable(r.Context(), r.URL.Query().Get("username"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
	}
}

type meResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Username         string `json:"username"`
	UsernameRequired bool   `json:"usernameRequired"`
}

func handleMe(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := auth.ViewerFrom(r.Context())
		p, err := deps.Profiles.GetByID(r.Context(), v.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			ID:               p.ID,
			Name:             p.Name,
			Username:         p.Username,
			UsernameRequired: p.Username == "",
		})
	}
}

type usernameBody struct {
	Username string `json:"username"`
}

func handleGetUsername(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := auth.ViewerFrom(r.Context())
		p, err := deps.Profiles.GetByID(r.Context(), v.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if p.Username == "" {
			httpError(w, http.StatusNotFound, "not_found", "username not set")
			return
		}
		writeJSON(w, http.StatusOK, usernameBody{Username: p.Username})
	}
}

func handleSetUsername(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body usernameBody
		if !decodeBody(w, r, &body) {
			return
		}
		v := auth.ViewerFrom(r.Context())
		if err := deps.Profiles.ClaimUsername(r.Context(), v.ID, body.Username); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, usernameBody{Username: body.Username})
	}
}

func handleUpdateIntro(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Intro string `json:"intro"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		v := auth.ViewerFrom(r.Context())
		if _, err := deps.Profiles.UpdateIntro(r.Context(), v.ID, body.Intro); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "intro updated"})
	}
}

func handleUpdateSkills(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Skills []profile.Skill `json:"skills"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		v := auth.ViewerFrom(r.Context())
		if err := deps.Profiles.UpdateSkills(r.Context(), v.ID, body.Skills); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "skills updated"})
	}
}

func handleUpdateLinks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SNS json.RawMessage `json:"sns"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if len(body.SNS) == 0 || string(body.SNS) == "null" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "sns is required")
			return
		}
		links, err := profile.DecodeLinks(body.SNS)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid sns: %v", err)
			return
		}
		v := auth.ViewerFrom(r.Context())
		if err := deps.Profiles.UpdateLinks(r.Context(), v.ID, links); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "links updated"})
	}
}

type workResponse struct {
	Message    string `json:"message"`
	PictureURL string `json:"pictureUrl"`
}

// handleUpdateWork replaces one work from a multipart form. The image, when
// present, is stored before the row is written; the replaced picture is queued
// for deletion only after the row commits.
func handleUpdateWork(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBodySize)
		if err := r.ParseMultipartForm(maxMultipartBodySize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		index, err := strconv.Atoi(strings.TrimSpace(r.FormValue("index")))
		if err != nil {
			writeDomainError(w, &profile.ValidationError{Field: "index", Message: "index must be an integer"})
			return
		}
		if err := profile.ValidateWorkIndex(index); err != nil {
			writeDomainError(w, err)
			return
		}
		work := profile.Work{
			Title:   r.FormValue("title"),
			Desc:    r.FormValue("desc"),
			SiteURL: r.FormValue("siteUrl"),
		}
		if _, err := profile.ValidateWork(work); err != nil {
			writeDomainError(w, err)
			return
		}

		ctx := r.Context()
		v := auth.ViewerFrom(ctx)
		if _, err := deps.Profiles.GetByID(ctx, v.ID); err != nil {
			writeDomainError(w, err)
			return
		}

		var newKey string
		if file, _, err := r.FormFile("image"); err == nil {
			img, err := media.ReadImage(file)
			file.Close()
			if err != nil {
				writeDomainError(w, &profile.ValidationError{Field: "image", Message: err.Error()})
				return
			}
			newKey = img.Key("works/" + v.ID)
			url, err := deps.Media.Put(ctx, newKey, img.ContentType, img.Data)
			if err != nil {
				slog.Error("storing work image failed", "user", v.ID, "error", err)
				httpError(w, http.StatusInternalServerError, "api_error", "failed to store image")
				return
			}
			work.PictureURL = url
		} else if !errors.Is(err, http.ErrMissingFile) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid image: %v", err)
			return
		}

		stored, prev, err := deps.Profiles.UpdateWork(ctx, v.ID, index, work)
		if err != nil {
			if newKey != "" {
				enqueueCleanup(r, deps, newKey)
			}
			writeDomainError(w, err)
			return
		}

		if newKey != "" && prev.PictureURL != stored.PictureURL {
			if key, ok := deps.Media.KeyForURL(prev.PictureURL); ok {
				enqueueCleanup(r, deps, key)
			}
		}
		writeJSON(w, http.StatusOK, workResponse{
			Message:    fmt.Sprintf("work %d updated", index),
			PictureURL: stored.PictureURL,
		})
	}
}

func enqueueCleanup(r *http.Request, deps AppDeps, key string) {
	if deps.Jobs == nil {
		return
	}
	if err := worker.EnqueueMediaCleanup(r.Context(), deps.Jobs, key); err != nil {
		slog.Warn("queueing media cleanup failed", "key", key, "error", err)
	}
}

type sessionResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// handleCreateSession signs in by email without a password. Only mounted in
// effect when DevLogin is set; otherwise the route answers 404.
func handleCreateSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.DevLogin {
			httpError(w, http.StatusNotFound, "not_found", "dev login is disabled")
			return
		}
		var body struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		if body.Email == "" || !strings.Contains(body.Email, "@") {
			writeDomainError(w, &profile.ValidationError{Field: "email", Message: "a valid email is required"})
			return
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			name, _, _ = strings.Cut(body.Email, "@")
		}

		p, err := deps.Profiles.Provision(r.Context(), body.Email, name)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		token, exp, err := deps.Sessions.Issue(profile.Viewer{ID: p.ID, Name: p.Name})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		deps.Sessions.SetCookie(w, token, exp)
		writeJSON(w, http.StatusCreated, sessionResponse{
			ID:       p.ID,
			Name:     p.Name,
			Username: p.Username,
			Token:    token,
		})
	}
}

func handleDeleteSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Sessions.ClearCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
