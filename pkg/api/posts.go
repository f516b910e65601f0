package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"linkshare/pkg/session"
	"linkshare/pkg/storage"
)

// maxUpdateAttempts bounds the read-modify-write cycles of a post update
// that lost the race against another writer.
const maxUpdateAttempts = 3

var errTooManyConflicts = errors.New("post kept changing during update")

func (api *API) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	user, _ := session.FromContext(r.Context())

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	category := storage.NormalizeCategory(r.URL.Query().Get("category"))
	if category == "" {
		category = allCategories
	}

	filter := storage.PostFilter{TitleContains: search}
	if category != allCategories {
		filter.Category = category
	}

	views, err := api.populatedPosts(r.Context(), filter)
	if err != nil {
		log.Errorf("[dashboardHandler][%s] failed to fetch posts: %v", sID, err)
		api.renderDashboard(w, http.StatusInternalServerError, user, msgFetchPosts)
		return
	}

	groups := groupByCategory(views)
	api.render(w, http.StatusOK, viewDashboard, dashboardData{
		User:             user,
		Posts:            groups,
		Search:           search,
		SelectedCategory: category,
		Categories:       api.knownCategories(groups),
		MaxComments:      storage.MaxComments,
		MaxCommentLen:    maxCommentLen,
	})
	log.Debugf("[dashboardHandler][%s] %d posts sent to: %v", sID, len(views), r.RemoteAddr)
}

// renderDashboard renders an empty dashboard carrying msg.
func (api *API) renderDashboard(w http.ResponseWriter, status int, user session.Session, msg string) {
	api.render(w, status, viewDashboard, dashboardData{
		User:             user,
		Posts:            map[string][]storage.PostView{},
		SelectedCategory: allCategories,
		Categories:       api.knownCategories(nil),
		MaxComments:      storage.MaxComments,
		MaxCommentLen:    maxCommentLen,
		Error:            msg,
	})
}

func (api *API) searchHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	views, err := api.populatedPosts(r.Context(), storage.PostFilter{TitleContains: search})
	if err != nil {
		log.Errorf("[searchHandler][%s] failed to fetch posts: %v", sID, err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	api.render(w, http.StatusOK, viewSearchResults, searchResultsData{Search: search, Results: views})
	log.Debugf("[searchHandler][%s] %d results sent to: %v", sID, len(views), r.RemoteAddr)
}

func (api *API) populatedPosts(ctx context.Context, f storage.PostFilter) ([]storage.PostView, error) {
	posts, err := api.db.Posts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("Posts() returned error: %w", err)
	}
	views, err := storage.Populate(ctx, api.db, posts)
	if err != nil {
		return nil, fmt.Errorf("Populate() returned error: %w", err)
	}
	return views, nil
}

// submitPostHandler serves both /post-description and /post-link.
func (api *API) submitPostHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	user, _ := session.FromContext(r.Context())

	req, err := parsePost(r)
	if err != nil {
		log.Debugf("[submitPostHandler][%s] failed to parse form: %v", sID, err)
		api.renderDashboard(w, http.StatusBadRequest, user, "Invalid request")
		return
	}
	if err := api.validate.Struct(req); err != nil {
		log.Debugf("[submitPostHandler][%s] invalid post: %v", sID, err)
		api.renderDashboard(w, http.StatusBadRequest, user, validationMessage(err))
		return
	}

	banned, err := api.banned(r.Context(), req.Title)
	if err != nil {
		log.Errorf("[submitPostHandler][%s] moderation failed: %v", sID, err)
		api.renderDashboard(w, http.StatusInternalServerError, user, msgPostDescription)
		return
	}
	if banned {
		log.Debugf("[submitPostHandler][%s] title rejected by moderation", sID)
		api.renderDashboard(w, http.StatusUnprocessableEntity, user, msgTitleForbidden)
		return
	}

	post, err := api.db.CreatePost(r.Context(), storage.Post{
		Title:    req.Title,
		Link:     req.Link,
		Category: req.Category,
		AuthorID: user.UserID,
	})
	if err != nil {
		log.Errorf("[submitPostHandler][%s] CreatePost() returned error: %v", sID, err)
		api.renderDashboard(w, http.StatusInternalServerError, user, msgPostDescription)
		return
	}

	log.Debugf("[submitPostHandler][%s] post %v created", sID, post.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (api *API) likeHandler(w http.ResponseWriter, r *http.Request) {
	api.vote(w, r, "likeHandler", func(p *storage.Post, userID uuid.UUID) error {
		return p.Like(userID)
	})
}

func (api *API) dislikeHandler(w http.ResponseWriter, r *http.Request) {
	api.vote(w, r, "dislikeHandler", func(p *storage.Post, userID uuid.UUID) error {
		return p.Dislike(userID)
	})
}

func (api *API) vote(w http.ResponseWriter, r *http.Request, handler string, mark func(*storage.Post, uuid.UUID) error) {
	sID := shorten(GetRequestID(r.Context()))
	user, _ := session.FromContext(r.Context())

	id, err := postID(r)
	if err != nil {
		log.Debugf("[%s][%s] %v", handler, sID, err)
		http.Error(w, msgPostNotFound, http.StatusNotFound)
		return
	}

	err = api.updatePost(r.Context(), id, func(p *storage.Post) error {
		return mark(p, user.UserID)
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrPostNotFound):
		log.Debugf("[%s][%s] post %v: %v", handler, sID, id, err)
		http.Error(w, msgPostNotFound, http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrAlreadyLiked):
		log.Debugf("[%s][%s] post %v: %v", handler, sID, id, err)
		http.Error(w, msgAlreadyLiked, http.StatusBadRequest)
		return
	case errors.Is(err, storage.ErrAlreadyDisliked):
		log.Debugf("[%s][%s] post %v: %v", handler, sID, id, err)
		http.Error(w, msgAlreadyDisliked, http.StatusBadRequest)
		return
	default:
		log.Errorf("[%s][%s] post %v: %v", handler, sID, id, err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (api *API) commentHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))
	user, _ := session.FromContext(r.Context())

	id, err := postID(r)
	if err != nil {
		log.Debugf("[commentHandler][%s] %v", sID, err)
		http.Error(w, msgPostNotFound, http.StatusNotFound)
		return
	}

	req, err := parseComment(r)
	if err != nil {
		log.Debugf("[commentHandler][%s] failed to parse form: %v", sID, err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if err := api.validate.Struct(req); err != nil {
		log.Debugf("[commentHandler][%s] invalid comment: %v", sID, err)
		http.Error(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	post, err := api.db.Post(r.Context(), id)
	if err != nil {
		api.commentError(w, sID, id, err)
		return
	}
	if len(post.Comments) >= storage.MaxComments {
		api.commentError(w, sID, id, storage.ErrCommentLimit)
		return
	}

	banned, err := api.banned(r.Context(), req.Text)
	if err != nil {
		log.Errorf("[commentHandler][%s] moderation failed: %v", sID, err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	if banned {
		log.Debugf("[commentHandler][%s] comment rejected by moderation", sID)
		http.Error(w, msgCommentForbidden, http.StatusUnprocessableEntity)
		return
	}

	err = api.updatePost(r.Context(), id, func(p *storage.Post) error {
		return p.AddComment(req.Text, user.UserID)
	})
	if err != nil {
		api.commentError(w, sID, id, err)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (api *API) commentError(w http.ResponseWriter, sID string, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, storage.ErrPostNotFound):
		log.Debugf("[commentHandler][%s] post %v: %v", sID, id, err)
		http.Error(w, msgPostNotFound, http.StatusNotFound)
	case errors.Is(err, storage.ErrCommentLimit):
		log.Debugf("[commentHandler][%s] post %v: %v", sID, id, err)
		http.Error(w, msgCommentLimit, http.StatusBadRequest)
	default:
		log.Errorf("[commentHandler][%s] post %v: %v", sID, id, err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
	}
}

// updatePost applies mutate to a freshly read copy of the post and saves it.
// Updates of the same post are serialized within the process; a conflicting
// save by another process restarts the cycle up to maxUpdateAttempts times.
func (api *API) updatePost(ctx context.Context, id uuid.UUID, mutate func(*storage.Post) error) error {
	mu := &api.postLocks[int(id[len(id)-1])%lockStripes]
	mu.Lock()
	defer mu.Unlock()

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		p, err := api.db.Post(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(&p); err != nil {
			return err
		}

		_, err = api.db.SavePost(ctx, p)
		if errors.Is(err, storage.ErrPostConflict) {
			log.Debugf("[updatePost][%s] post %v changed concurrently, attempt %d", shorten(GetRequestID(ctx)), id, attempt)
			continue
		}
		return err
	}

	return fmt.Errorf("%w: %d attempts", errTooManyConflicts, maxUpdateAttempts)
}
