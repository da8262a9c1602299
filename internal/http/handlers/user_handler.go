// Creation management HTTP handlers.
//
// This file exposes the user-facing creation endpoints:
//   - GET  /user/get-user-creations       (dashboard listing, ETag support)
//   - GET  /user/get-published-creations  (community gallery, ETag support)
//   - POST /user/toggle-like-creation     (like toggle)
//   - POST /user/delete-creation          (permanent delete, owner only)
//
// Listings carry a weak ETag derived from row count and latest update time
// so polling dashboards can short-circuit with 304.
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quickai/go-quickai-backend/internal/repo"
	"github.com/quickai/go-quickai-backend/internal/services"
	"github.com/quickai/go-quickai-backend/internal/utils"
)

// maxGalleryLimit bounds the optional ?limit of the gallery listing.
const maxGalleryLimit = 500

// CreationIDRequest is the JSON payload of the toggle-like and delete
// endpoints.
type CreationIDRequest struct {
	// ID of the target creation.
	ID string `json:"id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// etagPrecheck writes the ETag header and reports whether the request can be
// answered with 304. Stats failures skip the conditional path entirely.
func etagPrecheck(c *gin.Context, tag string, count int64, maxTS *time.Time) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.Unix()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, tag, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// GetUserCreations godoc
// @ID          getUserCreations
// @Summary     List my creations
// @Description Returns every creation of the authenticated user, newest first. Supports weak ETag via If-None-Match.
// @Tags        User
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.CreationsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /user/get-user-creations [get]
func (h *Handlers) GetUserCreations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	if h.db != nil {
		if count, maxTS, err := repo.CreationsStats(ctx, h.db, uid); err == nil {
			if etagPrecheck(c, "creations:"+uid, count, maxTS) {
				return
			}
		}
	}

	items, err := h.creationSvc.ListMine(ctx, uid)
	if err != nil {
		refuse(c, err.Error())
		return
	}
	okCreations(c, items)
}

// GetPublishedCreations godoc
// @ID          getPublishedCreations
// @Summary     List the community gallery
// @Description Returns published creations of all users, newest first. Supports weak ETag and an optional limit.
// @Tags        User
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       limit          query   int     false "Cap the number of results"  minimum(1) maximum(500)
//
// @Success     200  {object}  handlers.CreationsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /user/get-published-creations [get]
func (h *Handlers) GetPublishedCreations(c *gin.Context) {
	ctx := c.Request.Context()

	limit := utils.AtoiDefault(c.Query("limit"), 0)
	if limit < 0 {
		limit = 0
	}
	if limit > maxGalleryLimit {
		limit = maxGalleryLimit
	}

	// The ETag covers the whole gallery; a limited view still revalidates
	// against it.
	if h.db != nil && limit == 0 {
		if count, maxTS, err := repo.PublishedStats(ctx, h.db); err == nil {
			if etagPrecheck(c, "gallery", count, maxTS) {
				return
			}
		}
	}

	items, err := h.creationSvc.ListPublished(ctx, limit)
	if err != nil {
		refuse(c, err.Error())
		return
	}
	okCreations(c, items)
}

// ToggleLikeCreation godoc
// @ID          toggleLikeCreation
// @Summary     Toggle a like
// @Description Adds or removes the caller's like on a creation and reports which happened.
// @Tags        User
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreationIDRequest  true  "Creation ID"
//
// @Success     200  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /user/toggle-like-creation [post]
func (h *Handlers) ToggleLikeCreation(c *gin.Context) {
	var req CreationIDRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "creation id required")
		return
	}

	_, message, err := h.creationSvc.ToggleLike(c.Request.Context(), userID(c), req.ID)
	if err != nil {
		if err == services.ErrCreationNotFound {
			refuse(c, msgCreationNotFound)
			return
		}
		refuse(c, err.Error())
		return
	}
	okMessage(c, message)
}

// DeleteCreation godoc
// @ID          deleteCreation
// @Summary     Delete a creation
// @Description Permanently deletes a creation owned by the caller.
// @Tags        User
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreationIDRequest  true  "Creation ID"
//
// @Success     200  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /user/delete-creation [post]
func (h *Handlers) DeleteCreation(c *gin.Context) {
	var req CreationIDRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "creation id required")
		return
	}

	if err := h.creationSvc.Delete(c.Request.Context(), userID(c), req.ID); err != nil {
		if err == services.ErrCreationNotFound {
			refuse(c, msgCreationNotFound)
			return
		}
		refuse(c, err.Error())
		return
	}
	okMessage(c, "Creation deleted")
}
