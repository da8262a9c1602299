// AI generation HTTP handlers.
//
// This file exposes the six generation endpoints:
//   - POST /ai/generate-article
//   - POST /ai/generate-blog-title
//   - POST /ai/generate-image
//   - POST /ai/remove-image-background
//   - POST /ai/remove-image-object
//   - POST /ai/resume-review
//
// Handlers are transport-thin: they parse input (JSON or multipart), build
// the caller identity from the auth context, call GenerationService, and
// translate results into the success envelope. Idempotency-Key replays are
// served from the stored creation without touching the AI providers.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quickai/go-quickai-backend/internal/domain"
	"github.com/quickai/go-quickai-backend/internal/entitlement"
	"github.com/quickai/go-quickai-backend/internal/http/middleware"
	"github.com/quickai/go-quickai-backend/internal/repo"
	"github.com/quickai/go-quickai-backend/internal/services"
)

// idemTTL is how long a completed generation can be replayed via its
// Idempotency-Key.
const idemTTL = 24 * time.Hour

// User-facing business failure messages. The quota and premium texts are
// part of the API contract; clients match on them.
const (
	msgQuotaExhausted   = "You have exhausted your free usage limit. Please upgrade to premium."
	msgPremiumOnly      = "This feature is only available for premium users. Please upgrade to premium."
	msgCreationNotFound = "Creation not found"
	msgFileTooLarge     = "File size exceeds 5MB"
	msgPromptRequired   = "Prompt is required"
	msgPromptTooLong    = "Prompt is too long"
	msgSingleObject     = "Please enter only one object name"
	msgResumeNotPDF     = "Resume must be a PDF file"
)

//
// Service contracts (context-aware)
//

// GenerationService defines the AI operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the context.
type GenerationService interface {
	GenerateArticle(ctx context.Context, caller services.Caller, prompt string, length int) (*domain.Creation, error)
	GenerateBlogTitle(ctx context.Context, caller services.Caller, prompt string) (*domain.Creation, error)
	GenerateImage(ctx context.Context, caller services.Caller, prompt, style string, publish bool) (*domain.Creation, error)
	RemoveBackground(ctx context.Context, caller services.Caller, image []byte, filename string) (*domain.Creation, error)
	RemoveObject(ctx context.Context, caller services.Caller, image []byte, filename, object string) (*domain.Creation, error)
	ReviewResume(ctx context.Context, caller services.Caller, resume []byte) (*domain.Creation, error)
}

// CreationService defines the creation lifecycle operations consumed by the
// user endpoints (user_handler.go).
type CreationService interface {
	ListMine(ctx context.Context, userID string) ([]domain.Creation, error)
	ListPublished(ctx context.Context, limit int) ([]domain.Creation, error)
	ToggleLike(ctx context.Context, userID, creationID string) (liked bool, message string, err error)
	Delete(ctx context.Context, userID, creationID string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for generation and creation management.
// The DB handle is used only for ETag statistics and idempotency records;
// when nil both features degrade gracefully.
type Handlers struct {
	genSvc      GenerationService
	creationSvc CreationService
	db          *gorm.DB
}

// New constructs a Handlers instance bound to the given services.
func New(gen GenerationService, creations CreationService, db *gorm.DB) *Handlers {
	return &Handlers{genSvc: gen, creationSvc: creations, db: db}
}

// caller builds the caller identity from the context set by the auth gate.
func caller(c *gin.Context) services.Caller {
	plan, _ := c.Get(middleware.CtxPlan)
	usage, _ := c.Get(middleware.CtxFreeUsage)
	planStr, _ := plan.(string)
	usageInt, _ := usage.(int)
	return services.Caller{
		UserID:    userID(c),
		Premium:   planStr == entitlement.PlanPremium,
		FreeUsage: usageInt,
	}
}

// userID extracts the authenticated user id from the Gin context.
func userID(c *gin.Context) string {
	if v, ok := c.Get(middleware.CtxUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

//
// DTOs
//

// GenerateArticleRequest is the JSON payload for article generation.
type GenerateArticleRequest struct {
	// Prompt describes the article to write.
	Prompt string `json:"prompt" example:"The future of renewable energy"`
	// Length is the max token budget; 0 uses the default.
	Length int `json:"length" example:"800"`
}

// GenerateBlogTitleRequest is the JSON payload for blog-title generation.
type GenerateBlogTitleRequest struct {
	Prompt string `json:"prompt" example:"Blog about home automation"`
}

// GenerateImageRequest is the JSON payload for image generation.
type GenerateImageRequest struct {
	Prompt string `json:"prompt" example:"A lighthouse at dawn"`
	// Style optionally names a visual style merged into the prompt.
	Style string `json:"style,omitempty" example:"ghibli"`
	// Publish makes the image visible in the community gallery. Fixed at
	// creation time.
	Publish bool `json:"publish" example:"false"`
}

//
// Helpers
//

// formFileBytes reads the named multipart file into memory. The request body
// is already capped by the router's size limit.
func formFileBytes(c *gin.Context, field string) (data []byte, filename string, err error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

// replayed serves a stored creation when the idempotency middleware flagged
// this request as a replay. Returns true when the response was written; a
// failed record lookup falls through to normal processing.
func (h *Handlers) replayed(c *gin.Context) bool {
	if !middleware.IsReplay(c) || h.db == nil {
		return false
	}
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		return false
	}
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, userID(c), c.FullPath(), key, time.Now().UTC())
	if err != nil {
		return false
	}
	cr, err := repo.GetCreation(ctx, h.db, rec.CreationID)
	if err != nil {
		return false
	}
	okContent(c, cr.Content)
	return true
}

// recordIdempotency persists the (user, route, key) → creation binding after
// a successful generation. Best-effort: duplicates are expected under
// concurrent retries and other failures only cost replay capability.
func (h *Handlers) recordIdempotency(c *gin.Context, creationID string) {
	key, ok := middleware.GetIdempotencyKey(c)
	if !ok || h.db == nil {
		return
	}
	_, err := repo.CreateIdempotency(c.Request.Context(), h.db,
		userID(c), c.FullPath(), key, creationID, http.StatusOK, idemTTL)
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
	}
}

// refuseGeneration maps a generation error to the business failure envelope
// and records the outcome metric. Unknown errors surface their message, the
// upstream convention for provider failures.
func (h *Handlers) refuseGeneration(c *gin.Context, ctype string, err error) {
	var msg string
	outcome := "rejected"
	switch {
	case errors.Is(err, services.ErrQuotaExceeded):
		msg = msgQuotaExhausted
	case errors.Is(err, services.ErrPremiumRequired):
		msg = msgPremiumOnly
	case errors.Is(err, services.ErrEmptyPrompt):
		msg = msgPromptRequired
	case errors.Is(err, services.ErrTooLong):
		msg = msgPromptTooLong
	case errors.Is(err, services.ErrInvalidObjectName):
		msg = msgSingleObject
	case errors.Is(err, services.ErrFileTooLarge):
		msg = msgFileTooLarge
	case errors.Is(err, services.ErrNotPDF):
		msg = msgResumeNotPDF
	default:
		outcome = "error"
		msg = err.Error()
		middleware.LoggerFrom(c).Error().Err(err).Str("type", ctype).Msg("generation failed")
	}
	middleware.ObserveGeneration(ctype, outcome)
	refuse(c, msg)
}

//
// Handlers
//

// GenerateArticle godoc
// @ID          generateArticle
// @Summary     Generate an article
// @Description Generates a markdown article from the prompt. Free-plan callers consume one unit of the free usage quota.
// @Tags        AI
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body  body  handlers.GenerateArticleRequest  true  "Generation payload"
//
// @Success     200  {object}  handlers.ContentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /ai/generate-article [post]
func (h *Handlers) GenerateArticle(c *gin.Context) {
	var req GenerateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if h.replayed(c) {
		return
	}

	cr, err := h.genSvc.GenerateArticle(c.Request.Context(), caller(c), req.Prompt, req.Length)
	if err != nil {
		h.refuseGeneration(c, domain.TypeArticle, err)
		return
	}
	h.recordIdempotency(c, cr.ID)
	middleware.ObserveGeneration(domain.TypeArticle, "ok")
	okContent(c, cr.Content)
}

// GenerateBlogTitle godoc
// @ID          generateBlogTitle
// @Summary     Generate blog titles
// @Description Generates blog title suggestions from the prompt. Free-plan callers consume one unit of the free usage quota.
// @Tags        AI
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body  body  handlers.GenerateBlogTitleRequest  true  "Generation payload"
//
// @Success     200  {object}  handlers.ContentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /ai/generate-blog-title [post]
func (h *Handlers) GenerateBlogTitle(c *gin.Context) {
	var req GenerateBlogTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if h.replayed(c) {
		return
	}

	cr, err := h.genSvc.GenerateBlogTitle(c.Request.Context(), caller(c), req.Prompt)
	if err != nil {
		h.refuseGeneration(c, domain.TypeBlogTitle, err)
		return
	}
	h.recordIdempotency(c, cr.ID)
	middleware.ObserveGeneration(domain.TypeBlogTitle, "ok")
	okContent(c, cr.Content)
}

// GenerateImage godoc
// @ID          generateImage
// @Summary     Generate an image
// @Description Renders the prompt into an image, stores it on the media host, and returns the hosted URL. Premium only.
// @Tags        AI
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body  body  handlers.GenerateImageRequest  true  "Generation payload"
//
// @Success     200  {object}  handlers.ContentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /ai/generate-image [post]
func (h *Handlers) GenerateImage(c *gin.Context) {
	var req GenerateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if h.replayed(c) {
		return
	}

	cr, err := h.genSvc.GenerateImage(c.Request.Context(), caller(c), req.Prompt, req.Style, req.Publish)
	if err != nil {
		h.refuseGeneration(c, domain.TypeImage, err)
		return
	}
	h.recordIdempotency(c, cr.ID)
	middleware.ObserveGeneration(domain.TypeImage, "ok")
	okContent(c, cr.Content)
}

// RemoveImageBackground godoc
// @ID          removeImageBackground
// @Summary     Remove image background
// @Description Uploads the image with a background-removal transformation and returns the processed URL. Premium only.
// @Tags        AI
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
//
// @Param       image  formData  file  true  "Image file"
//
// @Success     200  {object}  handlers.ContentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /ai/remove-image-background [post]
func (h *Handlers) RemoveImageBackground(c *gin.Context) {
	image, filename, err := formFileBytes(c, "image")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image file required")
		return
	}
	if h.replayed(c) {
		return
	}

	cr, err := h.genSvc.RemoveBackground(c.Request.Context(), caller(c), image, filename)
	if err != nil {
		h.refuseGeneration(c, domain.TypeImage, err)
		return
	}
	h.recordIdempotency(c, cr.ID)
	middleware.ObserveGeneration(domain.TypeImage, "ok")
	okContent(c, cr.Content)
}

// RemoveImageObject godoc
// @ID          removeImageObject
// @Summary     Remove an object from an image
// @Description Uploads the image and returns a delivery URL with the named object removed. The object name must be a single word. Premium only.
// @Tags        AI
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
//
// @Param       image   formData  file    true  "Image file"
// @Param       object  formData  string  true  "Object to remove (single word)"  example(watch)
//
// @Success     200  {object}  handlers.ContentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /ai/remove-image-object [post]
func (h *Handlers) RemoveImageObject(c *gin.Context) {
	image, filename, err := formFileBytes(c, "image")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image file required")
		return
	}
	object := c.PostForm("object")
	if h.replayed(c) {
		return
	}

	cr, err := h.genSvc.RemoveObject(c.Request.Context(), caller(c), image, filename, object)
	if err != nil {
		h.refuseGeneration(c, domain.TypeImage, err)
		return
	}
	h.recordIdempotency(c, cr.ID)
	middleware.ObserveGeneration(domain.TypeImage, "ok")
	okContent(c, cr.Content)
}

// ResumeReview godoc
// @ID          resumeReview
// @Summary     Review a resume
// @Description Extracts text from the uploaded PDF resume and returns AI feedback with an ATS score. Premium only; PDF up to 5MB.
// @Tags        AI
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
//
// @Param       resume  formData  file  true  "Resume (PDF)"
//
// @Success     200  {object}  handlers.ContentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /ai/resume-review [post]
func (h *Handlers) ResumeReview(c *gin.Context) {
	resume, _, err := formFileBytes(c, "resume")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "resume file required")
		return
	}
	if h.replayed(c) {
		return
	}

	cr, err := h.genSvc.ReviewResume(c.Request.Context(), caller(c), resume)
	if err != nil {
		h.refuseGeneration(c, domain.TypeResumeReview, err)
		return
	}
	h.recordIdempotency(c, cr.ID)
	middleware.ObserveGeneration(domain.TypeResumeReview, "ok")
	okContent(c, cr.Content)
}
