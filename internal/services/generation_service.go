// Package services – GenerationService
//
// This file implements GenerationService, the application-level component
// that owns the six AI operations. Every operation follows the same state
// machine: validate entitlement → invoke exactly one external capability →
// persist one creation row → best-effort quota update (free plan, quota-gated
// operations only) → return the creation.
//
// The external call is never retried, and the response is not produced until
// the insert completes: a generated-but-unpersisted result is returned as an
// error, never as content.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// the user identifier and operation type.
package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/quickai/go-quickai-backend/internal/clients/media"
	"github.com/quickai/go-quickai-backend/internal/domain"
	"github.com/quickai/go-quickai-backend/internal/entitlement"
	"github.com/quickai/go-quickai-backend/internal/pdftext"
	"github.com/quickai/go-quickai-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Token budgets per operation, matching the upstream generation settings.
const (
	defaultArticleTokens = 800
	blogTitleTokens      = 100
	resumeReviewTokens   = 1000
)

// resumeReviewTemplate is the fixed prompt wrapped around the extracted
// resume text.
const resumeReviewTemplate = "Review the following resume and provide constructive feedback on its strengths, " +
	"weaknesses, and areas for improvement. Start with an ATS score for the resume content:\n\n%s"

// Stored prompts for the file-based operations, which have no free-text
// prompt of their own.
const (
	promptRemoveBackground = "Remove background from image"
	promptResumeReview     = "Resume review"
)

// Caller is the authenticated identity a generation runs on behalf of, as
// resolved by the authorization gate.
type Caller struct {
	UserID    string
	Premium   bool
	FreeUsage int
}

// TextGenerator produces text from a prompt (chat completion).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ImageGenerator renders a prompt into raw PNG bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// MediaHost stores image bytes and exposes transformation URLs.
type MediaHost interface {
	Upload(ctx context.Context, image []byte, filename, transformation string) (*media.UploadResult, error)
	ObjectRemovalURL(publicID, object string) string
}

// GenerationService coordinates entitlement checks, external capability
// calls, persistence, and quota accounting for all six AI operations.
type GenerationService struct {
	DB           *gorm.DB
	Entitlements entitlement.Store
	Text         TextGenerator
	Images       ImageGenerator
	Media        MediaHost

	// FreeUsageLimit is the number of quota-gated generations a free-plan
	// caller may run before upgrading.
	FreeUsageLimit int
	// MaxUploadBytes caps uploaded image/resume payloads.
	MaxUploadBytes int64
	// MaxPromptRunes guards against oversized prompts; 0 disables the check.
	MaxPromptRunes int

	// StyleLocale controls casing of image style names merged into prompts.
	StyleLocale language.Tag
}

// GenerateArticle produces a markdown article from prompt. Quota-gated:
// available to premium callers and to free callers under the usage limit.
// length is the max token budget; values <= 0 fall back to the default.
func (s *GenerationService) GenerateArticle(ctx context.Context, caller Caller, prompt string, length int) (*domain.Creation, error) {
	ctx, span := s.startSpan(ctx, "GenerateArticle", caller, domain.TypeArticle)
	defer span.End()

	if err := s.checkQuota(caller); err != nil {
		return nil, err
	}
	prompt, err := s.normalizePrompt(prompt)
	if err != nil {
		return nil, err
	}
	if length <= 0 {
		length = defaultArticleTokens
	}

	content, err := s.Text.Complete(ctx, prompt, length)
	if err != nil {
		return nil, err
	}

	c, err := repo.CreateCreation(ctx, s.DB, caller.UserID, prompt, content, domain.TypeArticle, false)
	if err != nil {
		return nil, err
	}
	s.bumpQuota(ctx, caller)
	return c, nil
}

// GenerateBlogTitle produces blog title suggestions from prompt. Quota-gated
// like GenerateArticle, with a fixed small token budget.
func (s *GenerationService) GenerateBlogTitle(ctx context.Context, caller Caller, prompt string) (*domain.Creation, error) {
	ctx, span := s.startSpan(ctx, "GenerateBlogTitle", caller, domain.TypeBlogTitle)
	defer span.End()

	if err := s.checkQuota(caller); err != nil {
		return nil, err
	}
	prompt, err := s.normalizePrompt(prompt)
	if err != nil {
		return nil, err
	}

	content, err := s.Text.Complete(ctx, prompt, blogTitleTokens)
	if err != nil {
		return nil, err
	}

	c, err := repo.CreateCreation(ctx, s.DB, caller.UserID, prompt, content, domain.TypeBlogTitle, false)
	if err != nil {
		return nil, err
	}
	s.bumpQuota(ctx, caller)
	return c, nil
}

// GenerateImage renders prompt (optionally merged with a style name) into an
// image, uploads it to the media host, and persists the hosted URL. Premium
// only. publish controls public-gallery visibility and is fixed at creation.
func (s *GenerationService) GenerateImage(ctx context.Context, caller Caller, prompt, style string, publish bool) (*domain.Creation, error) {
	ctx, span := s.startSpan(ctx, "GenerateImage", caller, domain.TypeImage)
	defer span.End()

	if !caller.Premium {
		return nil, ErrPremiumRequired
	}
	prompt, err := s.normalizePrompt(prompt)
	if err != nil {
		return nil, err
	}
	prompt = s.mergeStyle(prompt, style)

	png, err := s.Images.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	up, err := s.Media.Upload(ctx, png, "generated.png", "")
	if err != nil {
		return nil, err
	}

	return repo.CreateCreation(ctx, s.DB, caller.UserID, prompt, up.SecureURL, domain.TypeImage, publish)
}

// RemoveBackground uploads the image with an eager background-removal
// transformation and persists the processed URL. Premium only.
func (s *GenerationService) RemoveBackground(ctx context.Context, caller Caller, image []byte, filename string) (*domain.Creation, error) {
	ctx, span := s.startSpan(ctx, "RemoveBackground", caller, domain.TypeImage)
	defer span.End()

	if !caller.Premium {
		return nil, ErrPremiumRequired
	}
	if err := s.checkUpload(image); err != nil {
		return nil, err
	}

	up, err := s.Media.Upload(ctx, image, filename, media.BackgroundRemovalTransformation)
	if err != nil {
		return nil, err
	}

	return repo.CreateCreation(ctx, s.DB, caller.UserID, promptRemoveBackground, up.SecureURL, domain.TypeImage, false)
}

// RemoveObject uploads the image and persists a delivery URL that removes
// the named object. Premium only; the object name must be a single word.
func (s *GenerationService) RemoveObject(ctx context.Context, caller Caller, image []byte, filename, object string) (*domain.Creation, error) {
	ctx, span := s.startSpan(ctx, "RemoveObject", caller, domain.TypeImage)
	defer span.End()

	if !caller.Premium {
		return nil, ErrPremiumRequired
	}
	object = strings.TrimSpace(object)
	if len(strings.Fields(object)) != 1 {
		return nil, ErrInvalidObjectName
	}
	if err := s.checkUpload(image); err != nil {
		return nil, err
	}

	up, err := s.Media.Upload(ctx, image, filename, "")
	if err != nil {
		return nil, err
	}
	url := s.Media.ObjectRemovalURL(up.PublicID, object)

	prompt := fmt.Sprintf("Remove %s from image", object)
	return repo.CreateCreation(ctx, s.DB, caller.UserID, prompt, url, domain.TypeImage, false)
}

// ReviewResume extracts text from the uploaded PDF, wraps it in the fixed
// review template, and persists the generated feedback. Premium only; the
// file must be a PDF within the upload cap.
func (s *GenerationService) ReviewResume(ctx context.Context, caller Caller, resume []byte) (*domain.Creation, error) {
	ctx, span := s.startSpan(ctx, "ReviewResume", caller, domain.TypeResumeReview)
	defer span.End()

	if !caller.Premium {
		return nil, ErrPremiumRequired
	}
	if err := s.checkUpload(resume); err != nil {
		return nil, err
	}

	text, err := pdftext.Extract(resume)
	if err != nil {
		if err == pdftext.ErrNotPDF {
			return nil, ErrNotPDF
		}
		return nil, err
	}

	content, err := s.Text.Complete(ctx, fmt.Sprintf(resumeReviewTemplate, text), resumeReviewTokens)
	if err != nil {
		return nil, err
	}

	return repo.CreateCreation(ctx, s.DB, caller.UserID, promptResumeReview, content, domain.TypeResumeReview, false)
}

// checkQuota gates the text operations: premium always passes, free passes
// while under the limit. No counter is consulted for premium callers.
func (s *GenerationService) checkQuota(caller Caller) error {
	if caller.Premium {
		return nil
	}
	if caller.FreeUsage >= s.FreeUsageLimit {
		return ErrQuotaExceeded
	}
	return nil
}

// bumpQuota increments the externally stored free-usage counter after a
// successful quota-gated generation. Best-effort: a failure is logged, never
// rolled back, and never fails the request.
func (s *GenerationService) bumpQuota(ctx context.Context, caller Caller) {
	if caller.Premium {
		return
	}
	if err := s.Entitlements.IncrementFreeUsage(ctx, caller.UserID); err != nil {
		log.Warn().
			Err(err).
			Str("user_id", caller.UserID).
			Msg("free usage increment failed")
	}
}

// checkUpload validates a file payload against presence and size limits.
func (s *GenerationService) checkUpload(data []byte) error {
	if len(data) == 0 {
		return ErrMissingFile
	}
	if s.MaxUploadBytes > 0 && int64(len(data)) > s.MaxUploadBytes {
		return ErrFileTooLarge
	}
	return nil
}

// normalizePrompt trims and bounds a free-text prompt.
func (s *GenerationService) normalizePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return "", ErrTooLong
	}
	return prompt, nil
}

// mergeStyle appends a non-default style name to the prompt, title-cased in
// the configured locale.
func (s *GenerationService) mergeStyle(prompt, style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return prompt
	}
	caser := cases.Title(s.styleLocaleOrDefault())
	return fmt.Sprintf("%s in the style %s", prompt, caser.String(style))
}

// styleLocaleOrDefault returns the configured locale for casing or English
// if unset.
func (s *GenerationService) styleLocaleOrDefault() language.Tag {
	if s.StyleLocale == language.Und {
		return language.English
	}
	return s.StyleLocale
}

// startSpan opens a tracing span tagged with the caller and creation type.
func (s *GenerationService) startSpan(ctx context.Context, name string, caller Caller, ctype string) (context.Context, trace.Span) {
	tr := otel.Tracer("services/GenerationService")
	return tr.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("user.id", caller.UserID),
			attribute.String("creation.type", ctype),
		),
	)
}
