package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quickai/go-quickai-backend/internal/domain"
	"github.com/quickai/go-quickai-backend/internal/entitlement"
	"github.com/quickai/go-quickai-backend/internal/http/middleware"
	"github.com/quickai/go-quickai-backend/internal/repo"
	"github.com/quickai/go-quickai-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

//
// Stubs
//

type stubGenSvc struct {
	creation *domain.Creation
	err      error

	calls      int
	lastCaller services.Caller
	lastPrompt string
	lastObject string
}

func (s *stubGenSvc) touch(caller services.Caller) (*domain.Creation, error) {
	s.calls++
	s.lastCaller = caller
	return s.creation, s.err
}

func (s *stubGenSvc) GenerateArticle(ctx context.Context, caller services.Caller, prompt string, length int) (*domain.Creation, error) {
	s.lastPrompt = prompt
	return s.touch(caller)
}

func (s *stubGenSvc) GenerateBlogTitle(ctx context.Context, caller services.Caller, prompt string) (*domain.Creation, error) {
	s.lastPrompt = prompt
	return s.touch(caller)
}

func (s *stubGenSvc) GenerateImage(ctx context.Context, caller services.Caller, prompt, style string, publish bool) (*domain.Creation, error) {
	s.lastPrompt = prompt
	return s.touch(caller)
}

func (s *stubGenSvc) RemoveBackground(ctx context.Context, caller services.Caller, image []byte, filename string) (*domain.Creation, error) {
	return s.touch(caller)
}

func (s *stubGenSvc) RemoveObject(ctx context.Context, caller services.Caller, image []byte, filename, object string) (*domain.Creation, error) {
	s.lastObject = object
	return s.touch(caller)
}

func (s *stubGenSvc) ReviewResume(ctx context.Context, caller services.Caller, resume []byte) (*domain.Creation, error) {
	return s.touch(caller)
}

type stubCreationSvc struct {
	mine      []domain.Creation
	published []domain.Creation
	listErr   error

	toggleMsg   string
	toggleLiked bool
	toggleErr   error
	deleteErr   error

	lastLimit int
}

func (s *stubCreationSvc) ListMine(ctx context.Context, userID string) ([]domain.Creation, error) {
	return s.mine, s.listErr
}

func (s *stubCreationSvc) ListPublished(ctx context.Context, limit int) ([]domain.Creation, error) {
	s.lastLimit = limit
	return s.published, s.listErr
}

func (s *stubCreationSvc) ToggleLike(ctx context.Context, userID, creationID string) (bool, string, error) {
	return s.toggleLiked, s.toggleMsg, s.toggleErr
}

func (s *stubCreationSvc) Delete(ctx context.Context, userID, creationID string) error {
	return s.deleteErr
}

//
// Harness
//

type identity struct {
	userID string
	plan   string
	usage  int
}

// newRouter mounts the handlers behind a fake auth gate injecting id.
func newRouter(h *Handlers, id identity) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, id.userID)
		c.Set(middleware.CtxPlan, id.plan)
		c.Set(middleware.CtxFreeUsage, id.usage)
	})

	ai := r.Group("/ai")
	ai.POST("/generate-article", h.GenerateArticle)
	ai.POST("/generate-blog-title", h.GenerateBlogTitle)
	ai.POST("/generate-image", h.GenerateImage)
	ai.POST("/remove-image-background", h.RemoveImageBackground)
	ai.POST("/remove-image-object", h.RemoveImageObject)
	ai.POST("/resume-review", h.ResumeReview)

	user := r.Group("/user")
	user.GET("/get-user-creations", h.GetUserCreations)
	user.GET("/get-published-creations", h.GetPublishedCreations)
	user.POST("/toggle-like-creation", h.ToggleLikeCreation)
	user.POST("/delete-creation", h.DeleteCreation)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postMultipart(t *testing.T, r *gin.Engine, path, fileField, filename string, file []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if file != nil {
		fw, err := mw.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

//
// Generation endpoints
//

func TestGenerateArticle_Success(t *testing.T) {
	gen := &stubGenSvc{creation: &domain.Creation{ID: "c1", Content: "# Article"}}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanFree, usage: 3})

	w := postJSON(t, r, "/ai/generate-article", GenerateArticleRequest{Prompt: "solar", Length: 500}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != true || body["content"] != "# Article" {
		t.Fatalf("unexpected body: %v", body)
	}
	if gen.lastCaller.UserID != "u1" || gen.lastCaller.Premium || gen.lastCaller.FreeUsage != 3 {
		t.Fatalf("caller identity not propagated: %+v", gen.lastCaller)
	}
}

func TestGenerateArticle_MalformedJSON(t *testing.T) {
	gen := &stubGenSvc{}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanFree})

	req := httptest.NewRequest(http.MethodPost, "/ai/generate-article", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != "bad_request" {
		t.Fatalf("unexpected body: %v", body)
	}
	if gen.calls != 0 {
		t.Fatal("service must not run on malformed input")
	}
}

func TestGenerateArticle_QuotaMessage(t *testing.T) {
	gen := &stubGenSvc{err: services.ErrQuotaExceeded}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanFree, usage: 10})

	w := postJSON(t, r, "/ai/generate-article", GenerateArticleRequest{Prompt: "p"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("business failures ride on 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != false {
		t.Fatalf("expected success=false: %v", body)
	}
	if body["message"] != "You have exhausted your free usage limit. Please upgrade to premium." {
		t.Fatalf("quota message is contractual: %v", body["message"])
	}
}

func TestGenerateImage_PremiumMessage(t *testing.T) {
	gen := &stubGenSvc{err: services.ErrPremiumRequired}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanFree})

	w := postJSON(t, r, "/ai/generate-image", GenerateImageRequest{Prompt: "p"}, nil)
	body := decodeBody(t, w)
	if body["success"] != false ||
		body["message"] != "This feature is only available for premium users. Please upgrade to premium." {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestGenerateBlogTitle_ProviderErrorSurfacesMessage(t *testing.T) {
	gen := &stubGenSvc{err: errors.New("textgen: 429 Too Many Requests: slow down")}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanPremium})

	w := postJSON(t, r, "/ai/generate-blog-title", GenerateBlogTitleRequest{Prompt: "p"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["success"] != false || !strings.Contains(body["message"].(string), "slow down") {
		t.Fatalf("provider wording should surface: %v", body)
	}
}

func TestRemoveImageObject_PassesObjectField(t *testing.T) {
	gen := &stubGenSvc{creation: &domain.Creation{ID: "c1", Content: "https://cdn.example/x.png"}}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "vip", plan: entitlement.PlanPremium})

	w := postMultipart(t, r, "/ai/remove-image-object", "image", "x.png", []byte("img"),
		map[string]string{"object": "watch"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if gen.lastObject != "watch" {
		t.Fatalf("object field not passed: %q", gen.lastObject)
	}
}

func TestRemoveImageObject_SingleObjectMessage(t *testing.T) {
	gen := &stubGenSvc{err: services.ErrInvalidObjectName}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "vip", plan: entitlement.PlanPremium})

	w := postMultipart(t, r, "/ai/remove-image-object", "image", "x.png", []byte("img"),
		map[string]string{"object": "two words"})
	body := decodeBody(t, w)
	if body["message"] != "Please enter only one object name" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
}

func TestRemoveImageBackground_MissingFile(t *testing.T) {
	gen := &stubGenSvc{}
	r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "vip", plan: entitlement.PlanPremium})

	w := postMultipart(t, r, "/ai/remove-image-background", "image", "", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if gen.calls != 0 {
		t.Fatal("service must not run without a file")
	}
}

func TestResumeReview_ValidationMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not pdf", services.ErrNotPDF, "Resume must be a PDF file"},
		{"too large", services.ErrFileTooLarge, "File size exceeds 5MB"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &stubGenSvc{err: tc.err}
			r := newRouter(New(gen, &stubCreationSvc{}, nil), identity{userID: "vip", plan: entitlement.PlanPremium})

			w := postMultipart(t, r, "/ai/resume-review", "resume", "cv.pdf", []byte("data"), nil)
			if body := decodeBody(t, w); body["message"] != tc.want {
				t.Fatalf("unexpected message: %v", body["message"])
			}
		})
	}
}

//
// Creation endpoints
//

func TestGetUserCreations_EmptyListIsArray(t *testing.T) {
	r := newRouter(New(&stubGenSvc{}, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanFree})

	req := httptest.NewRequest(http.MethodGet, "/user/get-user-creations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"creations":[]`) {
		t.Fatalf("nil listing must serialize as []: %s", w.Body.String())
	}
}

func TestGetPublishedCreations_LimitClamped(t *testing.T) {
	svc := &stubCreationSvc{}
	r := newRouter(New(&stubGenSvc{}, svc, nil), identity{userID: "u1", plan: entitlement.PlanFree})

	cases := map[string]int{
		"":            0,
		"?limit=25":   25,
		"?limit=abc":  0,
		"?limit=-4":   0,
		"?limit=9999": 500,
	}
	for query, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/user/get-published-creations"+query, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("query %q: status %d", query, w.Code)
		}
		if svc.lastLimit != want {
			t.Fatalf("query %q: limit %d, want %d", query, svc.lastLimit, want)
		}
	}
}

func TestToggleLikeCreation(t *testing.T) {
	t.Run("added", func(t *testing.T) {
		svc := &stubCreationSvc{toggleLiked: true, toggleMsg: "Like added"}
		r := newRouter(New(&stubGenSvc{}, svc, nil), identity{userID: "u1", plan: entitlement.PlanFree})

		w := postJSON(t, r, "/user/toggle-like-creation", CreationIDRequest{ID: "c1"}, nil)
		if body := decodeBody(t, w); body["success"] != true || body["message"] != "Like added" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("not found", func(t *testing.T) {
		svc := &stubCreationSvc{toggleErr: services.ErrCreationNotFound}
		r := newRouter(New(&stubGenSvc{}, svc, nil), identity{userID: "u1", plan: entitlement.PlanFree})

		w := postJSON(t, r, "/user/toggle-like-creation", CreationIDRequest{ID: "ghost"}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d", w.Code)
		}
		if body := decodeBody(t, w); body["success"] != false || body["message"] != "Creation not found" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		r := newRouter(New(&stubGenSvc{}, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanFree})
		w := postJSON(t, r, "/user/toggle-like-creation", map[string]string{"id": "  "}, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status %d", w.Code)
		}
	})
}

func TestDeleteCreation(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		r := newRouter(New(&stubGenSvc{}, &stubCreationSvc{}, nil), identity{userID: "u1", plan: entitlement.PlanFree})
		w := postJSON(t, r, "/user/delete-creation", CreationIDRequest{ID: "c1"}, nil)
		if body := decodeBody(t, w); body["success"] != true || body["message"] != "Creation deleted" {
			t.Fatalf("unexpected body: %v", body)
		}
	})

	t.Run("foreign creation", func(t *testing.T) {
		svc := &stubCreationSvc{deleteErr: services.ErrCreationNotFound}
		r := newRouter(New(&stubGenSvc{}, svc, nil), identity{userID: "u1", plan: entitlement.PlanFree})
		w := postJSON(t, r, "/user/delete-creation", CreationIDRequest{ID: "c1"}, nil)
		if body := decodeBody(t, w); body["success"] != false || body["message"] != "Creation not found" {
			t.Fatalf("unexpected body: %v", body)
		}
	})
}

//
// ETag support
//

func newHandlersDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("handlers_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Creation{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetUserCreations_ETagRoundTrip(t *testing.T) {
	db := newHandlersDB(t)
	if err := db.Create(&domain.Creation{
		ID: "c1", UserID: "u1", Prompt: "p", Content: "x",
		Type: domain.TypeArticle, Likes: domain.StringList{},
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := &stubCreationSvc{mine: []domain.Creation{{ID: "c1"}}}
	r := newRouter(New(&stubGenSvc{}, svc, db), identity{userID: "u1", plan: entitlement.PlanFree})

	req := httptest.NewRequest(http.MethodGet, "/user/get-user-creations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("expected weak ETag, got %q", etag)
	}

	// Replay with If-None-Match: short-circuit.
	req = httptest.NewRequest(http.MethodGet, "/user/get-user-creations", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// A new row invalidates the tag.
	if err := db.Create(&domain.Creation{
		ID: "c2", UserID: "u1", Prompt: "p", Content: "x",
		Type: domain.TypeArticle, Likes: domain.StringList{},
	}).Error; err != nil {
		t.Fatalf("seed second: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/user/get-user-creations", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stale tag should be ignored, got %d", w.Code)
	}
}

//
// Idempotent replay
//

func TestGenerateArticle_IdempotentReplay(t *testing.T) {
	db := newHandlersDB(t)
	if err := db.Create(&domain.Creation{
		ID: "c1", UserID: "u1", Prompt: "p", Content: "cached article",
		Type: domain.TypeArticle, Likes: domain.StringList{},
	}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	gen := &stubGenSvc{creation: &domain.Creation{ID: "c2", Content: "fresh"}}
	h := New(gen, &stubCreationSvc{}, db)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "u1")
		c.Set(middleware.CtxPlan, entitlement.PlanFree)
		c.Set(middleware.CtxFreeUsage, 0)
	})
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			return err == nil && rec != nil, nil
		},
	))
	r.POST("/ai/generate-article", h.GenerateArticle)

	header := http.Header{}
	header.Set(middleware.HeaderIdempotencyKey, "retry-1")

	// First call: no stored record yet, service runs and the key is bound.
	w := postJSON(t, r, "/ai/generate-article", GenerateArticleRequest{Prompt: "p"}, header)
	if w.Code != http.StatusOK || gen.calls != 1 {
		t.Fatalf("first call: status %d calls %d", w.Code, gen.calls)
	}
	if rec, err := repo.GetIdempotency(context.Background(), db, "u1", "/ai/generate-article", "retry-1", time.Now().UTC()); err != nil || rec.CreationID != "c2" {
		t.Fatalf("key not recorded: rec=%+v err=%v", rec, err)
	}

	// Bind a second key directly to the seeded creation and replay it.
	if _, err := repo.CreateIdempotency(context.Background(), db, "u1", "/ai/generate-article", "retry-2", "c1", http.StatusOK, time.Hour); err != nil {
		t.Fatalf("bind key: %v", err)
	}
	header.Set(middleware.HeaderIdempotencyKey, "retry-2")
	w = postJSON(t, r, "/ai/generate-article", GenerateArticleRequest{Prompt: "p"}, header)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["content"] != "cached article" {
		t.Fatalf("replay must serve the stored creation: %v", body)
	}
	if gen.calls != 1 {
		t.Fatalf("replay must not reach the provider, calls=%d", gen.calls)
	}
}
