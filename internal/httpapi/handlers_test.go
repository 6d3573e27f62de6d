package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"edu-video-studio/internal/auth"
	"edu-video-studio/internal/content"
	"edu-video-studio/internal/history"
	"edu-video-studio/internal/jobcache"
	"edu-video-studio/internal/ratelimit"
	"edu-video-studio/internal/reporting"
	"edu-video-studio/internal/scripts"
	"edu-video-studio/internal/studioerr"
	"edu-video-studio/internal/video"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type echoGenerator struct{ calls int32 }

func (g *echoGenerator) GenerateContent(ctx context.Context, req content.Request) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	return "generated: " + string(req.Task), nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	polls    int
	job      video.Job
	awaitErr error
}

func (r *fakeRenderer) Submit(ctx context.Context, req video.SubmitRequest) (string, error) {
	if req.AvatarID == "" || req.Script == "" {
		return "", studioerr.ErrInvalidRequest
	}
	return "job-1", nil
}

func (r *fakeRenderer) Poll(ctx context.Context, id string) (video.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	j := r.job
	j.ID = id
	return j, nil
}

func (r *fakeRenderer) AwaitCompletion(ctx context.Context, id string, opts video.AwaitOptions) (video.Job, error) {
	if r.awaitErr != nil {
		return video.Job{}, r.awaitErr
	}
	j := r.job
	j.ID = id
	return j, nil
}

type fakeCatalog struct{}

func (fakeCatalog) ListAvatars(ctx context.Context) ([]video.Avatar, error) {
	return []video.Avatar{{ID: "a1", Name: "Ada"}}, nil
}

func (fakeCatalog) ListVoices(ctx context.Context) ([]video.Voice, error) {
	return []video.Voice{{ID: "v1", Name: "Nova", Language: "en"}}, nil
}

type fixture struct {
	h       Handlers
	gen     *echoGenerator
	events  *history.MemoryRepo
	render  *fakeRenderer
	redis   *miniredis.Miniredis
	limiter *ratelimit.Limiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gen := &echoGenerator{}
	limiter := ratelimit.New(5, time.Minute)
	cc := content.NewClient(gen, limiter)
	events := history.NewMemoryRepo()
	hist := history.NewService(events)
	render := &fakeRenderer{job: video.Job{Status: video.StatusCompleted, VideoURL: "https://cdn/v.mp4", DurationSeconds: 30}}

	return &fixture{
		h: Handlers{
			Content:  cc,
			Renderer: render,
			Catalog:  fakeCatalog{},
			Cache:    jobcache.New(rdb, time.Hour),
			Slots:    jobcache.NewSlots(rdb, 1, time.Minute),
			Scripts:  scripts.NewService(scripts.NewMemoryRepo()),
			History:  hist,
			Reports:  reporting.NewService(events, cc),
		},
		gen:     gen,
		events:  events,
		render:  render,
		redis:   mr,
		limiter: limiter,
	}
}

func (f *fixture) router() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), "u1", "creator"))
		c.Next()
	})
	h := f.h
	r.POST("/content/generate", h.Generate)
	r.POST("/content/enhance", h.Enhance)
	r.POST("/content/summarize", h.Summarize)
	r.GET("/content/usage", h.ContentUsage)
	r.GET("/avatars", h.ListAvatars)
	r.GET("/voices", h.ListVoices)
	r.POST("/videos", h.SubmitVideo)
	r.GET("/videos/:id", h.GetVideo)
	r.POST("/videos/:id/await", h.AwaitVideo)
	r.GET("/scripts", h.ListScripts)
	r.POST("/scripts", h.SaveScript)
	r.GET("/scripts/:id", h.GetScript)
	r.DELETE("/scripts/:id", h.DeleteScript)
	r.GET("/reports/usage", h.UsageReport)
	r.POST("/auth/token", h.IssueToken)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestContent_GenerateRecordsHistory(t *testing.T) {
	f := newFixture(t)
	w := do(f.router(), http.MethodPost, "/content/generate", map[string]string{"prompt": "photosynthesis"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["content"]; got != "generated: generate" {
		t.Fatalf("content=%v", got)
	}
	evs := f.events.Events()
	if len(evs) != 1 || evs[0].Type != history.EventContentGenerated || evs[0].ActorUserID != "u1" {
		t.Fatalf("unexpected history: %+v", evs)
	}
}

func TestContent_SixthCallIsRateLimited(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	for i := 0; i < 5; i++ {
		if w := do(r, http.MethodPost, "/content/enhance", map[string]string{"script": "x"}); w.Code != http.StatusOK {
			t.Fatalf("call %d: status=%d", i, w.Code)
		}
	}
	w := do(r, http.MethodPost, "/content/summarize", map[string]any{"script": "x", "max_chars": 50})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	body := decode(t, w)
	if body["kind"] != string(studioerr.KindRateLimited) {
		t.Fatalf("kind=%v", body["kind"])
	}
	retry, _ := body["retry_after_seconds"].(float64)
	if retry < 59 || retry > 60 {
		t.Fatalf("retry_after_seconds=%v", body["retry_after_seconds"])
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if n := atomic.LoadInt32(&f.gen.calls); n != 5 {
		t.Fatalf("generator called %d times", n)
	}

	w = do(r, http.MethodGet, "/content/usage", nil)
	u := decode(t, w)
	if u["calls_in_window"].(float64) != 5 || u["remaining"].(float64) != 0 || u["window_capacity"].(float64) != 5 {
		t.Fatalf("usage=%v", u)
	}
}

func TestContent_EmptyPromptIsBadRequest(t *testing.T) {
	f := newFixture(t)
	w := do(f.router(), http.MethodPost, "/content/generate", map[string]string{"prompt": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if f.limiter.Stats(time.Now()).TotalCalls != 0 {
		t.Fatalf("invalid input must not consume quota")
	}
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	if w := do(r, http.MethodGet, "/avatars", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"a1"`) {
		t.Fatalf("avatars: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/voices", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"v1"`) {
		t.Fatalf("voices: %d %s", w.Code, w.Body.String())
	}
}

func TestVideos_SubmitFromSavedScript(t *testing.T) {
	f := newFixture(t)
	sc, err := f.h.Scripts.Save(context.Background(), "lesson", "Today we learn fractions.")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	w := do(f.router(), http.MethodPost, "/videos", map[string]string{"avatar_id": "a1", "script_id": sc.ID})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if decode(t, w)["job_id"] != "job-1" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	evs := f.events.Events()
	if len(evs) != 1 || evs[0].Type != history.EventRenderSubmitted || evs[0].AvatarID != "a1" {
		t.Fatalf("history=%+v", evs)
	}

	w = do(f.router(), http.MethodPost, "/videos", map[string]string{"avatar_id": "a1", "script_id": "missing"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown script, got %d", w.Code)
	}
}

func TestVideos_GetServesTerminalFromCache(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := do(r, http.MethodGet, "/videos/job-9", nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") != "" {
		t.Fatalf("first read: %d cache=%q", w.Code, w.Header().Get("X-Cache"))
	}
	w = do(r, http.MethodGet, "/videos/job-9", nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read: %d cache=%q", w.Code, w.Header().Get("X-Cache"))
	}
	if f.render.polls != 1 {
		t.Fatalf("expected one provider poll, got %d", f.render.polls)
	}
	if decode(t, w)["video_url"] != "https://cdn/v.mp4" {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestVideos_GetDoesNotCacheProcessing(t *testing.T) {
	f := newFixture(t)
	f.render.job = video.Job{Status: video.StatusProcessing}
	r := f.router()
	do(r, http.MethodGet, "/videos/job-2", nil)
	do(r, http.MethodGet, "/videos/job-2", nil)
	if f.render.polls != 2 {
		t.Fatalf("expected two polls, got %d", f.render.polls)
	}
}

func TestVideos_AwaitCompleted(t *testing.T) {
	f := newFixture(t)
	w := do(f.router(), http.MethodPost, "/videos/job-3/await", map[string]int{"max_wait_seconds": 30})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	evs := f.events.Events()
	if len(evs) != 1 || evs[0].Type != history.EventRenderCompleted {
		t.Fatalf("history=%+v", evs)
	}
	if !f.redis.Exists("video_job:job-3") {
		t.Fatalf("completed job should be cached")
	}
	if f.redis.Exists("render_slots:u1") {
		t.Fatalf("render slot should be released")
	}
}

func TestVideos_AwaitFailedAndTimeout(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	f.render.awaitErr = &studioerr.JobFailedError{JobID: "job-4", Detail: "avatar not found"}
	w := do(r, http.MethodPost, "/videos/job-4/await", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if decode(t, w)["detail"] != "avatar not found" {
		t.Fatalf("body=%s", w.Body.String())
	}

	f.render.awaitErr = &studioerr.TimeoutError{JobID: "job-5", ElapsedSeconds: 25}
	w = do(r, http.MethodPost, "/videos/job-5/await", nil)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
	if decode(t, w)["elapsed_seconds"].(float64) != 25 {
		t.Fatalf("body=%s", w.Body.String())
	}

	evs := f.events.Events()
	if len(evs) != 2 || evs[0].Type != history.EventRenderFailed || evs[1].Type != history.EventRenderTimeout {
		t.Fatalf("history=%+v", evs)
	}
}

func TestVideos_RepeatedAwaitRecordsCompletionOnce(t *testing.T) {
	for _, withCache := range []bool{true, false} {
		f := newFixture(t)
		if !withCache {
			f.h.Cache = nil
		}
		r := f.router()

		for i := 0; i < 3; i++ {
			w := do(r, http.MethodPost, "/videos/job-6/await", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("cache=%v await %d: status=%d body=%s", withCache, i, w.Code, w.Body.String())
			}
			if withCache && i > 0 && w.Header().Get("X-Cache") != "HIT" {
				t.Fatalf("repeated await should be served from cache")
			}
		}
		evs := f.events.Events()
		if len(evs) != 1 || evs[0].Type != history.EventRenderCompleted {
			t.Fatalf("cache=%v history=%+v", withCache, evs)
		}
	}
}

func TestVideos_AwaitCachedFailureIsJobFailed(t *testing.T) {
	f := newFixture(t)
	f.render.job = video.Job{Status: video.StatusFailed, ErrorDetail: "avatar not found"}
	r := f.router()

	if w := do(r, http.MethodGet, "/videos/job-7", nil); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	w := do(r, http.MethodPost, "/videos/job-7/await", nil)
	if w.Code != http.StatusUnprocessableEntity || w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("status=%d cache=%q", w.Code, w.Header().Get("X-Cache"))
	}
	if decode(t, w)["detail"] != "avatar not found" {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestVideos_AwaitClientGoneIsNotServerError(t *testing.T) {
	f := newFixture(t)
	f.render.awaitErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/videos/job-8/await", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "job-8"}}

	f.h.AwaitVideo(c)

	if c.Writer.Status() != statusClientClosedRequest {
		t.Fatalf("expected %d, got %d", statusClientClosedRequest, c.Writer.Status())
	}
	if len(c.Errors) != 0 {
		t.Fatalf("client cancellation should not be reported as an error: %v", c.Errors)
	}
	if evs := f.events.Events(); len(evs) != 0 {
		t.Fatalf("history=%+v", evs)
	}
}

func TestVideos_AwaitRejectsWhenSlotsExhausted(t *testing.T) {
	f := newFixture(t)
	if ok, err := f.h.Slots.AcquireRenderSlot(context.Background(), "u1"); err != nil || !ok {
		t.Fatalf("pre-acquire: %v %v", ok, err)
	}
	w := do(f.router(), http.MethodPost, "/videos/job-6/await", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestAwaitOptions_CapsMaxWait(t *testing.T) {
	h := Handlers{Await: video.AwaitOptions{PollInterval: 10 * time.Second, MaxWait: 60 * time.Second}}
	opts := h.awaitOptions(awaitRequest{MaxWaitSeconds: 600, PollIntervalSeconds: 2})
	if opts.MaxWait != 60*time.Second || opts.PollInterval != 2*time.Second {
		t.Fatalf("opts=%+v", opts)
	}
	opts = h.awaitOptions(awaitRequest{MaxWaitSeconds: 20})
	if opts.MaxWait != 20*time.Second {
		t.Fatalf("opts=%+v", opts)
	}
}

func TestScripts_CRUD(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	w := do(r, http.MethodPost, "/scripts", map[string]string{"name": "intro.txt", "content": "Welcome"})
	if w.Code != http.StatusCreated {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}
	saved := decode(t, w)
	if saved["name"] != "intro" {
		t.Fatalf("name=%v", saved["name"])
	}
	id := saved["id"].(string)

	if w := do(r, http.MethodPost, "/scripts", map[string]string{"content": ""}); w.Code != http.StatusBadRequest {
		t.Fatalf("empty content: %d", w.Code)
	}

	w = do(r, http.MethodGet, "/scripts", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), id) {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/scripts/"+id, nil); w.Code != http.StatusOK || decode(t, w)["content"] != "Welcome" {
		t.Fatalf("get: %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/scripts/"+id, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/scripts/"+id, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/scripts/"+id, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", w.Code)
	}
}

func TestScripts_MultipartUpload(t *testing.T) {
	f := newFixture(t)
	r := f.router()

	upload := func(filename, body string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", filename)
		_, _ = fw.Write([]byte(body))
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/scripts", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := upload("chapter2.TXT", "Cells divide.")
	if w.Code != http.StatusCreated {
		t.Fatalf("txt upload: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["name"] != "chapter2" {
		t.Fatalf("body=%s", w.Body.String())
	}
	if w := upload("chapter2.docx", "x"); w.Code != http.StatusBadRequest {
		t.Fatalf("docx upload: %d", w.Code)
	}
}

func TestReports_Usage(t *testing.T) {
	f := newFixture(t)
	r := f.router()
	do(r, http.MethodPost, "/videos", map[string]string{"avatar_id": "a1", "script": "hi"})
	do(r, http.MethodPost, "/videos/job-1/await", nil)

	w := do(r, http.MethodGet, "/reports/usage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var out reporting.UsageReport
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Renders.Submitted != 1 || out.Renders.Completed != 1 || out.Renders.SuccessRate != 1 {
		t.Fatalf("renders=%+v", out.Renders)
	}
	if out.Content.Capacity != 5 {
		t.Fatalf("content=%+v", out.Content)
	}

	if w := do(r, http.MethodGet, "/reports/usage?from=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad from: %d", w.Code)
	}
}

func TestIssueToken_DisabledByDefault(t *testing.T) {
	f := newFixture(t)
	w := do(f.router(), http.MethodPost, "/auth/token", map[string]string{"user_id": "u", "role": "creator"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
