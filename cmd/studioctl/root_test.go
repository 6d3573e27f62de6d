package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"edu-video-studio/internal/content"
	"edu-video-studio/internal/ratelimit"
	"edu-video-studio/internal/studioerr"
	"edu-video-studio/internal/video"
	"edu-video-studio/pkg/logger"

	"github.com/fatih/color"
)

type cliGenerator struct{ last content.Request }

func (g *cliGenerator) GenerateContent(ctx context.Context, req content.Request) (string, error) {
	g.last = req
	return "out:" + string(req.Task) + "\n", nil
}

type cliProvider struct {
	status  string
	created []video.RenderRequest
}

func (p *cliProvider) CreateVideo(ctx context.Context, req video.RenderRequest) (string, error) {
	p.created = append(p.created, req)
	return "vid-1", nil
}

func (p *cliProvider) VideoStatus(ctx context.Context, id string) (video.StatusPayload, error) {
	url, dur := "https://cdn/vid-1.mp4", 12.0
	if p.status == "failed" {
		return video.StatusPayload{Status: "failed", Error: []byte(`"voice missing"`)}, nil
	}
	return video.StatusPayload{Status: "completed", VideoURL: &url, Duration: &dur}, nil
}

func (p *cliProvider) ListAvatars(ctx context.Context) ([]video.Avatar, error) {
	return []video.Avatar{{ID: "a1", Name: "Ada", Gender: "female"}}, nil
}

func (p *cliProvider) ListVoices(ctx context.Context) ([]video.Voice, error) {
	return []video.Voice{{ID: "v1", Name: "Nova", Language: "English"}}, nil
}

func (p *cliProvider) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	n, err := io.WriteString(w, "MP4DATA")
	return int64(n), err
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	root := newRootCmd(func(bool) (*app, error) { return a, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testApp(gen content.Generator, p video.Provider) *app {
	return &app{
		content: content.NewClient(gen, ratelimit.New(5, time.Minute)),
		poller:  video.NewPoller(p),
		await:   video.AwaitOptions{PollInterval: time.Millisecond, MaxWait: time.Second},
		log:     logger.NewWithWriter(io.Discard, "test", "studioctl"),
	}
}

func TestCLI_ContentCommands(t *testing.T) {
	gen := &cliGenerator{}
	a := testApp(gen, &cliProvider{})

	out, err := run(t, a, "generate", "explain", "fractions", "--system", "be brief")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "out:generate\n" {
		t.Fatalf("out=%q", out)
	}
	if gen.last.Prompt != "explain fractions" || gen.last.SystemInstruction != "be brief" {
		t.Fatalf("request=%+v", gen.last)
	}

	if _, err := run(t, a, "summarize", "--max-chars", "80", "long text"); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(gen.last.Prompt, "80") {
		t.Fatalf("summarize prompt should carry the length: %q", gen.last.Prompt)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "lesson.txt")
	if err := os.WriteFile(path, []byte("Cells divide."), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := run(t, a, "enhance", "--file", path); err != nil {
		t.Fatalf("enhance: %v", err)
	}
	if !strings.Contains(gen.last.Prompt, "Cells divide.") {
		t.Fatalf("enhance prompt=%q", gen.last.Prompt)
	}
}

func TestCLI_RequiresInput(t *testing.T) {
	a := testApp(&cliGenerator{}, &cliProvider{})
	if _, err := run(t, a, "enhance"); err == nil {
		t.Fatalf("expected error without input")
	}
	if _, err := run(t, a, "enhance", "--file", "notes.docx"); err == nil {
		t.Fatalf("expected error for non-txt file")
	}
}

func TestCLI_RenderWaitsAndDownloads(t *testing.T) {
	p := &cliProvider{}
	a := testApp(&cliGenerator{}, p)
	dest := filepath.Join(t.TempDir(), "out.mp4")

	out, err := run(t, a, "render", "--avatar", "a1", "--out", dest, "Hello", "class")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "job_id: vid-1") || !strings.Contains(out, "video_url: https://cdn/vid-1.mp4") {
		t.Fatalf("out=%q", out)
	}
	if len(p.created) != 1 || p.created[0].Title != video.DefaultTitle || p.created[0].Script != "Hello class" {
		t.Fatalf("created=%+v", p.created)
	}
	b, err := os.ReadFile(dest)
	if err != nil || string(b) != "MP4DATA" {
		t.Fatalf("download: %q %v", b, err)
	}
}

func TestCLI_RenderRequiresAvatar(t *testing.T) {
	a := testApp(&cliGenerator{}, &cliProvider{})
	if _, err := run(t, a, "render", "Hello"); err == nil {
		t.Fatalf("expected missing --avatar error")
	}
}

func TestCLI_RenderFailedJob(t *testing.T) {
	a := testApp(&cliGenerator{}, &cliProvider{status: "failed"})
	_, err := run(t, a, "render", "--avatar", "a1", "Hello")
	var jf *studioerr.JobFailedError
	if !errors.As(err, &jf) || jf.Detail != "voice missing" {
		t.Fatalf("expected job failed, got %v", err)
	}
}

func TestCLI_StatusAndCatalog(t *testing.T) {
	a := testApp(&cliGenerator{}, &cliProvider{})

	out, err := run(t, a, "status", "vid-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "status: completed") || !strings.Contains(out, "duration: 12.0s") {
		t.Fatalf("out=%q", out)
	}

	out, err = run(t, a, "avatars")
	if err != nil || !strings.Contains(out, "a1") || !strings.Contains(out, "Ada") {
		t.Fatalf("avatars: %q %v", out, err)
	}
	out, err = run(t, a, "voices")
	if err != nil || !strings.Contains(out, "Nova") {
		t.Fatalf("voices: %q %v", out, err)
	}
}
