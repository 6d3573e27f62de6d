package scripts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"edu-video-studio/internal/studioerr"
)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return svc, repo
}

func TestService_SaveDefaultsName(t *testing.T) {
	svc, _ := newTestService()
	s, err := svc.Save(context.Background(), "", "Hello class")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Name != "script_20250304_050607" {
		t.Fatalf("unexpected default name %q", s.Name)
	}
	if s.Format != FormatTXT || s.SizeBytes != len("Hello class") || s.ID == "" {
		t.Fatalf("unexpected script: %+v", s)
	}
}

func TestService_SaveStripsExtension(t *testing.T) {
	svc, _ := newTestService()
	for in, want := range map[string]string{
		"lesson1.txt":        "lesson1",
		"  photosynthesis  ": "photosynthesis",
		"dir/notes.docx":     "notes",
	} {
		s, err := svc.Save(context.Background(), in, "x")
		if err != nil {
			t.Fatalf("%q: unexpected err: %v", in, err)
		}
		if s.Name != want {
			t.Fatalf("%q: got %q want %q", in, s.Name, want)
		}
	}
}

func TestService_SaveRejectsEmptyAndInvalidUTF8(t *testing.T) {
	svc, repo := newTestService()
	for _, content := range []string{"", "   \n", string([]byte{0xff, 0xfe})} {
		if _, err := svc.Save(context.Background(), "n", content); !errors.Is(err, studioerr.ErrInvalidRequest) {
			t.Fatalf("content %q: expected invalid request, got %v", content, err)
		}
	}
	if list, _ := repo.List(context.Background()); len(list) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestService_ListGetDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	svc.clock = func() time.Time { return base }
	first, _ := svc.Save(ctx, "first", "one")
	svc.clock = func() time.Time { return base.Add(time.Minute) }
	second, _ := svc.Save(ctx, "second", "two")

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first: %+v", list)
	}
	if list[0].Content != "" {
		t.Fatalf("list must omit content")
	}

	got, err := svc.Get(ctx, first.ID)
	if err != nil || got.Content != "one" {
		t.Fatalf("get: %+v %v", got, err)
	}

	ok, err := svc.Delete(ctx, first.ID)
	if err != nil || !ok {
		t.Fatalf("delete existing: ok=%v err=%v", ok, err)
	}
	ok, _ = svc.Delete(ctx, first.ID)
	if ok {
		t.Fatalf("second delete must report missing")
	}
	if _, err := svc.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReadUpload(t *testing.T) {
	got, err := ReadUpload("Lesson.TXT", strings.NewReader("hello"))
	if err != nil || got != "hello" {
		t.Fatalf("txt upload: %q %v", got, err)
	}
	if _, err := ReadUpload("lesson.docx", strings.NewReader("x")); !errors.Is(err, studioerr.ErrInvalidRequest) {
		t.Fatalf("expected docx rejection, got %v", err)
	}
	if _, err := ReadUpload("bad.txt", strings.NewReader(string([]byte{0xc3, 0x28}))); !errors.Is(err, studioerr.ErrInvalidRequest) {
		t.Fatalf("expected utf-8 rejection, got %v", err)
	}
	big := strings.Repeat("a", MaxUploadBytes+1)
	if _, err := ReadUpload("big.txt", strings.NewReader(big)); !errors.Is(err, studioerr.ErrInvalidRequest) {
		t.Fatalf("expected size rejection, got %v", err)
	}
}
