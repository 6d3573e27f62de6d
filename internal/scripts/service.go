package scripts

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"edu-video-studio/internal/studioerr"

	"github.com/google/uuid"
)

// MaxUploadBytes bounds script uploads.
const MaxUploadBytes = 1 << 20

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Save stores content under name. An empty name becomes script_YYYYMMDD_HHMMSS;
// any file extension in name is dropped.
func (s *Service) Save(ctx context.Context, name, content string) (Script, error) {
	if strings.TrimSpace(content) == "" {
		return Script{}, fmt.Errorf("%w: script content is empty", studioerr.ErrInvalidRequest)
	}
	if !utf8.ValidString(content) {
		return Script{}, fmt.Errorf("%w: script content is not valid UTF-8", studioerr.ErrInvalidRequest)
	}

	now := s.clock().UTC()
	name = normalizeName(name)
	if name == "" {
		name = "script_" + now.Format("20060102_150405")
	}

	sc := Script{
		ID:        uuid.NewString(),
		Name:      name,
		Format:    FormatTXT,
		Content:   content,
		SizeBytes: len(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Save(ctx, sc); err != nil {
		return Script{}, fmt.Errorf("scripts: save: %w", err)
	}
	return sc, nil
}

func (s *Service) List(ctx context.Context) ([]Script, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Script, error) {
	if id == "" {
		return Script{}, studioerr.ErrInvalidRequest
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, studioerr.ErrInvalidRequest
	}
	return s.repo.Delete(ctx, id)
}

func normalizeName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.TrimSpace(name)))
	if name == "." || name == "/" {
		return ""
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ReadUpload reads a plain text script upload. Only .txt files are accepted.
func ReadUpload(filename string, r io.Reader) (string, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".txt") {
		return "", fmt.Errorf("%w: unsupported file type %q, only .txt is accepted", studioerr.ErrInvalidRequest, filepath.Ext(filename))
	}
	b, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("scripts: read upload: %w", err)
	}
	if len(b) > MaxUploadBytes {
		return "", fmt.Errorf("%w: upload exceeds %d bytes", studioerr.ErrInvalidRequest, MaxUploadBytes)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: upload is not valid UTF-8", studioerr.ErrInvalidRequest)
	}
	return string(b), nil
}
