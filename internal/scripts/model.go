package scripts

import (
	"context"
	"errors"
	"time"
)

const FormatTXT = "txt"

// Script is a saved narration script.
type Script struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Format    string    `json:"format" db:"format"`
	Content   string    `json:"content" db:"content"`
	SizeBytes int       `json:"size_bytes" db:"size_bytes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

var ErrNotFound = errors.New("scripts: not found")

type Repository interface {
	Save(ctx context.Context, s Script) error
	// List returns all scripts, newest first, with Content omitted.
	List(ctx context.Context) ([]Script, error)
	Get(ctx context.Context, id string) (Script, error)
	// Delete reports whether the script existed.
	Delete(ctx context.Context, id string) (bool, error)
}
