package trainer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FileDrop writes crops to <dir>/<person>/<faceID>.jpg for trainers that watch a directory.
type FileDrop struct {
	dir string
}

// NewFileDrop creates a file-drop trainer rooted at dir.
func NewFileDrop(dir string) *FileDrop {
	return &FileDrop{dir: dir}
}

func (f *FileDrop) Name() string { return "filedrop" }

// Train writes the crop atomically, replacing an existing file for the same face.
func (f *FileDrop) Train(_ context.Context, person, faceID string, jpeg []byte) error {
	personDir := filepath.Join(f.dir, SanitizeName(person))
	if err := os.MkdirAll(personDir, 0750); err != nil {
		return fmt.Errorf("failed to create person directory: %w", err)
	}

	target := filepath.Join(personDir, SanitizeName(faceID)+".jpg")
	tmp, err := os.CreateTemp(personDir, ".facesync-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(jpeg); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write face %s: %w", faceID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close face %s: %w", faceID, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move face %s into place: %w", faceID, err)
	}
	return nil
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SanitizeName turns a person name or ID into a safe single path element.
func SanitizeName(name string) string {
	name = RemoveDiacritics(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)),
			r == '-', r == '_', r == '.', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "unknown"
	}
	return out
}
