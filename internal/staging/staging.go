// Package staging keeps the ordered set of files selected for analysis.
package staging

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/quick-analysis/backend/internal/models"
)

// DefaultMaxFileSize is the per-file ceiling advertised to users.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// DefaultAllowedExtensions is the advertised extension allow-list.
var DefaultAllowedExtensions = []string{".png", ".jpg", ".jpeg", ".pdf", ".dicom"}

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyName       = errors.New("file name is required")
)

// ResetPolicy decides how a new selection affects the user-facing error.
type ResetPolicy string

const (
	// ResetAlways clears the error on every selection, even an empty one.
	ResetAlways ResetPolicy = "always"
	// ResetIfNonEmpty clears the error only when something was staged;
	// otherwise the invalid-file message is shown.
	ResetIfNonEmpty ResetPolicy = "if-non-empty"
)

// ParseResetPolicy maps a config value to a policy.
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch ResetPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case ResetAlways:
		return ResetAlways, nil
	case ResetIfNonEmpty, "":
		return ResetIfNonEmpty, nil
	}
	return "", fmt.Errorf("unknown error reset policy %q", s)
}

// Rules are the constraints a selected file must satisfy.
type Rules struct {
	AllowedExtensions []string
	MaxFileSize       int64
}

// DefaultRules returns the advertised constraints.
func DefaultRules() Rules {
	exts := make([]string, len(DefaultAllowedExtensions))
	copy(exts, DefaultAllowedExtensions)
	return Rules{AllowedExtensions: exts, MaxFileSize: DefaultMaxFileSize}
}

// Accept returns the extension list in the form file inputs expect.
func (r Rules) Accept() string {
	return strings.Join(r.AllowedExtensions, ",")
}

// Validate checks one candidate against the rules.
func (r Rules) Validate(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	ext := strings.ToLower(filepath.Ext(name))
	allowed := false
	for _, a := range r.AllowedExtensions {
		if strings.EqualFold(a, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedType, ext, r.Accept())
	}
	if size < 0 || (r.MaxFileSize > 0 && size > r.MaxFileSize) {
		return fmt.Errorf("%w: %s exceeds %s", ErrFileTooLarge,
			humanize.IBytes(uint64(max(size, 0))), humanize.IBytes(uint64(r.MaxFileSize)))
	}
	return nil
}

// Candidate is one file handed over by a file-selection affordance.
type Candidate struct {
	Name        string
	Size        int64
	FileID      string
	ContentType string
}

// Selection reports what happened to one Add call.
type Selection struct {
	Accepted []models.StagedFile
	Rejected []models.RejectedFile
}

// ClearsError reports whether the selection should clear the current
// user-facing error under the given policy.
func (s Selection) ClearsError(p ResetPolicy) bool {
	if p == ResetAlways {
		return true
	}
	return len(s.Accepted) > 0
}

// Staging is an ordered collection of staged files. It is not safe for
// concurrent use; the owning flow serialises access.
type Staging struct {
	rules Rules
	files []models.StagedFile
}

// New creates an empty staging area.
func New(rules Rules) *Staging {
	return &Staging{rules: rules}
}

// Rules returns the validation rules in force.
func (s *Staging) Rules() Rules {
	return s.rules
}

// Add appends every valid candidate after the existing entries, in order.
func (s *Staging) Add(selected []Candidate) Selection {
	var sel Selection
	for _, c := range selected {
		if err := s.rules.Validate(c.Name, c.Size); err != nil {
			sel.Rejected = append(sel.Rejected, models.RejectedFile{
				Name:      c.Name,
				SizeBytes: c.Size,
				Reason:    err.Error(),
			})
			continue
		}
		f := models.StagedFile{
			Name:        c.Name,
			SizeBytes:   c.Size,
			FileID:      c.FileID,
			ContentType: c.ContentType,
		}
		s.files = append(s.files, f)
		sel.Accepted = append(sel.Accepted, f)
	}
	return sel
}

// Remove drops the entry at index. Any out-of-range index is a no-op.
func (s *Staging) Remove(index int) (models.StagedFile, bool) {
	if index < 0 || index >= len(s.files) {
		return models.StagedFile{}, false
	}
	removed := s.files[index]
	kept := make([]models.StagedFile, 0, len(s.files)-1)
	for i, f := range s.files {
		if i != index {
			kept = append(kept, f)
		}
	}
	s.files = kept
	return removed, true
}

// Files returns a copy of the staged files in display order.
func (s *Staging) Files() []models.StagedFile {
	out := make([]models.StagedFile, len(s.files))
	copy(out, s.files)
	return out
}

// Len returns the number of staged files.
func (s *Staging) Len() int {
	return len(s.files)
}

// Clear drops every entry and returns what was staged.
func (s *Staging) Clear() []models.StagedFile {
	out := s.files
	s.files = nil
	return out
}
