// Package artifacts persists diagnostic captures (screenshots, page URLs)
// taken at decision points and on failure. Capturing is always best-effort:
// a broken page must not turn a good diagnostic path into a second failure.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rmaia-dev/lotobot/internal/locator"
)

// Artifact describes one persisted capture.
type Artifact struct {
	Label     string    `json:"label"`
	Path      string    `json:"path"`
	PageURL   string    `json:"page_url"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder writes captures into a per-run directory.
type Recorder struct {
	logger *zap.Logger
	runDir string

	mu   sync.Mutex
	seq  int
	list []Artifact
}

// NewRecorder creates the run directory under baseDir. The directory name
// embeds the start time and a short run id so parallel runs never collide.
func NewRecorder(logger *zap.Logger, baseDir string) (*Recorder, error) {
	runID := uuid.New().String()[:8]
	runDir := filepath.Join(baseDir, fmt.Sprintf("run-%s-%s", time.Now().Format("20060102-150405"), runID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir %q: %w", runDir, err)
	}
	return &Recorder{logger: logger.Named("artifacts"), runDir: runDir}, nil
}

// RunDir returns the directory this run's captures land in.
func (r *Recorder) RunDir() string {
	return r.runDir
}

// Capture screenshots the page under the given label and records it. It
// returns the file path, or "" when the page is already gone or the capture
// failed; failures are logged, never propagated.
func (r *Recorder) Capture(ctx context.Context, page locator.Page, label string) string {
	if page == nil || page.IsClosed() {
		r.logger.Debug("Skipping capture, page is closed.", zap.String("label", label))
		return ""
	}

	url, err := page.CurrentURL(ctx)
	if err != nil {
		r.logger.Debug("Could not read page URL for capture.", zap.String("label", label), zap.Error(err))
	}

	png, err := page.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Screenshot failed.", zap.String("label", label), zap.Error(err))
		return ""
	}

	r.mu.Lock()
	r.seq++
	name := fmt.Sprintf("%03d-%s.png", r.seq, sanitizeLabel(label))
	r.mu.Unlock()

	path := filepath.Join(r.runDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		r.logger.Warn("Failed to write screenshot.", zap.String("path", path), zap.Error(err))
		return ""
	}

	r.mu.Lock()
	r.list = append(r.list, Artifact{Label: label, Path: path, PageURL: url, Timestamp: time.Now()})
	r.mu.Unlock()

	r.logger.Info("Captured artifact.", zap.String("label", label), zap.String("path", path))
	return path
}

// List returns the captures recorded so far, oldest first.
func (r *Recorder) List() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Artifact, len(r.list))
	copy(out, r.list)
	return out
}

func sanitizeLabel(label string) string {
	out := make([]rune, 0, len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
