// Package diagnostics writes an outcome-tagged screenshot and a small JSON
// manifest at the end of every attendance run.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kintai-cli/api/schemas"
	"github.com/xkilldash9x/kintai-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// timestampLayout is the YYYYMMDD_HHMMSS suffix of every capture.
const timestampLayout = "20060102_150405"

// Manifest describes one capture.
type Manifest struct {
	CaptureID       string    `json:"capture_id"`
	Action          string    `json:"action"`
	Outcome         string    `json:"outcome"`
	CapturedAt      time.Time `json:"captured_at"`
	Screenshot      string    `json:"screenshot,omitempty"`
	ScreenshotError string    `json:"screenshot_error,omitempty"`
}

// Recorder is a schemas.DiagnosticSink writing into one directory.
type Recorder struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

var _ schemas.DiagnosticSink = (*Recorder)(nil)

// NewRecorder creates a recorder for cfg.ScreenshotDir.
func NewRecorder(cfg config.DiagnosticsConfig, logger *zap.Logger) *Recorder {
	return &Recorder{
		dir:    cfg.ScreenshotDir,
		logger: logger.Named("diagnostics"),
		now:    time.Now,
	}
}

// Capture saves <action>_<tag>_<timestamp>.png and a .json manifest next to
// it. A failed screenshot still produces the manifest; the returned path is
// the screenshot when one was written, the manifest otherwise.
func (r *Recorder) Capture(ctx context.Context, bc schemas.BrowsingContext, action schemas.Action, tag string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics directory: %w", err)
	}

	at := r.now()
	base := filepath.Join(r.dir, fmt.Sprintf("%s_%s_%s", action, tag, at.Format(timestampLayout)))
	m := Manifest{
		CaptureID:  uuid.New().String(),
		Action:     action.String(),
		Outcome:    tag,
		CapturedAt: at,
	}

	if bc == nil {
		m.ScreenshotError = "no browser"
	} else if png, err := bc.Screenshot(ctx); err != nil {
		m.ScreenshotError = err.Error()
		r.logger.Warn("Screenshot failed.", zap.Error(err))
	} else if err := os.WriteFile(base+".png", png, 0o644); err != nil {
		m.ScreenshotError = err.Error()
		r.logger.Warn("Failed to write screenshot.", zap.Error(err))
	} else {
		m.Screenshot = base + ".png"
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return m.Screenshot, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return m.Screenshot, fmt.Errorf("write manifest: %w", err)
	}

	where := m.Screenshot
	if where == "" {
		where = base + ".json"
	}
	r.logger.Info("Diagnostics saved.", zap.String("path", where), zap.String("outcome", tag))
	return where, nil
}
