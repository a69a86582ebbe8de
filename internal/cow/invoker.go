// File path: internal/cow/invoker.go

// Package cow wraps the external COW conversion engine. The engine is
// treated as a synchronous, single-shot, fallible subprocess that writes its
// outputs next to the input CSV: `<csv>-metadata.json` for build and
// `<csv>.nq` for convert.
package cow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/CLARIAH/cattle-druid/internal/common"
)

const (
	// MetadataSuffix is appended to a CSV path by a successful build.
	MetadataSuffix = "-metadata.json"
	// QuadsSuffix is appended to a CSV path by a successful convert.
	QuadsSuffix = ".nq"
)

// BuildError reports a failed schema build: the engine exited non-zero, hit
// its timeout, or did not leave the expected metadata file behind. It
// usually points at malformed CSV or JSON syntax.
type BuildError struct {
	CSV    string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cow: build %s: %v", e.CSV, e.Err)
	}
	return fmt.Sprintf("cow: build %s: no metadata produced", e.CSV)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ConvertError reports a failed conversion. NoOutput distinguishes "the
// engine ran but emitted no RDF" (typically a silent schema mismatch) from
// an outright execution failure.
type ConvertError struct {
	CSV      string
	Output   string
	NoOutput bool
	Err      error
}

func (e *ConvertError) Error() string {
	if e.NoOutput {
		return fmt.Sprintf("cow: convert %s: engine produced no RDF output", e.CSV)
	}
	return fmt.Sprintf("cow: convert %s: %v", e.CSV, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }

// Invoker runs the engine binary with a bounded execution time per call.
type Invoker struct {
	command string
	timeout time.Duration
}

func New(command string, timeout time.Duration) *Invoker {
	if strings.TrimSpace(command) == "" {
		command = "cow_tool"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Invoker{command: command, timeout: timeout}
}

// Build derives a JSON schema for the CSV. When schemaPath is non-empty the
// user-supplied schema is handed to the engine as additional input. Returns
// the path of the produced metadata file.
func (i *Invoker) Build(ctx context.Context, csvPath, schemaPath string) (string, error) {
	args := []string{"build", csvPath}
	if strings.TrimSpace(schemaPath) != "" {
		args = append(args, schemaPath)
	}
	out, err := i.run(ctx, args...)
	if err != nil {
		return "", &BuildError{CSV: csvPath, Output: out, Err: err}
	}
	metadataPath := csvPath + MetadataSuffix
	if _, err := os.Stat(metadataPath); err != nil {
		return "", &BuildError{CSV: csvPath, Output: out}
	}
	return metadataPath, nil
}

// Convert turns a CSV with an existing schema into an N-Quads file and
// returns its path. Convert always re-runs: a stale quads file from an
// earlier run is removed first, so a missing file afterwards reliably means
// the engine emitted nothing.
func (i *Invoker) Convert(ctx context.Context, csvPath string) (string, error) {
	quadsPath := csvPath + QuadsSuffix
	if err := os.Remove(quadsPath); err != nil && !os.IsNotExist(err) {
		return "", &ConvertError{CSV: csvPath, Err: err}
	}
	out, err := i.run(ctx, "convert", csvPath)
	if err != nil {
		return "", &ConvertError{CSV: csvPath, Output: out, Err: err}
	}
	if _, err := os.Stat(quadsPath); err != nil {
		return "", &ConvertError{CSV: csvPath, Output: out, NoOutput: true}
	}
	return quadsPath, nil
}

// Version reports the engine version string, or "?.??" when the binary
// cannot be queried. The index page shows it; nothing depends on it.
func (i *Invoker) Version(ctx context.Context) string {
	out, err := i.run(ctx, "--version")
	if err != nil {
		common.Logger().Warn("cow: version query failed", "command", i.command, "error", err)
		return "?.??"
	}
	return strings.TrimSpace(out)
}

func (i *Invoker) run(ctx context.Context, args ...string) (string, error) {
	logger := common.Logger()
	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, i.command, args...)
	// The context kills only the direct child; orphaned grandchildren keep
	// the output pipes open. WaitDelay stops CombinedOutput from waiting on
	// them past the deadline.
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	logger.Debug("cow: engine run finished",
		"command", i.command, "args", strings.Join(args, " "),
		"dur", time.Since(start), "error", err)
	if runCtx.Err() == context.DeadlineExceeded {
		return string(out), fmt.Errorf("engine timed out after %s", i.timeout)
	}
	if err != nil {
		return string(out), fmt.Errorf("engine execution failed: %w", err)
	}
	return string(out), nil
}
