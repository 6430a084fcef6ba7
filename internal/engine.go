package internal

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	tectonicBinaryEnv      = "TECTONIC_BINARY"
	tectonicTimeoutEnv     = "TECTONIC_TIMEOUT_SECONDS"
	defaultTectonicBinary  = "tectonic"
	defaultTectonicTimeout = 30 * time.Second
)

// StatusSink is the capability the engine reports (severity, message,
// optional cause) through, plus raw dumped bytes — spec.md §9. It
// accumulates into a single line-oriented log, exactly like
// original_source/src/compiler.rs's CapturingStatusBackend.
type StatusSink struct {
	buf bytes.Buffer
}

// Note, Warning and Error record one status line each.
func (s *StatusSink) Note(msg string)    { s.report("Note", msg, nil) }
func (s *StatusSink) Warning(msg string) { s.report("Warning", msg, nil) }
func (s *StatusSink) Error(msg string, cause error) {
	s.report("Error", msg, cause)
}

func (s *StatusSink) report(kind, msg string, cause error) {
	if s.buf.Len() > 0 {
		s.buf.WriteByte('\n')
	}
	fmt.Fprintf(&s.buf, "[%s] %s", kind, msg)
	if cause != nil {
		fmt.Fprintf(&s.buf, "\nCaused by: %s", cause)
	}
}

// DumpErrorLogs appends a raw byte dump (e.g. the engine's own stdout/stderr).
func (s *StatusSink) DumpErrorLogs(b []byte) {
	if s.buf.Len() > 0 {
		s.buf.WriteByte('\n')
	}
	s.buf.Write(b)
}

func (s *StatusSink) String() string { return s.buf.String() }

// EngineSession is the parameter set spec.md §9 describes as the engine's
// capability surface: a bundle (implicit — opened per invocation here),
// the workspace as primary input directory, the main filename as TeX
// input name, a fixed "latex" format, the shared format-cache path, and
// the workspace as output directory.
type EngineSession struct {
	WorkspaceDir    string
	MainFile        string // relative to WorkspaceDir
	FormatCachePath string
}

// EngineResult is what a single engine pass produces.
type EngineResult struct {
	PDFData []byte
	PDFHash string // hex SHA-256 of PDFData, for response observability only
	Logs    string
	Err     error
}

// Engine is the external collaborator the orchestrator drives. spec.md
// §1 treats the TeX engine as out of scope: the core never reimplements
// it, only orchestrates invocations of it through this interface.
type Engine interface {
	Run(ctx context.Context, session EngineSession) EngineResult
}

// TectonicEngine shells out to the tectonic CLI, mirroring the teacher's
// internal/tectonic.go (CompileWithTectonic): a context-bounded
// exec.CommandContext, --outdir into the workspace, and %PDF magic-byte
// validation of the result.
type TectonicEngine struct {
	Binary  string
	Timeout time.Duration
}

// NewTectonicEngine builds an engine bound to TECTONIC_BINARY /
// TECTONIC_TIMEOUT_SECONDS, falling back to sane defaults.
func NewTectonicEngine() *TectonicEngine {
	bin := os.Getenv(tectonicBinaryEnv)
	if bin == "" {
		bin = defaultTectonicBinary
	}

	timeout := defaultTectonicTimeout
	if raw := os.Getenv(tectonicTimeoutEnv); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	return &TectonicEngine{Binary: bin, Timeout: timeout}
}

func (e *TectonicEngine) Run(ctx context.Context, session EngineSession) EngineResult {
	var sink StatusSink

	mainPath := filepath.Join(session.WorkspaceDir, session.MainFile)
	if _, err := os.Stat(mainPath); err != nil {
		sink.Error("Bundle error: main input not found", err)
		return EngineResult{Logs: sink.String(), Err: err}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if e.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := []string{
		"--keep-logs",
		"--keep-intermediates",
		"--outdir", session.WorkspaceDir,
	}
	if session.FormatCachePath != "" {
		args = append(args, "--cache-dir", session.FormatCachePath)
	}
	args = append(args, mainPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.Binary, args...)
	cmd.Dir = session.WorkspaceDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	stem := strings.TrimSuffix(session.MainFile, filepath.Ext(session.MainFile))
	logPath := filepath.Join(session.WorkspaceDir, stem+".log")
	pdfPath := filepath.Join(session.WorkspaceDir, stem+".pdf")

	if logData, err := os.ReadFile(logPath); err == nil {
		sink.DumpErrorLogs(logData)
	} else {
		sink.DumpErrorLogs(stdout.Bytes())
		sink.DumpErrorLogs(stderr.Bytes())
	}

	pdfData, readErr := os.ReadFile(pdfPath)
	if runErr != nil {
		sink.Error(fmt.Sprintf("engine exited: %v", runErr), nil)
		return EngineResult{Logs: sink.String(), Err: runErr}
	}
	if readErr != nil {
		sink.Error("PDF file not generated", readErr)
		return EngineResult{Logs: sink.String(), Err: readErr}
	}
	if len(pdfData) < 4 || string(pdfData[:4]) != "%PDF" {
		err := fmt.Errorf("invalid PDF format")
		sink.Error(err.Error(), nil)
		return EngineResult{Logs: sink.String(), Err: err}
	}

	hash := sha256.Sum256(pdfData)
	return EngineResult{PDFData: pdfData, PDFHash: hex.EncodeToString(hash[:]), Logs: sink.String()}
}
