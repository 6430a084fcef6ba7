package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxLogChars  = 20000
	logTailLines = 50
)

// historyDir is the directory compileMetadata JSON is persisted to,
// mirroring the teacher's SetHistoryDir/historyDir pair.
var historyDir string

// SetHistoryDir configures where per-request metadata is persisted.
func SetHistoryDir(dir string) { historyDir = dir }

// Orchestrator is the central coordinator described in spec.md §4.5. It
// owns workspace lifetime and wires the Result Cache, Format Cache, Blob
// Store and the engine together. Grounded on the teacher's compileSession
// state machine (internal/compiler.go) and on
// original_source/src/compiler.rs's compile_file/internal_compile split
// (bundle-open, session-build, run, read-pdf, retry-once).
type Orchestrator struct {
	Engine          Engine
	ResultCache     *ResultCache
	FormatCache     *FormatCache
	BlobStore       *BlobStore
	FormatCachePath string
}

// NewOrchestrator wires the process-wide singletons together with the
// given engine implementation.
func NewOrchestrator(engine Engine) *Orchestrator {
	return &Orchestrator{
		Engine:          engine,
		ResultCache:     GetResultCache(),
		FormatCache:     GetFormatCache(),
		BlobStore:       GetBlobStore(),
		FormatCachePath: os.Getenv("TECTONIC_FORMAT_CACHE"),
	}
}

// Compile runs the full control flow of spec.md §2: ingest (already
// done by the caller into an InputSet) → fingerprint → result-cache
// lookup → workspace materialize → preamble signal → engine invocation
// → self-heal-and-retry-once on failure → cache insert on success →
// log parse → return.
func (o *Orchestrator) Compile(ctx context.Context, input InputSet, enqueuedAt time.Time) *CompileOutcome {
	requestID := uuid.New().String()
	logger := log.With().Str("request_id", requestID).Logger()

	receivedAt := time.Now()
	queueMs := receivedAt.Sub(enqueuedAt).Milliseconds()
	logger.Info().Int64("queue_ms", queueMs).Int("files", len(input.Files)).Msg("compile request received")

	metadata := &compileMetadata{
		RequestID:  requestID,
		EnqueuedAt: enqueuedAt,
		ReceivedAt: receivedAt,
		QueueMs:    queueMs,
	}

	fp := ComputeFingerprint(input.Files)

	if pdf, pdfHash, compileMs, hit := o.ResultCache.lookupWithHash(fp); hit {
		logger.Info().Msg("result cache hit")
		metadata.Status = "success"
		metadata.Cache = "HIT"
		metadata.PDFSize = len(pdf)
		metadata.DurationMs = compileMs
		metadata.FilesReceived = len(input.Files)
		o.persistMetadata(metadata)
		return &CompileOutcome{
			RequestID:     requestID,
			Success:       true,
			PDFData:       pdf,
			PDFSHA256:     pdfHash,
			CompileTimeMs: compileMs,
			CacheHit:      true,
			FilesReceived: len(input.Files),
		}
	}

	mainPath, mainContent, found := findMainFile(input)
	if !found {
		return o.errorOutcome(metadata, "No LaTeX source (.tex) file found in request", len(input.Files))
	}

	ws, err := NewWorkspace()
	if err != nil {
		return o.errorOutcome(metadata, fmt.Sprintf("Failed to create workspace: %v", err), len(input.Files))
	}
	defer ws.Release()

	filesWritten, newBlobs, err := ws.Materialize(input.Files, o.BlobStore)
	if err != nil {
		return o.errorOutcome(metadata, fmt.Sprintf("Failed to write files: %v", err), len(input.Files))
	}

	hmr, _, _ := o.classifyHMR(mainContent)

	session := EngineSession{
		WorkspaceDir:    ws.Dir,
		MainFile:        mainPath,
		FormatCachePath: o.FormatCachePath,
	}

	start := time.Now()
	result := o.Engine.Run(ctx, session)
	logs := result.Logs

	if result.Err != nil {
		logger.Warn().Err(result.Err).Msg("first engine pass failed, attempting self-heal")

		if healed, applied := AttemptHeal(mainContent, logs); applied {
			fullMainPath := filepath.Join(ws.Dir, mainPath)
			if werr := os.WriteFile(fullMainPath, []byte(healed), 0o644); werr == nil {
				logs += "\n\n--- [Self-Healing] ---\nErrors detected. Applying automated fixes and retrying...\n"

				retry := o.Engine.Run(ctx, session)
				logs += retry.Logs
				result = retry

				if result.Err == nil {
					logs += "\n[Self-Healing] Compilation succeeded after auto-patching.\n"
				}
			}
		}
	}

	compileTimeMs := time.Since(start).Milliseconds()

	logs = truncateText(logs, maxLogChars)

	if result.Err != nil {
		logger.Error().Err(result.Err).Msg("compilation failed")
		diags := ParseLog(logs)
		metadata.Status = "error"
		metadata.DurationMs = compileTimeMs
		metadata.HMR = string(hmr)
		metadata.FilesReceived = filesWritten
		metadata.Error = result.Err.Error()
		metadata.LogTail = tailLines(logs, logTailLines)
		o.persistMetadata(metadata)
		return &CompileOutcome{
			RequestID:     requestID,
			Success:       false,
			ErrorMessage:  result.Err.Error(),
			Logs:          logs,
			CompileTimeMs: compileTimeMs,
			HMR:           hmr,
			FilesReceived: filesWritten,
			Diagnostics:   diags,
		}
	}

	o.ResultCache.InsertWithHash(fp, result.PDFData, result.PDFHash, compileTimeMs)
	logger.Info().Int("pdf_bytes", len(result.PDFData)).Int64("compile_ms", compileTimeMs).Msg("compilation succeeded")

	metadata.Status = "success"
	metadata.Cache = "MISS"
	metadata.DurationMs = compileTimeMs
	metadata.HMR = string(hmr)
	metadata.FilesReceived = filesWritten
	metadata.PDFSize = len(result.PDFData)
	o.persistMetadata(metadata)

	return &CompileOutcome{
		RequestID:     requestID,
		Success:       true,
		PDFData:       result.PDFData,
		PDFSHA256:     result.PDFHash,
		Logs:          logs,
		CompileTimeMs: compileTimeMs,
		CacheHit:      false,
		HMR:           hmr,
		FilesReceived: filesWritten,
		Blobs:         newBlobs,
	}
}

func (o *Orchestrator) classifyHMR(mainContent string) (HMRStatus, PreambleHash, bool) {
	if !utf8.ValidString(mainContent) {
		return HMRError, 0, false
	}
	return o.FormatCache.ClassifyPreamble(mainContent)
}

// truncateText keeps the last maxChars bytes of text.
func truncateText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[len(text)-maxChars:]
}

// tailLines keeps the last maxLines lines of text.
func tailLines(text string, maxLines int) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}

func (o *Orchestrator) errorOutcome(metadata *compileMetadata, message string, filesReceived int) *CompileOutcome {
	metadata.Status = "error"
	metadata.FilesReceived = filesReceived
	metadata.Error = message
	o.persistMetadata(metadata)
	return &CompileOutcome{
		RequestID:     metadata.RequestID,
		Success:       false,
		ErrorMessage:  message,
		FilesReceived: filesReceived,
	}
}

// persistMetadata writes one JSON history record per request when
// SetHistoryDir has configured a directory, mirroring the teacher's
// Compiler.persistMetadata.
func (o *Orchestrator) persistMetadata(metadata *compileMetadata) {
	if historyDir == "" {
		return
	}

	metadata.CompletedAt = time.Now()

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("request_id", metadata.RequestID).Msg("failed to marshal compile metadata")
		return
	}

	path := filepath.Join(historyDir, metadata.RequestID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Err(err).Str("request_id", metadata.RequestID).Msg("failed to persist compile metadata")
	}
}

// findMainFile resolves the designated main file: the InputSet's Main
// field if set, else "main.tex" if present, else the first .tex file
// containing \documentclass, else the first .tex file at all.
func findMainFile(input InputSet) (path string, content string, found bool) {
	if input.Main != "" {
		for _, f := range input.Files {
			if f.Path == input.Main {
				return f.Path, f.Content, true
			}
		}
	}

	for _, f := range input.Files {
		if f.Path == "main.tex" {
			return f.Path, f.Content, true
		}
	}

	var fallback *FileEntry
	for i := range input.Files {
		f := &input.Files[i]
		if !strings.HasSuffix(f.Path, ".tex") {
			continue
		}
		if strings.Contains(f.Content, `\documentclass`) {
			return f.Path, f.Content, true
		}
		if fallback == nil {
			fallback = f
		}
	}
	if fallback != nil {
		return fallback.Path, fallback.Content, true
	}

	return "", "", false
}
