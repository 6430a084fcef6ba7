package internal

import (
	"context"
	"encoding/base64"
	"sort"
	"time"
)

// ToolServer exposes compile/validate/health as plain Go methods with
// the same resource-envelope shape as the tool-call surface (mirroring
// original_source/src/mcp.rs's TachyonMcpServer tool methods), so a
// process embedding this module can register them directly without
// speaking HTTP or WebSocket to itself.
type ToolServer struct {
	orch *Orchestrator
}

// NewToolServer wires a ToolServer to the given Orchestrator.
func NewToolServer(orch *Orchestrator) *ToolServer {
	return &ToolServer{orch: orch}
}

// CompileArgs is the compile tool's parameter set.
type CompileArgs struct {
	Main  string            `json:"main,omitempty"`
	Files map[string]string `json:"files"`
}

// CompileResource is the compile tool's resource-envelope result,
// matching original_source/src/mcp.rs's Content::resource pattern:
// a text summary plus a base64 blob resource.
type CompileResource struct {
	Summary       string `json:"summary"`
	URI           string `json:"uri"`
	MimeType      string `json:"mimeType"`
	Blob          string `json:"blob,omitempty"`
	Success       bool   `json:"success"`
	CompileTimeMs int64  `json:"compileTimeMs"`
	CacheHit      bool   `json:"cacheHit"`
	Error         string `json:"error,omitempty"`
	Logs          string `json:"logs,omitempty"`
}

// Compile runs a compilation through the shared Orchestrator, honoring
// the result cache identically to the HTTP/WS paths.
func (t *ToolServer) Compile(ctx context.Context, args CompileArgs) CompileResource {
	files := make([]FileEntry, 0, len(args.Files))
	for name, content := range args.Files {
		files = append(files, FileEntry{Path: name, Content: content, Kind: ContentAuto})
	}
	// Map iteration order is random; sort so the fingerprint is stable.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	result := t.orch.Compile(ctx, InputSet{Main: args.Main, Files: files}, time.Now())

	mainName := args.Main
	if mainName == "" {
		mainName = "main.tex"
	}
	uri := "file:///" + trimTexSuffix(mainName) + ".pdf"

	if !result.Success {
		return CompileResource{
			Summary:       "Compilation failed: " + result.ErrorMessage,
			URI:           uri,
			MimeType:      "application/pdf",
			Success:       false,
			CompileTimeMs: result.CompileTimeMs,
			Error:         result.ErrorMessage,
			Logs:          result.Logs,
		}
	}

	summary := "Compilation successful."
	if result.CacheHit {
		summary = "Compilation successful (CACHED)."
	}

	return CompileResource{
		Summary:       summary,
		URI:           uri,
		MimeType:      "application/pdf",
		Blob:          base64.StdEncoding.EncodeToString(result.PDFData),
		Success:       true,
		CompileTimeMs: result.CompileTimeMs,
		CacheHit:      result.CacheHit,
	}
}

func trimTexSuffix(name string) string {
	if len(name) > 4 && name[len(name)-4:] == ".tex" {
		return name[:len(name)-4]
	}
	return name
}

// ValidateArgs is the validate tool's parameter set: a flat file map,
// matching original_source's ValidateArgs shape.
type ValidateArgs struct {
	Main  string            `json:"main,omitempty"`
	Files map[string]string `json:"files"`
}

// Validate runs the same shallow structural checks POST /validate uses.
func (t *ToolServer) Validate(args ValidateArgs) ValidateResponse {
	files := make([]FileEntry, 0, len(args.Files))
	for name, content := range args.Files {
		files = append(files, FileEntry{Path: name, Content: content, Kind: ContentAuto})
	}

	_, mainContent, found := findMainFile(InputSet{Main: args.Main, Files: files})
	if !found {
		return ValidateResponse{Valid: false, Issues: []string{"no .tex main file found"}}
	}

	issues := ValidateSource(mainContent)
	return ValidateResponse{Valid: len(issues) == 0, Issues: issues}
}

// Health reports the same status the HTTP handler does.
func (t *ToolServer) Health() HealthResponse {
	return HealthResponse{
		Status:        "ok",
		QueueLength:   len(requestQueue),
		QueueCapacity: cap(requestQueue),
		Timestamp:     time.Now().Format(time.RFC3339),
	}
}
