package internal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

const (
	wsMaxMessageBytes = 128 << 20 // 128 MiB, spec.md §6.2
	wsCompileTimeout  = 60 * time.Second
)

// WsContentVariant is the tagged-union shape a client sends per file,
// grounded on original_source/src/models.rs's WsFileContent untagged
// enum: a bare JSON string goes through the extension heuristic (text,
// or base64 for binary extensions), an object carries either a base64
// payload or a {type, value} blob reference.
type WsContentVariant struct {
	raw      string
	isRaw    bool
	Base64   string `json:"base64,omitempty"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
	isObject bool
}

// UnmarshalJSON accepts either a bare string or an object, mirroring
// serde's #[serde(untagged)] resolution order in the Rust prototype.
func (v *WsContentVariant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.raw = s
		v.isRaw = true
		return nil
	}

	type variant WsContentVariant
	var obj variant
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("file content must be a string or an object: %w", err)
	}
	*v = WsContentVariant(obj)
	v.isObject = true
	return nil
}

func (v WsContentVariant) toFileEntry(path string) FileEntry {
	switch {
	case v.isRaw:
		return FileEntry{Path: path, Content: v.raw, Kind: ContentAuto}
	case v.Base64 != "":
		return FileEntry{Path: path, Content: v.Base64, Kind: ContentBase64}
	case v.Type != "" && v.Value != "":
		return FileEntry{Path: path, Content: v.Value, Kind: ContentBlobRef}
	default:
		return FileEntry{Path: path, Content: "", Kind: ContentAuto}
	}
}

// WsProject is the inbound compile_request envelope.
type WsProject struct {
	Type  string                      `json:"type"`
	Main  string                      `json:"main,omitempty"`
	Files map[string]WsContentVariant `json:"files"`
}

// WsOutbound is the envelope every server-to-client message uses, field
// names matching spec.md §6's compile_success/compile_error wire shapes
// (snake_case, "pdf" not "pdfBase64", "details" not "diagnostics") so a
// spec-conformant client can parse the response without translation.
type WsOutbound struct {
	Type          string            `json:"type"`
	RequestID     string            `json:"request_id,omitempty"`
	Success       bool              `json:"success,omitempty"`
	PDF           string            `json:"pdf,omitempty"`
	CompileTimeMs int64             `json:"compile_time_ms,omitempty"`
	CacheHit      bool              `json:"cache_hit,omitempty"`
	HMR           string            `json:"hmr,omitempty"`
	Blobs         map[string]string `json:"blobs,omitempty"`
	Error         string            `json:"error,omitempty"`
	Logs          string            `json:"logs,omitempty"`
	Details       []Diagnostic      `json:"details,omitempty"`
	Message       string            `json:"message,omitempty"`
}

// WebSocketHandler upgrades /ws and runs a long-lived session: each
// inbound compile_request envelope is compiled synchronously through
// the same Orchestrator the HTTP path uses, and the outcome is pushed
// back as compile_success/compile_error. Modeled on original_source's
// mcp.rs session loop and the teacher's gin-handler registration
// style, using coder/websocket per j2h4u-Context-Gateway's declared
// (if there unused) transport dependency.
func WebSocketHandler(orch *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Warn().Err(err).Msg("websocket accept failed")
			return
		}
		conn.SetReadLimit(wsMaxMessageBytes)
		defer conn.Close(websocket.StatusInternalError, "session ended")

		ctx := r.Context()

		for {
			var project WsProject
			err := wsjson.Read(ctx, conn, &project)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				var closeErr websocket.CloseError
				if errors.As(err, &closeErr) {
					return
				}
				log.Warn().Err(err).Msg("websocket read failed")
				return
			}

			switch project.Type {
			case "", "compile_request":
				handleWsCompile(ctx, orch, conn, project)
			default:
				_ = wsjson.Write(ctx, conn, WsOutbound{
					Type:    "error",
					Error:   "unknown message type",
					Message: fmt.Sprintf("unrecognized type %q", project.Type),
				})
			}
		}
	}
}

func handleWsCompile(ctx context.Context, orch *Orchestrator, conn *websocket.Conn, project WsProject) {
	files := make([]FileEntry, 0, len(project.Files))
	for path, variant := range project.Files {
		files = append(files, variant.toFileEntry(path))
	}
	// Map iteration order is random; sort so the fingerprint is stable.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	compileCtx, cancel := context.WithTimeout(ctx, wsCompileTimeout)
	defer cancel()

	result := orch.Compile(compileCtx, InputSet{Main: project.Main, Files: files}, time.Now())

	if result.Success {
		_ = wsjson.Write(ctx, conn, WsOutbound{
			Type:          "compile_success",
			RequestID:     result.RequestID,
			Success:       true,
			PDF:           base64.StdEncoding.EncodeToString(result.PDFData),
			CompileTimeMs: result.CompileTimeMs,
			CacheHit:      result.CacheHit,
			HMR:           string(result.HMR),
			Blobs:         result.Blobs,
		})
		return
	}

	_ = wsjson.Write(ctx, conn, WsOutbound{
		Type:          "compile_error",
		RequestID:     result.RequestID,
		Success:       false,
		Error:         result.ErrorMessage,
		Logs:          result.Logs,
		Details:       result.Diagnostics,
		CompileTimeMs: result.CompileTimeMs,
		HMR:           string(result.HMR),
	})
}
