package internal

import "time"

// ContentKind describes how a FileEntry's Content bytes should be
// interpreted when materialized into a workspace.
type ContentKind int

const (
	// ContentAuto infers text vs. base64 from the path's extension,
	// the rule the HTTP multipart and WebSocket raw-string paths use.
	ContentAuto ContentKind = iota
	// ContentRawText is always written as UTF-8 bytes, never decoded.
	ContentRawText
	// ContentBase64 is always base64-decoded before being written.
	ContentBase64
	// ContentBlobRef means Content holds a hex hash to resolve via the blob store.
	ContentBlobRef
)

// FileEntry is one (path, bytes) pair in an InputSet.
type FileEntry struct {
	Path    string
	Content string // interpretation depends on Kind
	Kind    ContentKind
}

// InputSet is the unordered collection of files a client submits for compilation.
type InputSet struct {
	Main  string // designated main path; "" resolves per findMainFile
	Files []FileEntry
}

// InputFingerprint is the 64-bit content-addressed key of an InputSet.
type InputFingerprint uint64

// PreambleHash is the 64-bit hash of the source text up to \begin{document}.
type PreambleHash uint64

// HMRStatus is the hot/cold observability signal derived from the format cache.
type HMRStatus string

const (
	HMRHit   HMRStatus = "HIT"
	HMRMiss  HMRStatus = "MISS"
	HMRNone  HMRStatus = "NONE"
	HMRError HMRStatus = "ERROR"
)

// Diagnostic is a structured record parsed out of engine log output.
type Diagnostic struct {
	File    string `json:"file"`
	Line    *int   `json:"line,omitempty"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// CompileOutcome is the orchestrator's verdict for a single compile session.
type CompileOutcome struct {
	RequestID     string
	Success       bool
	PDFData       []byte
	PDFSHA256     string
	Logs          string
	ErrorMessage  string
	CompileTimeMs int64
	CacheHit      bool
	HMR           HMRStatus
	FilesReceived int
	Diagnostics   []Diagnostic
	// Blobs maps file name to the blob-store hash assigned to it during
	// materialization, so callers (WS/tool-call) can offer a reference
	// next time instead of resending bytes.
	Blobs map[string]string
}

// compileMetadata is persisted history, mirroring the teacher's per-request log.
type compileMetadata struct {
	RequestID     string    `json:"requestId"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
	ReceivedAt    time.Time `json:"receivedAt"`
	CompletedAt   time.Time `json:"completedAt,omitempty"`
	QueueMs       int64     `json:"queueMs"`
	DurationMs    int64     `json:"durationMs"`
	Status        string    `json:"status"`
	PDFSize       int       `json:"pdfSize,omitempty"`
	Cache         string    `json:"cache,omitempty"`
	HMR           string    `json:"hmr,omitempty"`
	FilesReceived int       `json:"filesReceived,omitempty"`
	Error         string    `json:"error,omitempty"`
	LogTail       string    `json:"logTail,omitempty"`
}

// CompileJob is a queued compilation request awaiting a worker.
type CompileJob struct {
	Input      InputSet
	WebhookURL string
	EnqueuedAt time.Time
	ResultChan chan *CompileOutcome
}

// HealthResponse is the /health and health() payload.
type HealthResponse struct {
	Status        string `json:"status"`
	QueueLength   int    `json:"queueLength"`
	QueueCapacity int    `json:"queueCapacity"`
	Timestamp     string `json:"timestamp"`
}

// ErrorResponse is the generic failure JSON shape for HTTP/tool paths.
type ErrorResponse struct {
	Error      string       `json:"error"`
	Message    string       `json:"message,omitempty"`
	RequestID  string       `json:"requestId,omitempty"`
	DurationMs int64        `json:"durationMs,omitempty"`
	Logs       string       `json:"logs,omitempty"`
	Details    []Diagnostic `json:"details,omitempty"`
}
