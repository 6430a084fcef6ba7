package internal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	maxMultipartMemory = 100 << 20 // 100 MiB, spec.md §6.1
	enqueueTimeout     = 10 * time.Second
)

var requestQueue chan *CompileJob

// SetRequestQueue wires the bounded job channel main.go's worker pool
// drains, per the teacher's SetRequestQueue/requestQueue pair.
func SetRequestQueue(queue chan *CompileJob) {
	requestQueue = queue
}

// HealthHandler answers GET /health.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		QueueLength:   len(requestQueue),
		QueueCapacity: cap(requestQueue),
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

// CompileHandler answers POST /compile: a multipart form whose parts
// become FileEntry values (ContentAuto) in the order they arrived on the
// wire, enqueues a CompileJob and blocks for the worker's result.
// Adapted from the teacher's CompileHandler, generalized from a fixed
// JSON Files array to multipart/form-data per spec.md §6.1.
//
// Reads parts via MultipartReader rather than ParseMultipartForm: the
// latter buffers into a map[string][]*FileHeader, whose iteration order
// Go randomizes per call. ComputeFingerprint concatenates file content in
// slice order, so a map-ordered read would make the fingerprint — and
// therefore the result-cache hit/miss and findMainFile's order-dependent
// fallback (first .tex part with \documentclass, else first .tex part) —
// nondeterministic across byte-identical submissions.
func CompileHandler(c *gin.Context) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "Could not parse multipart form: " + err.Error(),
		})
		return
	}

	var files []FileEntry
	var mainField, webhookURL string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid request",
				Message: "Could not read multipart stream: " + err.Error(),
			})
			return
		}

		formName := part.FormName()
		if part.FileName() == "" {
			// Non-file field (e.g. "main", "webhook_url").
			buf, err := io.ReadAll(io.LimitReader(part, maxMultipartMemory))
			part.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, ErrorResponse{
					Error:   "Invalid request",
					Message: fmt.Sprintf("Could not read field %q: %v", formName, err),
				})
				return
			}
			switch formName {
			case "main":
				mainField = string(buf)
			case "webhook_url":
				webhookURL = string(buf)
			}
			continue
		}

		buf, err := io.ReadAll(io.LimitReader(part, maxMultipartMemory))
		part.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid request",
				Message: fmt.Sprintf("Could not read part %q: %v", formName, err),
			})
			return
		}

		path := part.FileName()
		if path == "" {
			path = formName
		}
		files = append(files, FileEntry{Path: path, Content: string(buf), Kind: ContentAuto})
	}

	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "The request must contain at least one file part",
		})
		return
	}

	job := &CompileJob{
		Input:      InputSet{Main: mainField, Files: files},
		WebhookURL: webhookURL,
		EnqueuedAt: time.Now(),
		ResultChan: make(chan *CompileOutcome, 1),
	}

	if len(requestQueue) >= cap(requestQueue) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":         "Server busy",
			"message":       "Too many compilation requests. Please try again in a moment.",
			"queuePosition": len(requestQueue) + 1,
		})
		return
	}

	select {
	case requestQueue <- job:
		result := <-job.ResultChan
		writeCompileResponse(c, result)
	case <-time.After(enqueueTimeout):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "Server busy",
			Message: "Could not enqueue request, timeout",
		})
	}
}

func writeCompileResponse(c *gin.Context, result *CompileOutcome) {
	c.Header("X-Compile-Request-Id", result.RequestID)
	c.Header("X-Compile-Time-Ms", fmt.Sprintf("%d", result.CompileTimeMs))
	c.Header("X-Files-Received", fmt.Sprintf("%d", result.FilesReceived))
	if result.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	if result.HMR != "" {
		c.Header("X-HMR", string(result.HMR))
	}

	if result.Success {
		if result.PDFSHA256 != "" {
			c.Header("X-Compile-Sha256", result.PDFSHA256)
		}
		c.Header("Content-Type", "application/pdf")
		c.Header("Content-Length", fmt.Sprintf("%d", len(result.PDFData)))
		c.Header("Content-Disposition", `attachment; filename="compiled.pdf"`)
		c.Data(http.StatusOK, "application/pdf", result.PDFData)
		return
	}

	// spec.md §6: failure is 500 text/plain, "LaTeX Error: <msg>\n\nLogs:\n<logs>".
	c.String(http.StatusInternalServerError, "LaTeX Error: %s\n\nLogs:\n%s", result.ErrorMessage, result.Logs)
}

// HandleCompilation is the worker-pool body: run one job through the
// Orchestrator and deliver the result, recovering from panics the same
// way the teacher's HandleCompilation does.
func HandleCompilation(orch *Orchestrator, job *CompileJob) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic in compilation worker")
			job.ResultChan <- &CompileOutcome{
				Success:      false,
				ErrorMessage: fmt.Sprintf("Internal server error: %v", r),
			}
		}
	}()

	result := orch.Compile(context.Background(), job.Input, job.EnqueuedAt)

	if job.WebhookURL != "" {
		go fireWebhook(job.WebhookURL, result)
	}

	job.ResultChan <- result
}

// ValidateRequest is the POST /validate payload: a shallow structural
// check with no engine invocation, per spec.md §6.1.
type ValidateRequest struct {
	Files []FileEntry `json:"files"`
	Main  string      `json:"main,omitempty"`
}

// ValidateResponse reports structural issues found by ValidateSource.
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// ValidateHandler answers POST /validate: JSON body, brace/environment/
// document-delimiter checks only, adapted from the teacher's lint.go
// handler plumbing but replacing the chktex exec call with pure-Go
// structural checks (no engine, no chktex binary in scope).
func ValidateHandler(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "Could not parse JSON payload",
		})
		return
	}

	_, mainContent, found := findMainFile(InputSet{Main: req.Main, Files: req.Files})
	if !found {
		c.JSON(http.StatusOK, ValidateResponse{Valid: false, Issues: []string{"no .tex main file found"}})
		return
	}

	issues := ValidateSource(mainContent)
	c.JSON(http.StatusOK, ValidateResponse{Valid: len(issues) == 0, Issues: issues})
}
