package internal

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// writeMultipart builds a multipart/form-data body with parts in exactly
// the given order, the way a real client streams one.
func writeMultipart(t *testing.T, mainField string, fileParts [][2]string) (body *bytes.Buffer, contentType string) {
	t.Helper()
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if mainField != "" {
		require.NoError(t, w.WriteField("main", mainField))
	}
	for _, fp := range fileParts {
		fw, err := w.CreateFormFile(fp[0], fp[0])
		require.NoError(t, err)
		_, err = fw.Write([]byte(fp[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestCompileHandlerPreservesWireOrder(t *testing.T) {
	queue := make(chan *CompileJob, 1)
	SetRequestQueue(queue)
	defer SetRequestQueue(nil)

	var gotPaths []string
	done := make(chan struct{})
	go func() {
		job := <-queue
		for _, f := range job.Input.Files {
			gotPaths = append(gotPaths, f.Path)
		}
		job.ResultChan <- &CompileOutcome{Success: true, FilesReceived: len(job.Input.Files)}
		close(done)
	}()

	body, contentType := writeMultipart(t, "main.tex", [][2]string{
		{"z.sty", "package z"},
		{"main.tex", "\\documentclass{article}"},
		{"a.bib", "@misc{x}"},
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/compile", body)
	c.Request.Header.Set("Content-Type", contentType)

	CompileHandler(c)
	<-done

	require.Equal(t, []string{"z.sty", "main.tex", "a.bib"}, gotPaths)
}

func TestCompileHandlerNoFilesRejected(t *testing.T) {
	queue := make(chan *CompileJob, 1)
	SetRequestQueue(queue)
	defer SetRequestQueue(nil)

	body, contentType := writeMultipart(t, "", nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/compile", body)
	c.Request.Header.Set("Content-Type", contentType)

	CompileHandler(c)

	require.Equal(t, 400, w.Code)
}

func TestWriteCompileResponseFailureIsTextPlain(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeCompileResponse(c, &CompileOutcome{
		Success:      false,
		ErrorMessage: "Undefined control sequence",
		Logs:         "[Error] main.tex:3: Undefined control sequence",
	})

	require.Equal(t, 500, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	require.Equal(t, "LaTeX Error: Undefined control sequence\n\nLogs:\n[Error] main.tex:3: Undefined control sequence", w.Body.String())
}

func TestWriteCompileResponseSuccessIsPDF(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeCompileResponse(c, &CompileOutcome{
		Success:   true,
		PDFData:   []byte("%PDF-1.5 fake"),
		PDFSHA256: "deadbeef",
		CacheHit:  true,
	})

	require.Equal(t, 200, w.Code)
	require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	require.Equal(t, "HIT", w.Header().Get("X-Cache"))
	require.Equal(t, "deadbeef", w.Header().Get("X-Compile-Sha256"))
	require.Equal(t, "%PDF-1.5 fake", w.Body.String())
}
