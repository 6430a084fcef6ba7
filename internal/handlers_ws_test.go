package internal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWsContentVariantRawString(t *testing.T) {
	var v WsContentVariant
	require.NoError(t, json.Unmarshal([]byte(`"\\documentclass{article}"`), &v))
	entry := v.toFileEntry("main.tex")
	require.Equal(t, ContentAuto, entry.Kind)
	require.Equal(t, "\\documentclass{article}", entry.Content)
}

func TestWsContentVariantBase64Object(t *testing.T) {
	var v WsContentVariant
	require.NoError(t, json.Unmarshal([]byte(`{"base64":"iVBORw0KGgo="}`), &v))
	entry := v.toFileEntry("fig.png")
	require.Equal(t, ContentBase64, entry.Kind)
	require.Equal(t, "iVBORw0KGgo=", entry.Content)
}

func TestWsContentVariantBlobRefObject(t *testing.T) {
	var v WsContentVariant
	require.NoError(t, json.Unmarshal([]byte(`{"type":"image","value":"cafebabe"}`), &v))
	entry := v.toFileEntry("fig.png")
	require.Equal(t, ContentBlobRef, entry.Kind)
	require.Equal(t, "cafebabe", entry.Content)
}

// TestWsOutboundWireFieldNames locks the compile_success/compile_error JSON
// shape to spec.md §6: snake_case, "pdf" not "pdfBase64", "details" not
// "diagnostics", with blobs surfaced for the dedup round-trip (§8 scenario 6).
func TestWsOutboundWireFieldNames(t *testing.T) {
	lineNum := 3
	out := WsOutbound{
		Type:          "compile_success",
		RequestID:     "req-1",
		Success:       true,
		PDF:           "JVBERi0xLjU=",
		CompileTimeMs: 42,
		CacheHit:      false,
		HMR:           "MISS",
		Blobs:         map[string]string{"fig.png": "cafebabe"},
	}

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	require.Contains(t, raw, "pdf")
	require.Contains(t, raw, "compile_time_ms")
	require.Contains(t, raw, "blobs")
	require.NotContains(t, raw, "pdfBase64")
	require.NotContains(t, raw, "compileTimeMs")
	require.NotContains(t, raw, "diagnostics")

	errOut := WsOutbound{
		Type:    "compile_error",
		Error:   "Undefined control sequence",
		Logs:    "[Error] main.tex:3: Undefined control sequence",
		Details: []Diagnostic{{File: "main.tex", Line: &lineNum, Message: "Undefined control sequence"}},
	}
	data, err = json.Marshal(errOut)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "details")
	require.NotContains(t, raw, "diagnostics")
}
