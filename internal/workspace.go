package internal

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const shmRoot = "/dev/shm/tachyon-compilations"

var textualExtensions = map[string]bool{
	".tex": true,
	".sty": true,
	".cls": true,
	".bib": true,
}

// Workspace is a scoped temporary directory materialized for exactly one
// compile session, per spec.md §3/§4.4. Grounded on the teacher's
// ensureTempDir/syncFilesToWorkspace/cleanup trio in internal/compiler.go.
type Workspace struct {
	Dir string
}

// NewWorkspace selects a temp root (/dev/shm when present and writable,
// else the OS default) and creates a uniquely named child directory.
func NewWorkspace() (*Workspace, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(root, "ws-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	return &Workspace{Dir: dir}, nil
}

func workspaceRoot() (string, error) {
	if err := os.MkdirAll(shmRoot, 0o755); err == nil {
		if probe, err := os.MkdirTemp(shmRoot, ".probe-"); err == nil {
			_ = os.Remove(probe)
			return shmRoot, nil
		}
	}
	return os.TempDir(), nil
}

// Release tears down the workspace directory. Safe to call on a nil
// receiver or an already-released workspace.
func (w *Workspace) Release() {
	if w == nil || w.Dir == "" {
		return
	}
	_ = os.RemoveAll(w.Dir)
}

// Materialize writes every file entry into the workspace, resolving blob
// references from blobs and inserting newly-seen binary uploads back into
// it, returning the number of paths written and a name->hash map for every
// binary file that was base64-decoded and stored in the blob store,
// whether or not that hash was already present.
func (w *Workspace) Materialize(files []FileEntry, blobs *BlobStore) (filesWritten int, newBlobs map[string]string, err error) {
	newBlobs = make(map[string]string)

	for _, f := range files {
		target := filepath.Join(w.Dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return filesWritten, newBlobs, fmt.Errorf("create parent dirs for %s: %w", f.Path, err)
		}

		data, hash, skip, werr := w.resolveContent(f, blobs)
		if werr != nil {
			return filesWritten, newBlobs, werr
		}
		if skip {
			// Hash reference with no matching blob: the engine will report
			// a missing-input error, surfaced verbatim by the caller.
			continue
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			return filesWritten, newBlobs, fmt.Errorf("write %s: %w", f.Path, err)
		}
		filesWritten++

		if hash != "" {
			newBlobs[f.Path] = hash
		}
	}

	return filesWritten, newBlobs, nil
}

func (w *Workspace) resolveContent(f FileEntry, blobs *BlobStore) (data []byte, newHash string, skip bool, err error) {
	switch f.Kind {
	case ContentBlobRef:
		if blobs == nil {
			return nil, "", true, nil
		}
		b, ok := blobs.Get(f.Content)
		if !ok {
			return nil, "", true, nil
		}
		return b, "", false, nil

	case ContentRawText:
		return []byte(f.Content), "", false, nil

	case ContentBase64:
		decoded, derr := base64.StdEncoding.DecodeString(f.Content)
		if derr != nil {
			return nil, "", false, fmt.Errorf("decode base64 for %s: %w", f.Path, derr)
		}
		hash := fmt.Sprintf("%016x", uint64(ComputeFingerprint([]FileEntry{{Content: string(decoded)}})))
		if blobs != nil {
			blobs.Put(hash, decoded)
		}
		return decoded, hash, false, nil

	default: // ContentAuto: textual-extension heuristic
		ext := strings.ToLower(filepath.Ext(f.Path))
		if textualExtensions[ext] {
			return []byte(f.Content), "", false, nil
		}

		decoded, derr := base64.StdEncoding.DecodeString(f.Content)
		if derr != nil {
			// Not valid base64 either; write as-is (textual heuristic fallback).
			return []byte(f.Content), "", false, nil
		}
		hash := fmt.Sprintf("%016x", uint64(ComputeFingerprint([]FileEntry{{Content: string(decoded)}})))
		if blobs != nil {
			blobs.Put(hash, decoded)
		}
		return decoded, hash, false, nil
	}
}
