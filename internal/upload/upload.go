// Package upload accepts raw file bytes and turns them into a Document in
// pending status, handing the identifier off for asynchronous ingestion.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/ragdocs/docuqa/internal/apperr"
	"github.com/ragdocs/docuqa/internal/store"
)

// MaxUploadBytes bounds the size of an accepted file.
const MaxUploadBytes = 10 * 1024 * 1024

var allowedTypes = map[string]string{
	".txt": "txt",
	".pdf": "pdf",
}

var allowedMIMEPrefixes = map[string][]string{
	"txt": {"text/plain"},
	"pdf": {"application/pdf"},
}

// FileStore persists raw uploaded bytes to durable storage, keyed by a
// content-hash-derived path.
type FileStore interface {
	Save(ctx context.Context, path string, content []byte) error
}

// Scheduler hands a claimed document off to asynchronous ingestion.
type Scheduler interface {
	Enqueue(ctx context.Context, documentID string, content []byte) bool
}

// Result is the outcome of a single upload call.
type Result struct {
	DocumentID string
	Filename   string
	Size       int64
	Hash       string
	Deduped    bool
}

// Coordinator validates, deduplicates, and persists an uploaded file, then
// schedules it for ingestion.
type Coordinator struct {
	store     store.Store
	files     FileStore
	scheduler Scheduler
	uploadDir string
}

// NewCoordinator builds a Coordinator. uploadDir is the root under which
// hash-derived file paths are written.
func NewCoordinator(st store.Store, files FileStore, scheduler Scheduler, uploadDir string) *Coordinator {
	return &Coordinator{store: st, files: files, scheduler: scheduler, uploadDir: uploadDir}
}

// Upload validates filename/size/content, deduplicates by content hash, and
// on a fresh upload writes the file, creates a pending Document, and
// schedules ingestion. A duplicate returns the existing document's
// identifier and does nothing else.
func (c *Coordinator) Upload(ctx context.Context, filename string, content []byte) (Result, error) {
	fileType, err := validateFile(filename, content)
	if err != nil {
		return Result{}, err
	}
	if int64(len(content)) > MaxUploadBytes {
		return Result{}, apperr.Validationf("file exceeds maximum size of %d bytes", MaxUploadBytes)
	}

	hash := hashContent(content)
	if existing, err := c.store.GetDocumentByHash(ctx, hash); err == nil {
		return Result{DocumentID: existing.ID, Filename: existing.Filename, Size: existing.FileSize, Hash: hash, Deduped: true}, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return Result{}, err
	}

	documentID := uuid.NewString()
	path := hashDerivedPath(c.uploadDir, hash, filename)
	if err := c.files.Save(ctx, path, content); err != nil {
		return Result{}, apperr.Store("save uploaded file", err)
	}

	doc := &store.Document{
		ID:       documentID,
		Filename: filename,
		FileType: fileType,
		FileSize: int64(len(content)),
		FileHash: hash,
		FilePath: path,
	}
	if err := c.store.CreateDocument(ctx, doc); err != nil {
		if apperr.Is(err, apperr.KindDuplicateContent) {
			existing, getErr := c.store.GetDocumentByHash(ctx, hash)
			if getErr != nil {
				return Result{}, getErr
			}
			return Result{DocumentID: existing.ID, Filename: existing.Filename, Size: existing.FileSize, Hash: hash, Deduped: true}, nil
		}
		return Result{}, err
	}

	// The scheduler runs the job on a worker goroutine after this call
	// returns, by which point an HTTP request's ctx is canceled. Detach it
	// so ingestion gets its own lifetime instead of racing the response.
	c.scheduler.Enqueue(context.WithoutCancel(ctx), documentID, content)
	return Result{DocumentID: documentID, Filename: filename, Size: doc.FileSize, Hash: hash}, nil
}

func validateFile(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fileType, ok := allowedTypes[ext]
	if !ok {
		return "", apperr.Validationf("unsupported file extension %q", ext)
	}
	detected := mimetype.Detect(content)
	allowedPrefixes := allowedMIMEPrefixes[fileType]
	matched := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(detected.String(), prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return "", apperr.Validationf(
			"declared type %q does not match detected content type %q", fileType, detected.String(),
		)
	}
	return fileType, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func hashDerivedPath(root, hash, filename string) string {
	return filepath.Join(root, hash[:2], hash+filepath.Ext(filename))
}
