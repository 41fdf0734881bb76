package service

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/logger"

	"github.com/google/uuid"
)

// StagedDocument is a validated upload sitting in transient local
// storage, ready for handoff to the knowledge base synchronizer.
type StagedDocument struct {
	Path      string
	Filename  string
	MimeType  string
	SizeBytes int64
}

// Stager validates uploaded documents and writes them to transient
// local storage. It has no remote side effects.
type Stager struct {
	dir      string
	maxBytes int64
	allowed  map[string]bool
	logger   *logger.Logger
}

// StagerConfig configures the document stager
type StagerConfig struct {
	StagingDir      string
	MaxBytes        int64
	AllowedMimeList []string
}

func NewStager(cfg StagerConfig, log *logger.Logger) *Stager {
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	allowed := make(map[string]bool, len(cfg.AllowedMimeList))
	for _, m := range cfg.AllowedMimeList {
		allowed[strings.ToLower(strings.TrimSpace(m))] = true
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Stager{
		dir:      cfg.StagingDir,
		maxBytes: cfg.MaxBytes,
		allowed:  allowed,
		logger:   log,
	}
}

// MaxBytes returns the configured upload size limit
func (s *Stager) MaxBytes() int64 {
	return s.maxBytes
}

// Stage validates the upload and writes it to a unique local path. On
// any failure no partial file is left behind.
func (s *Stager) Stage(content io.Reader, filename, mimeType string, declaredSize int64) (*StagedDocument, error) {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if !s.allowed[mime] {
		return nil, errors.NewBadRequestError(errors.CodeInvalidFileType,
			"file type "+mimeType+" is not allowed")
	}
	if declaredSize > s.maxBytes {
		return nil, errors.NewPayloadTooLargeError(errors.CodeFileTooLarge,
			"file exceeds the maximum allowed size")
	}

	path := filepath.Join(s.dir, uuid.New().String()+filepath.Ext(filename))

	out, err := os.Create(path)
	if err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure,
			"failed to stage uploaded file").WithDetails(err.Error())
	}

	// Read one byte past the limit so an oversized body is caught even
	// when the declared size lied.
	written, err := io.Copy(out, io.LimitReader(content, s.maxBytes+1))
	closeErr := out.Close()

	if err != nil || closeErr != nil {
		s.discard(path)
		if err == nil {
			err = closeErr
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure,
			"failed to stage uploaded file").WithDetails(err.Error())
	}
	if written > s.maxBytes {
		s.discard(path)
		return nil, errors.NewPayloadTooLargeError(errors.CodeFileTooLarge,
			"file exceeds the maximum allowed size")
	}

	return &StagedDocument{
		Path:      path,
		Filename:  filename,
		MimeType:  mime,
		SizeBytes: written,
	}, nil
}

// Discard removes a staged file, logging rather than failing on error
func (s *Stager) Discard(doc *StagedDocument) {
	if doc == nil || doc.Path == "" {
		return
	}
	s.discard(doc.Path)
}

func (s *Stager) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove staged file", "path", path, "error", err.Error())
	}
}
