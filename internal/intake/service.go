package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/metrics"
	"github.com/angelmondragon/musicportal-backend/pkg/storage/local"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// DefaultPublicPrefix is the URL path the songs directory is served under.
	DefaultPublicPrefix = "/songs"

	sniffLen     = 3072
	maxExtLength = 10
)

// ErrEmptyPayload is returned for uploads with no content. Nothing is written.
var ErrEmptyPayload = pkgerrors.New(pkgerrors.CodeValidation, "uploaded file is empty")

type objectStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Remove(ctx context.Context, key string) error
}

// Service persists uploaded song files and hands back a public reference.
type Service interface {
	Store(ctx context.Context, upload Upload) (*StoredFile, error)
	Remove(ctx context.Context, reference string) error
}

// Upload is one incoming file. Size is the client-declared length; a negative
// value means unknown.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// StoredFile describes a file that landed on disk.
type StoredFile struct {
	Reference        string `json:"reference"`
	Key              string `json:"key"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	SizeBytes        int64  `json:"size_bytes"`
}

type ServiceParams struct {
	Store        objectStore
	PublicPrefix string
	MaxBytes     int64
	Metrics      *metrics.PortalMetrics
	Logger       *logger.Logger
}

type service struct {
	store    objectStore
	prefix   string
	maxBytes int64
	metrics  *metrics.PortalMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	prefix := strings.TrimRight(strings.TrimSpace(params.PublicPrefix), "/")
	if prefix == "" {
		prefix = DefaultPublicPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return &service{
		store:    params.Store,
		prefix:   prefix,
		maxBytes: params.MaxBytes,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) Store(ctx context.Context, upload Upload) (*StoredFile, error) {
	if upload.Body == nil || upload.Size == 0 {
		s.metrics.ObserveUpload("empty", 0)
		return nil, ErrEmptyPayload
	}
	if s.maxBytes > 0 && upload.Size > s.maxBytes {
		s.metrics.ObserveUpload("too_large", 0)
		return nil, s.tooLarge()
	}

	// Read the sniffing window up front so empty bodies never reach the disk.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.metrics.ObserveUpload("failed", 0)
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read upload")
	}
	head = head[:n]
	if n == 0 {
		s.metrics.ObserveUpload("empty", 0)
		return nil, ErrEmptyPayload
	}

	detected := mimetype.Detect(head)
	key := uuid.NewString() + extensionFor(upload.Filename, detected)

	body := io.MultiReader(bytes.NewReader(head), upload.Body)
	if s.maxBytes > 0 {
		body = io.LimitReader(body, s.maxBytes+1)
	}

	written, err := s.store.Put(ctx, key, body)
	if err != nil {
		s.metrics.ObserveUpload("failed", 0)
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "key", key), "failed to store upload", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store uploaded file")
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		_ = s.store.Remove(ctx, key)
		s.metrics.ObserveUpload("too_large", 0)
		return nil, s.tooLarge()
	}

	s.metrics.ObserveUpload("stored", written)
	return &StoredFile{
		Reference:        s.prefix + "/" + key,
		Key:              key,
		OriginalFilename: displayName(upload.Filename),
		ContentType:      detected.String(),
		SizeBytes:        written,
	}, nil
}

// Remove deletes the file behind a reference produced by Store. Unknown files
// are ignored.
func (s *service) Remove(ctx context.Context, reference string) error {
	key, err := s.keyFor(reference)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, key); err != nil {
		if errors.Is(err, local.ErrInvalidKey) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid file reference")
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "remove stored file")
	}
	return nil
}

func (s *service) keyFor(reference string) (string, error) {
	ref := strings.TrimSpace(reference)
	if !strings.HasPrefix(ref, s.prefix+"/") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid file reference")
	}
	return strings.TrimPrefix(ref, s.prefix+"/"), nil
}

func (s *service) tooLarge() error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
}

// extensionFor keeps a short alphanumeric extension from the client filename,
// falling back to the sniffed type.
func extensionFor(filename string, detected *mimetype.MIME) string {
	ext := strings.ToLower(filepath.Ext(displayName(filename)))
	if clean := sanitizeExt(ext); clean != "" {
		return clean
	}
	if detected != nil {
		return sanitizeExt(detected.Extension())
	}
	return ""
}

func sanitizeExt(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" || len(ext) > maxExtLength {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}

// displayName strips any client-supplied directories.
func displayName(filename string) string {
	name := strings.TrimSpace(strings.ReplaceAll(filename, `\`, "/"))
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
