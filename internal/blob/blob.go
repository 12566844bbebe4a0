// Package blob implements the content-addressed media store. Blob bytes
// live on disk named by the SHA-256 of their content; dimensions and mime
// type live in the relational store.
package blob

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/quizbox/quizbox/internal/logging"
	"github.com/quizbox/quizbox/internal/metrics"
	"github.com/quizbox/quizbox/internal/store"
)

// MaxUploadBytes caps a single blob upload.
const MaxUploadBytes = 8 << 20

// probeWorkers bounds concurrent image decodes; uploads beyond this queue.
const probeWorkers = 4

// ErrUnsupportedType is returned for uploads that are not a supported
// image format.
var ErrUnsupportedType = errors.New("blob: unsupported content type")

// ErrTooLarge is returned for uploads over MaxUploadBytes.
var ErrTooLarge = errors.New("blob: upload too large")

var mimeByFormat = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// Store is the blob store: a directory of content-addressed files plus the
// metadata table.
type Store struct {
	dir   string
	meta  *store.Store
	probe chan struct{}
	log   *zap.Logger
}

// New opens the blob directory, creating it if needed.
func New(dir string, meta *store.Store) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{
		dir:   dir,
		meta:  meta,
		probe: make(chan struct{}, probeWorkers),
		log:   logging.GetLogger().With(zap.String("component", "blob")),
	}, nil
}

// Path returns the on-disk location for a blob id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id)
}

// Put stores an upload and returns its metadata. The id is the SHA-256 of
// the content, so storing the same bytes twice returns the same id without
// rewriting the file.
func (s *Store) Put(r io.Reader) (*store.BlobInfo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		metrics.BlobUploads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		metrics.BlobUploads.WithLabelValues("too_large").Inc()
		return nil, ErrTooLarge
	}

	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])

	if info, err := s.meta.GetBlob(id); err == nil {
		if _, statErr := os.Stat(s.Path(id)); statErr == nil {
			metrics.BlobUploads.WithLabelValues("dedup").Inc()
			return info, nil
		}
		// Metadata without bytes: fall through and rewrite the file.
	}

	width, height, mime, err := s.probeImage(data)
	if err != nil {
		metrics.BlobUploads.WithLabelValues("unsupported").Inc()
		return nil, err
	}

	if err := s.writeFile(id, data); err != nil {
		metrics.BlobUploads.WithLabelValues("error").Inc()
		return nil, err
	}

	info := &store.BlobInfo{ID: id, Mime: mime, Width: width, Height: height}
	if err := s.meta.InsertBlob(info); err != nil {
		metrics.BlobUploads.WithLabelValues("error").Inc()
		return nil, err
	}

	s.log.Info("stored blob",
		zap.String("blob_id", id),
		zap.String("mime", mime),
		zap.Int("bytes", len(data)))
	metrics.BlobUploads.WithLabelValues("stored").Inc()
	return info, nil
}

// probeImage decodes just the header to learn format and dimensions.
func (s *Store) probeImage(data []byte) (width, height int, mime string, err error) {
	s.probe <- struct{}{}
	defer func() { <-s.probe }()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", ErrUnsupportedType
	}
	mime, ok := mimeByFormat[format]
	if !ok {
		return 0, 0, "", ErrUnsupportedType
	}
	return cfg.Width, cfg.Height, mime, nil
}

// writeFile lands the bytes via a temp file so a crash never leaves a
// half-written blob under its final name.
func (s *Store) writeFile(id string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(name, s.Path(id)); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to place blob: %w", err)
	}
	return nil
}

// Open returns the blob's metadata and an open handle on its bytes. The
// caller closes the file.
func (s *Store) Open(id string) (*store.BlobInfo, *os.File, error) {
	info, err := s.meta.GetBlob(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return info, f, nil
}
