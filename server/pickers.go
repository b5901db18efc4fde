package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/yorubaocr/pkg/orchestrator"
	"github.com/cyclopcam/yorubaocr/pkg/storage"
	"github.com/cyclopcam/yorubaocr/pkg/wwwx"
)

// The multipart field that carries the image
const imageField = "image"

// Save an image into our blob store, and return its URI
func (s *Server) saveImage(ctx context.Context, ext string, r io.Reader) (string, error) {
	ext = strings.ToLower(ext)
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		ext = ".jpg"
	}
	name := fmt.Sprintf("uploads/%v%v", s.nextUpload.Add(1), ext)
	if err := storage.WriteFile(ctx, s.store, name, r); err != nil {
		return "", fmt.Errorf("Failed to save image: %w", err)
	}
	return storage.StoreURI(name), nil
}

// Save the uploaded image, if there is one.
// Returns orchestrator.ErrUserCancelled if the request has no image, which is how a client
// tells us that the user closed the picker.
func (s *Server) saveUpload(ctx context.Context, r *http.Request) (string, error) {
	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", orchestrator.ErrUserCancelled
	} else if err != nil {
		return "", err
	}
	defer file.Close()
	return s.saveImage(ctx, filepath.Ext(header.Filename), file)
}

// The library picker. The client has already chosen the image (or not).
// Nothing is read from the request until permission has been granted.
func (s *Server) uploadPicker(w http.ResponseWriter, r *http.Request) orchestrator.Picker {
	return orchestrator.PickerFunc(func(ctx context.Context) (string, error) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())
		return s.saveUpload(ctx, r)
	})
}

// The camera picker. The client either sends a photo, or we grab one from the configured snapshot URL.
func (s *Server) cameraPicker(w http.ResponseWriter, r *http.Request) orchestrator.Picker {
	return orchestrator.PickerFunc(func(ctx context.Context) (string, error) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())
		uri, err := s.saveUpload(ctx, r)
		if !errors.Is(err, orchestrator.ErrUserCancelled) || s.config.CameraSnapshotURL == "" {
			return uri, err
		}
		s.Log.Debugf("Fetching camera snapshot from %v", s.config.CameraSnapshotURL)
		img, err := wwwx.Fetch(ctx, s.config.CameraSnapshotURL, s.config.MaxUploadBytes())
		if err != nil {
			return "", fmt.Errorf("Failed to fetch camera snapshot: %w", err)
		}
		return s.saveImage(ctx, ".jpg", bytes.NewReader(img))
	})
}
