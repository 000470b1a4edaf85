package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/meterscan/internal/detection"
	"github.com/ironsheep/meterscan/internal/ocr"
	"github.com/ironsheep/meterscan/internal/pipeline"
)

// multipartOverhead is allowed on top of the file size for boundaries and
// the other form fields.
const multipartOverhead = 1 << 20

type handler struct {
	pipeline   *pipeline.Pipeline
	uploadDir  string
	maxBytes   int64
	extensions map[string]bool
	log        *logrus.Entry
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"ocr":    ocr.Describe(h.pipeline.Engine()),
	})
}

// process accepts a multipart upload in field "image" and runs one of the
// three modes on it. The stored upload is always removed.
func (h *handler) process(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithField("request_id", middleware.GetReqID(r.Context()))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "no file selected")
		return
	}
	cleanFilename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(cleanFilename))
	if !h.extensions[ext] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file type %q not allowed", ext))
		return
	}
	if header.Size > h.maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	region, manual, err := parseRegion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	full := r.FormValue("mode") == "full"
	if manual && full {
		writeError(w, http.StatusBadRequest, "a region cannot be combined with mode=full")
		return
	}

	path, err := h.store(file, ext)
	if err != nil {
		log.WithError(err).Error("cannot store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("cannot remove upload")
		}
	}()

	p := h.pipeline.WithLanguage(r.FormValue("lang"))
	var res *pipeline.Result
	switch {
	case manual:
		res, err = p.ProcessRegionFile(r.Context(), path, region)
	case full:
		res, err = p.ProcessFullFile(r.Context(), path)
	default:
		res, err = p.ProcessFile(r.Context(), path)
	}
	if err != nil {
		status := statusFor(err)
		log.WithError(err).WithField("status", status).Warn("processing failed")
		writeError(w, status, messageFor(err))
		return
	}

	res.Source = cleanFilename
	log.WithFields(logrus.Fields{
		"file":    cleanFilename,
		"mode":    res.Mode,
		"regions": res.RegionCount,
		"tokens":  len(res.Tokens),
	}).Info("image processed")
	writeJSON(w, http.StatusOK, res)
}

// store copies the upload to a uniquely named file in the upload directory.
func (h *handler) store(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploadDir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// parseRegion reads the optional x, y, width and height fields. They must
// be given together.
func parseRegion(r *http.Request) (detection.Rect, bool, error) {
	names := []string{"x", "y", "width", "height"}
	values := make([]int, len(names))
	given := 0
	for i, name := range names {
		v := strings.TrimSpace(r.FormValue(name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return detection.Rect{}, false, fmt.Errorf("%s must be an integer", name)
		}
		values[i] = n
		given++
	}
	switch given {
	case 0:
		return detection.Rect{}, false, nil
	case len(names):
	default:
		return detection.Rect{}, false, fmt.Errorf("x, y, width and height must be given together")
	}

	rect := detection.Rect{X: values[0], Y: values[1], Width: values[2], Height: values[3]}
	if !rect.Valid() {
		return detection.Rect{}, false, fmt.Errorf("width and height must be positive")
	}
	return rect, true, nil
}

func statusFor(err error) int {
	var inErr *pipeline.InputError
	if errors.As(err, &inErr) {
		switch inErr.Code {
		case pipeline.CodeImageDecodeFailed:
			return http.StatusUnprocessableEntity
		case pipeline.CodeInvalidRegion:
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// messageFor hides internal details from clients.
func messageFor(err error) string {
	var inErr *pipeline.InputError
	if errors.As(err, &inErr) && inErr.Code != pipeline.CodeImageNotFound {
		return inErr.Message
	}
	return "processing failed"
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
