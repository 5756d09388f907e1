package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ajeevsan/fileUpload-backend/internal/common"
	"github.com/ajeevsan/fileUpload-backend/internal/logging"
	"github.com/ajeevsan/fileUpload-backend/internal/server/services"
)

type handler struct {
	service       *services.UploadService
	logger        logging.Logger
	maxUploadSize int64
}

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

type verifyRequest struct {
	Passcode string `json:"passcode"`
}

type verifyResponse struct {
	DownloadURL string `json:"downloadUrl"`
	Filename    string `json:"filename"`
}

type healthResponse struct {
	Message string `json:"message"`
}

// handleUpload implements POST /upload: a multipart form with exactly one
// "file" part and a "passcode" field.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				errorResponse{Error: fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadSize)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: common.ErrValidation.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				errorResponse{Error: fmt.Sprintf("file exceeds the %d byte limit", h.maxUploadSize)})
			return
		}
		h.logger.Error(ctx, "Failed to read upload", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Upload failed"})
		return
	}

	passcode := r.FormValue("passcode")

	id, err := h.service.Upload(ctx, data, header.Filename, passcode)
	if err != nil {
		h.writeError(ctx, w, err, "Upload failed")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{DownloadURL: id})
}

// handleVerify implements POST /download/{id}: validates the passcode and
// returns a download URL carrying a short-lived signed token instead of
// the raw passcode.
func (h *handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	passcode, err := readPasscode(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Passcode required"})
		return
	}

	grant, err := h.service.Verify(ctx, id, passcode)
	if err != nil {
		h.writeError(ctx, w, err, "Download failed")
		return
	}

	downloadURL := fmt.Sprintf("%s://%s/file/%s?token=%s",
		requestScheme(r), r.Host, url.PathEscape(id), url.QueryEscape(grant.Token))

	writeJSON(w, http.StatusOK, verifyResponse{DownloadURL: downloadURL, Filename: grant.Filename})
}

// handleFetch implements GET /file/{id}: serves the decrypted file as an
// attachment. It accepts either a verify-issued token or a raw passcode
// query parameter.
func (h *handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var (
		download *services.Download
		err      error
	)

	if token := r.URL.Query().Get("token"); token != "" {
		download, err = h.service.FetchWithToken(ctx, id, token)
	} else {
		download, err = h.service.Fetch(ctx, id, r.URL.Query().Get("passcode"))
	}
	if err != nil {
		h.writeError(ctx, w, err, "File serving failed")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	w.Header().Set("Content-Type", download.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(download.Data)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Message: "Api is fine"})
}

// writeError maps the service error taxonomy onto HTTP statuses. The
// distinctions matter: clients rely on being able to tell apart a wrong
// passcode (400), an unknown id (404) and an expired file (410).
func (h *handler) writeError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "File and passcode required"})
	case errors.Is(err, common.ErrUnsupportedFormat):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrInvalidPasscode):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid passcode"})
	case errors.Is(err, common.ErrInvalidToken):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid download token"})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "File not found"})
	case errors.Is(err, common.ErrExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "File expired"})
	case errors.Is(err, common.ErrBackendUnavailable):
		h.logger.Error(ctx, "Backend unavailable", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Storage temporarily unavailable"})
	default:
		h.logger.Error(ctx, "Unhandled error", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fallback})
	}
}

// readPasscode accepts the passcode from a JSON body or a form field.
func readPasscode(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.Passcode, nil
	}
	return r.FormValue("passcode"), nil
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
