package file

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"filegate/pkg/api"
	"filegate/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxUploadBytes caps the whole multipart request.
	DefaultMaxUploadBytes = 500 << 20
	// multipartMemory is how much of a form is kept in memory before
	// the rest spills to a temp file.
	multipartMemory = 32 << 20
)

// Options tunes the HTTP surface.
type Options struct {
	MaxUploadBytes int64
}

type handler struct {
	gw        *Gateway
	maxUpload int64
}

// Handler exposes gw as
//
//	POST   /upload  multipart field "file", optional field "key"
//	GET    /{key}
//	DELETE /{key}
//
// Mount it under a prefix with http.StripPrefix.
func Handler(gw *Gateway, opts Options) http.Handler {
	h := &handler{gw: gw, maxUpload: opts.MaxUploadBytes}
	if h.maxUpload <= 0 {
		h.maxUpload = DefaultMaxUploadBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", h.upload)
	mux.HandleFunc("GET /{key}", h.download)
	mux.HandleFunc("DELETE /{key}", h.remove)
	return mux
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r).With().Str("route", "/file/upload").Logger()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, &log, clientError(OpUpload, "", msgFileTooLarge))
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			writeError(w, &log, clientError(OpUpload, "", msgNoFile))
		default:
			log.Debug().Err(err).Msg("parse multipart form")
			writeError(w, &log, clientError(OpUpload, "", msgBadMultipart))
		}
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := 0
	for _, files := range r.MultipartForm.File {
		parts += len(files)
	}
	if parts > 1 {
		writeError(w, &log, clientError(OpUpload, "", msgTooManyFiles))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, &log, clientError(OpUpload, "", msgNoFile))
		return
	}
	defer file.Close()

	key := header.Filename
	if vals := r.MultipartForm.Value["key"]; len(vals) > 0 && vals[0] != "" {
		key = vals[0]
	}

	log.Info().Str("key", key).Int64("size", header.Size).Msg("uploading file")
	stored, err := h.gw.Upload(r.Context(), Upload{
		Key:         key,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		Size:        header.Size,
	})
	if err != nil {
		writeError(w, &log, err)
		return
	}

	writeJSON(w, http.StatusCreated, api.UploadResponse{Message: "File uploaded", Key: stored})
}

func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	log := requestLogger(r).With().Str("route", "/file/{key}").Str("key", key).Logger()

	obj, body, err := h.gw.Download(r.Context(), key)
	if err != nil {
		writeError(w, &log, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Msg("download stream error")
	}
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	log := requestLogger(r).With().Str("route", "/file/{key}").Str("key", key).Logger()

	if err := h.gw.Delete(r.Context(), key); err != nil {
		writeError(w, &log, err)
		return
	}
	log.Info().Msg("file deleted")
	writeJSON(w, http.StatusOK, api.DeleteResponse{Message: "File deleted", Key: key})
}

func requestLogger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &logger.Log
}

func writeError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		gwErr = classify("", "", err)
	}

	ev := log.Warn()
	if gwErr.Kind == KindServer {
		ev = log.Error()
	}
	ev.Err(gwErr.Err).Str("kind", gwErr.Kind.String()).Str("op", string(gwErr.Op)).Msg(gwErr.Message)

	writeJSON(w, gwErr.Kind.Status(), api.ErrorResponse{Error: gwErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
