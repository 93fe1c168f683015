package httpserver

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

var (
	errEmptyUpload       = errors.New("upload is empty")
	errUnsupportedUpload = errors.New("unsupported content type")
	errMissingFile       = errors.New("no file provided")
)

func (s *Server) handleImportMovies(w http.ResponseWriter, r *http.Request) {
	text, err := s.readCSVBody(w, r)
	if err != nil {
		s.respondUploadError(w, err)
		return
	}

	sum, err := s.svc.ImportMovies(r.Context(), text)
	if err != nil {
		s.respondServiceError(w, err, "import movies")
		return
	}
	s.respondJSON(w, http.StatusOK, summaryResponse{Summary: sum, Message: sum.Message()})
}

func (s *Server) handleImportRatings(w http.ResponseWriter, r *http.Request) {
	raterID := strings.TrimSpace(r.Header.Get("X-Rater-Id"))
	if raterID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	text, err := s.readCSVBody(w, r)
	if err != nil {
		s.respondUploadError(w, err)
		return
	}

	sum, err := s.svc.ImportRatings(r.Context(), raterID, text)
	if err != nil {
		s.respondServiceError(w, err, "import ratings")
		return
	}
	s.respondJSON(w, http.StatusOK, summaryResponse{Summary: sum, Message: sum.Message()})
}

// readCSVBody accepts either a raw CSV body or a multipart form with a "file"
// part, capped at the configured import size.
func (s *Server) readCSVBody(w http.ResponseWriter, r *http.Request) (string, error) {
	maxSize := s.cfg.ImportMaxBytes
	if maxSize <= 0 {
		maxSize = maxRequestBody
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	defer r.Body.Close()

	mediaType := "text/csv"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return "", errUnsupportedUpload
		}
		mediaType = parsed
	}

	var src io.Reader
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return "", err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", errMissingFile
		}
		defer file.Close()
		src = file
	case "text/csv", "text/plain", "application/csv", "application/octet-stream":
		src = r.Body
	default:
		return "", errUnsupportedUpload
	}

	payload, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(payload)) == "" {
		return "", errEmptyUpload
	}
	return string(payload), nil
}

func (s *Server) respondUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload exceeds the size limit")
	case errors.Is(err, errUnsupportedUpload):
		s.respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Send text/csv or a multipart form with a file field")
	case errors.Is(err, errEmptyUpload):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Upload is empty")
	case errors.Is(err, errMissingFile):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "No file provided")
	default:
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unable to read upload")
	}
}
