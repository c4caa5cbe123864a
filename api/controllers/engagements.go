package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/engagement-dashboard/api/responses"
	"github.com/angelmondragon/engagement-dashboard/api/validators"
	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
)

const (
	uploadField     = "csvFile"
	maxUploadMemory = 8 << 20
	exportFilename  = "engagement_data.csv"
)

// EngagementService is the backend surface the HTTP layer drives.
type EngagementService interface {
	List(ctx context.Context, c engagements.Criteria) (*engagements.ListResult, error)
	Upload(ctx context.Context, filename string, r io.Reader) (*engagements.UploadResult, error)
	ClearUploaded(ctx context.Context) engagements.ClearResult
	Overview() engagements.OverviewSummary
	Segments(ctx context.Context, q engagements.SegmentQuery) (*engagements.SegmentReport, error)
	Export(ctx context.Context, c engagements.Criteria) ([]byte, error)
	DrillDown(ctx context.Context, id int64) (*engagements.DrillDown, error)
}

// ListEngagements filters the active working set. Malformed filters are ignored.
func ListEngagements(svc EngagementService, defaultLimit int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria := engagements.ParseCriteriaWithDefault(r.URL.Query(), defaultLimit)

		result, err := svc.List(r.Context(), criteria)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

// UploadEngagements replaces the uploaded working set with the multipart csvFile.
func UploadEngagements(svc EngagementService, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(min(maxBytes, maxUploadMemory)); err != nil {
			responses.WriteError(r.Context(), logg, w, multipartError(err, maxBytes))
			return
		}
		defer func() {
			_ = r.MultipartForm.RemoveAll()
		}()

		file, header, err := r.FormFile(uploadField)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "No file uploaded").WithDetails(map[string]any{"field": uploadField}))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid upload"))
			return
		}
		defer file.Close()

		filename := validators.SanitizeFilename(header.Filename)
		if !isCSV(filename, header.Header.Get("Content-Type")) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Only CSV files are allowed").WithDetails(map[string]any{"filename": filename}))
			return
		}

		result, err := svc.Upload(r.Context(), filename, file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

func ClearUploaded(svc EngagementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteJSON(w, http.StatusOK, svc.ClearUploaded(r.Context()))
	}
}

func DrillDown(svc EngagementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.DrillDown(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, result)
	}
}

// ExportCSV streams the filtered working set. Without a limit the whole set is exported.
func ExportCSV(svc EngagementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria := engagements.ParseCriteriaWithDefault(r.URL.Query(), 0)

		body, err := svc.Export(r.Context(), criteria)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCSV(w, exportFilename, body)
	}
}

func multipartError(err error, maxBytes int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return pkgerrors.Wrap(pkgerrors.CodePayloadTooBig, err, "File too large").WithDetails(map[string]any{"maxBytes": maxBytes})
	}
	if errors.Is(err, http.ErrNotMultipart) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "No file uploaded").WithDetails(map[string]any{"field": uploadField})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
}

func isCSV(filename, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/csv") || strings.HasPrefix(ct, "application/vnd.ms-excel")
}
