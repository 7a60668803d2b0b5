package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/medvault/clinical-ingest/internal/core/domain"
	"github.com/medvault/clinical-ingest/internal/core/ports"
	"github.com/medvault/clinical-ingest/internal/observability/metrics"
)

type Router struct {
	ingest      ports.DocumentIngestor
	analysis    ports.AnalysisRequester
	reports     ports.ReportRepository
	extractions ports.ExtractionRepository
	analyses    ports.AnalysisRepository

	options RouterOptions
}

type RouterOptions struct {
	// MaxUploadBytes bounds the multipart request body. Zero keeps the
	// pipeline default.
	MaxUploadBytes int64

	RateLimitRPS   float64
	RateLimitBurst int

	MaxConcurrent int
	QueueTimeout  int // milliseconds

	// Metrics, when set, receives the pipeline-level counters. Request-level
	// metrics come from the HTTPServerMetrics middleware wrapping the handler.
	Metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	ingest ports.DocumentIngestor,
	analysis ports.AnalysisRequester,
	reports ports.ReportRepository,
	extractions ports.ExtractionRepository,
	analyses ports.AnalysisRepository,
	options RouterOptions,
) *Router {
	return &Router{
		ingest:      ingest,
		analysis:    analysis,
		reports:     reports,
		extractions: extractions,
		analyses:    analyses,
		options:     options,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/patients/{patientID}/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/patients/{patientID}/documents", rt.listPatientDocuments)
	mux.HandleFunc("GET /v1/documents/{documentID}", rt.getDocumentByID)
	mux.HandleFunc("GET /v1/patients/{patientID}/extractions", rt.listPatientExtractions)
	mux.HandleFunc("POST /v1/patients/{patientID}/analyses", rt.requestAnalysis)
	mux.HandleFunc("GET /v1/patients/{patientID}/analyses", rt.listPatientAnalyses)

	var handler http.Handler = mux
	handler = trafficControlMiddleware(handler, rt.options)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.options.MaxUploadBytes > 0 {
		// Slack for the multipart framing around the file part.
		r.Body = http.MaxBytesReader(w, r.Body, rt.options.MaxUploadBytes+1<<20)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	skipValidation := false
	if raw := strings.TrimSpace(r.FormValue("skip_validation")); raw != "" {
		skipValidation, err = strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "skip_validation must be a boolean"})
			return
		}
	}

	category := domain.Category(r.FormValue("category"))
	start := time.Now()
	result, err := rt.ingest.Ingest(r.Context(), ports.IngestRequest{
		PatientID:      r.PathValue("patientID"),
		Category:       category,
		Filename:       fileHeader.Filename,
		MimeType:       fileHeader.Header.Get("Content-Type"),
		SizeBytes:      fileHeader.Size,
		Body:           file,
		SkipValidation: skipValidation,
	})
	if err != nil {
		if m := rt.options.Metrics; m != nil {
			m.RecordIngest("api", string(category), "error", fileHeader.Size, time.Since(start))
		}
		writeError(w, err)
		return
	}

	if m := rt.options.Metrics; m != nil {
		m.RecordIngest("api", string(category), string(result.Status), fileHeader.Size, time.Since(start))
		if result.Status == domain.IngestRejected {
			m.RecordRollback("api", string(category))
		}
		if result.Report != nil {
			m.RecordValidationVerdict("api", string(result.Report.ValidationStatus))
		}
	}

	if result.Status == domain.IngestRejected {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":   result.Status,
			"mismatch": result.Mismatch,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": result.Status,
		"report": result.Report,
	})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	report, err := rt.reports.GetByID(r.Context(), r.PathValue("documentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) listPatientDocuments(w http.ResponseWriter, r *http.Request) {
	reports, err := rt.reports.ListByPatient(r.Context(), r.PathValue("patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": reports})
}

func (rt *Router) listPatientExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := rt.extractions.ListByPatient(r.Context(), r.PathValue("patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"extractions": extractions})
}

func (rt *Router) requestAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	kind := domain.AnalysisKind(req.Kind)
	if kind == "" {
		kind = domain.AnalysisRisk
	}

	outcome, err := rt.analysis.RequestAnalysis(r.Context(), r.PathValue("patientID"), kind)
	if err != nil {
		if m := rt.options.Metrics; m != nil {
			m.RecordAnalysisRequest("api", string(kind), "error")
		}
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	outcomeLabel := "created"
	if outcome.Skipped {
		status = http.StatusOK
		outcomeLabel = "skipped"
	}
	if m := rt.options.Metrics; m != nil {
		m.RecordAnalysisRequest("api", string(kind), outcomeLabel)
	}
	writeJSON(w, status, map[string]any{
		"skipped":  outcome.Skipped,
		"analysis": outcome.Analysis,
	})
}

func (rt *Router) listPatientAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := rt.analyses.ListByPatient(r.Context(), r.PathValue("patientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
