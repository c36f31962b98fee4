// Package handlers provides HTTP request handlers for the homologos API
// endpoints. It includes handlers for substitute resolution, batch
// resolution, registry lookup, pagination, model inspection, health checks,
// and response formatting with proper input validation and error handling.
package handlers

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iamed/homologos-api/data"
	"github.com/iamed/homologos-api/homologation"
	"github.com/iamed/homologos-api/interfaces"
	"github.com/iamed/homologos-api/logging"
	"github.com/iamed/homologos-api/metrics"
	"github.com/iamed/homologos-api/scheduler"
)

// Minimum response size to consider compression (1KB)
const compressionThreshold = 1024

// Paged registry responses use a fixed page size
const pageSize = 10

// RespondWithJSON writes a JSON response with compression optimization
func RespondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err, "payload_type", fmt.Sprintf("%T", payload))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))

	shouldCompress := len(data) >= compressionThreshold &&
		strings.Contains(strings.ToLower(r.Header.Get("Accept-Encoding")), "gzip")

	if shouldCompress {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(code)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gz.Write(data)
		return
	}

	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)

	errorResponse := map[string]string{"error": msg}
	jsonResponse, err := json.Marshal(errorResponse)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Error responses are typically small, so don't compress them
	w.Write(jsonResponse)
}

// parseQueryOptions extracts the limit and filters query parameters shared
// by the resolution endpoints.
func parseQueryOptions(r *http.Request) (int, []homologation.Filter, error) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, nil, fmt.Errorf("invalid limit: %q", raw)
		}
		limit = n
	}

	var filters []homologation.Filter
	if raw := r.URL.Query().Get("filters"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			f, err := homologation.ParseFilter(name)
			if err != nil {
				return 0, nil, err
			}
			filters = append(filters, f)
		}
	}

	return limit, filters, nil
}

// FindHomologos resolves ranked substitute candidates for one CUM
func FindHomologos(dataContainer *data.DataContainer, validator interfaces.DataValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cum, err := validator.ValidateCUM(chi.URLParam(r, "cum"))
		if err != nil {
			metrics.HomologQueriesTotal.WithLabelValues("bad_request").Inc()
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		limit, filters, err := parseQueryOptions(r)
		if err != nil {
			metrics.HomologQueriesTotal.WithLabelValues("bad_request").Inc()
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		resolver := dataContainer.GetResolver()
		if resolver == nil {
			metrics.HomologQueriesTotal.WithLabelValues("unavailable").Inc()
			RespondWithError(w, http.StatusServiceUnavailable, "Model not trained yet")
			return
		}

		candidates, err := resolver.Query(cum, limit, filters)
		if err != nil {
			if errors.Is(err, homologation.ErrUnresolvableQuery) {
				metrics.HomologQueriesTotal.WithLabelValues("unresolvable").Inc()
				RespondWithError(w, http.StatusNotFound, err.Error())
				return
			}
			logging.Error("Substitute query failed", "cum", cum, "error", err)
			metrics.HomologQueriesTotal.WithLabelValues("error").Inc()
			RespondWithError(w, http.StatusInternalServerError, "Query failed")
			return
		}

		metrics.HomologQueriesTotal.WithLabelValues("ok").Inc()
		RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
			"cum":       cum,
			"snapshot":  resolver.Snapshot().ID,
			"homologos": candidates,
		})
	}
}

// BatchRequest is the payload of the batch resolution endpoint.
type BatchRequest struct {
	CUMs    []string `json:"cums"`
	Limit   int      `json:"limit,omitempty"`
	Filters []string `json:"filters,omitempty"`
}

// BatchEntry is the per-CUM outcome within a batch response. Exactly one
// of Homologos and Error is set.
type BatchEntry struct {
	CUM       string                   `json:"cum"`
	Homologos []homologation.Candidate `json:"homologos,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Batch requests are bounded so one caller cannot monopolize the server
const maxBatchSize = 500

// BatchHomologos resolves substitutes for a list of CUMs in one request.
// Unresolvable entries are reported inline, they never fail the batch.
func BatchHomologos(dataContainer *data.DataContainer, validator interfaces.DataValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		if len(req.CUMs) == 0 {
			RespondWithError(w, http.StatusBadRequest, "cums list is empty")
			return
		}
		if len(req.CUMs) > maxBatchSize {
			RespondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("cums list exceeds the maximum of %d entries", maxBatchSize))
			return
		}

		var filters []homologation.Filter
		for _, name := range req.Filters {
			f, err := homologation.ParseFilter(name)
			if err != nil {
				RespondWithError(w, http.StatusBadRequest, err.Error())
				return
			}
			filters = append(filters, f)
		}

		resolver := dataContainer.GetResolver()
		if resolver == nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Model not trained yet")
			return
		}

		results := make([]BatchEntry, 0, len(req.CUMs))
		for _, raw := range req.CUMs {
			cum, err := validator.ValidateCUM(raw)
			if err != nil {
				metrics.HomologQueriesTotal.WithLabelValues("bad_request").Inc()
				results = append(results, BatchEntry{CUM: raw, Error: err.Error()})
				continue
			}

			candidates, err := resolver.Query(cum, req.Limit, filters)
			if err != nil {
				if errors.Is(err, homologation.ErrUnresolvableQuery) {
					metrics.HomologQueriesTotal.WithLabelValues("unresolvable").Inc()
				} else {
					logging.Error("Substitute query failed", "cum", cum, "error", err)
					metrics.HomologQueriesTotal.WithLabelValues("error").Inc()
				}
				results = append(results, BatchEntry{CUM: cum, Error: err.Error()})
				continue
			}

			metrics.HomologQueriesTotal.WithLabelValues("ok").Inc()
			results = append(results, BatchEntry{CUM: cum, Homologos: candidates})
		}

		RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
			"snapshot": resolver.Snapshot().ID,
			"results":  results,
		})
	}
}

// FindMedicamentByCUM returns one registry record
func FindMedicamentByCUM(dataContainer *data.DataContainer, validator interfaces.DataValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cum, err := validator.ValidateCUM(chi.URLParam(r, "cum"))
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		recordsMap := dataContainer.GetRecordsMap()
		rec, exists := recordsMap[cum]
		if !exists {
			RespondWithError(w, http.StatusNotFound, "Medicament not found")
			return
		}

		RespondWithJSON(w, r, http.StatusOK, rec)
	}
}

// ServeAllRecords returns the full registry batch
func ServeAllRecords(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := dataContainer.GetRecords()
		RespondWithJSON(w, r, http.StatusOK, records)
	}
}

// ServePagedRecords returns one page of the registry batch
func ServePagedRecords(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageNumber := chi.URLParam(r, "pageNumber")
		page, err := strconv.Atoi(pageNumber)
		if err != nil || page < 1 {
			logging.Warn("Unusual user input", "pageNumber", pageNumber)
			RespondWithError(w, http.StatusBadRequest, "Invalid page number")
			return
		}

		records := dataContainer.GetRecords()
		start := (page - 1) * pageSize
		end := start + pageSize

		if start >= len(records) {
			RespondWithError(w, http.StatusNotFound, "Page not found")
			return
		}

		if end > len(records) {
			end = len(records)
		}

		totalItems := len(records)
		maxPage := (totalItems + pageSize - 1) / pageSize

		response := map[string]interface{}{
			"data":       records[start:end],
			"page":       page,
			"pageSize":   pageSize,
			"totalItems": totalItems,
			"maxPage":    maxPage,
		}

		RespondWithJSON(w, r, http.StatusOK, response)
	}
}

// ServeVectors returns the assembled feature-vector table of the published
// model, one entry per CUM. The table is what the cluster model was fitted
// on, so it pairs with the snapshot export for external audit.
func ServeVectors(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dataContainer.GetSnapshot() == nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Model not trained yet")
			return
		}
		RespondWithJSON(w, r, http.StatusOK, dataContainer.GetVectors())
	}
}

// ServeModel returns the published snapshot metadata
func ServeModel(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := dataContainer.GetSnapshot()
		if snapshot == nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Model not trained yet")
			return
		}
		RespondWithJSON(w, r, http.StatusOK, snapshot.Metadata())
	}
}

// ExportModel streams the full snapshot for external audit. The payload
// carries every vector and assignment, so it is always gzip-compressed
// when the client accepts it.
func ExportModel(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := dataContainer.GetSnapshot()
		if snapshot == nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Model not trained yet")
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", "snapshot-"+snapshot.ID+".json"))

		if strings.Contains(strings.ToLower(r.Header.Get("Accept-Encoding")), "gzip") {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			defer gz.Close()
			if err := snapshot.ExportJSON(gz); err != nil {
				logging.Error("Failed to export snapshot", "snapshot", snapshot.ID, "error", err)
			}
			return
		}

		if err := snapshot.ExportJSON(w); err != nil {
			logging.Error("Failed to export snapshot", "snapshot", snapshot.ID, "error", err)
		}
	}
}

// ServeReport returns the exclusion report of the last training run
func ServeReport(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := dataContainer.GetReport()
		if report == nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Model not trained yet")
			return
		}
		RespondWithJSON(w, r, http.StatusOK, report)
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string                 `json:"status"`
	LastTrained   string                 `json:"last_trained"`
	ModelAgeHours float64                `json:"model_age_hours"`
	UptimeSeconds float64                `json:"uptime_seconds"`
	Data          map[string]interface{} `json:"data"`
	System        map[string]interface{} `json:"system"`
}

// HealthCheck returns server health information
func HealthCheck(dataContainer *data.DataContainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Get memory statistics
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		uptime := time.Since(dataContainer.GetServerStartTime())

		records := dataContainer.GetRecords()
		snapshot := dataContainer.GetSnapshot()
		lastTrained := dataContainer.GetLastTrained()
		isTraining := dataContainer.IsTraining()
		modelAge := time.Since(lastTrained)

		// Determine health status based on model availability and age
		var healthStatus string
		var httpStatus int
		switch {
		case snapshot == nil:
			healthStatus = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		case modelAge > 24*time.Hour:
			healthStatus = "degraded"
			httpStatus = http.StatusOK
		default:
			healthStatus = "healthy"
			httpStatus = http.StatusOK
		}

		dataStats := map[string]interface{}{
			"api_version":   "1.0",
			"records":       len(records),
			"is_training":   isTraining,
			"next_training": scheduler.CalculateNextUpdate().Format(time.RFC3339),
		}
		if snapshot != nil {
			dataStats["snapshot"] = snapshot.ID
			dataStats["clusters"] = snapshot.K
			dataStats["assigned_records"] = len(snapshot.Assignments)
		}

		response := HealthResponse{
			Status:        healthStatus,
			LastTrained:   lastTrained.Format(time.RFC3339),
			ModelAgeHours: modelAge.Hours(),
			UptimeSeconds: uptime.Seconds(),
			Data:          dataStats,
			System: map[string]interface{}{
				"goroutines": runtime.NumGoroutine(),
				"memory": map[string]interface{}{
					"alloc_mb":       int(m.Alloc / 1024 / 1024),
					"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
					"sys_mb":         int(m.Sys / 1024 / 1024),
					"num_gc":         m.NumGC,
				},
			},
		}

		RespondWithJSON(w, r, httpStatus, response)
	}
}
