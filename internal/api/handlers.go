package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/asmit27rai/cardsight/internal/dataset"
	"github.com/asmit27rai/cardsight/internal/engine"
	"github.com/asmit27rai/cardsight/internal/hashing"
	"github.com/asmit27rai/cardsight/internal/probabilistic"
	"github.com/asmit27rai/cardsight/pkg/estimates"
)

type Handler struct {
	engine *engine.EstimationEngine
	words  []string
}

// NewHandler serves the engine over HTTP. words backs /demo/generate; when
// empty, demo collections are filled with synthetic distinct items.
func NewHandler(estimationEngine *engine.EstimationEngine, words []string) *Handler {
	return &Handler{
		engine: estimationEngine,
		words:  words,
	}
}

func RegisterRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/collections", handler.ListCollections).Methods("GET")
	router.HandleFunc("/collections/{name}/items", handler.IngestItems).Methods("POST")
	router.HandleFunc("/collections/{name}", handler.DropCollection).Methods("DELETE")

	router.HandleFunc("/estimate", handler.Estimate).Methods("GET", "POST")
	router.HandleFunc("/estimate/batch", handler.EstimateBatch).Methods("POST")

	router.HandleFunc("/hashers", handler.ListHashers).Methods("GET")

	router.HandleFunc("/stats", handler.GetStats).Methods("GET")
	router.HandleFunc("/stats/engine", handler.GetEngineStats).Methods("GET")

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.HandleFunc("/metrics", handler.GetMetrics).Methods("GET")

	router.HandleFunc("/demo/generate", handler.GenerateTestData).Methods("POST")
}

func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	collections := h.engine.Collections()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"collections": collections,
		"count":       len(collections),
	})
}

func (h *Handler) IngestItems(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var batch estimates.ItemBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON request", err)
		return
	}

	if err := h.engine.Ingest(name, batch.Items...); err != nil {
		h.writeError(w, statusFor(err), "Ingest failed", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"collection": name,
		"ingested":   len(batch.Items),
	})
}

func (h *Handler) DropCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if !h.engine.Drop(name) {
		h.writeError(w, http.StatusNotFound, "Collection not found", fmt.Errorf("%w: %q", engine.ErrUnknownCollection, name))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	var request *estimates.EstimateRequest

	if r.Method == "POST" {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request == nil {
			h.writeError(w, http.StatusBadRequest, "Invalid JSON request", err)
			return
		}
	} else {
		var err error
		request, err = h.parseQueryParams(r)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid query parameters", err)
			return
		}
	}

	if request.ID == "" {
		request.ID = fmt.Sprintf("estimate_%d", time.Now().UnixNano())
	}

	result, err := h.engine.Execute(request)
	if err != nil {
		h.writeError(w, statusFor(err), "Estimate failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)

	log.Printf("Estimate executed: %s (collection: %s, algorithm: %s, b: %d, time: %v)",
		request.ID, request.Collection, result.Algorithm, result.Exponent, result.ProcessingTime)
}

func (h *Handler) EstimateBatch(w http.ResponseWriter, r *http.Request) {
	var requests []estimates.EstimateRequest

	if err := json.NewDecoder(r.Body).Decode(&requests); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON request", err)
		return
	}

	type batchEntry struct {
		*estimates.EstimateResult
		Error string `json:"error,omitempty"`
	}

	results := make([]batchEntry, len(requests))

	for i := range requests {
		request := &requests[i]
		if request.ID == "" {
			request.ID = fmt.Sprintf("batch_estimate_%d_%d", time.Now().UnixNano(), i)
		}

		result, err := h.engine.Execute(request)
		if err != nil {
			result = &estimates.EstimateResult{
				ID:         request.ID,
				Collection: request.Collection,
				Algorithm:  request.Algorithm,
				Timestamp:  time.Now(),
			}
			results[i] = batchEntry{EstimateResult: result, Error: err.Error()}
			continue
		}
		results[i] = batchEntry{EstimateResult: result}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (h *Handler) ListHashers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"hashers": hashing.Names(),
		"default": h.engine.Config().DefaultHasher,
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.SystemStats())
}

func (h *Handler) GetEngineStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.GetStats())
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"service":   "cardsight",
	}

	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.GetStats()
	collections := h.engine.Collections()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP cardsight_estimates_total Total number of estimate requests\n")
	fmt.Fprintf(w, "# TYPE cardsight_estimates_total counter\n")
	fmt.Fprintf(w, "cardsight_estimates_total{type=\"total\"} %d\n", stats.TotalEstimates)
	fmt.Fprintf(w, "cardsight_estimates_total{type=\"approximate\"} %d\n", stats.ApproxEstimates)
	fmt.Fprintf(w, "cardsight_estimates_total{type=\"failed\"} %d\n", stats.FailedEstimates)

	fmt.Fprintf(w, "# HELP cardsight_estimate_latency_milliseconds Average estimate latency\n")
	fmt.Fprintf(w, "# TYPE cardsight_estimate_latency_milliseconds gauge\n")
	fmt.Fprintf(w, "cardsight_estimate_latency_milliseconds %f\n", float64(stats.AvgLatency.Nanoseconds())/1e6)

	fmt.Fprintf(w, "# HELP cardsight_items_ingested_total Total number of items ingested\n")
	fmt.Fprintf(w, "# TYPE cardsight_items_ingested_total counter\n")
	fmt.Fprintf(w, "cardsight_items_ingested_total %d\n", stats.ItemsIngested)

	fmt.Fprintf(w, "# HELP cardsight_collection_items Items held per collection\n")
	fmt.Fprintf(w, "# TYPE cardsight_collection_items gauge\n")
	for _, c := range collections {
		fmt.Fprintf(w, "cardsight_collection_items{collection=%q} %d\n", c.Name, c.Items)
	}
}

func (h *Handler) GenerateTestData(w http.ResponseWriter, r *http.Request) {
	var config struct {
		Collection string `json:"collection"`
		Count      int    `json:"count"`
		Seed       int64  `json:"seed"`
	}

	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON request", err)
		return
	}

	if config.Count <= 0 {
		config.Count = 1000
	}
	if config.Collection == "" {
		config.Collection = "demo"
	}

	var items []string
	source := "synthetic"
	if len(h.words) > 0 {
		items = dataset.NewSampler(h.words, config.Seed).Sample(config.Count)
		source = "words"
	} else {
		items = dataset.Synthetic(config.Count, config.Collection)
	}

	if err := h.engine.Ingest(config.Collection, items...); err != nil {
		h.writeError(w, statusFor(err), "Test data generation failed", err)
		return
	}

	log.Printf("Generated %d %s items into collection %s", len(items), source, config.Collection)

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"collection": config.Collection,
		"count":      len(items),
		"seed":       config.Seed,
		"source":     source,
	})
}

func (h *Handler) parseQueryParams(r *http.Request) (*estimates.EstimateRequest, error) {
	query := r.URL.Query()

	collection := query.Get("collection")
	if collection == "" {
		return nil, errors.New("collection is required")
	}

	request := &estimates.EstimateRequest{
		ID:         query.Get("id"),
		Collection: collection,
		Algorithm:  estimates.Algorithm(query.Get("algorithm")),
		Hasher:     query.Get("hasher"),
	}

	if bStr := query.Get("b"); bStr != "" {
		b, err := strconv.ParseUint(bStr, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid b %q: %w", bStr, probabilistic.ErrInvalidExponent)
		}
		request.Exponent = uint8(b)
	}

	return request, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrCollectionFull):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, probabilistic.ErrInvalidExponent),
		errors.Is(err, hashing.ErrUnknownHasher),
		errors.Is(err, engine.ErrUnknownAlgorithm),
		errors.Is(err, engine.ErrEmptyCollectionName):
		return http.StatusBadRequest
	case errors.Is(err, probabilistic.ErrHashSpaceSaturated):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		log.Printf("API Error: %s - %v", message, err)
	}

	h.writeJSON(w, status, errorResponse)
}
