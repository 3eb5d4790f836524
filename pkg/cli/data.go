package cli

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mchmarny/dietpulse/pkg/data"
	"github.com/mchmarny/dietpulse/pkg/geo"
	"github.com/mchmarny/dietpulse/pkg/table"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryParamInt returns the non-negative int value of key or def.
func queryParamInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Error("error converting query string to int", "value", v, "error", err)
		return def
	}

	if i < 0 {
		return def
	}

	return i
}

func queryParamBool(r *http.Request, key string) bool {
	b, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && b
}

// loadDataset writes the error response itself and returns nil on failure.
func loadDataset(w http.ResponseWriter, r *http.Request, cfg *appConfig) (string, *table.Table) {
	name := r.PathValue("name")
	t, err := data.GetDataset(r.Context(), cfg.DB, name)
	if err != nil {
		if errors.Is(err, data.ErrDatasetNotFound) {
			writeError(w, http.StatusNotFound, "dataset not found: "+name)
			return name, nil
		}
		slog.Error("failed to load dataset", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "error loading dataset")
		return name, nil
	}
	return name, t
}

func stateAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := data.GetDataState(r.Context(), cfg.DB)
		if err != nil {
			slog.Error("failed to get data state", "error", err)
			writeError(w, http.StatusInternalServerError, "error getting data state")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func datasetsAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := data.ListDatasets(r.Context(), cfg.DB)
		if err != nil {
			slog.Error("failed to list datasets", "error", err)
			writeError(w, http.StatusInternalServerError, "error listing datasets")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func correlationsAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, t := loadDataset(w, r, cfg)
		if t == nil {
			return
		}
		res, err := correlationReport(r.Context(), cfg.Config, name, t)
		if err != nil {
			slog.Error("failed to correlate", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "error computing correlations")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func scatterAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, t := loadDataset(w, r, cfg)
		if t == nil {
			return
		}
		res, err := scatterReport(r.Context(), cfg.Config, name, t)
		if err != nil {
			slog.Error("failed to correlate pairs", "name", name, "error", err)
			writeError(w, http.StatusInternalServerError, "error computing scatter")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func countriesAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, t := loadDataset(w, r, cfg)
		if t == nil {
			return
		}
		opts := geo.Options{
			TopN:     queryParamInt(r, "top", 0),
			MinCount: queryParamInt(r, "min", 0),
		}
		writeJSON(w, http.StatusOK, countryReport(cfg.Config, name, t, opts))
	}
}

func regionsAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, t := loadDataset(w, r, cfg)
		if t == nil {
			return
		}
		writeJSON(w, http.StatusOK, regionReport(cfg.Config, name, t))
	}
}

func missingAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, t := loadDataset(w, r, cfg)
		if t == nil {
			return
		}
		writeJSON(w, http.StatusOK, missingReport(name, t, queryParamBool(r, "matrix")))
	}
}
