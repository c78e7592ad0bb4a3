package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mgalanis/conveyor/internal/modules/validation"
)

// DataHandlers serves per-symbol data lookups: validation reports and
// live news.
type DataHandlers struct {
	reports *validation.ReportRepository
	news    NewsFetcher
	log     zerolog.Logger
}

// NewDataHandlers creates data handlers.
func NewDataHandlers(reports *validation.ReportRepository, news NewsFetcher, log zerolog.Logger) *DataHandlers {
	return &DataHandlers{
		reports: reports,
		news:    news,
		log:     log.With().Str("component", "data_handlers").Logger(),
	}
}

// HandleReports returns the most recent validation reports for a
// symbol, newest first.
// GET /api/reports/{symbol}
func (h *DataHandlers) HandleReports(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	limit := queryInt(r, "limit", 5)

	reports, err := h.reports.RecentForSymbol(symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to load validation reports")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  symbol,
		"reports": reports,
		"count":   len(reports),
	}, h.log)
}

// HandleNews fetches recent news articles for a symbol straight from
// the providers. Nothing is cached; every call hits the live chain.
// GET /api/news/{symbol}
func (h *DataHandlers) HandleNews(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	limit := queryInt(r, "limit", 10)
	if limit > 50 {
		limit = 50
	}

	articles, err := h.news.FetchNews(r.Context(), symbol, limit)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to fetch news")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":   symbol,
		"articles": articles,
		"count":    len(articles),
	}, h.log)
}
