package plot

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/metric"
	"github.com/raykavin/signalsense/pkg/upstream"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("failed to write response")
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// handleIndex renders the page shell
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	view := s.board.Snapshot()

	w.Header().Set("Content-Type", "text/html")
	err := s.indexHTML.Execute(w, map[string]any{
		"title":    s.title,
		"ranges":   view.Ranges,
		"glossary": view.Glossary,
		"emas":     core.EMAKeys,
	})
	if err != nil {
		s.log.WithError(err).Error("template execution failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	if _, err := fmt.Fprint(w, s.scriptContent); err != nil {
		s.log.WithError(err).Error("failed to write dashboard script")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"clients":  s.hub.Clients(),
		"surfaces": s.factory.Live(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.board.Snapshot())
}

// handleSignal runs a prediction. Failures are part of the returned view;
// the status code only classifies them.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	status := http.StatusOK
	if err := s.board.Submit(ctx, req.Symbol); err != nil {
		switch upstream.KindOf(err) {
		case upstream.KindValidation:
			status = http.StatusBadRequest
		case upstream.KindNotFound:
			status = http.StatusNotFound
		default:
			status = http.StatusBadGateway
		}
	}

	s.writeJSON(w, status, s.board.Snapshot())
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Range core.Range `json:"range"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.board.SelectRange(ctx, req.Range); err != nil {
		if errors.Is(err, core.ErrInvalidRange) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleToggles(w http.ResponseWriter, r *http.Request) {
	var toggles core.Toggles
	if !s.decode(w, r, &toggles) {
		return
	}

	s.board.SetToggles(toggles)
	s.writeJSON(w, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DarkMode bool `json:"darkMode"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	s.board.SetDarkMode(req.DarkMode)
	s.writeJSON(w, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.board.Reset()
	s.writeJSON(w, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.board.Snapshot().History)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	s.board.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, metric.Summarize(s.board.History()))
}

// handleHistoryCSV exports the prediction history
func (s *Server) handleHistoryCSV(w http.ResponseWriter, _ *http.Request) {
	entries := s.board.History()

	buffer := bytes.NewBuffer(nil)
	csvWriter := csv.NewWriter(buffer)

	if err := csvWriter.Write([]string{"at", "ticker", "signal", "confidence", "tone", "explanation"}); err != nil {
		s.log.WithError(err).Error("failed writing CSV header")
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	for _, e := range entries {
		row := []string{
			e.At.UTC().Format(time.RFC3339),
			e.Ticker,
			string(e.Signal),
			strconv.FormatFloat(e.Confidence, 'f', -1, 64),
			string(e.Signal.Tone(e.Confidence)),
			e.Explanation,
		}
		if err := csvWriter.Write(row); err != nil {
			s.log.WithError(err).Error("failed writing CSV data")
			http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
			return
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		s.log.WithError(err).Error("failed flushing CSV")
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment;filename=predictions.csv")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buffer.Bytes()); err != nil {
		s.log.WithError(err).Error("failed writing CSV response")
	}
}
