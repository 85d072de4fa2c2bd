package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/toolguard/internal/ledger"
	"github.com/flemzord/toolguard/internal/moderation"
	"github.com/flemzord/toolguard/internal/security"
	"github.com/flemzord/toolguard/internal/tool"
)

// maxClassifyBody caps the POST /v1/classify request body.
const maxClassifyBody = 2 << 20

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Moderation bool   `json:"moderation"`
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime        int64  `json:"uptime_seconds"`
	Moderation    bool   `json:"moderation"`
	Threshold     int    `json:"threshold"`
	MinTextLength int    `json:"min_text_length"`
	Policy        string `json:"policy"`
	Ledger        bool   `json:"ledger"`
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Tool string `json:"tool"`
	Text string `json:"text"`
}

// ClassifyResponse is the response of POST /v1/classify.
type ClassifyResponse struct {
	Outcome   string       `json:"outcome"`
	Score     int          `json:"score"`
	Reasoning string       `json:"reasoning,omitempty"`
	Redact    bool         `json:"redact"`
	Result    *tool.Result `json:"result,omitempty"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:     "ok",
			Moderation: s.monitor.Enabled(),
		})
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:     int64(time.Since(s.startedAt).Seconds()),
			Moderation: s.monitor.Enabled(),
			Ledger:     s.decisions != nil,
		}
		if s.monitor != nil {
			cfg := s.monitor.Config()
			resp.Threshold = cfg.Threshold
			resp.MinTextLength = cfg.MinTextLength
			resp.Policy = string(cfg.Policy)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleClassify scores text without running a tool. Classifier failures
// answer 502 with the fail-closed decision in the body.
func (s *Server) handleClassify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.monitor.Enabled() {
			writeError(w, http.StatusServiceUnavailable, "moderation is disabled")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxClassifyBody))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		if err := security.ValidatePayload(body, maxClassifyBody, 0); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var req ClassifyRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Tool = strings.TrimSpace(req.Tool)
		if req.Tool == "" {
			req.Tool = "adhoc"
		}

		d := s.monitor.Evaluate(r.Context(), req.Tool, req.Text)
		resp := ClassifyResponse{
			Outcome:   string(d.Outcome),
			Score:     d.Score,
			Reasoning: d.Reasoning,
		}
		if red, ok := s.monitor.Redaction(d); ok {
			resp.Redact = true
			resp.Result = &red
		}

		status := http.StatusOK
		if d.Outcome == moderation.OutcomeFailedClosed {
			s.logger.Warn("classify request failed", "tool", req.Tool, "error", d.Err)
			status = http.StatusBadGateway
		}
		writeJSON(w, status, resp)
	}
}

func (s *Server) handleDecisions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.decisions == nil {
			writeError(w, http.StatusNotFound, "decision ledger is disabled")
			return
		}

		limit := ledger.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, ledger.MaxLimit)
		}

		entries, err := s.decisions.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("listing decisions failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list decisions")
			return
		}
		if entries == nil {
			entries = []ledger.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

