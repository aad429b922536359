package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phonedata/phonedata"
	pderrors "github.com/phonedata/phonedata/errors"
)

// maxBatchBody bounds the batch request body.
const maxBatchBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type lookupResponse struct {
	Number string                 `json:"number"`
	Record *phonedata.PhoneRecord `json:"record,omitempty"`
	Error  *errorResponse         `json:"error,omitempty"`
}

type batchRequest struct {
	Numbers []string `json:"numbers"`
}

type batchResponse struct {
	Results []lookupResponse `json:"results"`
}

type statsResponse struct {
	Database      phonedata.Stats `json:"database"`
	Reloads       uint64          `json:"reloads"`
	UptimeSeconds float64         `json:"uptime_seconds"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	App     string `json:"app"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "number")
	db := s.db.Load()

	number, err := normalizeNumber(raw)
	if err == nil {
		var rec phonedata.PhoneRecord
		rec, err = db.Find(number)
		if err == nil {
			writeJSON(w, http.StatusOK, lookupResponse{Number: number, Record: &rec})
			return
		}
	}

	status, body := s.classify(r, raw, err)
	writeJSON(w, status, lookupResponse{Number: raw, Error: &body})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Code: "bad_request"})
		return
	}
	if len(req.Numbers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "numbers must not be empty", Code: "bad_request"})
		return
	}
	if limit := s.cfg.Batch.MaxNumbers; len(req.Numbers) > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("at most %d numbers per batch, got %d", limit, len(req.Numbers)),
			Code:  "batch_too_large",
		})
		return
	}

	// Normalize first; only well-formed numbers go to the database.
	results := make([]lookupResponse, len(req.Numbers))
	var (
		queries []string
		slots   []int
	)
	for i, raw := range req.Numbers {
		number, err := normalizeNumber(raw)
		if err != nil {
			_, body := s.classify(r, raw, err)
			results[i] = lookupResponse{Number: raw, Error: &body}
			continue
		}
		results[i].Number = number
		queries = append(queries, number)
		slots = append(slots, i)
	}

	for j, res := range s.db.Load().FindBatch(queries) {
		i := slots[j]
		if res.Err != nil {
			_, body := s.classify(r, req.Numbers[i], res.Err)
			results[i].Error = &body
			continue
		}
		rec := res.Record
		results[i].Record = &rec
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Database:      s.db.Load().Stats(),
		Reloads:       s.reloads.Load(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.db.Load().Version(),
		App:     s.cfg.App.Name,
	})
}

// classify maps a lookup error to an HTTP status and response body.
// Caller mistakes are 4xx; database faults are 500 and logged.
func (s *Server) classify(r *http.Request, number string, err error) (int, errorResponse) {
	switch {
	case errors.Is(err, errNormalize):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_number"}
	case errors.Is(err, pderrors.ErrInvalidLength):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_length"}
	case errors.Is(err, pderrors.ErrInvalidFormat):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_format"}
	case errors.Is(err, pderrors.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, pderrors.ErrInvalidCarrierCode):
		s.logger.Errorf("[%s] lookup %q: %v", requestIDFrom(r.Context()), number, err)
		return http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: "invalid_carrier_code"}
	case errors.Is(err, pderrors.ErrCorruptDatabase):
		s.logger.Errorf("[%s] lookup %q: %v", requestIDFrom(r.Context()), number, err)
		return http.StatusInternalServerError, errorResponse{Error: err.Error(), Code: "corrupt_database"}
	default:
		s.logger.Errorf("[%s] lookup %q: %v", requestIDFrom(r.Context()), number, err)
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
