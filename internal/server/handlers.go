package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/and161185/gnss-relay/internal/auth"
	"github.com/and161185/gnss-relay/internal/export"
	"github.com/and161185/gnss-relay/internal/metrics"
	"github.com/and161185/gnss-relay/model"
	"github.com/and161185/gnss-relay/storage"
)

const (
	maxBodyBytes  = 32 << 20
	pingTimeout   = 2 * time.Second
	headerBatchID = "X-Batch-ID"
	contentXLSX   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	errNotArray = errors.New("body must be a JSON array of measurements")
	errLimit    = errors.New("limit must be a positive integer")
)

// IngestResponse acknowledges an upload.
type IngestResponse struct {
	Accepted  int  `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// validateMeasurement rejects records no receiver could have produced.
func validateMeasurement(m model.Measurement) error {
	switch {
	case m.Svid <= 0:
		return fmt.Errorf("svid %d out of range", m.Svid)
	case m.ConstellationType < model.ConstellationUnknown || m.ConstellationType > model.ConstellationIRNSS:
		return fmt.Errorf("constellationType %d out of range", m.ConstellationType)
	case m.Cn0DbHz < 0:
		return fmt.Errorf("cn0DbHz %v is negative", m.Cn0DbHz)
	case m.CarrierFrequencyHz < 0:
		return fmt.Errorf("carrierFrequencyHz %v is negative", m.CarrierFrequencyHz)
	}
	return nil
}

func (srv *Server) IngestMeasurementsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code, records := srv.ingestMeasurements(w, r)
	metrics.ObserveIngest("/gnssdata", code, records, time.Since(start))
}

func (srv *Server) ingestMeasurements(w http.ResponseWriter, r *http.Request) (int, int) {
	log := srv.logger()
	if !isJSON(r) {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return http.StatusUnsupportedMediaType, 0
	}

	var batch []model.Measurement
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&batch); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			err = errNotArray
		}
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return http.StatusBadRequest, 0
	}
	if batch == nil {
		http.Error(w, errNotArray.Error(), http.StatusBadRequest)
		return http.StatusBadRequest, 0
	}
	for i, m := range batch {
		if err := validateMeasurement(m); err != nil {
			http.Error(w, fmt.Sprintf("record %d: %v", i, err), http.StatusBadRequest)
			return http.StatusBadRequest, 0
		}
	}
	if len(batch) == 0 {
		_ = writeJSON(w, http.StatusOK, IngestResponse{})
		return http.StatusOK, 0
	}

	batchID := r.Header.Get(headerBatchID)
	accepted, duplicate, err := srv.Storage.SaveMeasurements(r.Context(), batchID, batch)
	if err != nil {
		log.Errorw("failed to store measurements", "batchId", batchID, "records", len(batch), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return http.StatusInternalServerError, 0
	}
	if duplicate {
		log.Infow("duplicate batch acknowledged", "batchId", batchID, "device", auth.DeviceFromContext(r.Context()))
	}

	if err := writeJSON(w, http.StatusOK, IngestResponse{Accepted: accepted, Duplicate: duplicate}); err != nil {
		log.Errorw("failed to write response", "error", err)
	}
	return http.StatusOK, accepted
}

func (srv *Server) IngestNavHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code, records := srv.ingestNav(w, r)
	metrics.ObserveIngest("/gnssnavdata", code, records, time.Since(start))
}

func (srv *Server) ingestNav(w http.ResponseWriter, r *http.Request) (int, int) {
	if !isJSON(r) {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return http.StatusUnsupportedMediaType, 0
	}

	var msg model.NavMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return http.StatusBadRequest, 0
	}

	batchID := r.Header.Get(headerBatchID)
	duplicate, err := srv.Storage.SaveNavMessage(r.Context(), batchID, msg)
	if err != nil {
		srv.logger().Errorw("failed to store navigation message", "batchId", batchID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return http.StatusInternalServerError, 0
	}

	resp := IngestResponse{Accepted: 1, Duplicate: duplicate}
	if duplicate {
		resp.Accepted = 0
	}
	_ = writeJSON(w, http.StatusOK, resp)
	return http.StatusOK, resp.Accepted
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errLimit
	}
	return storage.ClampLimit(n), nil
}

func (srv *Server) recent(w http.ResponseWriter, r *http.Request, def int) ([]model.StoredMeasurement, bool) {
	limit, err := parseLimit(r, def)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	stored, err := srv.Storage.Recent(r.Context(), limit)
	if err != nil {
		srv.logger().Errorw("failed to read measurements", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return stored, true
}

func (srv *Server) ListMeasurementsHandler(w http.ResponseWriter, r *http.Request) {
	stored, ok := srv.recent(w, r, storage.DefaultRecentLimit)
	if !ok {
		return
	}
	if stored == nil {
		stored = []model.StoredMeasurement{}
	}
	_ = writeJSON(w, http.StatusOK, stored)
}

func (srv *Server) ListNavHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, storage.DefaultRecentLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stored, err := srv.Storage.RecentNav(r.Context(), limit)
	if err != nil {
		srv.logger().Errorw("failed to read navigation messages", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if stored == nil {
		stored = []model.StoredNavMessage{}
	}
	_ = writeJSON(w, http.StatusOK, stored)
}

func (srv *Server) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	stored, ok := srv.recent(w, r, storage.MaxRecentLimit)
	if !ok {
		return
	}
	_ = writeJSON(w, http.StatusOK, export.Summarize(stored))
}

func (srv *Server) ExportXLSXHandler(w http.ResponseWriter, r *http.Request) {
	stored, ok := srv.recent(w, r, storage.MaxRecentLimit)
	if !ok {
		return
	}
	body, err := export.BuildMeasurementsXLSX(stored)
	if err != nil {
		srv.logger().Errorw("failed to build spreadsheet", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="gnssdata.xlsx"`)
	_, _ = w.Write(body)
}

func (srv *Server) ReportPDFHandler(w http.ResponseWriter, r *http.Request) {
	stored, ok := srv.recent(w, r, storage.MaxRecentLimit)
	if !ok {
		return
	}
	body, err := export.BuildSummaryPDF(export.Summarize(stored), srv.clock())
	if err != nil {
		srv.logger().Errorw("failed to build report", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="gnssdata.pdf"`)
	_, _ = w.Write(body)
}

func (srv *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := srv.Storage.Ping(ctx); err != nil {
		srv.logger().Errorw("storage ping failed", "error", err)
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (srv *Server) clock() time.Time {
	if srv.now == nil {
		return time.Now()
	}
	return srv.now()
}
