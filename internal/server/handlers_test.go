package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/internal/config"
	"github.com/and161185/gnss-relay/model"
	"github.com/and161185/gnss-relay/storage"
	"github.com/and161185/gnss-relay/storage/inmemory"
	"github.com/and161185/gnss-relay/storage/mocks"
)

const jsonUTF8 = "application/json; charset=utf-8"

var errBroken = errors.New("broken")

func newRouter(t *testing.T) (http.Handler, *inmemory.MemStorage) {
	t.Helper()
	store := inmemory.NewMemStorage(100)
	srv := &Server{Storage: store, Config: &config.ServerConfig{Logger: zap.NewNop().Sugar()}, now: time.Now}
	h, err := srv.Router()
	require.NoError(t, err)
	return h, store
}

func do(h http.Handler, method, target, contentType, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIngestMeasurements(t *testing.T) {
	valid := `[{"svid":5,"constellationType":1,"cn0DbHz":40.5,"codeType":"C"},{"svid":6,"constellationType":6}]`

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantStored  int
	}{
		{"valid", jsonUTF8, valid, http.StatusOK, 2},
		{"plain json content type", "application/json", valid, http.StatusOK, 2},
		{"empty array", jsonUTF8, `[]`, http.StatusOK, 0},
		{"text content type", "text/plain", valid, http.StatusUnsupportedMediaType, 0},
		{"missing content type", "", valid, http.StatusUnsupportedMediaType, 0},
		{"broken json", jsonUTF8, `[{"svid":`, http.StatusBadRequest, 0},
		{"object instead of array", jsonUTF8, `{"svid":5}`, http.StatusBadRequest, 0},
		{"null", jsonUTF8, `null`, http.StatusBadRequest, 0},
		{"wrong field type", jsonUTF8, `[{"svid":"five"}]`, http.StatusBadRequest, 0},
		{"zero svid", jsonUTF8, `[{"svid":0,"constellationType":1}]`, http.StatusBadRequest, 0},
		{"unknown constellation", jsonUTF8, `[{"svid":1,"constellationType":42}]`, http.StatusBadRequest, 0},
		{"negative cn0", jsonUTF8, `[{"svid":1,"cn0DbHz":-1}]`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := newRouter(t)
			rr := do(h, http.MethodPost, "/gnssdata", tt.contentType, tt.body)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			require.Equal(t, tt.wantStored, store.Len())
			if tt.wantStatus == http.StatusOK {
				var resp IngestResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				require.Equal(t, tt.wantStored, resp.Accepted)
			}
		})
	}
}

func TestIngestMeasurements_DuplicateBatch(t *testing.T) {
	h, store := newRouter(t)
	body := `[{"svid":5,"constellationType":1}]`

	rr := do(h, http.MethodPost, "/gnssdata/", jsonUTF8, body, headerBatchID, "batch-1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"accepted":1,"duplicate":false}`, rr.Body.String())

	rr = do(h, http.MethodPost, "/gnssdata", jsonUTF8, body, headerBatchID, "batch-1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"accepted":0,"duplicate":true}`, rr.Body.String())
	require.Equal(t, 1, store.Len())
}

func TestIngestNav(t *testing.T) {
	h, store := newRouter(t)
	body := `{"messageType":257,"messageId":1,"subMessageId":2,"data":[1,-1]}`

	rr := do(h, http.MethodPost, "/gnssnavdata", jsonUTF8, body, headerBatchID, "n-1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"accepted":1,"duplicate":false}`, rr.Body.String())

	rr = do(h, http.MethodPost, "/gnssnavdata", jsonUTF8, body, headerBatchID, "n-1")
	require.JSONEq(t, `{"accepted":0,"duplicate":true}`, rr.Body.String())

	rr = do(h, http.MethodPost, "/gnssnavdata", "text/plain", body)
	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = do(h, http.MethodPost, "/gnssnavdata", jsonUTF8, `{"data":"AQ=="}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	got, err := store.RecentNav(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []int8{1, -1}, got[0].Message.Data)

	rr = do(h, http.MethodGet, "/gnssnavdata?limit=5", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"data":[1,-1]`)
}

func TestQueryEndpoints(t *testing.T) {
	h, _ := newRouter(t)
	rr := do(h, http.MethodGet, "/gnssdata", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	rr = do(h, http.MethodPost, "/gnssdata", jsonUTF8,
		`[{"svid":1,"constellationType":1,"cn0DbHz":40},{"svid":2,"constellationType":1,"cn0DbHz":30},{"svid":3,"constellationType":6,"cn0DbHz":20}]`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(h, http.MethodGet, "/gnssdata?limit=2", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stored []model.StoredMeasurement
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stored))
	require.Len(t, stored, 2)
	require.Equal(t, 2, stored[0].Record.Svid)

	for _, bad := range []string{"0", "-1", "abc"} {
		rr = do(h, http.MethodGet, "/gnssdata?limit="+bad, "", "")
		require.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}

	rr = do(h, http.MethodGet, "/gnssdata/summary", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var sum model.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	require.Equal(t, 3, sum.Records)
	require.Len(t, sum.Constellations, 2)
	require.InDelta(t, 35.0, sum.Constellations[0].MeanCn0DbHz, 1e-9)

	rr = do(h, http.MethodGet, "/gnssdata/export.xlsx", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, contentXLSX, rr.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))

	rr = do(h, http.MethodGet, "/gnssdata/report.pdf", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")))
}

func TestPingAndMetrics(t *testing.T) {
	h, _ := newRouter(t)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/ping", "", "").Code)

	do(h, http.MethodPost, "/gnssdata", jsonUTF8, `[{"svid":1,"constellationType":1}]`)
	rr := do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `gnss_collector_ingest_requests_total{code="200",endpoint="/gnssdata"}`)
}

func newMockRouter(t *testing.T) (http.Handler, *mocks.MockStorage) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	srv := &Server{Storage: st, Config: &config.ServerConfig{}}
	h, err := srv.Router()
	require.NoError(t, err)
	return h, st
}

func TestStorageFailures(t *testing.T) {
	h, st := newMockRouter(t)

	st.EXPECT().SaveMeasurements(gomock.Any(), "b-1", gomock.Len(1)).Return(0, false, errBroken)
	st.EXPECT().SaveNavMessage(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errBroken)
	st.EXPECT().Recent(gomock.Any(), storage.DefaultRecentLimit).Return(nil, errBroken)
	st.EXPECT().Recent(gomock.Any(), storage.MaxRecentLimit).Return(nil, errBroken).Times(3)
	st.EXPECT().RecentNav(gomock.Any(), 5).Return(nil, errBroken)
	st.EXPECT().Ping(gomock.Any()).Return(errBroken)

	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodPost, "/gnssdata", jsonUTF8, `[{"svid":1}]`, headerBatchID, "b-1").Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodPost, "/gnssnavdata", jsonUTF8, `{}`).Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/gnssdata", "", "").Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/gnssdata/summary", "", "").Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/gnssdata/export.xlsx", "", "").Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/gnssdata/report.pdf", "", "").Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/gnssnavdata?limit=5", "", "").Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodGet, "/ping", "", "").Code)
}

func TestIngestMeasurements_PassesBatchToStorage(t *testing.T) {
	h, st := newMockRouter(t)

	want := []model.Measurement{{Svid: 3, ConstellationType: model.ConstellationGalileo, Cn0DbHz: 41}}
	st.EXPECT().SaveMeasurements(gomock.Any(), "b-7", want).Return(1, false, nil)
	st.EXPECT().SaveMeasurements(gomock.Any(), "b-7", want).Return(0, true, nil)

	body := `[{"svid":3,"constellationType":6,"cn0DbHz":41}]`
	rr := do(h, http.MethodPost, "/gnssdata", jsonUTF8, body, headerBatchID, "b-7")
	require.JSONEq(t, `{"accepted":1,"duplicate":false}`, rr.Body.String())
	rr = do(h, http.MethodPost, "/gnssdata", jsonUTF8, body, headerBatchID, "b-7")
	require.JSONEq(t, `{"accepted":0,"duplicate":true}`, rr.Body.String())
}

func TestRejectedUploadsNeverReachStorage(t *testing.T) {
	// no expectations: any storage call fails the test
	h, _ := newMockRouter(t)

	require.Equal(t, http.StatusUnsupportedMediaType, do(h, http.MethodPost, "/gnssdata", "text/plain", `[{"svid":1}]`).Code)
	require.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/gnssdata", jsonUTF8, `[{"svid":0}]`).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/gnssdata", jsonUTF8, `[]`).Code)
	require.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/gnssdata?limit=x", "", "").Code)
}

func TestRouter_InvalidTrustedSubnet(t *testing.T) {
	srv := &Server{Storage: inmemory.NewMemStorage(1), Config: &config.ServerConfig{TrustedSubnet: "nope"}}
	_, err := srv.Router()
	require.Error(t, err)
}

func TestRun_Shutdown(t *testing.T) {
	srv := &Server{Storage: inmemory.NewMemStorage(1), Config: &config.ServerConfig{Addr: "127.0.0.1:0"}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestValidateMeasurement(t *testing.T) {
	require.NoError(t, validateMeasurement(model.Measurement{Svid: 1, ConstellationType: model.ConstellationIRNSS}))
	require.Error(t, validateMeasurement(model.Measurement{Svid: 1, CarrierFrequencyHz: -1}))
}
