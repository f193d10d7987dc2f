package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobayes/adapters/store"
	"gobayes/app"
	"gobayes/domain/core"
	"gobayes/internal/inference"
	"gobayes/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := store.OpenMigrated(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pool := worker.NewPool(2, inference.NewEngine(), worker.ClientConfig{BatchSize: 100}, nil)
	t.Cleanup(pool.Close)
	return NewRouter(app.NewFitService(pool, store.NewFitRepository(db), nil), nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func createFit(t *testing.T, h http.Handler, body string) fitResponse {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/fits", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp fitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateFit_DataShapes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		body string
		dims int
	}{
		{"binomial", `{"modelType":"beta-binomial","data":{"successes":30,"trials":100}}`, 1},
		{"bare array", `{"modelType":"normal-mixture","data":[1,1.2,0.9,5,5.1,4.8],"config":{"numComponents":2}}`, 1},
		{"values object", `{"modelType":"normal-mixture","data":{"values":[1,2,3,4]}}`, 1},
		{"ziln", `{"modelType":"zero-inflated-lognormal","data":[0,0,1.5,2.5,3,0,4.2,1.1],"options":{"seed":3}}`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := createFit(t, router, tt.body)
			assert.False(t, core.ID(resp.ID).IsEmpty())
			assert.Len(t, resp.Summary.Mean, tt.dims)
			assert.Nil(t, resp.Posterior)
		})
	}
}

func TestCreateFit_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed", `{"modelType":`, http.StatusBadRequest, "INVALID_DATA"},
		{"missing model", `{"data":[1,2]}`, http.StatusBadRequest, "INVALID_DATA"},
		{"unknown model", `{"modelType":"poisson","data":[1,2]}`, http.StatusBadRequest, "UNKNOWN_MODEL_TYPE"},
		{"invalid counts", `{"modelType":"beta-binomial","data":{"successes":5,"trials":2}}`, http.StatusBadRequest, "INVALID_DATA"},
		{"wrong shape", `{"modelType":"beta-binomial","data":[1,2,3]}`, http.StatusBadRequest, "INVALID_DATA"},
		{"overflowing mean", `{"modelType":"zero-inflated-lognormal","data":[0,1e-300,1e300,5]}`, http.StatusBadRequest, "INVALID_DATA"},
		{"bad data token", `{"modelType":"beta-binomial","data":"abc"}`, http.StatusBadRequest, "INVALID_DATA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/fits", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestGetFit_IncludesPosterior(t *testing.T) {
	router := newTestRouter(t)
	created := createFit(t, router, `{"modelType":"beta-binomial","data":{"successes":3,"trials":10}}`)

	w := do(t, router, http.MethodGet, "/api/v1/fits/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got fitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Posterior)
	assert.Equal(t, inference.KindBeta, got.Posterior.Kind)
	assert.Equal(t, created.Summary.Mean, got.Summary.Mean)
	assert.False(t, got.DataHash.IsEmpty())

	p, err := inference.DecodePosterior(*got.Posterior)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/12.0, p.Mean()[0], 1e-12)
}

func TestGetFit_NotFoundAndBadID(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/api/v1/fits/"+core.NewFitID().String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Error.Code)

	w = do(t, router, http.MethodGet, "/api/v1/fits/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFits(t *testing.T) {
	router := newTestRouter(t)
	createFit(t, router, `{"modelType":"beta-binomial","data":{"successes":1,"trials":2}}`)
	createFit(t, router, `{"modelType":"normal-mixture","data":[1,2,3]}`)

	var body struct {
		Fits []fitResponse `json:"fits"`
	}
	w := do(t, router, http.MethodGet, "/api/v1/fits?modelType=beta-binomial", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Fits, 1)
	assert.Equal(t, "beta-binomial", body.Fits[0].ModelType.String())

	w = do(t, router, http.MethodGet, "/api/v1/fits?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSampleFit(t *testing.T) {
	router := newTestRouter(t)
	created := createFit(t, router, `{"modelType":"beta-binomial","data":{"successes":30,"trials":100}}`)
	path := "/api/v1/fits/" + created.ID.String() + "/samples"

	var a, b struct {
		Samples [][]float64 `json:"samples"`
	}
	w := do(t, router, http.MethodPost, path, `{"count":250,"seed":11}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	w = do(t, router, http.MethodPost, path, `{"count":250,"seed":11}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))

	require.Len(t, a.Samples, 250)
	assert.Equal(t, a.Samples, b.Samples)
	for _, s := range a.Samples {
		require.Len(t, s, 1)
		assert.True(t, s[0] > 0 && s[0] < 1)
	}

	for _, body := range []string{`{"count":0}`, `{"count":100001}`, `{}`} {
		w = do(t, router, http.MethodPost, path, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "INVALID_DATA", decodeError(t, w).Error.Code)
	}

	w = do(t, router, http.MethodPost, "/api/v1/fits/"+core.NewFitID().String()+"/samples", `{"count":5}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReport(t *testing.T) {
	router := newTestRouter(t)
	created := createFit(t, router, `{"modelType":"normal-mixture","data":[1,1.1,0.9,6,6.2,5.8],"config":{"numComponents":2}}`)
	base := "/api/v1/fits/" + created.ID.String() + "/report"

	w := do(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<table>")

	w = do(t, router, http.MethodGet, base+"?format=markdown", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("# ")))
	assert.Contains(t, w.Body.String(), "Components")

	w = do(t, router, http.MethodGet, base+"?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpsRouter(t *testing.T) {
	ops := NewOpsRouter()

	w := do(t, ops, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = do(t, ops, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
