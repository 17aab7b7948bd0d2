package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osvaldoandrade/xebench/pkg/domain"
	"github.com/osvaldoandrade/xebench/pkg/persistence"
)

type fakeReports struct {
	reports   map[string]*domain.Report
	lastLimit int
	err       error
}

func (f *fakeReports) Save(ctx context.Context, rep *domain.Report) error {
	f.reports[rep.ID] = rep
	return nil
}

func (f *fakeReports) Get(ctx context.Context, id string) (*domain.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	rep, ok := f.reports[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return rep, nil
}

func (f *fakeReports) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	f.lastLimit = limit
	out := []*domain.Report{}
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, f.err
}

func (f *fakeReports) Shots(ctx context.Context, id string) ([]domain.ShotGroup, error) {
	rep, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rep.ShotGroups, nil
}

func (f *fakeReports) Health(ctx context.Context) error { return f.err }

func newRouter(svc *fakeReports) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", NewHealthController(svc).Handle)
	r.GET("/reports", NewListReportsController(svc).Handle)
	r.GET("/reports/:id", NewGetReportController(svc).Handle)
	r.GET("/reports/:id/shots", NewReportShotsController(svc).Handle)
	return r
}

func do(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReportControllers(t *testing.T) {
	svc := &fakeReports{reports: map[string]*domain.Report{
		"r1": {ID: "r1", Rows: 5, ShotGroups: []domain.ShotGroup{{Runs: 2, ShotsPerJob: 1000, SamplingTimeSec: 12.3, Jobs: 2500}}},
	}}
	r := newRouter(svc)

	w := do(r, "/reports/r1")
	require.Equal(t, http.StatusOK, w.Code)
	var rep domain.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, 5, rep.Rows)

	w = do(r, "/reports/r1/shots")
	require.Equal(t, http.StatusOK, w.Code)
	var shots struct {
		ReportID   string             `json:"reportId"`
		ShotGroups []domain.ShotGroup `json:"shotGroups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shots))
	assert.Equal(t, "r1", shots.ReportID)
	require.Len(t, shots.ShotGroups, 1)
	assert.Equal(t, int64(1000), shots.ShotGroups[0].ShotsPerJob)

	w = do(r, "/reports?limit=7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, svc.lastLimit)
	assert.Contains(t, w.Body.String(), `"count":1`)

	assert.Equal(t, http.StatusOK, do(r, "/healthz").Code)
}

func TestReportControllersErrors(t *testing.T) {
	svc := &fakeReports{reports: map[string]*domain.Report{}}
	r := newRouter(svc)

	assert.Equal(t, http.StatusNotFound, do(r, "/reports/nope").Code)
	assert.Equal(t, http.StatusNotFound, do(r, "/reports/nope/shots").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "/reports?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "/reports?limit=-2").Code)

	svc.err = errors.New("store down")
	assert.Equal(t, http.StatusInternalServerError, do(r, "/reports/x").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, "/healthz").Code)
}
