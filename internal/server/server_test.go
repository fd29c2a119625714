package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"linkwatch/internal/model"
	"linkwatch/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.HybridStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	st, err := store.NewHybridStore(mr.Addr(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return NewServer(st, zap.NewNop()), st
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReport_NotFoundBeforeFirstRun(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(s, "/api/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReport_ReturnsSnapshot(t *testing.T) {
	s, st := newTestServer(t)

	report := model.NewReport()
	report.Rows = []model.LinkObservation{
		{ArticleURL: "https://a.example", TargetLink: model.String("https://brand.com/x"),
			Nofollow: model.Bool(false), AnchorText: model.String("click")},
	}
	require.NoError(t, st.SaveReport(context.Background(), report))

	rec := get(s, "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, report.RunID, got.RunID)
	require.Len(t, got.Rows, 1)
	require.NotNil(t, got.Rows[0].TargetLink)
	assert.Equal(t, "https://brand.com/x", *got.Rows[0].TargetLink)
}

func TestChanges_EmptyFeed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(s, "/api/changes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestChanges_ReturnsFeed(t *testing.T) {
	s, st := newTestServer(t)

	info := store.RunInfo{RunID: uuid.New(), FinishedAt: time.Now(), Rows: 1, Changes: 1}
	changes := []model.Change{{ArticleURL: "https://a.example", Change: "MacPaw link is absent"}}
	require.NoError(t, st.SaveRun(context.Background(), info, changes))

	rec := get(s, "/api/changes")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.Change
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "MacPaw link is absent", got[0].Change)
}

func TestRunInfo(t *testing.T) {
	s, st := newTestServer(t)

	rec := get(s, "/api/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	info := store.RunInfo{RunID: uuid.New(), FinishedAt: time.Now(), Rows: 4}
	require.NoError(t, st.SaveRun(context.Background(), info, nil))

	rec = get(s, "/api/run")
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.RunInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, info.RunID, got.RunID)
	assert.Equal(t, 4, got.Rows)
}
