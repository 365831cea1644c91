package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/session"
	"github.com/netcheck/linkwatch/internal/storage"
	"github.com/netcheck/linkwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const testImage = "netcheck_timeline.png"

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, testutil.Denver)
}

func seriesFor(d int) models.DaySeries {
	start := day(d)
	return models.DaySeries{
		Day:   start,
		Label: start.Format("Mon Jan 02"),
		Samples: []models.Sample{
			{At: start, State: models.StateUp},
			{At: start.Add(9 * time.Hour), State: models.StateDown},
			{At: start.Add(9*time.Hour + 5*time.Minute), State: models.StateUp},
			{At: start.Add(24*time.Hour - time.Second), State: models.StateUp},
		},
	}
}

// setupHandler returns a handler with no published run yet.
func setupHandler(t *testing.T) (*Handler, *session.Manager, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	sessions := session.NewManager(10)
	return NewHandler(sessions, store, testImage, "test"), sessions, store
}

// publish records a complete run with two days of data and a stored image.
func publish(t *testing.T, sessions *session.Manager, store *storage.LocalStore) models.Run {
	t.Helper()
	info, err := store.WriteAtomic(testImage, func(w io.Writer) error {
		_, err := w.Write([]byte("\x89PNG fake"))
		return err
	})
	require.NoError(t, err)

	log := models.NewParsedLog()
	log.Intervals = []models.Interval{
		{Down: day(9).Add(9 * time.Hour), Up: day(9).Add(9*time.Hour + 5*time.Minute)},
		{Down: day(10).Add(9 * time.Hour), Up: day(10).Add(9*time.Hour + 5*time.Minute)},
	}
	log.Errors = append(log.Errors, models.ParseError{Line: 7, Content: "LINK DOWN: ???", Reason: "invalid LINK DOWN timestamp"})

	run := sessions.StartRun(models.TriggerStartup)
	run.Status = models.RunStatusComplete
	run.IntervalCount = 2
	run.DayCount = 2
	run.Image = info
	rng := seriesFor(9)
	sessions.Finish(run, &session.Snapshot{
		Log:   log,
		Days:  []models.DaySeries{seriesFor(9), seriesFor(10)},
		Range: &rng,
		Summary: []models.DaySummary{
			{Day: "2024-03-09", Outages: 1, Downtime: 5 * time.Minute, Longest: 5 * time.Minute, Observed: 24 * time.Hour, Availability: 0.99},
			{Day: "2024-03-10", Outages: 1, Downtime: 5 * time.Minute, Longest: 5 * time.Minute, Observed: 24 * time.Hour, Availability: 0.99},
		},
		Now: day(10).Add(23 * time.Hour),
	})
	got, ok := sessions.Get(run.ID)
	require.True(t, ok)
	return got
}

func serve(h *Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, h, NewHub())
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	h, sessions, store := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if assert.NoError(t, h.HandleHealth(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
		assert.NotContains(t, rec.Body.String(), "lastRun")
	}

	run := publish(t, sessions, store)
	rec = serve(h, http.MethodGet, "/api/health", nil)
	assert.Contains(t, rec.Body.String(), run.ID)
}

func TestEndpoints_NoRunYet(t *testing.T) {
	h, _, _ := setupHandler(t)

	for _, path := range []string{"/api/runs/latest", "/api/intervals", "/api/timeline", "/api/summary"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(h, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"SERVICE_UNAVAILABLE"`)
		})
	}

	rec := serve(h, http.MethodGet, "/api/timeline.png", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleRuns(t *testing.T) {
	h, sessions, store := setupHandler(t)
	run := publish(t, sessions, store)

	rec := serve(h, http.MethodGet, "/api/runs/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), run.ID)
	assert.Contains(t, rec.Body.String(), `"errorCounts":[{"reason":"invalid LINK DOWN timestamp","count":1}]`)

	rec = serve(h, http.MethodGet, "/api/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"complete"`)

	rec = serve(h, http.MethodGet, "/api/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/api/runs?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), run.ID)

	rec = serve(h, http.MethodGet, "/api/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestHandleIntervals(t *testing.T) {
	h, sessions, store := setupHandler(t)
	publish(t, sessions, store)

	rec := serve(h, http.MethodGet, "/api/intervals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"intervals":[{"down":"2024-03-09T09:00:00-07:00","up":"2024-03-09T09:05:00-07:00"}`)
}

func TestHandleTimeline(t *testing.T) {
	h, sessions, store := setupHandler(t)
	publish(t, sessions, store)

	rec := serve(h, http.MethodGet, "/api/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view":"daily"`)
	assert.Contains(t, rec.Body.String(), `"label":"Sun Mar 10"`)
	assert.Contains(t, rec.Body.String(), `"state":"Down"`)

	rec = serve(h, http.MethodGet, "/api/timeline?day=2024-03-09", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Sun Mar 10")

	rec = serve(h, http.MethodGet, "/api/timeline?day=2024-01-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodGet, "/api/timeline?view=strip", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view":"strip"`)

	rec = serve(h, http.MethodGet, "/api/timeline?view=weekly", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTimelineMsgpack(t *testing.T) {
	h, sessions, store := setupHandler(t)
	run := publish(t, sessions, store)

	rec := serve(h, http.MethodGet, "/api/timeline/msgpack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var resp TimelineResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, run.ID, resp.RunID)
	require.Len(t, resp.Series, 2)
	assert.Len(t, resp.Series[0].Samples, 4)
	assert.Equal(t, models.StateDown, resp.Series[0].Samples[1].State)
}

func TestHandleSummary(t *testing.T) {
	h, sessions, store := setupHandler(t)
	publish(t, sessions, store)

	rec := serve(h, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"day":"2024-03-09"`)
	assert.Contains(t, body, `"day":"2024-03-09..2024-03-10"`)
	assert.Contains(t, body, `"outages":2`)
}

func TestHandleImage(t *testing.T) {
	h, sessions, store := setupHandler(t)
	run := publish(t, sessions, store)

	rec := serve(h, http.MethodGet, "/api/timeline.png", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "\x89PNG fake", rec.Body.String())
	etag := rec.Header().Get("ETag")
	assert.Equal(t, `"`+run.Image.Digest+`"`, etag)

	rec = serve(h, http.MethodGet, "/api/timeline.png", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}
