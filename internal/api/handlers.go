package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/report"
	"github.com/netcheck/linkwatch/internal/session"
	"github.com/netcheck/linkwatch/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultRunsLimit is used when /api/runs is called without a limit
const DefaultRunsLimit = 20

// Handler handles API requests.
type Handler struct {
	runs      RunSource
	store     storage.Store
	imageName string
	version   string
	started   time.Time
}

// NewHandler creates a new API handler.
func NewHandler(runs RunSource, store storage.Store, imageName, version string) *Handler {
	return &Handler{
		runs:      runs,
		store:     store,
		imageName: imageName,
		version:   version,
		started:   time.Now(),
	}
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if snap, ok := h.runs.Latest(); ok {
		resp["lastRun"] = snap.Run.ID
		resp["lastRunAgo"] = humanize.Time(snap.Run.FinishedAt)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleLatestRun returns the run behind the published snapshot.
func (h *Handler) HandleLatestRun(c echo.Context) error {
	snap, err := h.latest()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run":         snap.Run,
		"finishedAgo": humanize.Time(snap.Run.FinishedAt),
		"errorCounts": snap.ErrorCounts(),
	})
}

// HandleRuns returns recent runs, newest first.
func (h *Handler) HandleRuns(c echo.Context) error {
	limit := DefaultRunsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}
	return c.JSON(http.StatusOK, h.runs.Recent(limit))
}

// HandleGetRun returns a single run.
func (h *Handler) HandleGetRun(c echo.Context) error {
	id := c.Param("runId")
	run, ok := h.runs.Get(id)
	if !ok {
		return NewNotFoundError("run", id)
	}
	return c.JSON(http.StatusOK, run)
}

// HandleIntervals returns resolved outages of the latest snapshot.
func (h *Handler) HandleIntervals(c echo.Context) error {
	snap, err := h.latest()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap.Log)
}

// TimelineResponse is the payload of the timeline endpoints
type TimelineResponse struct {
	RunID  string             `json:"runId" msgpack:"runId"`
	Now    time.Time          `json:"now" msgpack:"now"`
	View   string             `json:"view" msgpack:"view"`
	Series []models.DaySeries `json:"series" msgpack:"series"`
}

// HandleTimeline returns the render-ready sample series as JSON.
func (h *Handler) HandleTimeline(c echo.Context) error {
	resp, err := h.timeline(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleTimelineMsgpack returns the sample series in MessagePack format
func (h *Handler) HandleTimelineMsgpack(c echo.Context) error {
	resp, err := h.timeline(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// timeline selects series by ?view=daily|strip and an optional ?day=YYYY-MM-DD.
func (h *Handler) timeline(c echo.Context) (*TimelineResponse, error) {
	snap, err := h.latest()
	if err != nil {
		return nil, err
	}

	view := strings.ToLower(c.QueryParam("view"))
	if view == "" {
		view = "daily"
	}

	resp := &TimelineResponse{RunID: snap.Run.ID, Now: snap.Now, View: view}
	switch view {
	case "daily":
		resp.Series = snap.Days
		if day := c.QueryParam("day"); day != "" {
			resp.Series = nil
			for _, d := range snap.Days {
				if d.Day.Format("2006-01-02") == day {
					resp.Series = append(resp.Series, d)
				}
			}
			if len(resp.Series) == 0 {
				return nil, NewNotFoundError("day", day)
			}
		}
	case "strip":
		if snap.Range != nil {
			resp.Series = []models.DaySeries{*snap.Range}
		}
	default:
		return nil, NewBadRequestError("view must be daily or strip", nil)
	}
	if resp.Series == nil {
		resp.Series = []models.DaySeries{}
	}
	return resp, nil
}

// HandleSummary returns per-day availability.
func (h *Handler) HandleSummary(c echo.Context) error {
	snap, err := h.latest()
	if err != nil {
		return err
	}
	days := snap.Summary
	if days == nil {
		days = []models.DaySummary{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"runId": snap.Run.ID,
		"days":  days,
		"total": report.Totals(days),
	})
}

// HandleImage serves the rendered chart. The ETag is the content digest.
func (h *Handler) HandleImage(c echo.Context) error {
	rc, info, err := h.store.Open(h.imageName)
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("image", h.imageName)
	}
	if err != nil {
		return NewInternalError("failed to open image", err)
	}
	defer rc.Close()

	etag := `"` + info.Digest + `"`
	res := c.Response()
	res.Header().Set("ETag", etag)
	res.Header().Set(echo.HeaderLastModified, info.UpdatedAt.UTC().Format(http.TimeFormat))
	res.Header().Set("Cache-Control", "no-cache")
	if match := c.Request().Header.Get("If-None-Match"); match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(info.Size, 10))
	return c.Stream(http.StatusOK, "image/png", rc)
}

func (h *Handler) latest() (*session.Snapshot, error) {
	snap, ok := h.runs.Latest()
	if !ok {
		return nil, NewServiceUnavailableError("no run has completed yet")
	}
	return snap, nil
}
