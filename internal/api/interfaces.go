// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/netcheck/linkwatch/internal/models"
	"github.com/netcheck/linkwatch/internal/session"
)

// RunSource is the read side of the run history.
// This allows mocking in tests
type RunSource interface {
	Latest() (*session.Snapshot, bool)
	Recent(limit int) []models.Run
	Get(id string) (models.Run, bool)
}

// StatusHandler serves run and timeline data
type StatusHandler interface {
	HandleHealth(c echo.Context) error
	HandleLatestRun(c echo.Context) error
	HandleRuns(c echo.Context) error
	HandleGetRun(c echo.Context) error
	HandleIntervals(c echo.Context) error
	HandleTimeline(c echo.Context) error
	HandleTimelineMsgpack(c echo.Context) error
	HandleSummary(c echo.Context) error
	HandleImage(c echo.Context) error
}

// PushHandler serves the websocket that announces finished runs
type PushHandler interface {
	HandleWebSocket(c echo.Context) error
}
