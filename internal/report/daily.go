// Package report aggregates outages into per-day availability figures using an
// in-memory DuckDB database.
package report

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/netcheck/linkwatch/internal/models"
)

const dayKeyLayout = "2006-01-02"

// Reporter owns the in-memory database used for daily aggregation.
type Reporter struct {
	mu  sync.Mutex
	db  *sql.DB
	loc *time.Location
}

// NewReporter opens an in-memory DuckDB database and creates the segment table.
func NewReporter(loc *time.Location) (*Reporter, error) {
	if loc == nil {
		loc = time.Local
	}

	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=1",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	// Summarize is serialized by mu; one connection is enough.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE segments (
			day      VARCHAR NOT NULL,
			outage   INTEGER NOT NULL,
			start_ms BIGINT  NOT NULL,
			dur_ms   BIGINT  NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Reporter{db: db, loc: loc}, nil
}

// Close releases the database.
func (r *Reporter) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// segment is the part of one outage that falls inside one local day.
type segment struct {
	day    string
	outage int
	start  time.Time
	dur    time.Duration
}

// Summarize returns one summary per day in days, in the same order. Outages are
// clipped to each day's observed window: midnight to the next midnight, or to now
// for the current day. Callers pass the same now the days were built with.
func (r *Reporter) Summarize(ctx context.Context, intervals []models.Interval, days []models.DaySeries, now time.Time) ([]models.DaySummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now = now.In(r.loc)
	windows := make(map[string][2]time.Time, len(days))
	for _, d := range days {
		start := d.Day.In(r.loc)
		end := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, r.loc)
		if end.After(now) {
			end = now
		}
		windows[start.Format(dayKeyLayout)] = [2]time.Time{start, end}
	}

	segments := r.split(intervals, windows)
	if err := r.load(ctx, segments); err != nil {
		return nil, err
	}
	totals, err := r.aggregate(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.DaySummary, 0, len(days))
	for _, d := range days {
		key := d.Day.In(r.loc).Format(dayKeyLayout)
		w := windows[key]
		s := totals[key]
		s.Day = key
		if w[1].After(w[0]) {
			s.Observed = w[1].Sub(w[0])
		}
		s.Availability = 1
		if s.Observed > 0 {
			s.Availability = 1 - float64(s.Downtime)/float64(s.Observed)
			if s.Availability < 0 {
				s.Availability = 0
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// split cuts each interval at local midnights and keeps the parts that fall
// inside a known window.
func (r *Reporter) split(intervals []models.Interval, windows map[string][2]time.Time) []segment {
	var segments []segment
	for i, iv := range intervals {
		cur := iv.Down.In(r.loc)
		end := iv.Up.In(r.loc)
		for cur.Before(end) {
			key := cur.Format(dayKeyLayout)
			next := time.Date(cur.Year(), cur.Month(), cur.Day()+1, 0, 0, 0, 0, r.loc)
			if next.After(end) {
				next = end
			}
			if w, ok := windows[key]; ok {
				from, to := cur, next
				if from.Before(w[0]) {
					from = w[0]
				}
				if to.After(w[1]) {
					to = w[1]
				}
				if to.After(from) {
					segments = append(segments, segment{day: key, outage: i, start: from, dur: to.Sub(from)})
				}
			}
			cur = next
		}
	}
	return segments
}

// load replaces the table contents using the native appender.
func (r *Reporter) load(ctx context.Context, segments []segment) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "DELETE FROM segments"); err != nil {
		return fmt.Errorf("failed to clear segments: %w", err)
	}
	if len(segments) == 0 {
		return nil
	}

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "segments")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, s := range segments {
			if err := appender.AppendRow(s.day, int32(s.outage), s.start.UnixMilli(), s.dur.Milliseconds()); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

func (r *Reporter) aggregate(ctx context.Context) (map[string]models.DaySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day,
		       COUNT(DISTINCT outage),
		       CAST(SUM(dur_ms) AS BIGINT),
		       MAX(dur_ms)
		FROM segments
		GROUP BY day
		ORDER BY day
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate segments: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]models.DaySummary)
	for rows.Next() {
		var (
			day                   string
			count                 int64
			downtimeMs, longestMs int64
		)
		if err := rows.Scan(&day, &count, &downtimeMs, &longestMs); err != nil {
			return nil, err
		}
		totals[day] = models.DaySummary{
			Day:      day,
			Outages:  int(count),
			Downtime: time.Duration(downtimeMs) * time.Millisecond,
			Longest:  time.Duration(longestMs) * time.Millisecond,
		}
	}
	return totals, rows.Err()
}

// Totals folds per-day summaries into one figure covering all of them.
func Totals(days []models.DaySummary) models.DaySummary {
	var total models.DaySummary
	for _, d := range days {
		total.Outages += d.Outages
		total.Downtime += d.Downtime
		total.Observed += d.Observed
		if d.Longest > total.Longest {
			total.Longest = d.Longest
		}
	}
	total.Availability = 1
	if total.Observed > 0 {
		total.Availability = 1 - float64(total.Downtime)/float64(total.Observed)
	}
	if len(days) > 0 {
		total.Day = days[0].Day + ".." + days[len(days)-1].Day
	}
	return total
}
