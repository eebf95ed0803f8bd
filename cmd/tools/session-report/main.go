// Command session-report renders an HTML report over the recognition
// session event log: per-marker detection and tap counts plus a timeline
// of everything a session emitted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/markerlens/markerlens/internal/events"
	"github.com/markerlens/markerlens/internal/storage/sqlite"
)

func main() {
	dbPath := flag.String("db", "markerlens.db", "path to the event log database")
	outPath := flag.String("out", "session-report.html", "output HTML file")
	sessionID := flag.String("session", "", "restrict to one session id (default: all sessions)")
	flag.Parse()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer store.Close()

	page := components.NewPage()
	page.SetPageTitle("MarkerLens Session Report")

	detections, err := store.CountEventsByMarker(string(events.ImageDetected))
	if err != nil {
		log.Fatalf("detection counts: %v", err)
	}
	taps, err := store.CountEventsByMarker(string(events.ImageTapped))
	if err != nil {
		log.Fatalf("tap counts: %v", err)
	}
	page.AddCharts(countChart("Detections per marker", detections))
	page.AddCharts(countChart("Taps per marker", taps))

	evs, err := store.ListEvents(*sessionID)
	if err != nil {
		log.Fatalf("list events: %v", err)
	}
	page.AddCharts(timelineChart(evs))

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create %s: %v", *outPath, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render report: %v", err)
	}
	fmt.Printf("wrote %s (%d events)\n", *outPath, len(evs))
}

func countChart(title string, counts []sqlite.EventCount) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	names := make([]string, 0, len(counts))
	data := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.Marker)
		data = append(data, opts.BarData{Value: c.Count})
	}
	bar.SetXAxis(names)
	bar.AddSeries("events", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

// timelineChart plots cumulative event count over time, one series per
// event type.
func timelineChart(evs []sqlite.SessionEvent) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Event timeline", Subtitle: fmt.Sprintf("%d events", len(evs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	byType := map[string][]opts.LineData{}
	var labels []string
	running := map[string]int{}
	for _, ev := range evs {
		running[ev.EventType]++
		labels = append(labels, time.Unix(0, ev.TSUnixNanos).Format("15:04:05.000"))
		for t := range running {
			byType[t] = append(byType[t], opts.LineData{Value: running[t]})
		}
		// Types seen for the first time backfill zeros for earlier points.
		if got := len(byType[ev.EventType]); got < len(labels) {
			pad := make([]opts.LineData, len(labels)-got)
			for i := range pad {
				pad[i] = opts.LineData{Value: 0}
			}
			byType[ev.EventType] = append(pad, byType[ev.EventType]...)
		}
	}

	line.SetXAxis(labels)
	for t, series := range byType {
		line.AddSeries(t, series)
	}
	return line
}
