package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

const sparkWidth = 120

// topCmd renders live hub stats polled from a running server.
func topCmd() *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Live dashboard of connections, topics and mailbox pressure",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "http://localhost:8080", Usage: "Base URL of the server"},
			&cli.DurationFlag{Name: "interval", Value: time.Second},
		},
		Action: func(c *cli.Context) error {
			return runTop(c.Context, c.String("addr"), c.Duration("interval"))
		},
	}
}

func fetchStats(ctx context.Context, client *http.Client, base string) (model.HubStats, error) {
	var st model.HubStats
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/stats", nil)
	if err != nil {
		return st, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("stats: %s", resp.Status)
	}
	return st, json.NewDecoder(resp.Body).Decode(&st)
}

func summary(st model.HubStats) string {
	return fmt.Sprintf(
		"users        %d\nconnections  %d\ntopics       %d\nqueued       %d\ndropped      %d\nuptime       %s",
		st.TotalUsers, st.TotalConnections, st.TotalTopics, st.QueuedEvents, st.DroppedEvents,
		st.Uptime.Truncate(time.Second),
	)
}

func shardRows(st model.HubStats) [][]string {
	rows := [][]string{{"shard", "users", "connections"}}
	for _, s := range st.Shards {
		rows = append(rows, []string{strconv.Itoa(s.ShardID), strconv.Itoa(s.UserCount), strconv.Itoa(s.Connections)})
	}
	return rows
}

// appendSample appends v and keeps the last limit samples.
func appendSample(series []float64, v float64, limit int) []float64 {
	series = append(series, v)
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	return series
}

func runTop(ctx context.Context, base string, interval time.Duration) error {
	client := &http.Client{Timeout: interval}
	if _, err := fetchStats(ctx, client, base); err != nil {
		return err
	}

	if err := ui.Init(); err != nil {
		return fmt.Errorf("terminal: %w", err)
	}
	defer ui.Close()

	info := widgets.NewParagraph()
	info.Title = " hub "

	conns := widgets.NewSparkline()
	conns.Title = "connections"
	conns.LineColor = ui.ColorGreen
	dropped := widgets.NewSparkline()
	dropped.Title = "dropped / tick"
	dropped.LineColor = ui.ColorRed
	spark := widgets.NewSparklineGroup(conns, dropped)
	spark.Title = " load "

	shards := widgets.NewTable()
	shards.Title = " shards "
	shards.RowSeparator = false

	status := widgets.NewParagraph()
	status.Border = false

	layout := func() {
		w, h := ui.TerminalDimensions()
		info.SetRect(0, 0, 32, 9)
		spark.SetRect(32, 0, w, 9)
		shards.SetRect(0, 9, w, h-1)
		status.SetRect(0, h-1, w, h)
	}
	layout()

	var lastDropped uint64
	refresh := func() {
		st, err := fetchStats(ctx, client, base)
		if err != nil {
			status.Text = "[error: " + err.Error() + "](fg:red)"
		} else {
			info.Text = summary(st)
			conns.Data = appendSample(conns.Data, float64(st.TotalConnections), sparkWidth)
			delta := float64(0)
			if st.DroppedEvents >= lastDropped {
				delta = float64(st.DroppedEvents - lastDropped)
			}
			lastDropped = st.DroppedEvents
			dropped.Data = appendSample(dropped.Data, delta, sparkWidth)
			shards.Rows = shardRows(st)
			status.Text = base + "  updated " + time.Now().Format(time.TimeOnly) + "  (q to quit)"
		}
		ui.Render(info, spark, shards, status)
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				ui.Clear()
				layout()
				ui.Render(info, spark, shards, status)
			}
		case <-ticker.C:
			refresh()
		}
	}
}
