package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/sensorlink/internal/session"
)

// SenderSummary describes a finished sender run.
type SenderSummary struct {
	Channel  string
	Duration time.Duration
	Stats    session.Stats
}

func SenderSummaryView(title string, s SenderSummary) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Channel", s.Channel},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
		{"Orientation published", s.Stats.OrientationPublished},
		{"Motion published", s.Stats.MotionPublished},
		{"Motion throttled", s.Stats.MotionThrottled},
		{"Skipped while unpaired", s.Stats.SkippedUnpaired},
	})
	if s.Stats.PublishFailed > 0 {
		t.AppendRow(table.Row{"Publish failures", s.Stats.PublishFailed})
	}

	return t.Render()
}

func RenderSenderSummary(title string, s SenderSummary) {
	fmt.Println(SenderSummaryView(title, s))
}
