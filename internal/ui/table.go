package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/session"
)

// SensorTableView renders a receiver snapshot, one row per sensor.
func SensorTableView(s session.Snapshot) string {
	headers := []string{"Sensor", "α / x", "β / y", "γ / z"}
	rows := [][]string{
		{"Orientation", FormatValue(s.Orientation.Alpha), FormatValue(s.Orientation.Beta), FormatValue(s.Orientation.Gamma)},
		{"Acceleration", FormatValue(s.Acceleration.X), FormatValue(s.Acceleration.Y), FormatValue(s.Acceleration.Z)},
		{"Acceleration incl. gravity", FormatValue(s.AccelerationIncludingGravity.X), FormatValue(s.AccelerationIncludingGravity.Y), FormatValue(s.AccelerationIncludingGravity.Z)},
		{"Rotation rate", FormatValue(s.RotationRate.Alpha), FormatValue(s.RotationRate.Beta), FormatValue(s.RotationRate.Gamma)},
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col > 0:
				return TableNumberStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// FormatValue formats v with three significant digits, switching to
// exponent notation for very large or small magnitudes.
func FormatValue(v float64) string {
	if v == 0 {
		return "0.00"
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	// Round first so the exponent reflects carries like 9.999 -> 10.0.
	e := strconv.FormatFloat(v, 'e', 2, 64)
	idx := strings.IndexByte(e, 'e')
	exp, _ := strconv.Atoi(e[idx+1:])

	if exp < -6 || exp >= 3 {
		return fmt.Sprintf("%se%+d", e[:idx], exp)
	}
	return strconv.FormatFloat(v, 'f', 2-exp, 64)
}

// ChannelInfo is the box a receiver shows while waiting for a sender.
type ChannelInfo struct {
	ID        channel.ID
	ShareLink string
}

func (c ChannelInfo) View() string {
	content := fmt.Sprintf("%s Channel Ready!\n\n%s Channel ID:  %s\n%s Open on the sending device:\n   %s\n\n%s or run: sensorlink send %s",
		IconChannel,
		IconCopy, BoldStyle.Foreground(Primary).Render(c.ID.String()),
		IconQR,
		MutedStyle.Render(c.ShareLink),
		IconSend, c.ID.String(),
	)

	return InfoBoxStyle.Render(content)
}
