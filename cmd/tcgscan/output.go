package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/LdDl/tcg-scanner/scanner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var trackHeaders = []string{"Track", "State", "Card", "Name", "Distance", "Rotated", "Box"}

var trackAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

func trackRow(trk scanner.TrackResult) []string {
	row := []string{
		strconv.FormatInt(trk.ID, 10),
		trk.State,
		"-",
		"-",
		"-",
		"-",
		fmt.Sprintf("%.0f,%.0f %.0fx%.0f", trk.Box.X, trk.Box.Y, trk.Box.Width, trk.Box.Height),
	}
	if trk.Match != nil {
		row[2] = trk.Match.ID
		row[3] = trk.Match.Description
		row[4] = strconv.Itoa(trk.Match.Distance)
		row[5] = yesNo(trk.Match.Rotated)
	}
	return row
}

func renderTracks(tracks []scanner.TrackResult) string {
	rows := make([][]string, 0, len(tracks))
	for _, trk := range tracks {
		rows = append(rows, trackRow(trk))
	}
	return renderTable(trackHeaders, rows, trackAligns)
}

// tableSink prints tracks identified in the frame. Frames without new identifications are skipped
type tableSink struct {
	out io.Writer
}

func (s *tableSink) Publish(ctx context.Context, result *scanner.FrameResult) error {
	if len(result.Identified) == 0 {
		return nil
	}
	tracks := make([]scanner.TrackResult, 0, len(result.Identified))
	for _, id := range result.Identified {
		if trk, ok := result.Track(id); ok {
			tracks = append(tracks, trk)
		}
	}
	_, err := fmt.Fprintf(s.out, "Frame %d (%s)\n%s\n", result.Seq, result.Frame, renderTracks(tracks))
	return err
}

func (s *tableSink) Close() error {
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
