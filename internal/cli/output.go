// Package cli renders query results, build reports and index status for the
// bookrec command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/hyperjump/bookrec/internal/indexer"
	"github.com/hyperjump/bookrec/internal/keyword"
	"github.com/hyperjump/bookrec/internal/models"
	"github.com/hyperjump/bookrec/internal/search"
	"github.com/hyperjump/bookrec/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputTable renders an aligned table.
	OutputTable OutputFormat = "table"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const titleWidth = 60

// ParseOutputFormat parses a --output value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputTable, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, table or json)", s)
	}
}

// StatusView is the status command payload.
type StatusView struct {
	*search.Status
	Backend   string `json:"backend"`
	DiskBytes int64  `json:"disk_usage_bytes"`
}

// WriteQueryResult writes res under heading in the given format.
func WriteQueryResult(w io.Writer, heading string, res *models.QueryResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, struct {
			Query string `json:"query"`
			*models.QueryResult
		}{heading, res})
	case OutputTable:
		fmt.Fprintf(w, "%s (%d)\n", heading, res.Count)
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"#", "ID", "Title", "Score"})
		for i, rec := range res.Recommendations {
			tw.Append([]string{
				strconv.Itoa(i + 1),
				rec.ID,
				utils.Truncate(rec.Title, titleWidth),
				fmt.Sprintf("%.4f", rec.Score),
			})
		}
		tw.Render()
		return nil
	default:
		fmt.Fprintf(w, "%s: %d results\n", heading, res.Count)
		for _, rec := range res.Recommendations {
			fmt.Fprintln(w, "--------------------------------")
			fmt.Fprintf(w, "id: %s\n", rec.ID)
			fmt.Fprintf(w, "title: %s\n", rec.Title)
			fmt.Fprintf(w, "score: %.4f\n", rec.Score)
		}
		fmt.Fprintln(w)
		return nil
	}
}

// WriteKeywordResults writes title lookup hits.
func WriteKeywordResults(w io.Writer, query string, hits []*keyword.KeywordResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]interface{}{"query": query, "count": len(hits), "results": hits})
	case OutputTable:
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"ID", "Title", "Score"})
		for _, h := range hits {
			tw.Append([]string{h.ID, utils.Truncate(h.Title, titleWidth), fmt.Sprintf("%.3f", h.Score)})
		}
		tw.Render()
		return nil
	default:
		if len(hits) == 0 {
			fmt.Fprintf(w, "No books match %q\n", query)
			return nil
		}
		for _, h := range hits {
			fmt.Fprintf(w, "%s\t%s\n", h.ID, h.Title)
		}
		return nil
	}
}

// WriteBuildReport writes the outcome of an index build.
func WriteBuildReport(w io.Writer, report *indexer.BuildReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Built index %s in %s: %d/%d written, %d failed (%d encode), %d pruned\n",
		report.BuildID, report.Duration.Round(time.Millisecond),
		report.Written, report.Total, report.Failed, report.EncodeFailed, report.Pruned)
	if len(report.Errors) == 0 {
		return nil
	}
	if format == OutputTable {
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"ID", "Stage", "Error"})
		for _, e := range report.Errors {
			tw.Append([]string{e.ID, e.Stage, e.Error})
		}
		tw.Render()
		return nil
	}
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %s [%s]: %s\n", e.ID, e.Stage, e.Error)
	}
	return nil
}

// WriteStatus writes index status.
func WriteStatus(w io.Writer, view *StatusView, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, view)
	}
	rows := statusRows(view, time.Now())
	if format == OutputTable {
		tw := tablewriter.NewWriter(w)
		tw.SetHeader([]string{"Field", "Value"})
		tw.AppendBulk(rows)
		tw.Render()
		return nil
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-14s %s\n", r[0]+":", r[1])
	}
	return nil
}

func statusRows(view *StatusView, now time.Time) [][]string {
	rows := [][]string{
		{"index", view.Index},
		{"backend", view.Backend},
		{"disk usage", humanize.Bytes(uint64(view.DiskBytes))},
	}
	if view.Meta == nil {
		return append(rows, []string{"state", "not built"})
	}
	m := view.Meta
	rows = append(rows,
		[]string{"entries", humanize.Comma(int64(m.Count))},
		[]string{"failed", humanize.Comma(int64(m.Failed))},
		[]string{"dimensions", strconv.Itoa(m.Dimensions)},
		[]string{"encoding", fmt.Sprintf("%s v%d", m.Encoding, m.EncodingVersion)},
		[]string{"metric", m.Metric},
		[]string{"build id", m.BuildID},
		[]string{"built", humanize.RelTime(m.BuiltAt, now, "ago", "from now")},
	)
	if view.Loaded {
		rows = append(rows, []string{"cached", fmt.Sprintf("%d entries, %d skipped", view.Entries, view.Skipped)})
	}
	return rows
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
