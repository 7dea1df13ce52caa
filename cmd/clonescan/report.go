package main

import (
	"fmt"
	"io"

	"github.com/panbanda/omen/pkg/analyzer/clones"
	"github.com/panbanda/omen/pkg/output"
)

// report adapts a clones.Result to output.Renderable, following the
// teacher's duplicatesCmd table-building shape: one row per instance,
// a trailing footer with aggregate counts.
type report struct {
	result *clones.Result
}

func newReport(result *clones.Result) *report {
	return &report{result: result}
}

func (r *report) table() *output.Table {
	headers := []string{"Location", "Type", "Similarity", "Lines", "Group"}
	var rows [][]string

	for _, g := range r.result.Groups {
		for _, inst := range g.Instances {
			rows = append(rows, []string{
				fmt.Sprintf("%s:%d-%d", inst.File, inst.StartLine, inst.EndLine),
				string(g.Type),
				fmt.Sprintf("%.0f%%", inst.Similarity*100),
				fmt.Sprintf("%d", inst.Lines),
				fmt.Sprintf("%d", g.ID),
			})
		}
	}

	s := r.result.Summary
	footer := []string{
		fmt.Sprintf("%d groups", s.TotalGroups),
		fmt.Sprintf("type1=%d type2=%d type3=%d", s.Type1Count, s.Type2Count, s.Type3Count),
		fmt.Sprintf("avg %.0f%%", s.AvgSimilarity*100),
		fmt.Sprintf("%d/%d lines", s.DuplicatedLines, s.TotalLines),
		"",
	}

	return output.NewTable("Code Clones Detected", headers, rows, footer, r.result)
}

func (r *report) RenderText(w io.Writer, colored bool) error {
	if len(r.result.Groups) == 0 {
		fmt.Fprintln(w, "No clones found.")
		return nil
	}
	return r.table().RenderText(w, colored)
}

func (r *report) RenderMarkdown(w io.Writer) error {
	if len(r.result.Groups) == 0 {
		fmt.Fprintln(w, "No clones found.")
		return nil
	}
	return r.table().RenderMarkdown(w)
}

func (r *report) RenderData() any {
	return r.result
}
