package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/logflow/logview/pkg/characterize"
	"github.com/logflow/logview/pkg/compare"
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/export"
	"github.com/logflow/logview/pkg/plugin"
	"github.com/logflow/logview/pkg/registry"
	"github.com/logflow/logview/pkg/script"
)

// Summary prints the evaluation and query tables of a registry summary.
func Summary(w io.Writer, s registry.Summary) {
	Section(w, "evaluations")
	rows := make([][]string, len(s.Evaluations))
	for i, e := range s.Evaluations {
		rows[i] = []string{e.Source, e.Query, e.Result, strings.Join(e.Labels, ", ")}
	}
	PrintTable(w, []string{"source", "query", "result", "labels"}, rows)

	Section(w, "queries")
	rows = make([][]string, len(s.Queries))
	for i, q := range s.Queries {
		rows[i] = []string{q.Query, q.Predicates}
	}
	PrintTable(w, []string{"query", "predicates"}, rows)
}

// Evaluations prints the case counts of executed queries.
func Evaluations(w io.Writer, evs []script.EvaluationOutcome) {
	Section(w, "result sets")
	rows := make([][]string, len(evs))
	for i, e := range evs {
		rows[i] = []string{
			e.Name,
			e.Source,
			strconv.Itoa(e.Result.CaseCount()),
			strconv.Itoa(e.Complement.CaseCount()),
			e.Query,
		}
	}
	PrintTable(w, []string{"result", "source", "cases", "complement", "predicates"}, rows)
}

// Outcome prints everything a script run produced.
func Outcome(w io.Writer, out *script.Outcome) {
	Evaluations(w, out.Evaluations)
	for _, c := range out.Characterizations {
		Section(w, "characterize "+strings.Join(c.Targets, " vs "))
		PluginProperties(w, c.Properties)
	}
	for _, c := range out.Comparisons {
		Section(w, "compare "+strings.Join(c.Targets, " / "))
		PluginProperties(w, c.Properties)
	}
	for _, c := range out.MultiComparisons {
		Section(w, "compare "+strings.Join(c.Targets, ", "))
		PluginProperties(w, c.Properties)
	}
}

// PluginProperties prints the output of each plugin, sorted by plugin name.
func PluginProperties(w io.Writer, byPlugin map[string]plugin.Properties) {
	for _, name := range sortedKeys(byPlugin) {
		props := byPlugin[name]
		fmt.Fprintln(w, mutedStyle.Render("  "+name))
		if props == nil {
			fmt.Fprintln(w, mutedStyle.Render("    (no properties)"))
			continue
		}
		if rep, ok := props["report"].(*compare.Report); ok {
			IntersectionReport(w, rep)
			continue
		}
		for _, key := range sortedKeys(props) {
			Property(w, key, props[key])
		}
	}
}

// Property prints one property value, as a table when it is tabular.
func Property(w io.Writer, key string, v any) {
	switch x := v.(type) {
	case []characterize.ColumnStats:
		fmt.Fprintln(w, "  "+titleStyle.Render(key))
		rows := make([][]string, len(x))
		for i, s := range x {
			rows[i] = []string{s.Column, strconv.Itoa(s.Count), ff(s.Mean), ff(s.Std), ff(s.Min), ff(s.Max)}
		}
		PrintTable(w, []string{"column", "count", "mean", "std", "min", "max"}, rows)
	case []characterize.ColumnProfile:
		fmt.Fprintln(w, "  "+titleStyle.Render(key))
		rows := make([][]string, len(x))
		for i, p := range x {
			rows[i] = []string{p.Column, strconv.Itoa(p.Nulls), strconv.FormatFloat(p.NullPct, 'f', 1, 64),
				strconv.Itoa(p.Distinct), strconv.FormatFloat(p.Entropy, 'f', 3, 64)}
		}
		PrintTable(w, []string{"column", "nulls", "null %", "distinct", "entropy (bits)"}, rows)
	case []characterize.PropertyShare:
		fmt.Fprintln(w, "  "+titleStyle.Render(key))
		rows := make([][]string, len(x))
		for i, s := range x {
			rows[i] = []string{s.Predicate, strconv.Itoa(s.Cases), strconv.FormatFloat(s.Share, 'f', 3, 64)}
		}
		PrintTable(w, []string{"property", "cases", "share"}, rows)
	case *dataset.Dataset:
		fmt.Fprintln(w, "  "+titleStyle.Render(key))
		if x == nil {
			fmt.Fprintln(w, mutedStyle.Render("    (empty)"))
			return
		}
		Sample(w, x)
	case []compare.Intersection:
		fmt.Fprintln(w, "  "+titleStyle.Render(key))
		rows := make([][]string, len(x))
		for i, in := range x {
			rows[i] = []string{strings.Join(in.Members, " & "), strconv.Itoa(in.Count)}
		}
		PrintTable(w, []string{"exactly in", "cases"}, rows)
	case []compare.QueryDescription:
		fmt.Fprintln(w, "  "+titleStyle.Render(key))
		rows := make([][]string, len(x))
		for i, q := range x {
			rows[i] = []string{q.Query, q.Predicates}
		}
		PrintTable(w, []string{"query name", "predicates"}, rows)
	default:
		Info(w, key, fmt.Sprint(v))
	}
}

// IntersectionReport prints the analysis context, matrix and positioning
// of a two-set comparison.
func IntersectionReport(w io.Writer, rep *compare.Report) {
	ctx := rep.Context
	PrintTable(w, []string{"query", "predicates"}, [][]string{
		{ctx.ToAncestor.Name(), ctx.ToAncestor.String()},
		{ctx.ToQ.Name(), ctx.ToQ.String()},
		{ctx.ToR.Name(), ctx.ToR.String()},
	})
	Info(w, "common ancestor", ctx.CommonAncestor.Name)

	m := rep.Matrix
	PrintTable(w, []string{"", compare.QueryR, "!" + compare.QueryR}, [][]string{
		{compare.QueryQ, strconv.Itoa(m.QAndR), strconv.Itoa(m.QAndNotR)},
		{"!" + compare.QueryQ, strconv.Itoa(m.NotQAndR), strconv.Itoa(m.NotQAndNotR)},
	})
	fmt.Fprintln(w, "  "+rep.Positioning.Text)
}

// Sample prints the case keys and rows of a small dataset.
func Sample(w io.Writer, ds *dataset.Dataset) {
	Info(w, "cases", strings.Join(ds.CaseKeys(), ", "))
	columns := ds.Columns()
	rows := make([][]string, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		ev := ds.Event(i)
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j], _ = ev.Value(col)
		}
		rows[i] = row
	}
	PrintTable(w, columns, rows)
}

// Exports prints the files written by an export.
func Exports(w io.Writer, results []export.Result, elapsed time.Duration) {
	Section(w, "export")
	rows := make([][]string, len(results))
	var total int64
	for i, r := range results {
		rows[i] = []string{r.Name, r.Path, strconv.Itoa(r.Rows), strconv.Itoa(r.Cases), formatBytes(r.Bytes)}
		total += r.Bytes
	}
	PrintTable(w, []string{"result", "file", "rows", "cases", "size"}, rows)
	Success(w, fmt.Sprintf("%d files, %s in %s", len(results), formatBytes(total), formatDuration(elapsed)))
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
