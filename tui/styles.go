package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/pageprobe/result"
)

// wrapWidth is where long values wrap in record tables.
const wrapWidth = 80

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	valueStyle  = lipgloss.NewStyle().Width(wrapWidth)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// noneValue fills a cell whose list is empty.
const noneValue = "None"

// RenderRecord renders rec as a bordered table under a title naming
// sourceURL. SEO reports get a three-column layout; everything else is
// Key/Value.
func RenderRecord(rec result.Record, sourceURL string) string {
	if rec == nil {
		return errorStyle.Render("No results available.")
	}

	fields := rec.Fields()
	seo := rec.RecordKind() == result.KindSeo

	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		value := f.Value
		if f.List {
			value = strings.Join(f.Values, ", ")
			if value == "" {
				value = noneValue
			}
		}
		if seo {
			rows = append(rows, []string{f.Label, f.Detail, value})
		} else {
			rows = append(rows, []string{f.Label, value})
		}
	}

	headers := []string{"Key", "Value"}
	if seo {
		headers = []string{"Aspect", "Details/Length", "Status/Value"}
	}
	valueCol := len(headers) - 1

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return labelStyle
			case col == valueCol:
				return valueStyle
			case seo:
				return detailStyle
			}
			return lipgloss.NewStyle()
		}).
		Rows(rows...)

	var b strings.Builder
	b.WriteString(titleStyle.Render(titleFor(rec.RecordKind()) + " " + sourceURL))
	b.WriteString("\n")
	b.WriteString(t.Render())
	return b.String()
}

func titleFor(kind result.RecordKind) string {
	switch kind {
	case result.KindPage:
		return "Crawl results for"
	case result.KindContent:
		return "Content of"
	case result.KindSeo:
		return "SEO audit of"
	case result.KindRoutes:
		return "Routes of"
	default:
		return "Results for"
	}
}

// RenderError renders a one-line error.
func RenderError(err error) string {
	return errorStyle.Render("Error: " + err.Error())
}
