// Package report renders fits as Markdown and HTML.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	domain "gobayes/domain/inference"
	"gobayes/internal/inference"
)

// DimensionLabels names each posterior dimension for display.
func DimensionLabels(p domain.Posterior) []string {
	switch post := p.(type) {
	case inference.BetaPosterior:
		return []string{"success rate"}
	case inference.MixturePosterior:
		if post.LogScale {
			return []string{"log value"}
		}
		return []string{"value"}
	case inference.ZILNPosterior:
		return []string{"zero probability", "non-zero value", "overall value"}
	}
	labels := make([]string, len(p.Mean()))
	for i := range labels {
		labels[i] = fmt.Sprintf("dim %d", i)
	}
	return labels
}

// Markdown renders rec as a Markdown document.
func Markdown(rec *domain.FitRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Fit %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- **Model:** `%s`\n", rec.ModelType)
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Created:** %s\n", rec.CreatedAt)
	}
	if !rec.DataHash.IsEmpty() {
		fmt.Fprintf(&b, "- **Data:** `%s`\n", rec.DataHash.Short())
	}
	b.WriteString("\n")

	d := rec.Diagnostics
	b.WriteString("## Diagnostics\n\n")
	if !d.Converged {
		fmt.Fprintf(&b, "> **Warning:** stopped after %d iterations without reaching tolerance. The posterior is a best-effort estimate.\n\n", d.Iterations)
	}
	b.WriteString("| Converged | Iterations | Objective | Final value |\n|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %t | %d | %s | %s |\n\n", d.Converged, d.Iterations, d.Objective, num(d.FinalELBO))

	labels := DimensionLabels(rec.Posterior)
	s := rec.Summary
	b.WriteString("## Posterior\n\n")
	b.WriteString("| Dimension | Mean | SD |")
	for _, li := range s.Intervals {
		fmt.Fprintf(&b, " %s%% interval |", num(li.Level*100))
	}
	b.WriteString("\n|---|---|---|")
	for range s.Intervals {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for i, label := range labels {
		if i >= len(s.Mean) {
			break
		}
		sd := math.NaN()
		if i < len(s.Variance) {
			sd = math.Sqrt(s.Variance[i])
		}
		fmt.Fprintf(&b, "| %s | %s | %s |", label, num(s.Mean[i]), num(sd))
		for _, li := range s.Intervals {
			if i < len(li.Intervals) {
				iv := li.Intervals[i]
				fmt.Fprintf(&b, " [%s, %s] |", num(iv.Lower()), num(iv.Upper()))
			} else {
				b.WriteString(" |")
			}
		}
		b.WriteString("\n")
	}

	if mix, ok := rec.Posterior.(inference.MixturePosterior); ok {
		b.WriteString("\n## Components\n\n| # | Weight | Mean | SD |\n|---|---|---|---|\n")
		for i, c := range mix.Components {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, num(c.Weight), num(c.Mean), num(math.Sqrt(c.Variance)))
		}
	}
	return b.String()
}

// HTML renders rec as a complete HTML page.
func HTML(rec *domain.FitRecord) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(Markdown(rec)))
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: fmt.Sprintf("Fit %s", rec.ID),
	})
	return markdown.Render(doc, renderer)
}

func num(x float64) string {
	switch {
	case math.IsNaN(x):
		return "n/a"
	case math.IsInf(x, 0):
		return fmt.Sprintf("%v", x)
	}
	return fmt.Sprintf("%.4g", x)
}
