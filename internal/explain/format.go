package explain

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"arbiter/internal/domain/explanation"
)

// Render produces the output form of a generated explanation. It is a pure
// transform over already-computed content; unknown formats render as text.
func Render(exp *explanation.Explanation, format explanation.Format) string {
	switch format {
	case explanation.FormatHTML:
		return renderHTML(exp)
	case explanation.FormatMarkdown:
		return renderMarkdown(exp)
	case explanation.FormatJSON:
		return renderJSON(exp)
	default:
		return renderText(exp)
	}
}

func renderText(exp *explanation.Explanation) string {
	var b strings.Builder

	b.WriteString(exp.Narrative)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Confidence: %s (%.2f)\n", exp.Confidence.Label, exp.Confidence.Overall)
	fmt.Fprintf(&b, "Primary factor: %s\n", exp.Factors.PrimaryFactor.Name)

	if len(exp.Factors.Factors) > 1 {
		b.WriteString("Factors:\n")
		for _, f := range exp.Factors.Factors {
			fmt.Fprintf(&b, "  - %s (%.2f)\n", f.Name, f.Importance)
		}
	}

	if len(exp.Counterfactuals) > 0 {
		b.WriteString("Alternatives:\n")
		for _, c := range exp.Counterfactuals {
			fmt.Fprintf(&b, "  - %s (plausibility %.2f): %s\n", c.Action, c.Plausibility, c.ExpectedOutcome)
		}
	}

	return strings.TrimSpace(b.String())
}

func renderMarkdown(exp *explanation.Explanation) string {
	var b strings.Builder

	b.WriteString("## Decision Explanation\n\n")
	b.WriteString(exp.Narrative)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Confidence:** %s (%.2f)\n\n", exp.Confidence.Label, exp.Confidence.Overall)

	b.WriteString("### Factors\n\n")
	for _, f := range exp.Factors.Factors {
		fmt.Fprintf(&b, "- **%s** (%.2f): %s\n", f.Name, f.Importance, f.Description)
	}

	if len(exp.Counterfactuals) > 0 {
		b.WriteString("\n### Alternatives\n\n")
		for _, c := range exp.Counterfactuals {
			fmt.Fprintf(&b, "- `%s` (plausibility %.2f): %s\n", c.Action, c.Plausibility, c.ExpectedOutcome)
		}
	}

	return strings.TrimSpace(b.String())
}

func renderHTML(exp *explanation.Explanation) string {
	var b strings.Builder

	b.WriteString("<div class=\"explanation\">\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(exp.Narrative))
	fmt.Fprintf(&b, "<p><strong>Confidence:</strong> %s (%.2f)</p>\n",
		html.EscapeString(exp.Confidence.Label), exp.Confidence.Overall)

	b.WriteString("<ul>\n")
	for _, f := range exp.Factors.Factors {
		fmt.Fprintf(&b, "<li><strong>%s</strong> (%.2f): %s</li>\n",
			html.EscapeString(f.Name), f.Importance, html.EscapeString(f.Description))
	}
	b.WriteString("</ul>\n</div>")

	return b.String()
}

func renderJSON(exp *explanation.Explanation) string {
	envelope := map[string]interface{}{
		"explanation":         exp.Narrative,
		"factor_analysis":     exp.Factors,
		"confidence_analysis": exp.Confidence,
		"decision_trace":      exp.Trace,
		"generated_at":        exp.GeneratedAt,
	}
	if len(exp.Counterfactuals) > 0 {
		envelope["counterfactual_analysis"] = exp.Counterfactuals
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return renderText(exp)
	}
	return string(data)
}
