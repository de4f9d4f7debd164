// Package report is the mechanical EngineResult -> Markdown transform
// spec.md §6.3 calls out as a thin, out-of-core presentation layer.
package report

import (
	"fmt"
	"strings"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// Render builds a deterministic Markdown report from an EngineResult. Two
// calls with the same result produce byte-identical output (spec.md §5).
func Render(r domain.EngineResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Upgrade safety report\n\n")
	fmt.Fprintf(&b, "- Run ID: `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- Verdict: **%s**\n", strings.ToUpper(string(r.Verdict)))
	if r.HighestSeverity != nil {
		fmt.Fprintf(&b, "- Highest severity: **%s**\n", strings.ToUpper(string(*r.HighestSeverity)))
	}
	b.WriteString("\n## Analyzer status\n\n")
	for _, name := range domain.AnalyzerOrder {
		status, ok := r.AnalyzerStatus[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- `%s`: %s\n", name, status)
	}

	b.WriteString("\n## Findings\n\n")
	if len(r.Findings) == 0 {
		b.WriteString("No findings.\n")
		return b.String()
	}
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "### %s — %s\n\n", f.Code, f.Title)
		fmt.Fprintf(&b, "- Severity: %s\n", f.Severity)
		fmt.Fprintf(&b, "- Confidence: %s\n", f.Confidence)
		if f.Location != nil {
			fmt.Fprintf(&b, "- Location: %s\n", locationString(*f.Location))
		}
		b.WriteString("\n")
		b.WriteString(f.Description)
		b.WriteString("\n\n")
		if f.Remediation != "" {
			fmt.Fprintf(&b, "Remediation: %s\n\n", f.Remediation)
		}
	}
	return b.String()
}

func locationString(l domain.Location) string {
	var parts []string
	if l.Contract != "" {
		parts = append(parts, "contract="+l.Contract)
	}
	if l.Function != "" {
		parts = append(parts, "function="+l.Function)
	}
	if l.Slot != nil {
		parts = append(parts, fmt.Sprintf("slot=%d", *l.Slot))
	}
	if l.Offset != nil {
		parts = append(parts, fmt.Sprintf("offset=%d", *l.Offset))
	}
	return strings.Join(parts, ", ")
}
