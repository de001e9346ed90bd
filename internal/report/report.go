package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/models"
)

type Format string

const (
	FormatConsole  Format = "console"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses an output format; "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "console":
		return FormatConsole, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (supported: console, json, markdown)", config.ErrConfiguration, s)
	}
}

// Meta describes the audit a report belongs to.
type Meta struct {
	FilePath    string
	ProjectType config.ProjectType
	Mode        models.AnalysisMode
	Timestamp   time.Time
}

// DefaultOutputPath returns <file>.audit.json or <file>.audit.md.
func DefaultOutputPath(filePath string, format Format) string {
	switch format {
	case FormatJSON:
		return filePath + ".audit.json"
	case FormatMarkdown:
		return filePath + ".audit.md"
	default:
		return ""
	}
}

// WriteJSON writes the report verbatim, indented.
func WriteJSON(w io.Writer, r *models.AuditReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Save writes the report to path in the given file format.
func Save(path string, format Format, meta Meta, r *models.AuditReport) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		if err := WriteJSON(&buf, r); err != nil {
			return err
		}
	case FormatMarkdown:
		buf.WriteString(Markdown(meta, r))
	default:
		return fmt.Errorf("format %q cannot be saved to a file", format)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Markdown renders the report as a Markdown document.
func Markdown(meta Meta, r *models.AuditReport) string {
	var sb strings.Builder

	sb.WriteString("# CertiAudit Report\n\n")
	fmt.Fprintf(&sb, "**File:** `%s`\n", meta.FilePath)
	if meta.ProjectType != "" {
		fmt.Fprintf(&sb, "**Project type:** %s\n", meta.ProjectType)
	}
	fmt.Fprintf(&sb, "**Mode:** %s\n", meta.Mode)
	if !meta.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "**Timestamp:** %s\n", meta.Timestamp.UTC().Format(time.RFC3339))
	}

	sb.WriteString("\n## Summary\n\n")
	sb.WriteString(r.AnalysisSummary)
	sb.WriteString("\n\n")

	if len(r.Vulnerabilities) == 0 {
		sb.WriteString("_No findings._\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "**Highest severity:** %s\n\n", r.HighestSeverity())
	counts := r.CountBySeverity()
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("| :--- | :--- |\n")
	for _, sev := range models.Severities {
		if counts[sev] > 0 {
			fmt.Fprintf(&sb, "| %s | %d |\n", sev, counts[sev])
		}
	}

	sb.WriteString("\n## Findings\n")
	for i, v := range r.Vulnerabilities {
		fmt.Fprintf(&sb, "\n### %d. %s (%s)\n\n", i+1, v.Name, v.Severity)
		fmt.Fprintf(&sb, "**Line:** %d\n\n", v.Line)
		fmt.Fprintf(&sb, "**Description:** %s\n\n", v.Description)
		fmt.Fprintf(&sb, "**Fix suggestion:** %s\n\n", v.FixSuggestion)
		if v.FixedCodeSnippet != "" {
			fmt.Fprintf(&sb, "**Fixed code:**\n\n```%s\n%s\n```\n", codeLang(meta.ProjectType), strings.TrimRight(v.FixedCodeSnippet, "\n"))
		}
		if v.PocCode != nil {
			fmt.Fprintf(&sb, "\n**Proof of concept:**\n\n```%s\n%s\n```\n", codeLang(meta.ProjectType), strings.TrimRight(*v.PocCode, "\n"))
		}
	}
	return sb.String()
}

func codeLang(pt config.ProjectType) string {
	switch pt {
	case config.ProjectSolana:
		return "rust"
	case config.ProjectMove:
		return "move"
	default:
		return "solidity"
	}
}

// Console prints the human-readable summary.
func Console(w io.Writer, meta Meta, r *models.AuditReport) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "✅ Audit report for %s\n", meta.FilePath)
	fmt.Fprintf(w, "%s\n", rule)
	fmt.Fprintf(w, "Summary: %s\n\n", r.AnalysisSummary)

	if len(r.Vulnerabilities) == 0 {
		fmt.Fprintln(w, "🎉 The code looks clean, no significant vulnerabilities found.")
		return
	}

	fmt.Fprintf(w, "Findings: %d, highest severity: %s\n\n", len(r.Vulnerabilities), r.HighestSeverity())
	for i, v := range r.Vulnerabilities {
		fmt.Fprintf(w, "🔴 [Finding %d] %s (%s)\n", i+1, v.Name, v.Severity)
		fmt.Fprintf(w, "   📍 Location: Line %d\n", v.Line)
		fmt.Fprintf(w, "   📝 Description: %s\n", v.Description)
		fmt.Fprintf(w, "   🛠️ Suggestion: %s\n", v.FixSuggestion)
		if v.PocCode != nil {
			fmt.Fprintf(w, "   🧪 PoC:\n%s\n", indent(*v.PocCode, "      "))
		}
		fmt.Fprintln(w, strings.Repeat("-", 30))
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
