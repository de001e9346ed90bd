package analyzers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrToolReported is returned when Slither reports its own failure.
var ErrToolReported = errors.New("tool reported failure")

type slitherOutput struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Results struct {
		Detectors []SlitherDetector `json:"detectors"`
	} `json:"results"`
}

// SlitherDetector is one detector hit from `slither --json`.
type SlitherDetector struct {
	Check       string           `json:"check"`
	Impact      string           `json:"impact"`
	Confidence  string           `json:"confidence"`
	Description string           `json:"description"`
	Elements    []slitherElement `json:"elements"`
}

type slitherElement struct {
	Name          string `json:"name"`
	SourceMapping *struct {
		Filename string `json:"filename_relative"`
		Lines    []int  `json:"lines"`
	} `json:"source_mapping"`
}

// Lines returns the source lines of all elements, deduplicated in order.
func (d SlitherDetector) Lines() []int {
	seen := make(map[int]struct{})
	var lines []int
	for _, e := range d.Elements {
		if e.SourceMapping == nil {
			continue
		}
		for _, l := range e.SourceMapping.Lines {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			lines = append(lines, l)
		}
	}
	return lines
}

// ParseSlitherOutput decodes Slither's JSON report.
func ParseSlitherOutput(jsonOutput string) ([]SlitherDetector, error) {
	var out slitherOutput
	if err := json.Unmarshal([]byte(jsonOutput), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slither json: %w", err)
	}
	if !out.Success && out.Error != nil && *out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrToolReported, *out.Error)
	}
	return out.Results.Detectors, nil
}

// SummarizeDetectors renders detector hits as a numbered list.
func SummarizeDetectors(detectors []SlitherDetector) string {
	var b strings.Builder
	b.WriteString("### 🔍 Slither static analysis report (EVM):\n")
	for i, d := range detectors {
		check := orDefault(d.Check, "Unknown")
		impact := orDefault(d.Impact, "Unknown")
		location := "Global"
		if lines := d.Lines(); len(lines) > 0 {
			location = "Line " + joinInts(lines)
		}
		fmt.Fprintf(&b, "%d. [%s] **%s** (%s", i+1, impact, check, location)
		if d.Confidence != "" {
			fmt.Fprintf(&b, ", confidence: %s", d.Confidence)
		}
		b.WriteString(")\n")
		fmt.Fprintf(&b, "   - Details: %s\n", strings.TrimSpace(orDefault(d.Description, "No description")))
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
