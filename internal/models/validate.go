package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaMismatch is returned in ValidationResult.Err when the backend answer
// does not match the report schema.
var ErrSchemaMismatch = errors.New("report does not match schema")

// ValidationResult is the outcome of ValidateReport. Exactly one of Report and
// Err is set.
type ValidationResult struct {
	Report *AuditReport
	Err    error
}

// OK reports whether validation produced a report.
func (r ValidationResult) OK() bool {
	return r.Err == nil && r.Report != nil
}

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	var doc map[string]any
	if err := json.Unmarshal(canonicalSchema, &doc); err != nil {
		return nil, err
	}
	// draft markers confuse the validator, the structure is draft-agnostic
	delete(doc, "$schema")
	delete(doc, "$id")
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
})

// ValidateReport repairs the trivial deviations backends tend to produce and
// checks raw against the canonical schema. It never panics.
func ValidateReport(raw map[string]any) ValidationResult {
	if raw == nil {
		return ValidationResult{Err: fmt.Errorf("%w: empty response", ErrSchemaMismatch)}
	}

	schema, err := compiledSchema()
	if err != nil {
		return ValidationResult{Err: fmt.Errorf("compile report schema: %w", err)}
	}

	doc, err := repair(raw)
	if err != nil {
		return ValidationResult{Err: fmt.Errorf("%w: %v", ErrSchemaMismatch, err)}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return ValidationResult{Err: fmt.Errorf("%w: %v", ErrSchemaMismatch, err)}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return ValidationResult{Err: fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(msgs, "; "))}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return ValidationResult{Err: fmt.Errorf("%w: %v", ErrSchemaMismatch, err)}
	}
	var report AuditReport
	if err := json.Unmarshal(data, &report); err != nil {
		return ValidationResult{Err: fmt.Errorf("%w: %v", ErrSchemaMismatch, err)}
	}
	if report.Vulnerabilities == nil {
		report.Vulnerabilities = []Vulnerability{}
	}
	return ValidationResult{Report: &report}
}

// repair works on a deep copy so the caller's map is left untouched.
func repair(raw map[string]any) (map[string]any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	vulns, _ := doc["vulnerabilities"].([]any)
	for _, item := range vulns {
		v, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := v["severity"].(string); ok {
			if sev, ok := ParseSeverity(s); ok {
				v["severity"] = string(sev)
			}
		}
		switch line := v["line"].(type) {
		case float64:
			if line < 1 {
				v["line"] = 1.0
			} else if line != math.Trunc(line) {
				v["line"] = math.Trunc(line)
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
				v["line"] = float64(max(n, 1))
			}
		}
		// null and absent mean the same thing
		if poc, exists := v["poc_code"]; exists && poc == nil {
			delete(v, "poc_code")
		}
	}

	if s, ok := doc["analysis_summary"].(string); ok && strings.TrimSpace(s) == "" {
		doc["analysis_summary"] = fmt.Sprintf("Audit completed with %d finding(s).", len(vulns))
	}
	return doc, nil
}
