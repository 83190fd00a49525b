// Package extractor pulls a candidate payer reference out of raw statement
// fields. Parents rarely quote an invoice reference cleanly; it arrives
// embedded in free text like "CAPITEC ADT CASH HAR149 THANK YOU". The
// rules here are ordered heuristics, and a miss is a normal outcome
// reported as an empty result, never an error.
package extractor

import (
	"regexp"
	"strings"
)

// Rule names, recorded for diagnostics so an operator can see how a
// reference was derived.
const (
	RuleStudentNumber = "student_number"
	RuleStructuredRef = "structured_reference"
	RuleKeywordToken  = "keyword_token"
	RulePayerName     = "payer_name"
	RuleVerbatim      = "verbatim"
)

var (
	// A 6 to 8 digit run reads as a student or account number.
	studentNumberRe = regexp.MustCompile(`\d{6,8}`)

	// Letter prefix plus digits, e.g. HAR149 or MOK0012.
	structuredRefRe = regexp.MustCompile(`\b([A-Za-z]{2,4}\d{2,6})\b`)

	// A labelling keyword followed by an alphanumeric token.
	keywordTokenRe = regexp.MustCompile(`(?i)\b(?:ref|student|id|number)\b[:\s#.]*([A-Za-z0-9-]+)`)

	// Letters and spaces immediately before a grade or class keyword
	// read as a payer name, e.g. "John Smith grade 4".
	payerNameRe = regexp.MustCompile(`(?i)([A-Za-z][A-Za-z ]+?)\s+(?:grade\b|gr\.|class\b)`)
)

// Extraction is a derived reference plus the rule that produced it.
type Extraction struct {
	Reference string `json:"reference"`
	Rule      string `json:"rule"`
}

type rule struct {
	name  string
	apply func(text string) string
}

// Ordered rule list, first hit wins.
var rules = []rule{
	{RuleStudentNumber, func(text string) string {
		return studentNumberRe.FindString(text)
	}},
	{RuleStructuredRef, func(text string) string {
		if m := structuredRefRe.FindStringSubmatch(text); m != nil {
			return strings.ToUpper(m[1])
		}
		return ""
	}},
	{RuleKeywordToken, func(text string) string {
		if m := keywordTokenRe.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		return ""
	}},
	{RulePayerName, func(text string) string {
		if m := payerNameRe.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
		return ""
	}},
}

// Extract derives a payer reference from the raw reference field and the
// free-text description. Both inputs empty yields an empty Extraction.
func Extract(rawReference, description string) Extraction {
	rawReference = strings.TrimSpace(rawReference)
	description = strings.TrimSpace(description)

	combined := strings.TrimSpace(rawReference + " " + description)
	if combined == "" {
		return Extraction{}
	}

	for _, r := range rules {
		if ref := strings.TrimSpace(r.apply(combined)); ref != "" {
			return Extraction{Reference: ref, Rule: r.name}
		}
	}

	// Fall back to whatever the bank gave us, reference field first.
	if rawReference != "" {
		return Extraction{Reference: rawReference, Rule: RuleVerbatim}
	}
	return Extraction{Reference: description, Rule: RuleVerbatim}
}
