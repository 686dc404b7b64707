// Package citation implements CitationExtractor (C7): extraction and
// normalization of Korean court case-number citations, and court-name
// detection.
package citation

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

var fold = cases.Fold()

func containsFold(text, term string) bool {
	return strings.Contains(fold.String(text), fold.String(term))
}

// caseNumberPatterns match a Korean case-number core: a 4-digit year, a
// 1-3 character Hangul chamber code (다/가단/가합/노/고단/고합/구단/구합/허/드합/...),
// and a serial number. An optional court-name prefix is captured separately
// so a caller can recover it without re-scanning.
var caseNumberPatterns = []*regexp.Regexp{
	// court name directly before the case number, e.g. "대법원 2019다12345"
	regexp.MustCompile(`(대법원|고등법원|지방법원|가정법원|행정법원|헌법재판소)\s*(\d{4}[가-힣]{1,3}\d+)`),
	// bare case number
	regexp.MustCompile(`\d{4}[가-힣]{1,3}\d+`),
}

// Extract scans query for citation-shaped substrings, normalizes each, and
// removes duplicates while preserving first-occurrence order. Court, when
// detected in the same match, is attached to the Citation.
func Extract(query string) []models.Citation {
	var out []models.Citation
	seen := make(map[string]bool)

	for _, pattern := range caseNumberPatterns {
		matches := pattern.FindAllStringSubmatch(query, -1)
		for _, m := range matches {
			var raw, court string
			switch len(m) {
			case 3: // court-prefixed pattern
				court, raw = m[1], m[2]
			default:
				raw = m[0]
			}

			norm := Normalize(raw)
			if norm == "" || seen[norm] {
				continue
			}
			seen[norm] = true

			if court == "" {
				court = DetectCourt(query)
			}

			out = append(out, models.Citation{Raw: raw, Court: court, CaseID: norm})
		}
	}

	return out
}

// nonAlnumHangul strips everything except ASCII letters/digits and Hangul
// syllables.
var nonAlnumHangul = regexp.MustCompile(`[^0-9A-Za-z가-힣]`)

// Normalize removes whitespace, case-folds, and strips non-alphanumeric,
// non-Hangul characters. Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	stripped := nonAlnumHangul.ReplaceAllString(raw, "")
	return fold.String(stripped)
}

// IsExactMatch reports whether two citations normalize to the same string.
// Reflexive and symmetric by construction.
func IsExactMatch(a, b models.Citation) bool {
	return Normalize(a.CaseID) == Normalize(b.CaseID)
}

// IsPartialMatch reports whether one citation's normalized case ID contains
// the other's as a substring (e.g. a query fragment matching a stored
// citation's core).
func IsPartialMatch(a, b models.Citation) bool {
	na, nb := Normalize(a.CaseID), Normalize(b.CaseID)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
