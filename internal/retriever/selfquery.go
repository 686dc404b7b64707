package retriever

import (
	"regexp"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/citation"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"
)

// Plan is the output of the deterministic self-query planner: a metadata
// filter derived from the query, plus the query text to embed for the
// filtered vector search (unchanged unless a cleaner rewrite helps recall).
type Plan struct {
	Filter         *ports.SearchFilter
	RewrittenQuery string
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
var articlePattern = regexp.MustCompile(`제\s*(\d+)\s*조`)
var termPattern = regexp.MustCompile(`([가-힣A-Za-z0-9]{2,12})\s*(이란|란|뜻|의미)\b`)

// triggerKeywords counts toward the self-query activation threshold
// (spec §4.3.2): "trigger_count = count of category-specific trigger
// keywords present". Precedent's set is given explicitly by the spec; the
// others are this system's analogous extension of the same idea to the
// other three categories with attribute schemas (general has none since it
// carries no filterable attributes).
var triggerKeywords = map[models.Category][]string{
	models.CategoryPrecedent: {"대법원", "고등법원", "지방법원", "법원"},
	models.CategoryLaw:       {"도로교통법", "조문", "제", "조", "항", "규정"},
	models.CategoryTerm:      {"정의", "뜻", "의미", "용어"},
	models.CategoryAccident:  {"사고", "과실비율", "기본비율"},
}

// TriggerCount counts the category's trigger keywords present in query,
// plus one for a bare 4-digit year (precedent's year attribute).
func TriggerCount(category models.Category, query string) int {
	count := 0
	for _, kw := range triggerKeywords[category] {
		if containsFold(query, kw) {
			count++
		}
	}
	if category == models.CategoryPrecedent && yearPattern.MatchString(query) {
		count++
	}
	return count
}

// PlanQuery derives a metadata filter from query for category, using the
// attribute descriptors fixed in SPEC_FULL/§6. It never errors: an
// attribute that fails to match simply isn't added to the filter, and an
// empty filter just falls through to an unfiltered vector search.
func PlanQuery(category models.Category, query string) Plan {
	plan := Plan{RewrittenQuery: query}
	must := make(map[string]string)

	switch category {
	case models.CategoryPrecedent:
		if court := citation.DetectCourt(query); court != "" {
			must["court"] = court
		}
		if cites := citation.Extract(query); len(cites) > 0 {
			must["case_id"] = cites[0].CaseID
		}

	case models.CategoryLaw:
		if m := articlePattern.FindStringSubmatch(query); m != nil {
			must["article_number"] = "제" + m[1] + "조"
		}

	case models.CategoryTerm:
		if m := termPattern.FindStringSubmatch(query); m != nil {
			must["term"] = m[1]
		}

	case models.CategoryAccident:
		// No reliable attribute-value extraction from free text for this
		// category's fields (case_id/base_ratio/law_references/precedent);
		// self-query degrades to an unfiltered vector search.
	}

	if len(must) == 0 {
		return plan
	}
	plan.Filter = &ports.SearchFilter{Must: must}
	return plan
}
