package classifier

import "github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/pkg/models"

// weight is one of the three fixed scoring tiers (spec §4.1).
type weight int

const (
	weightHigh   weight = 3
	weightMedium weight = 2
	weightLow    weight = 1
)

type weightedKeyword struct {
	term   string
	weight weight
}

// keywordTable holds, per category, a fixed list of weighted keywords. The
// terms themselves come from the original classifier's flat keyword lists;
// the three-tier weighting on top is this system's own refinement (see
// SPEC_FULL.md §6) — within each category, multi-word or highly specific
// terms carry more weight than generic ones that also show up in everyday
// phrasing.
var keywordTable = map[models.Category][]weightedKeyword{
	models.CategoryAccident: {
		{"사고", weightHigh}, {"충돌", weightHigh}, {"추돌", weightHigh},
		{"측면충돌", weightHigh}, {"접촉사고", weightHigh},
		{"과실비율", weightHigh}, {"좌회전", weightMedium}, {"직진", weightMedium},
		{"교차로", weightMedium}, {"신호위반", weightMedium}, {"차로변경", weightMedium},
		{"후진", weightMedium}, {"주차장", weightMedium},
		{"접촉", weightLow}, {"과실", weightLow}, {"비율", weightLow},
	},
	models.CategoryPrecedent: {
		{"대법원", weightHigh}, {"고등법원", weightHigh}, {"지방법원", weightHigh},
		{"사건번호", weightHigh}, {"판례", weightHigh},
		{"판결", weightMedium}, {"법원", weightMedium}, {"소송", weightMedium}, {"재판", weightMedium},
		{"판단", weightLow}, {"요지", weightLow},
	},
	models.CategoryLaw: {
		{"도로교통법", weightHigh}, {"법률", weightHigh}, {"벌점", weightHigh}, {"범칙금", weightHigh},
		{"조문", weightMedium}, {"규정", weightMedium}, {"위반", weightMedium}, {"처벌", weightMedium}, {"법적", weightMedium},
		{"제", weightLow}, {"조", weightLow}, {"항", weightLow}, {"규칙", weightLow},
	},
	models.CategoryTerm: {
		{"정의", weightHigh}, {"용어", weightHigh}, {"의미", weightHigh},
		{"개념", weightMedium}, {"뜻", weightMedium}, {"설명", weightMedium},
		{"무엇", weightLow}, {"어떤", weightLow}, {"차로", weightLow}, {"도로", weightLow},
		{"차량", weightLow}, {"운전자", weightLow}, {"보행자", weightLow},
	},
}

// contextCarryKeywords are weighted the same way; total weight >= 2 against
// this set triggers the previous-category carry rule (spec §4.1, rule 2).
var contextCarryKeywords = []weightedKeyword{
	{"관련", weightMedium}, {"이거", weightMedium}, {"그것", weightMedium}, {"위", weightLow},
}

// score sums the weight of every keyword present as a case-folded substring
// of text, for one keyword list.
func score(text string, keywords []weightedKeyword) int {
	total := 0
	for _, kw := range keywords {
		if containsFold(text, kw.term) {
			total += int(kw.weight)
		}
	}
	return total
}
