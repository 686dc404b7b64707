package citation

// courtAliases maps a canonical court name to every alias a query might use
// to refer to it. Scanned in map order is not deterministic, so callers
// iterate courtOrder instead (map iteration order is unspecified in Go).
var courtAliases = map[string][]string{
	"대법원":   {"대법원", "대법", "최고법원"},
	"고등법원":  {"고등법원", "고법"},
	"지방법원":  {"지방법원", "지법"},
	"가정법원":  {"가정법원", "가법"},
	"행정법원":  {"행정법원"},
	"헌법재판소": {"헌법재판소", "헌재"},
}

// courtOrder fixes the scan order for DetectCourt: longer, more specific
// names first so "서울고등법원"-style compounds still resolve to "고등법원"
// rather than mis-matching "지방법원" by accident of substring overlap.
var courtOrder = []string{"헌법재판소", "고등법원", "지방법원", "가정법원", "행정법원", "대법원"}

// DetectCourt scans query for the first alias match and returns its
// canonical court name, or "" if none appear.
func DetectCourt(query string) string {
	for _, canonical := range courtOrder {
		for _, alias := range courtAliases[canonical] {
			if containsFold(query, alias) {
				return canonical
			}
		}
	}
	return ""
}
