package parser

import "regexp"

// entityPatterns is the shared Korean entity pattern library used by the
// metadata extractor and the query analyzer. Every pattern captures the
// entity in group 1. Set order and pattern order inside each set are fixed,
// which keeps extraction deterministic.
type entityPatterns struct {
	companies []*regexp.Regexp
	persons   []*regexp.Regexp
	locations []*regexp.Regexp
	dates     []*regexp.Regexp
	numbers   []*regexp.Regexp
}

func newEntityPatterns() entityPatterns {
	return entityPatterns{
		companies: []*regexp.Regexp{
			regexp.MustCompile(`([가-힣]+(?:그룹|기업|컨소시엄|회사|전자|증권|은행|보험|생명|카드|금융|홀딩스))`),
			regexp.MustCompile(`([A-Z]+)주`),
		},
		persons: []*regexp.Regexp{
			regexp.MustCompile(`([가-힣]{2,4})\s*(?:회장|사장|대표|이사|임원|부장|팀장|총재)`),
			regexp.MustCompile(`([가-힣]{2,4})\s*기자`),
			regexp.MustCompile(`([가-힣]{2,4})\s*(?:씨|님)`),
		},
		locations: []*regexp.Regexp{
			regexp.MustCompile(`([가-힣]+(?:시|도|구|군|동|읍|면))`),
		},
		dates: []*regexp.Regexp{
			regexp.MustCompile(`(\d{4}년\s?\d{1,2}월\s?\d{1,2}일)`),
			regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
		},
		numbers: []*regexp.Regexp{
			regexp.MustCompile(`(\d{1,3}(?:,\d{3})*(?:\.\d+)?(?:조원|억원|만원|원|달러|%|배))`),
		},
	}
}

// extractOrdered runs every pattern of a set over s in order and returns
// the group-1 matches deduplicated, keeping first-occurrence order.
func extractOrdered(s string, patterns []*regexp.Regexp) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			if len(m) < 2 {
				continue
			}
			v := m[1]
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
