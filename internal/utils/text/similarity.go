package text

// LCSRatio returns a similarity score in [0, 1] for two strings based on the
// longest common subsequence of their runes:
//
//	ratio = 2 * LCS(a, b) / (len(a) + len(b))
//
// Identical strings score 1.0; strings with no runes in common score 0.0.
// Callers are expected to pass Normalize-d text so that markup and
// punctuation differences do not dilute the score.
func LCSRatio(a, b string) float64 {
	return lcsRatio([]rune(a), []rune(b))
}

// WindowedLCSRatio compares two long strings window-by-window: each string
// is cut into consecutive windows of windowSize runes and the maximum
// pairwise LCSRatio across all window pairs is returned. This keeps the
// dynamic program bounded for article bodies, where a full-length comparison
// would be quadratic in the body size. A non-positive windowSize falls back
// to a direct LCSRatio.
func WindowedLCSRatio(a, b string, windowSize int) float64 {
	if windowSize <= 0 {
		return LCSRatio(a, b)
	}
	aw := splitWindows([]rune(a), windowSize)
	bw := splitWindows([]rune(b), windowSize)

	best := 0.0
	for _, wa := range aw {
		for _, wb := range bw {
			if r := lcsRatio(wa, wb); r > best {
				best = r
			}
		}
	}
	return best
}

func lcsRatio(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

// lcsLength computes the longest-common-subsequence length with a two-row
// dynamic program: O(len(a)*len(b)) time, O(min(len(a), len(b))) space.
func lcsLength(a, b []rune) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func splitWindows(r []rune, size int) [][]rune {
	if len(r) == 0 {
		return nil
	}
	windows := make([][]rune, 0, (len(r)+size-1)/size)
	for start := 0; start < len(r); start += size {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		windows = append(windows, r[start:end])
	}
	return windows
}
