package columns

// SimilarityFunc scores two strings from 0 (nothing shared) to 100 (equal).
type SimilarityFunc func(a, b string) float64

// Ratio is the normalized Indel similarity: 100 * 2*LCS / (len(a)+len(b)),
// computed over runes. Two empty strings score 100.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*lcsLength(ra, rb)) / float64(total)
}

// lcsLength returns the length of the longest common subsequence using a
// single rolling row.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	row := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := row[j]
			if a[i-1] == b[j-1] {
				row[j] = prev + 1
			} else if row[j-1] > row[j] {
				row[j] = row[j-1]
			}
			prev = cur
		}
	}
	return row[len(b)]
}
