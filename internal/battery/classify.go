package battery

import "regexp"

var accidentRegexp = regexp.MustCompile(accidentPattern)

// ClassifyDescription returns the first accident keyword found in text,
// or "" when none matches. It mirrors the tipo_acidente extraction.
func ClassifyDescription(text string) string {
	m := accidentRegexp.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// RollingAverage returns, for each position i, the mean of
// counts[max(0, i-window+1) .. i]. Short windows at the start of the
// series average what is available.
func RollingAverage(counts []int64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(counts))
	var sum int64
	for i, c := range counts {
		sum += c
		if i >= window {
			sum -= counts[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = float64(sum) / float64(n)
	}
	return out
}
