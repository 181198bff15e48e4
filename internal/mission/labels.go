package mission

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Palette is the fixed path color cycle.
var Palette = []string{"red", "blue", "green", "orange", "purple", "yellow", "grey"}

// ColorFor returns the palette color for the i-th drawn path.
func ColorFor(i int) string {
	return Palette[i%len(Palette)]
}

// TitleCase lowercases s and uppercases the first letter of every
// space-separated token. Punctuation gets no special treatment.
func TitleCase(s string) string {
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// ClassLabel is a title-cased terrain name with its share of the path.
type ClassLabel struct {
	Label   string `json:"label" doc:"Title-cased terrain name" example:"Forest"`
	Percent int    `json:"percent" doc:"Rounded share of samples" example:"75"`
}

// ClassLabels turns a terrain tally into labels in tally order. Each
// percentage is rounded on its own, so the sum may drift from 100. An empty
// or all-zero tally yields 0 for every entry.
func ClassLabels(counts TerrainCounts) []ClassLabel {
	total := counts.Total()
	labels := make([]ClassLabel, 0, len(counts))
	for _, c := range counts {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(c.Count) / float64(total) * 100))
		}
		labels = append(labels, ClassLabel{Label: TitleCase(c.Terrain), Percent: pct})
	}
	return labels
}
