package ticket

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tuannvm/devhub/internal/models"
)

const maxKeywords = 5

// japanese covers Hiragana, Katakana and the CJK unified ideographs block up
// to U+9FAF.
var japanese = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x309F, Stride: 1},
		{Lo: 0x30A0, Hi: 0x30FF, Stride: 1},
		{Lo: 0x4E00, Hi: 0x9FAF, Stride: 1},
	},
}

var bilingualPhrases = []string{
	"英語でも",
	"英語も",
	"英訳も",
	"in english",
	"english too",
	"also in english",
	"bilingual",
	"both languages",
}

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an is are was were be been being
		have has had do does did will would could should
		and or but if then else when where what which
		to of in for on with at by from as
		this that these those it its
		の は が を に へ で と も や から まで より`) {
		stopWords[w] = struct{}{}
	}
}

// DetectLanguage classifies text as Japanese when it contains at least one
// Japanese character, and English otherwise.
func DetectLanguage(text string) models.Language {
	for _, r := range text {
		if unicode.Is(japanese, r) {
			return models.LanguageJapanese
		}
	}
	return models.LanguageEnglish
}

// DetectBilingualRequest reports whether text asks for output in both
// languages.
func DetectBilingualRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range bilingualPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ExtractSearchKeywords picks up to five distinct, longest tokens from the
// request and the draft summaries. Ties keep their first-seen order.
func ExtractSearchKeywords(request string, summaries []string) string {
	combined := strings.ToLower(strings.Join(append([]string{request}, summaries...), " "))
	cleaned := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.Is(japanese, r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, combined)

	seen := map[string]struct{}{}
	var words []string
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}

	sort.SliceStable(words, func(i, j int) bool {
		return utf8.RuneCountInString(words[i]) > utf8.RuneCountInString(words[j])
	})
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	return strings.Join(words, " ")
}

func isWordRune(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}
