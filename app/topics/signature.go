package topics

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// entityVocabulary is the curated set of recurring proper nouns,
// organizations and event types used for topic matching. Matching is
// case-insensitive on word boundaries.
var entityVocabulary = []string{
	"nato", "otan", "un", "onu", "eu", "ue", "fbi", "cia", "nasa", "who", "oms",
	"opec", "imf", "fmi", "ecb", "bce", "fed",
	"ukraine", "ucrania", "russia", "rusia", "china", "taiwan", "israel", "gaza",
	"iran", "irán", "north korea", "corea del norte", "venezuela",
	"openai", "google", "apple", "microsoft", "meta", "amazon", "tesla", "spacex", "nvidia",
	"earthquake", "terremoto", "hurricane", "huracán", "wildfire", "incendio",
	"flood", "inundación", "eruption", "erupción",
	"election", "elecciones", "referendum", "impeachment", "coup", "golpe de estado",
	"ceasefire", "alto el fuego", "sanctions", "sanciones", "tariffs", "aranceles",
	"strike", "huelga", "blackout", "apagón", "outage", "pandemic", "pandemia",
}

var keywordStopwords = map[string]bool{
	"the": true, "this": true, "that": true, "with": true, "from": true,
	"after": true, "before": true, "over": true, "under": true, "about": true,
	"breaking": true, "update": true, "live": true, "news": true, "video": true,
	"los": true, "las": true, "una": true, "este": true, "esta": true,
	"tras": true, "sobre": true, "entre": true, "última": true, "ultimo": true,
}

const maxKeywords = 8

// ExtractSignature derives the matching signature of an item: entities from
// the curated vocabulary plus a capped set of capitalized keywords.
func ExtractSignature(title, text string) ([]string, []string) {
	combined := title
	if text != "" {
		combined += " " + text
	}
	lowered := strings.ToLower(combined)

	var entities []string
	for _, entity := range entityVocabulary {
		if containsWord(lowered, entity) {
			entities = append(entities, entity)
		}
	}

	var keywords []string
	seen := make(map[string]bool)
	for _, word := range strings.FieldsFunc(combined, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(keywords) >= maxKeywords {
			break
		}
		runes := []rune(word)
		if len(runes) < 4 || !unicode.IsUpper(runes[0]) {
			continue
		}
		lower := strings.ToLower(word)
		if keywordStopwords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		keywords = append(keywords, lower)
	}

	return entities, keywords
}

// containsWord reports whether needle occurs in haystack on word
// boundaries. Both arguments must already be lowercase.
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], needle)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(needle)

		before, _ := utf8.DecodeLastRuneInString(haystack[:start])
		after, _ := utf8.DecodeRuneInString(haystack[end:])
		beforeOK := start == 0 || !isWordRune(before)
		afterOK := end >= len(haystack) || !isWordRune(after)
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// sharedCount returns how many of the wanted values occur in have,
// case-insensitively.
func sharedCount(have, wanted []string) int {
	set := make(map[string]bool, len(have))
	for _, v := range have {
		set[strings.ToLower(v)] = true
	}
	count := 0
	for _, v := range wanted {
		if set[strings.ToLower(v)] {
			count++
		}
	}
	return count
}

// mergeSignature extends existing with any new values, preserving order.
func mergeSignature(existing, extra []string) []string {
	set := make(map[string]bool, len(existing))
	for _, v := range existing {
		set[strings.ToLower(v)] = true
	}
	for _, v := range extra {
		if !set[strings.ToLower(v)] {
			set[strings.ToLower(v)] = true
			existing = append(existing, v)
		}
	}
	return existing
}
