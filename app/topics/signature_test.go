package topics

import (
	"testing"
)

func TestExtractSignature_Entities(t *testing.T) {
	entities, _ := ExtractSignature("Ukraine ceasefire talks resume in Geneva", "")

	if !contains(entities, "ukraine") {
		t.Errorf("Expected entity ukraine, got %v", entities)
	}
	if !contains(entities, "ceasefire") {
		t.Errorf("Expected entity ceasefire, got %v", entities)
	}
}

func TestExtractSignature_WordBoundaries(t *testing.T) {
	// "un" must not match inside "unprecedented".
	entities, _ := ExtractSignature("Unprecedented storm hits the coast", "")

	if contains(entities, "un") {
		t.Errorf("Entity matched inside a longer word: %v", entities)
	}
}

func TestContainsWord_MultibyteBoundaries(t *testing.T) {
	// An accented letter is a word character even though its trailing byte
	// alone decodes as punctuation.
	if containsWord("maníun acuerdo", "un") {
		t.Error("Entity matched inside a word ending in an accented letter")
	}
	if !containsWord("¿un acuerdo?", "un") {
		t.Error("Multibyte punctuation should count as a word boundary")
	}
	if !containsWord("crisis en irán", "irán") {
		t.Error("Accented entity at end of text should match")
	}
}

func TestExtractSignature_Keywords(t *testing.T) {
	_, keywords := ExtractSignature("Paris Olympics opening delayed", "")

	if !contains(keywords, "paris") {
		t.Errorf("Expected keyword paris, got %v", keywords)
	}
	if !contains(keywords, "olympics") {
		t.Errorf("Expected keyword olympics, got %v", keywords)
	}
}

func TestExtractSignature_SkipsStopwordsAndShortWords(t *testing.T) {
	_, keywords := ExtractSignature("Breaking News Update Live", "")

	if len(keywords) != 0 {
		t.Errorf("Stopwords should not become keywords, got %v", keywords)
	}

	_, keywords = ExtractSignature("Fog Ice Ups", "")
	if len(keywords) != 0 {
		t.Errorf("Short words should not become keywords, got %v", keywords)
	}
}

func TestExtractSignature_KeywordCap(t *testing.T) {
	title := "Alpha Bravo Charlie Delta Echoes Foxtrot Golfer Hotels India Juliet"
	_, keywords := ExtractSignature(title, "")

	if len(keywords) != maxKeywords {
		t.Errorf("Expected %d keywords, got %d: %v", maxKeywords, len(keywords), keywords)
	}
}

func TestSharedCount(t *testing.T) {
	have := []string{"ukraine", "sanctions"}

	if n := sharedCount(have, []string{"Ukraine"}); n != 1 {
		t.Errorf("Expected shared count 1, got %d", n)
	}
	if n := sharedCount(have, []string{"gaza", "taiwan"}); n != 0 {
		t.Errorf("Expected shared count 0, got %d", n)
	}
	if n := sharedCount(have, []string{"sanctions", "ukraine", "gaza"}); n != 2 {
		t.Errorf("Expected shared count 2, got %d", n)
	}
}

func TestMergeSignature(t *testing.T) {
	merged := mergeSignature([]string{"ukraine"}, []string{"Ukraine", "sanctions"})

	if len(merged) != 2 {
		t.Fatalf("Expected 2 values after merge, got %v", merged)
	}
	if merged[0] != "ukraine" || merged[1] != "sanctions" {
		t.Errorf("Unexpected merge result: %v", merged)
	}
}

func contains(values []string, wanted string) bool {
	for _, v := range values {
		if v == wanted {
			return true
		}
	}
	return false
}
