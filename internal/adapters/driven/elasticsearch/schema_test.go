package elasticsearch

import (
	"reflect"
	"testing"
)

func TestIndexSchema_AnalyzerChain(t *testing.T) {
	schema := indexSchema([]string{"english", "russian"})

	analysis := schema["settings"].(map[string]any)["analysis"].(map[string]any)
	analyzer := analysis["analyzer"].(map[string]any)["multilang"].(map[string]any)

	// Stopwords for every language run before any stemmer does.
	wantChain := []string{
		"lowercase",
		"english_stop", "russian_stop",
		"english_possessive_stemmer", "english_stemmer",
		"russian_stemmer",
	}
	if got := analyzer["filter"].([]string); !reflect.DeepEqual(got, wantChain) {
		t.Errorf("filter chain = %v, want %v", got, wantChain)
	}

	filters := analysis["filter"].(map[string]any)
	for _, name := range []string{"english_stop", "russian_stop", "english_stemmer", "russian_stemmer", "english_possessive_stemmer"} {
		if _, ok := filters[name]; !ok {
			t.Errorf("missing filter definition %s", name)
		}
	}
}

func TestIndexSchema_NoPossessiveStemmerWithoutEnglish(t *testing.T) {
	schema := indexSchema([]string{"french"})

	analysis := schema["settings"].(map[string]any)["analysis"].(map[string]any)
	if _, ok := analysis["filter"].(map[string]any)["english_possessive_stemmer"]; ok {
		t.Error("possessive stemmer belongs to english only")
	}
}

func TestIndexSchema_Mappings(t *testing.T) {
	schema := indexSchema([]string{"english"})
	mappings := schema["mappings"].(map[string]any)

	if mappings["dynamic"] != "strict" {
		t.Error("mappings must be strict")
	}

	properties := mappings["properties"].(map[string]any)

	// Sortable raw subfield on title.
	title := properties["title"].(map[string]any)
	if _, ok := title["fields"].(map[string]any)["raw"]; !ok {
		t.Error("title missing raw keyword subfield")
	}

	// People are nested so per-person id+name pairs stay associated.
	for _, field := range []string{"directors", "actors", "writers"} {
		nested := properties[field].(map[string]any)
		if nested["type"] != "nested" {
			t.Errorf("%s must be nested, got %v", field, nested["type"])
		}
	}

	if properties["genres"].(map[string]any)["type"] != "keyword" {
		t.Error("genres must be keyword for exact filtering")
	}
}
