package elasticsearch

import "fmt"

// indexSchema builds the statically declared settings+mappings descriptor
// for the movies index. Free-text fields share one combined analyzer:
// lowercase, then stopword removal and stemming per configured language.
func indexSchema(languages []string) map[string]any {
	filters := map[string]any{}
	var chain []string

	chain = append(chain, "lowercase")
	for _, lang := range languages {
		stop := fmt.Sprintf("%s_stop", lang)
		filters[stop] = map[string]any{
			"type":      "stop",
			"stopwords": fmt.Sprintf("_%s_", lang),
		}
		chain = append(chain, stop)
	}
	for _, lang := range languages {
		if lang == "english" {
			// Strip trailing 's before the english stemmer runs.
			filters["english_possessive_stemmer"] = map[string]any{
				"type":     "stemmer",
				"language": "possessive_english",
			}
			chain = append(chain, "english_possessive_stemmer")
		}
		stemmer := fmt.Sprintf("%s_stemmer", lang)
		filters[stemmer] = map[string]any{
			"type":     "stemmer",
			"language": lang,
		}
		chain = append(chain, stemmer)
	}

	text := func() map[string]any {
		return map[string]any{
			"type":     "text",
			"analyzer": "multilang",
		}
	}
	nestedPeople := func() map[string]any {
		return map[string]any{
			"type":    "nested",
			"dynamic": "strict",
			"properties": map[string]any{
				"id":   map[string]any{"type": "keyword"},
				"name": text(),
			},
		}
	}

	title := text()
	title["fields"] = map[string]any{
		"raw": map[string]any{"type": "keyword"},
	}

	return map[string]any{
		"settings": map[string]any{
			"refresh_interval": "1s",
			"analysis": map[string]any{
				"filter": filters,
				"analyzer": map[string]any{
					"multilang": map[string]any{
						"tokenizer": "standard",
						"filter":    chain,
					},
				},
			},
		},
		"mappings": map[string]any{
			"dynamic": "strict",
			"properties": map[string]any{
				"id":              map[string]any{"type": "keyword"},
				"imdb_rating":     map[string]any{"type": "float"},
				"genres":          map[string]any{"type": "keyword"},
				"title":           title,
				"description":     text(),
				"directors_names": text(),
				"actors_names":    text(),
				"writers_names":   text(),
				"directors":       nestedPeople(),
				"actors":          nestedPeople(),
				"writers":         nestedPeople(),
			},
		},
	}
}
