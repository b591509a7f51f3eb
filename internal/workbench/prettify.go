package workbench

import (
	"encoding/json"

	"github.com/hanpama/graphdesk/internal/language"
)

// Prettify reformats the three input editors in place: the query is
// reprinted from its AST, variables and headers are re-indented. Contents
// that do not parse are left untouched.
func (s *Store) Prettify() {
	if doc, err := language.ParseQuery(s.queryEditor.GetValue()); err == nil {
		s.queryEditor.SetValue(language.PrintDocument(doc))
	}
	if pretty, ok := formatJSON(s.variablesEditor.GetValue()); ok {
		s.variablesEditor.SetValue(pretty)
	}
	if pretty, ok := formatJSON(s.headersEditor.GetValue()); ok {
		s.headersEditor.SetValue(pretty)
	}
}

// MergeQuery inlines every fragment spread of the current document into its
// operations and replaces the query editor contents with the result. A
// document that does not parse is left untouched.
func (s *Store) MergeQuery() {
	doc, err := language.ParseQuery(s.queryEditor.GetValue())
	if err != nil {
		return
	}
	s.queryEditor.SetValue(language.PrintDocument(language.MergeFragments(doc)))
}

// formatJSON re-indents text when it is valid JSON. Blank input is left
// alone; it is not an error, just nothing to format.
func formatJSON(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return "", false
	}
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", false
	}
	return string(out), true
}
