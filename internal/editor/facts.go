package editor

import (
	"github.com/hanpama/graphdesk/internal/language"
)

// Facts is the parsed-document metadata derived from the operations editor
// contents, recomputed on every content change.
type Facts struct {
	// DocumentAST is nil while the editor contents do not parse.
	DocumentAST *language.QueryDocument

	// Operations lists the operation definitions of the document.
	Operations []*language.OperationDefinition

	// OperationName is the currently selected operation, empty for an
	// anonymous single operation.
	OperationName string

	// VariableToType maps the selected operation's variables to their
	// declared types.
	VariableToType map[string]*language.Type
}

// DeriveFacts computes the operation facts for query. A previously selected
// operation name is kept as long as the document still defines it; otherwise
// the first operation of the document is selected.
func DeriveFacts(query, previousName string) Facts {
	doc, err := language.ParseQuery(query)
	if err != nil {
		return Facts{}
	}
	facts := Facts{
		DocumentAST: doc,
		Operations:  doc.Operations,
	}
	selected := doc.Operations.ForName(previousName)
	if selected == nil && len(doc.Operations) > 0 {
		selected = doc.Operations[0]
	}
	if selected != nil {
		facts.OperationName = selected.Name
		facts.VariableToType = language.VariableToType(selected)
	}
	return facts
}
