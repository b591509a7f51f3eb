package language

import (
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates an SDL document into a usable schema.
func LoadSchema(name, sdl string) (*Schema, error) {
	return gqlparser.LoadSchema(&ast.Source{Name: name, Input: sdl})
}

// PrintFragment renders a single fragment definition as SDL.
func PrintFragment(frag *FragmentDefinition) string {
	var sb strings.Builder
	f := formatter.NewFormatter(&sb)
	f.FormatQueryDocument(&QueryDocument{Fragments: FragmentDefinitionList{frag}})
	return strings.TrimRight(sb.String(), "\n")
}

// PrintDocument renders a query document as SDL.
func PrintDocument(doc *QueryDocument) string {
	var sb strings.Builder
	f := formatter.NewFormatter(&sb)
	f.FormatQueryDocument(doc)
	return sb.String()
}

// PrintSchema renders a schema back to SDL.
func PrintSchema(schema *Schema) string {
	if schema == nil {
		return ""
	}
	var sb strings.Builder
	f := formatter.NewFormatter(&sb)
	f.FormatSchema(schema)
	return sb.String()
}

// GetOperation returns the operation with the given name, or the only
// operation of the document when no name is given.
func GetOperation(doc *QueryDocument, name string) *OperationDefinition {
	op := doc.Operations.ForName(name)
	if op == nil && name == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	return op
}

// IsSubscription reports whether the named operation in doc is a
// subscription. An empty name matches a single anonymous operation.
func IsSubscription(doc *QueryDocument, name string) bool {
	if doc == nil {
		return false
	}
	op := GetOperation(doc, name)
	return op != nil && op.Operation == Subscription
}

// VariableToType maps the operation's declared variables to their types.
func VariableToType(op *OperationDefinition) map[string]*Type {
	if op == nil || len(op.VariableDefinitions) == 0 {
		return nil
	}
	m := make(map[string]*Type, len(op.VariableDefinitions))
	for _, vd := range op.VariableDefinitions {
		m[vd.Variable] = vd.Type
	}
	return m
}
