package language

import (
	"sort"
	"strings"
)

// Insertion describes a snippet of text added to a document at a byte index.
type Insertion struct {
	Index int
	Text  string
}

// DefaultFieldNamesFunc produces the field names that are selected by default
// when a selection set has to be filled in for the given composite type.
type DefaultFieldNamesFunc func(schema *Schema, def *Definition) []string

// FillLeafs fills in selection sets for fields whose type requires one but
// where none is present in the document. There is no guarantee the result is
// a valid operation; this is a best effort suited for IDE tooling.
//
// It returns the list of applied insertions and the edited document. When the
// document cannot be parsed or no schema is available, the input is returned
// unchanged with no insertions.
func FillLeafs(schema *Schema, docString string, fieldNames DefaultFieldNamesFunc) ([]Insertion, string) {
	if schema == nil || docString == "" {
		return nil, docString
	}
	doc, err := ParseQuery(docString)
	if err != nil {
		return nil, docString
	}
	if fieldNames == nil {
		fieldNames = DefaultFieldNames
	}

	var insertions []Insertion
	collect := func(parent *Definition, sel SelectionSet) {
		insertions = append(insertions, fillSelectionSet(schema, parent, sel, docString, fieldNames)...)
	}
	for _, op := range doc.Operations {
		var root *Definition
		switch op.Operation {
		case Mutation:
			root = schema.Mutation
		case Subscription:
			root = schema.Subscription
		default:
			root = schema.Query
		}
		if root != nil {
			collect(root, op.SelectionSet)
		}
	}
	for _, frag := range doc.Fragments {
		if parent := schema.Types[frag.TypeCondition]; parent != nil {
			collect(parent, frag.SelectionSet)
		}
	}
	if len(insertions) == 0 {
		return nil, docString
	}
	sort.SliceStable(insertions, func(i, j int) bool { return insertions[i].Index < insertions[j].Index })
	return insertions, withInsertions(docString, insertions)
}

// DefaultFieldNames selects all leaf-type fields of the given type.
func DefaultFieldNames(schema *Schema, def *Definition) []string {
	var names []string
	for _, f := range def.Fields {
		if strings.HasPrefix(f.Name, "__") {
			continue
		}
		named := schema.Types[f.Type.Name()]
		if named != nil && isLeaf(named) {
			names = append(names, f.Name)
		}
	}
	return names
}

func fillSelectionSet(schema *Schema, parent *Definition, sel SelectionSet, src string, fieldNames DefaultFieldNamesFunc) []Insertion {
	var insertions []Insertion
	for _, s := range sel {
		switch node := s.(type) {
		case *Field:
			if strings.HasPrefix(node.Name, "__") {
				continue
			}
			fd := parent.Fields.ForName(node.Name)
			if fd == nil {
				continue
			}
			named := schema.Types[fd.Type.Name()]
			if named == nil {
				continue
			}
			if isComposite(named) && len(node.SelectionSet) == 0 {
				text := printDefaultSelections(schema, named, fieldNames)
				if text == "" {
					continue
				}
				index := selectionInsertIndex(src, node.Position)
				indent := getIndentation(src, index)
				insertions = append(insertions, Insertion{
					Index: index,
					Text:  " " + strings.ReplaceAll(text, "\n", "\n"+indent),
				})
				continue
			}
			insertions = append(insertions, fillSelectionSet(schema, named, node.SelectionSet, src, fieldNames)...)
		case *InlineFragment:
			next := parent
			if node.TypeCondition != "" {
				if def := schema.Types[node.TypeCondition]; def != nil {
					next = def
				}
			}
			insertions = append(insertions, fillSelectionSet(schema, next, node.SelectionSet, src, fieldNames)...)
		}
	}
	return insertions
}

func isComposite(def *Definition) bool {
	return def.Kind == Object || def.Kind == Interface || def.Kind == Union
}

func isLeaf(def *Definition) bool {
	return def.Kind == Scalar || def.Kind == Enum
}

// printDefaultSelections renders a selection set with the default fields of
// def, recursing into composite fields so every path ends in a leaf.
func printDefaultSelections(schema *Schema, def *Definition, fieldNames DefaultFieldNamesFunc) string {
	return printSelectionsIndented(schema, def, fieldNames, "")
}

func printSelectionsIndented(schema *Schema, def *Definition, fieldNames DefaultFieldNamesFunc, indent string) string {
	names := fieldNames(schema, def)
	var lines []string
	for _, name := range names {
		fd := def.Fields.ForName(name)
		if fd == nil {
			continue
		}
		named := schema.Types[fd.Type.Name()]
		if named == nil {
			continue
		}
		if isLeaf(named) {
			lines = append(lines, indent+"  "+name)
			continue
		}
		sub := printSelectionsIndented(schema, named, fieldNames, indent+"  ")
		if sub == "" {
			continue
		}
		lines = append(lines, indent+"  "+name+" "+sub)
	}
	if len(lines) == 0 {
		return ""
	}
	return "{\n" + strings.Join(lines, "\n") + "\n" + indent + "}"
}

// selectionInsertIndex finds the byte offset just past the field, including
// any alias, argument list and directives, where a selection set belongs.
func selectionInsertIndex(src string, pos *Position) int {
	if pos == nil {
		return len(src)
	}
	i := skipIdent(src, pos.Start)
	if j := nextNonSpace(src, i); j < len(src) && src[j] == ':' {
		i = skipIdent(src, nextNonSpace(src, j+1))
	}
	if j := nextNonSpace(src, i); j < len(src) && src[j] == '(' {
		i = skipBalanced(src, j)
	}
	for {
		j := nextNonSpace(src, i)
		if j >= len(src) || src[j] != '@' {
			break
		}
		k := skipIdent(src, j+1)
		if l := nextNonSpace(src, k); l < len(src) && src[l] == '(' {
			k = skipBalanced(src, l)
		}
		i = k
	}
	return i
}

func skipIdent(s string, i int) int {
	for i < len(s) {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	return i
}

func nextNonSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r', ',':
			i++
		default:
			return i
		}
	}
	return i
}

// skipBalanced consumes a parenthesized group starting at s[i] == '(',
// tolerating string literals containing parentheses.
func skipBalanced(s string, i int) int {
	depth := 0
	for i < len(s) {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '"':
			i++
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' {
					i++
				}
				i++
			}
		}
		i++
	}
	return i
}

func withInsertions(initial string, insertions []Insertion) string {
	if len(insertions) == 0 {
		return initial
	}
	var sb strings.Builder
	prev := 0
	for _, ins := range insertions {
		sb.WriteString(initial[prev:ins.Index])
		sb.WriteString(ins.Text)
		prev = ins.Index
	}
	sb.WriteString(initial[prev:])
	return sb.String()
}

// getIndentation returns the whitespace run that opens the line containing
// the given index.
func getIndentation(str string, index int) string {
	indentStart, indentEnd := index, index
	for indentStart > 0 {
		c := str[indentStart-1]
		if c == '\n' || c == '\r' {
			break
		}
		indentStart--
		if c != ' ' && c != '\t' {
			indentEnd = indentStart
		}
	}
	return str[indentStart:indentEnd]
}
