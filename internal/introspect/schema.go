package introspect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hanpama/graphdesk/internal/language"
)

// Introspection response shapes, mirroring the __schema meta-fields.

type schemaData struct {
	Schema *introspectionSchema `json:"__schema"`
}

type introspectionSchema struct {
	Description      *string                  `json:"description"`
	QueryType        *namedTypeRef            `json:"queryType"`
	MutationType     *namedTypeRef            `json:"mutationType"`
	SubscriptionType *namedTypeRef            `json:"subscriptionType"`
	Types            []introspectionType      `json:"types"`
	Directives       []introspectionDirective `json:"directives"`
}

type namedTypeRef struct {
	Name string `json:"name"`
}

type introspectionType struct {
	Kind          string               `json:"kind"`
	Name          string               `json:"name"`
	Description   *string              `json:"description"`
	Fields        []introspectionField `json:"fields"`
	InputFields   []introspectionInput `json:"inputFields"`
	Interfaces    []typeRef            `json:"interfaces"`
	EnumValues    []introspectionEnum  `json:"enumValues"`
	PossibleTypes []typeRef            `json:"possibleTypes"`
}

type introspectionField struct {
	Name              string               `json:"name"`
	Description       *string              `json:"description"`
	Args              []introspectionInput `json:"args"`
	Type              typeRef              `json:"type"`
	IsDeprecated      bool                 `json:"isDeprecated"`
	DeprecationReason *string              `json:"deprecationReason"`
}

type introspectionInput struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	Type              typeRef `json:"type"`
	DefaultValue      *string `json:"defaultValue"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
}

type introspectionEnum struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
}

type introspectionDirective struct {
	Name         string               `json:"name"`
	Description  *string              `json:"description"`
	IsRepeatable bool                 `json:"isRepeatable"`
	Locations    []string             `json:"locations"`
	Args         []introspectionInput `json:"args"`
}

type typeRef struct {
	Kind   string   `json:"kind"`
	Name   string   `json:"name"`
	OfType *typeRef `json:"ofType"`
}

// Names the schema language predeclares; re-emitting them would collide with
// the parser's prelude.
var builtinScalars = map[string]bool{
	"Int": true, "Float": true, "String": true, "Boolean": true, "ID": true,
}

var builtinDirectives = map[string]bool{
	"skip": true, "include": true, "deprecated": true,
	"specifiedBy": true, "defer": true, "oneOf": true,
}

// BuildSchema constructs a schema object from a decoded introspection
// response's data value. The payload is rendered to schema definition
// language and loaded through the regular schema loader, so structural
// problems in the payload surface as load errors.
func BuildSchema(data map[string]any) (*language.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding introspection data: %w", err)
	}
	var decoded schemaData
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding introspection data: %w", err)
	}
	if decoded.Schema == nil {
		return nil, fmt.Errorf("introspection data is missing a __schema key")
	}
	sdl := renderSDL(decoded.Schema)
	return language.LoadSchema("introspection", sdl)
}

func renderSDL(s *introspectionSchema) string {
	var b strings.Builder

	if needsSchemaDefinition(s) {
		writeDescription(&b, s.Description, "")
		b.WriteString("schema {\n")
		if s.QueryType != nil {
			fmt.Fprintf(&b, "  query: %s\n", s.QueryType.Name)
		}
		if s.MutationType != nil {
			fmt.Fprintf(&b, "  mutation: %s\n", s.MutationType.Name)
		}
		if s.SubscriptionType != nil {
			fmt.Fprintf(&b, "  subscription: %s\n", s.SubscriptionType.Name)
		}
		b.WriteString("}\n\n")
	}

	for _, t := range s.Types {
		if strings.HasPrefix(t.Name, "__") || builtinScalars[t.Name] {
			continue
		}
		renderType(&b, t)
		b.WriteString("\n")
	}

	for _, d := range s.Directives {
		if builtinDirectives[d.Name] {
			continue
		}
		renderDirective(&b, d)
		b.WriteString("\n")
	}

	return b.String()
}

// needsSchemaDefinition reports whether the root operation types deviate from
// the default Query/Mutation/Subscription names.
func needsSchemaDefinition(s *introspectionSchema) bool {
	if s.Description != nil {
		return true
	}
	if s.QueryType == nil || s.QueryType.Name != "Query" {
		return true
	}
	if s.MutationType != nil && s.MutationType.Name != "Mutation" {
		return true
	}
	if s.SubscriptionType != nil && s.SubscriptionType.Name != "Subscription" {
		return true
	}
	return false
}

func renderType(b *strings.Builder, t introspectionType) {
	writeDescription(b, t.Description, "")
	switch t.Kind {
	case "SCALAR":
		fmt.Fprintf(b, "scalar %s\n", t.Name)
	case "OBJECT", "INTERFACE":
		keyword := "type"
		if t.Kind == "INTERFACE" {
			keyword = "interface"
		}
		fmt.Fprintf(b, "%s %s", keyword, t.Name)
		if len(t.Interfaces) > 0 {
			names := make([]string, len(t.Interfaces))
			for i, ref := range t.Interfaces {
				names[i] = ref.Name
			}
			fmt.Fprintf(b, " implements %s", strings.Join(names, " & "))
		}
		if len(t.Fields) == 0 {
			b.WriteString("\n")
			return
		}
		b.WriteString(" {\n")
		for _, f := range t.Fields {
			writeDescription(b, f.Description, "  ")
			fmt.Fprintf(b, "  %s%s: %s%s\n",
				f.Name, renderArgs(f.Args), renderTypeRef(f.Type),
				renderDeprecated(f.IsDeprecated, f.DeprecationReason))
		}
		b.WriteString("}\n")
	case "UNION":
		names := make([]string, len(t.PossibleTypes))
		for i, ref := range t.PossibleTypes {
			names[i] = ref.Name
		}
		fmt.Fprintf(b, "union %s = %s\n", t.Name, strings.Join(names, " | "))
	case "ENUM":
		if len(t.EnumValues) == 0 {
			fmt.Fprintf(b, "enum %s\n", t.Name)
			return
		}
		fmt.Fprintf(b, "enum %s {\n", t.Name)
		for _, v := range t.EnumValues {
			writeDescription(b, v.Description, "  ")
			fmt.Fprintf(b, "  %s%s\n", v.Name, renderDeprecated(v.IsDeprecated, v.DeprecationReason))
		}
		b.WriteString("}\n")
	case "INPUT_OBJECT":
		if len(t.InputFields) == 0 {
			fmt.Fprintf(b, "input %s\n", t.Name)
			return
		}
		fmt.Fprintf(b, "input %s {\n", t.Name)
		for _, f := range t.InputFields {
			writeDescription(b, f.Description, "  ")
			fmt.Fprintf(b, "  %s\n", renderInputValue(f))
		}
		b.WriteString("}\n")
	}
}

func renderDirective(b *strings.Builder, d introspectionDirective) {
	writeDescription(b, d.Description, "")
	fmt.Fprintf(b, "directive @%s%s", d.Name, renderArgs(d.Args))
	if d.IsRepeatable {
		b.WriteString(" repeatable")
	}
	fmt.Fprintf(b, " on %s\n", strings.Join(d.Locations, " | "))
}

func renderArgs(args []introspectionInput) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = renderInputValue(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderInputValue(v introspectionInput) string {
	out := v.Name + ": " + renderTypeRef(v.Type)
	if v.DefaultValue != nil {
		out += " = " + *v.DefaultValue
	}
	out += renderDeprecated(v.IsDeprecated, v.DeprecationReason)
	return out
}

func renderTypeRef(ref typeRef) string {
	switch ref.Kind {
	case "NON_NULL":
		if ref.OfType == nil {
			return ""
		}
		return renderTypeRef(*ref.OfType) + "!"
	case "LIST":
		if ref.OfType == nil {
			return ""
		}
		return "[" + renderTypeRef(*ref.OfType) + "]"
	default:
		return ref.Name
	}
}

func renderDeprecated(deprecated bool, reason *string) string {
	if !deprecated {
		return ""
	}
	if reason == nil || *reason == "" {
		return " @deprecated"
	}
	quoted, _ := json.Marshal(*reason)
	return fmt.Sprintf(" @deprecated(reason: %s)", quoted)
}

// writeDescription emits a block-string description with the given indent.
func writeDescription(b *strings.Builder, desc *string, indent string) {
	if desc == nil || *desc == "" {
		return
	}
	escaped := strings.ReplaceAll(*desc, `"""`, `\"""`)
	if strings.Contains(escaped, "\n") {
		fmt.Fprintf(b, "%s\"\"\"\n", indent)
		for _, line := range strings.Split(escaped, "\n") {
			fmt.Fprintf(b, "%s%s\n", indent, line)
		}
		fmt.Fprintf(b, "%s\"\"\"\n", indent)
	} else {
		fmt.Fprintf(b, "%s\"\"\"%s\"\"\"\n", indent, escaped)
	}
}
