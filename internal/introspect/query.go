// Package introspect builds introspection queries and turns their responses
// back into usable schema objects.
package introspect

import "strings"

// QueryOptions tune the generated introspection query.
type QueryOptions struct {
	// OperationName replaces the default IntrospectionQuery operation name.
	OperationName string
	// SansSubscriptions drops the subscription-type clause for servers that
	// reject it.
	SansSubscriptions bool
	// InputValueDeprecation asks for deprecated input fields and arguments.
	InputValueDeprecation bool
	// SchemaDescription asks for the top-level schema description.
	SchemaDescription bool
}

// Query renders the introspection meta-query with the given options applied.
func Query(opts QueryOptions) string {
	name := opts.OperationName
	if name == "" {
		name = "IntrospectionQuery"
	}

	schemaDescription := ""
	if opts.SchemaDescription {
		schemaDescription = "description"
	}
	subscriptionType := "subscriptionType { name }"
	if opts.SansSubscriptions {
		subscriptionType = ""
	}
	inputDeprecation := func(field string) string {
		if opts.InputValueDeprecation {
			return field
		}
		return ""
	}

	query := `
    query ` + name + ` {
      __schema {
        ` + schemaDescription + `
        queryType { name }
        mutationType { name }
        ` + subscriptionType + `
        types {
          ...FullType
        }
        directives {
          name
          description
          ` + inputDeprecation("isRepeatable") + `
          locations
          args` + inputDeprecation("(includeDeprecated: true)") + ` {
            ...InputValue
          }
        }
      }
    }

    fragment FullType on __Type {
      kind
      name
      description
      fields(includeDeprecated: true) {
        name
        description
        args` + inputDeprecation("(includeDeprecated: true)") + ` {
          ...InputValue
        }
        type {
          ...TypeRef
        }
        isDeprecated
        deprecationReason
      }
      inputFields` + inputDeprecation("(includeDeprecated: true)") + ` {
        ...InputValue
      }
      interfaces {
        ...TypeRef
      }
      enumValues(includeDeprecated: true) {
        name
        description
        isDeprecated
        deprecationReason
      }
      possibleTypes {
        ...TypeRef
      }
    }

    fragment InputValue on __InputValue {
      name
      description
      type { ...TypeRef }
      defaultValue
      ` + inputDeprecation("isDeprecated") + `
      ` + inputDeprecation("deprecationReason") + `
    }

    fragment TypeRef on __Type {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType {
                kind
                name
                ofType {
                  kind
                  name
                  ofType {
                    kind
                    name
                  }
                }
              }
            }
          }
        }
      }
    }
  `

	// Collapse lines left blank by disabled options.
	var lines []string
	for _, line := range strings.Split(query, "\n") {
		if strings.TrimSpace(line) == "" && len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
