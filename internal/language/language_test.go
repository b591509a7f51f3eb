package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	doc, err := ParseQuery("query GetUser($id: ID!) { user(id: $id) { name } }")
	require.NoError(t, err)
	require.Len(t, doc.Operations, 1)
	require.Equal(t, "GetUser", doc.Operations[0].Name)

	_, err = ParseQuery("query Broken {")
	require.Error(t, err)
}

func TestLoadSchema(t *testing.T) {
	schema, err := LoadSchema("test", "type Query { hello: String }")
	require.NoError(t, err)
	require.Equal(t, "Query", schema.Query.Name)

	_, err = LoadSchema("test", "type Query { broken: Undefined }")
	require.Error(t, err)
}

func TestGetOperation(t *testing.T) {
	doc, err := ParseQuery("query A { a } query B { b }")
	require.NoError(t, err)

	require.Equal(t, "B", GetOperation(doc, "B").Name)
	require.Nil(t, GetOperation(doc, "C"))
	// Ambiguous without a name.
	require.Nil(t, GetOperation(doc, ""))

	single, err := ParseQuery("{ a }")
	require.NoError(t, err)
	require.NotNil(t, GetOperation(single, ""))
}

func TestIsSubscription(t *testing.T) {
	doc, err := ParseQuery("query A { a } subscription S { s }")
	require.NoError(t, err)
	require.True(t, IsSubscription(doc, "S"))
	require.False(t, IsSubscription(doc, "A"))
	require.False(t, IsSubscription(nil, ""))
}

func TestVariableToType(t *testing.T) {
	doc, err := ParseQuery("query Q($id: ID!, $limit: Int) { a }")
	require.NoError(t, err)

	m := VariableToType(doc.Operations[0])
	require.Len(t, m, 2)
	require.Equal(t, "ID", m["id"].NamedType)
	require.True(t, m["id"].NonNull)
	require.Equal(t, "Int", m["limit"].NamedType)
	require.False(t, m["limit"].NonNull)
}

func TestPrintFragment(t *testing.T) {
	doc, err := ParseQuery("fragment UserBits on User { id name }")
	require.NoError(t, err)

	printed := PrintFragment(doc.Fragments[0])
	require.Contains(t, printed, "fragment UserBits on User")
	require.Contains(t, printed, "id")
	require.Contains(t, printed, "name")
}

func TestFragmentDependencies(t *testing.T) {
	externalDoc, err := ParseQuery(`
		fragment UserBits on User { id ...Extra }
		fragment Extra on User { email }
		fragment Unused on User { bio }
	`)
	require.NoError(t, err)
	external := map[string]*FragmentDefinition{}
	for _, frag := range externalDoc.Fragments {
		external[frag.Name] = frag
	}

	doc, err := ParseQuery(`
		query Q { user { ...UserBits ...Local } }
		fragment Local on User { name }
	`)
	require.NoError(t, err)

	deps := FragmentDependencies(doc, external)
	require.Len(t, deps, 2)
	require.Equal(t, "UserBits", deps[0].Name)
	require.Equal(t, "Extra", deps[1].Name)
}

func TestFragmentDependenciesLocalWins(t *testing.T) {
	externalDoc, err := ParseQuery("fragment Bits on User { id }")
	require.NoError(t, err)
	external := map[string]*FragmentDefinition{
		"Bits": externalDoc.Fragments[0],
	}

	doc, err := ParseQuery(`
		query Q { user { ...Bits } }
		fragment Bits on User { name }
	`)
	require.NoError(t, err)
	require.Empty(t, FragmentDependencies(doc, external))
}

func TestMergeFragmentsInlinesSpreads(t *testing.T) {
	doc, err := ParseQuery(`
		query Q { user { ...Bits name } }
		fragment Bits on User { id name }
	`)
	require.NoError(t, err)

	merged := MergeFragments(doc)
	printed := PrintDocument(merged)
	require.NotContains(t, printed, "...")
	require.NotContains(t, printed, "fragment Bits")
	require.Contains(t, printed, "id")
	require.Contains(t, printed, "name")
}

func TestMergeFragmentsKeepsDirectiveSpreads(t *testing.T) {
	doc, err := ParseQuery(`
		query Q($flag: Boolean!) { user { ...Bits @include(if: $flag) } }
		fragment Bits on User { id }
	`)
	require.NoError(t, err)

	merged := MergeFragments(doc)
	printed := PrintDocument(merged)
	require.Contains(t, printed, "...Bits")
}

const fillSchema = `
type Query {
  user: User
  name: String
}
type User {
  id: ID
  name: String
  friends: [User]
}
`

func TestFillLeafsAddsSelections(t *testing.T) {
	schema, err := LoadSchema("fill", fillSchema)
	require.NoError(t, err)

	insertions, result := FillLeafs(schema, "{ user }", nil)
	require.NotEmpty(t, insertions)
	require.Contains(t, result, "user {")
	require.Contains(t, result, "id")
	require.Contains(t, result, "name")

	// The result must parse.
	_, err = ParseQuery(result)
	require.NoError(t, err)
}

func TestFillLeafsLeavesCompleteDocumentsAlone(t *testing.T) {
	schema, err := LoadSchema("fill", fillSchema)
	require.NoError(t, err)

	src := "{ user { id } name }"
	insertions, result := FillLeafs(schema, src, nil)
	require.Empty(t, insertions)
	require.Equal(t, src, result)
}

func TestFillLeafsHandlesArgumentsAndDirectives(t *testing.T) {
	schema, err := LoadSchema("fill", `
		type Query { user(id: ID): User }
		type User { name: String }
	`)
	require.NoError(t, err)

	_, result := FillLeafs(schema, `{ user(id: "1") @skip(if: false) }`, nil)
	require.Contains(t, result, `user(id: "1") @skip(if: false) {`)
	_, err = ParseQuery(result)
	require.NoError(t, err)
}

func TestFillLeafsNilSchemaOrBrokenDocument(t *testing.T) {
	schema, err := LoadSchema("fill", fillSchema)
	require.NoError(t, err)

	insertions, result := FillLeafs(nil, "{ user }", nil)
	require.Empty(t, insertions)
	require.Equal(t, "{ user }", result)

	insertions, result = FillLeafs(schema, "{ user", nil)
	require.Empty(t, insertions)
	require.Equal(t, "{ user", result)
}
