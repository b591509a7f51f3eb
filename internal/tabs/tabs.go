// Package tabs owns the state of the workbench's editing sessions: one tab
// per session, identity hashing, titles and the persisted serialization.
package tabs

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/hanpama/graphdesk/internal/storage"
)

// StorageKey is the persisted-storage key for the serialized tabs state.
const StorageKey = "tabState"

// DefaultTitle is used when no operation name can be derived from a query.
const DefaultTitle = "<untitled>"

// Definition seeds a new tab with editor contents.
type Definition struct {
	Query     string
	Variables string
	Headers   string
}

// Tab is the state of a single editing session.
type Tab struct {
	// ID is generated when the tab is created and never changes.
	ID string `json:"id"`
	// Hash is derived from the query, variables and headers contents. It is
	// rederived on every mutation and never persisted.
	Hash string `json:"hash,omitempty"`
	// Title is shown in the tab element, derived from the operation name.
	Title         string `json:"title"`
	Query         string `json:"query"`
	Variables     string `json:"variables"`
	Headers       string `json:"headers"`
	OperationName string `json:"operationName"`
	// Response holds the last received response; never persisted.
	Response string `json:"response"`
}

// State describes all tabs. The tab list is never empty and ActiveIndex is
// always in range.
type State struct {
	Tabs        []*Tab `json:"tabs"`
	ActiveIndex int    `json:"activeTabIndex"`
}

// Active returns the currently active tab.
func (s State) Active() *Tab { return s.Tabs[s.ActiveIndex] }

// Hash derives the identity digest of a combination of editor contents.
// It is a pure function of exactly these three values.
func Hash(query, variables, headers string) string {
	return strings.Join([]string{query, variables, headers}, "|")
}

// New creates a tab from the given editor contents.
func New(def Definition) *Tab {
	operationName := FuzzyExtractOperationName(def.Query)
	title := operationName
	if title == "" {
		title = DefaultTitle
	}
	return &Tab{
		ID:            uuid.NewString(),
		Hash:          Hash(def.Query, def.Variables, def.Headers),
		Title:         title,
		Query:         def.Query,
		Variables:     def.Variables,
		Headers:       def.Headers,
		OperationName: operationName,
	}
}

// The first char of a matching line must not be a comment marker. The
// keyword may also start the line, hence the optional lazy prefix.
var operationNameRe = regexp.MustCompile(`(?m)^(?:[^#\r\n][^\r\n]*?)??(query|subscription|mutation)\s+([a-zA-Z0-9_]+)`)

// FuzzyExtractOperationName scans for the first `query|mutation|subscription
// <Name>` on a non-comment line. It returns "" if none is found.
func FuzzyExtractOperationName(query string) string {
	m := operationNameRe.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return m[2]
}

// Partial is a partial tab update; nil fields are left unchanged. The id,
// hash and title of a tab cannot be set directly, they are always rederived.
type Partial struct {
	Query         *string
	Variables     *string
	Headers       *string
	OperationName *string
	Response      *string
}

// SetPropertiesInActiveTab merges partial into the active tab and rederives
// its hash and title. The returned state shares the non-active tabs.
func SetPropertiesInActiveTab(state State, partial Partial) State {
	updated := *state.Active()
	if partial.Query != nil {
		updated.Query = *partial.Query
	}
	if partial.Variables != nil {
		updated.Variables = *partial.Variables
	}
	if partial.Headers != nil {
		updated.Headers = *partial.Headers
	}
	if partial.OperationName != nil {
		updated.OperationName = *partial.OperationName
	}
	if partial.Response != nil {
		updated.Response = *partial.Response
	}
	updated.Hash = Hash(updated.Query, updated.Variables, updated.Headers)
	updated.Title = updated.OperationName
	if updated.Title == "" {
		updated.Title = FuzzyExtractOperationName(updated.Query)
	}
	if updated.Title == "" {
		updated.Title = DefaultTitle
	}

	out := State{Tabs: make([]*Tab, len(state.Tabs)), ActiveIndex: state.ActiveIndex}
	copy(out.Tabs, state.Tabs)
	out.Tabs[state.ActiveIndex] = &updated
	return out
}

// persistedTab controls which fields survive serialization: hash and
// response are always stripped, headers only when persistence is enabled.
type persistedTab struct {
	ID            string  `json:"id"`
	Hash          *string `json:"hash"`
	Title         string  `json:"title"`
	Query         string  `json:"query"`
	Variables     string  `json:"variables"`
	Headers       *string `json:"headers"`
	OperationName string  `json:"operationName"`
	Response      *string `json:"response"`
}

type persistedState struct {
	Tabs        []persistedTab `json:"tabs"`
	ActiveIndex int            `json:"activeTabIndex"`
}

// Serialize renders state for storage.
func Serialize(state State, persistHeaders bool) (string, error) {
	out := persistedState{ActiveIndex: state.ActiveIndex}
	for _, tab := range state.Tabs {
		p := persistedTab{
			ID:            tab.ID,
			Title:         tab.Title,
			Query:         tab.Query,
			Variables:     tab.Variables,
			OperationName: tab.OperationName,
		}
		if persistHeaders {
			headers := tab.Headers
			p.Headers = &headers
		}
		out.Tabs = append(out.Tabs, p)
	}
	data, err := json.Marshal(out)
	return string(data), err
}

var errInvalidState = errors.New("storage for tabs is invalid")

// Deserialize parses and structurally validates a persisted tabs state.
// Stored null values collapse to empty strings.
func Deserialize(raw string) (State, error) {
	if raw == "" {
		return State{}, errors.New("storage for tabs is empty")
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return State{}, err
	}
	rawIndex, ok := root["activeTabIndex"]
	if !ok {
		return State{}, errInvalidState
	}
	var index int
	if err := json.Unmarshal(rawIndex, &index); err != nil {
		return State{}, errInvalidState
	}
	rawTabs, ok := root["tabs"]
	if !ok {
		return State{}, errInvalidState
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(rawTabs, &items); err != nil {
		return State{}, errInvalidState
	}

	state := State{ActiveIndex: index}
	for _, item := range items {
		tab := &Tab{}
		if !takeString(item, "id", &tab.ID) || !takeString(item, "title", &tab.Title) {
			return State{}, errInvalidState
		}
		for key, dst := range map[string]*string{
			"query":         &tab.Query,
			"variables":     &tab.Variables,
			"headers":       &tab.Headers,
			"operationName": &tab.OperationName,
			"response":      &tab.Response,
		} {
			if !takeNullableString(item, key, dst) {
				return State{}, errInvalidState
			}
		}
		state.Tabs = append(state.Tabs, tab)
	}
	if len(state.Tabs) == 0 || index < 0 || index >= len(state.Tabs) {
		return State{}, errInvalidState
	}
	return state, nil
}

func takeString(item map[string]json.RawMessage, key string, dst *string) bool {
	raw, ok := item[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil && string(raw) != "null"
}

func takeNullableString(item map[string]json.RawMessage, key string, dst *string) bool {
	raw, ok := item[key]
	if !ok {
		return false
	}
	if string(raw) == "null" {
		*dst = ""
		return true
	}
	return json.Unmarshal(raw, dst) == nil
}

// DefaultStateArgs carries the current editor contents and configured
// defaults used to build or resume the initial tabs state.
type DefaultStateArgs struct {
	Query          string
	Variables      string
	Headers        string
	DefaultQuery   string
	DefaultHeaders string
	// DefaultTabs overrides the single default tab derived from the values
	// above when no persisted state exists.
	DefaultTabs          []Definition
	ShouldPersistHeaders bool
}

// DefaultState reads the persisted tabs state and reconciles it with the
// currently supplied editor contents: a persisted tab whose rederived hash
// equals the hash of the current contents is resumed; otherwise a new tab
// carrying the current contents is appended and becomes active. When nothing
// usable is persisted, a fresh state is built from the defaults.
//
// Matching is by content hash alone; two tabs with identical contents are
// indistinguishable and the first match wins.
func DefaultState(store *storage.API, args DefaultStateArgs) State {
	query := args.Query
	if query == "" {
		query = args.DefaultQuery
	}
	headers := args.Headers
	if headers == "" {
		headers = args.DefaultHeaders
	}

	persisted, err := Deserialize(store.Get(StorageKey))
	if err != nil {
		defs := args.DefaultTabs
		if len(defs) == 0 {
			defs = []Definition{{Query: query, Variables: args.Variables, Headers: headers}}
		}
		fresh := State{}
		for _, def := range defs {
			fresh.Tabs = append(fresh.Tabs, New(def))
		}
		return fresh
	}

	// When headers are not persisted the expected hash must not include the
	// header contents, or a new tab appears on every reload.
	headersForHash := ""
	if args.ShouldPersistHeaders {
		headersForHash = headers
	}
	expected := Hash(query, args.Variables, headersForHash)

	matching := -1
	for i, tab := range persisted.Tabs {
		tab.Hash = Hash(tab.Query, tab.Variables, tab.Headers)
		if matching < 0 && tab.Hash == expected {
			matching = i
		}
	}
	if matching >= 0 {
		persisted.ActiveIndex = matching
		return persisted
	}

	operationName := FuzzyExtractOperationName(query)
	title := operationName
	if title == "" {
		title = DefaultTitle
	}
	persisted.Tabs = append(persisted.Tabs, &Tab{
		ID:            uuid.NewString(),
		Hash:          expected,
		Title:         title,
		Query:         query,
		Variables:     args.Variables,
		Headers:       headers,
		OperationName: operationName,
	})
	persisted.ActiveIndex = len(persisted.Tabs) - 1
	return persisted
}

// ClearHeadersFromTabs strips header contents from the persisted tabs blob,
// used when header persistence gets turned off.
func ClearHeadersFromTabs(store *storage.API) {
	raw := store.Get(StorageKey)
	if raw == "" {
		return
	}
	state, err := Deserialize(raw)
	if err != nil {
		return
	}
	for _, tab := range state.Tabs {
		tab.Headers = ""
	}
	serialized, err := Serialize(state, false)
	if err != nil {
		return
	}
	_ = store.Set(StorageKey, serialized)
}
