// Package workbench composes the tab registry, schema controller, execution
// engine, plugin registry and theme controller into one store. The store is
// the single owner of all mutable state; each slice only writes its own
// fields.
package workbench

import (
	"errors"
	"sync"
	"time"

	"github.com/hanpama/graphdesk/internal/debounce"
	"github.com/hanpama/graphdesk/internal/editor"
	"github.com/hanpama/graphdesk/internal/fetcher"
	"github.com/hanpama/graphdesk/internal/history"
	"github.com/hanpama/graphdesk/internal/language"
	"github.com/hanpama/graphdesk/internal/plugins"
	"github.com/hanpama/graphdesk/internal/storage"
	"github.com/hanpama/graphdesk/internal/tabs"
	"github.com/hanpama/graphdesk/internal/theme"
)

// Persisted storage keys owned by the store.
const (
	queryKey          = "query"
	variablesKey      = "variables"
	headersKey        = "headers"
	persistHeadersKey = "shouldPersistHeaders"
)

const defaultMaxHistoryLength = 20

// ErrNoFetcher is returned by New when no fetcher is configured.
var ErrNoFetcher = errors.New("workbench: a fetcher is required")

// Options configure a Store. Only Fetcher is required.
type Options struct {
	Fetcher fetcher.Fetcher
	Storage *storage.API

	// Initial editor contents. Nil falls back to the resumed tab state and
	// the configured defaults.
	Query     *string
	Variables *string
	Headers   *string
	Response  string

	DefaultQuery   string
	DefaultHeaders string
	// DefaultTabs seeds multiple tabs on first launch instead of the single
	// default tab.
	DefaultTabs []tabs.Definition

	// Schema supplies a schema and disables introspection entirely.
	Schema *language.Schema
	// SchemaDisabled marks the schema as intentionally absent; introspection
	// is skipped and schema-dependent features degrade.
	SchemaDisabled bool

	IntrospectionOperationName string
	InputValueDeprecation      bool
	SchemaDescription          bool

	// ExternalFragments are fragment definitions usable by every operation
	// without being part of the editor text.
	ExternalFragments language.FragmentDefinitionList

	ShouldPersistHeaders bool
	MaxHistoryLength     int

	Plugins       []*plugins.Plugin
	VisiblePlugin string
	OnToggle      func(*plugins.Plugin)

	DefaultTheme  theme.Theme
	OnThemeChange func(theme.Theme)

	OnTabChange         func(tabs.State)
	OnSchemaChange      func(*language.Schema)
	OnEditOperationName func(string)
}

// Store is the workbench state machine.
type Store struct {
	mu sync.Mutex

	opts    Options
	fetcher fetcher.Fetcher
	storage *storage.API

	// Editor slice.
	queryEditor     *editor.Buffer
	variablesEditor *editor.Buffer
	headersEditor   *editor.Buffer
	responseEditor  *editor.Buffer
	facts           editor.Facts
	state           tabs.State

	shouldPersistHeaders bool

	tabUpdate *debounce.Debouncer[string]
	persist   *debounce.Debouncer[struct{}]

	// Schema slice.
	schema           *language.Schema
	schemaResolved   bool // set when supplied externally or disabled
	fetchError       string
	validationErrors []string
	isIntrospecting  bool
	requestCounter   int

	// Execution slice.
	queryID      int
	isFetching   bool
	subscription fetcher.Subscription

	history *history.Store
	plugins *plugins.Store
	theme   *theme.Store
}

// New builds a Store. Configuration-time invariant violations (missing
// fetcher, duplicate plugin titles) fail here, synchronously.
func New(opts Options) (*Store, error) {
	if opts.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	api := opts.Storage
	if api == nil {
		api = storage.NewAPI(nil)
	}
	maxHistory := opts.MaxHistoryLength
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistoryLength
	}

	s := &Store{
		opts:    opts,
		fetcher: opts.Fetcher,
		storage: api,
		history: history.NewStore(api, maxHistory),
	}

	pluginStore, err := plugins.NewStore(plugins.Options{
		Plugins:      opts.Plugins,
		VisibleTitle: opts.VisiblePlugin,
		OnToggle:     opts.OnToggle,
		Storage:      api,
	})
	if err != nil {
		return nil, err
	}
	s.plugins = pluginStore
	s.theme = theme.NewStore(api, opts.DefaultTheme, opts.OnThemeChange)

	if opts.Schema != nil || opts.SchemaDisabled {
		s.schema = opts.Schema
		s.schemaResolved = true
	}

	s.shouldPersistHeaders = opts.ShouldPersistHeaders
	if stored := api.Get(persistHeadersKey); stored != "" {
		s.shouldPersistHeaders = stored == "true"
	}

	s.state = tabs.DefaultState(api, tabs.DefaultStateArgs{
		Query:                valueOr(opts.Query, api.Get(queryKey)),
		Variables:            valueOr(opts.Variables, api.Get(variablesKey)),
		Headers:              valueOr(opts.Headers, api.Get(headersKey)),
		DefaultQuery:         opts.DefaultQuery,
		DefaultHeaders:       opts.DefaultHeaders,
		DefaultTabs:          opts.DefaultTabs,
		ShouldPersistHeaders: s.shouldPersistHeaders,
	})

	active := s.state.Active()
	s.queryEditor = editor.NewBuffer(active.Query)
	s.variablesEditor = editor.NewBuffer(active.Variables)
	s.headersEditor = editor.NewBuffer(active.Headers)
	s.responseEditor = editor.NewBuffer(opts.Response)
	s.facts = editor.DeriveFacts(active.Query, active.OperationName)

	s.tabUpdate = debounce.New(100*time.Millisecond, s.applyQueryToTab)
	s.persist = debounce.New(500*time.Millisecond, func(struct{}) { s.persistNow() })

	s.queryEditor.OnChange(s.onEditQuery)
	s.variablesEditor.OnChange(s.onEditVariables)
	s.headersEditor.OnChange(s.onEditHeaders)

	return s, nil
}

// Close flushes pending persistence work and stops any active execution.
func (s *Store) Close() {
	s.Stop()
	s.tabUpdate.Flush()
	s.persist.Flush()
	s.tabUpdate.Stop()
	s.persist.Stop()
}

func (s *Store) QueryEditor() *editor.Buffer     { return s.queryEditor }
func (s *Store) VariablesEditor() *editor.Buffer { return s.variablesEditor }
func (s *Store) HeadersEditor() *editor.Buffer   { return s.headersEditor }
func (s *Store) ResponseEditor() *editor.Buffer  { return s.responseEditor }

func (s *Store) History() *history.Store { return s.history }
func (s *Store) Plugins() *plugins.Store { return s.plugins }
func (s *Store) Theme() *theme.Store     { return s.theme }

// Facts returns the operation facts derived from the current query text.
func (s *Store) Facts() editor.Facts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facts
}

func (s *Store) IsFetching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFetching
}

func valueOr(override *string, fallback string) string {
	if override != nil {
		return *override
	}
	return fallback
}
