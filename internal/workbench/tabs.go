package workbench

import (
	"context"

	"github.com/hanpama/graphdesk/internal/editor"
	"github.com/hanpama/graphdesk/internal/eventbus"
	"github.com/hanpama/graphdesk/internal/events"
	"github.com/hanpama/graphdesk/internal/fetcher"
	"github.com/hanpama/graphdesk/internal/language"
	"github.com/hanpama/graphdesk/internal/tabs"
)

// TabState returns the current tab registry state.
func (s *Store) TabState() tabs.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) ShouldPersistHeaders() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldPersistHeaders
}

// onEditQuery recomputes the operation facts immediately and folds the new
// text into the active tab after a short debounce, so rapid keystrokes do
// not churn the registry.
func (s *Store) onEditQuery(value string) {
	s.mu.Lock()
	previousName := s.facts.OperationName
	s.facts = editor.DeriveFacts(value, previousName)
	newName := s.facts.OperationName
	onEditOperationName := s.opts.OnEditOperationName
	s.mu.Unlock()

	if newName != previousName && onEditOperationName != nil {
		onEditOperationName(newName)
	}
	s.tabUpdate.Call(value)
}

// applyQueryToTab is the debounced tail of onEditQuery.
func (s *Store) applyQueryToTab(value string) {
	s.mu.Lock()
	name := s.facts.OperationName
	s.state = tabs.SetPropertiesInActiveTab(s.state, tabs.Partial{
		Query:         &value,
		OperationName: &name,
	})
	s.mu.Unlock()

	s.storage.Set(queryKey, value)
	s.schedulePersist()
	s.notifyTabs()
}

func (s *Store) onEditVariables(value string) {
	s.mu.Lock()
	s.state = tabs.SetPropertiesInActiveTab(s.state, tabs.Partial{Variables: &value})
	s.mu.Unlock()

	s.storage.Set(variablesKey, value)
	s.schedulePersist()
	s.notifyTabs()
}

func (s *Store) onEditHeaders(value string) {
	s.mu.Lock()
	s.state = tabs.SetPropertiesInActiveTab(s.state, tabs.Partial{Headers: &value})
	persist := s.shouldPersistHeaders
	s.mu.Unlock()

	if persist {
		s.storage.Set(headersKey, value)
	}
	s.schedulePersist()
	s.notifyTabs()
}

// AddTab captures the live editor contents into the current tab, appends a
// fresh tab seeded from the defaults and switches to it.
func (s *Store) AddTab() {
	s.syncActiveTabFromEditors()

	s.mu.Lock()
	tab := tabs.New(tabs.Definition{
		Query:   s.opts.DefaultQuery,
		Headers: s.opts.DefaultHeaders,
	})
	s.state.Tabs = append(s.state.Tabs, tab)
	s.state.ActiveIndex = len(s.state.Tabs) - 1
	s.mu.Unlock()

	s.pushActiveTabToEditors()
	s.schedulePersist()
	s.notifyTabs()
}

// ChangeTab switches the active tab. Any in-flight execution is stopped so a
// late response cannot land in the wrong tab.
func (s *Store) ChangeTab(index int) {
	// Settle any pending edit into the outgoing tab first.
	s.tabUpdate.Flush()

	s.mu.Lock()
	if index < 0 || index >= len(s.state.Tabs) || index == s.state.ActiveIndex {
		s.mu.Unlock()
		return
	}
	sub := s.stopLocked()
	s.state.ActiveIndex = index
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.pushActiveTabToEditors()
	s.schedulePersist()
	s.notifyTabs()
}

// MoveTab reorders the tab list. order maps new positions to current
// indices; anything other than a complete permutation is ignored. The active
// tab is preserved by identity, not by position.
func (s *Store) MoveTab(order []int) {
	s.mu.Lock()
	if len(order) != len(s.state.Tabs) {
		s.mu.Unlock()
		return
	}
	seen := make(map[int]bool, len(order))
	for _, i := range order {
		if i < 0 || i >= len(s.state.Tabs) || seen[i] {
			s.mu.Unlock()
			return
		}
		seen[i] = true
	}

	active := s.state.Active()
	reordered := make([]*tabs.Tab, len(order))
	for pos, i := range order {
		reordered[pos] = s.state.Tabs[i]
		if s.state.Tabs[i] == active {
			s.state.ActiveIndex = pos
		}
	}
	s.state.Tabs = reordered
	s.mu.Unlock()

	s.schedulePersist()
	s.notifyTabs()
}

// CloseTab removes a tab. Closing the active tab stops any in-flight
// execution first; the new active tab is the previous one, falling back to
// the first.
func (s *Store) CloseTab(index int) {
	s.tabUpdate.Flush()

	s.mu.Lock()
	if index < 0 || index >= len(s.state.Tabs) || len(s.state.Tabs) == 1 {
		s.mu.Unlock()
		return
	}
	var sub fetcher.Subscription
	if index == s.state.ActiveIndex {
		sub = s.stopLocked()
	}
	s.state.Tabs = append(s.state.Tabs[:index], s.state.Tabs[index+1:]...)
	if s.state.ActiveIndex > 0 {
		s.state.ActiveIndex--
	}
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.pushActiveTabToEditors()
	s.schedulePersist()
	s.notifyTabs()
}

// UpdateActiveTabValues merges a partial update into the active tab. The id,
// hash and title cannot be set; they are rederived.
func (s *Store) UpdateActiveTabValues(partial tabs.Partial) {
	s.mu.Lock()
	s.state = tabs.SetPropertiesInActiveTab(s.state, partial)
	s.mu.Unlock()

	s.schedulePersist()
	s.notifyTabs()
}

// SetOperationName selects which operation of a multi-operation document
// runs.
func (s *Store) SetOperationName(name string) {
	s.mu.Lock()
	s.facts.OperationName = name
	if s.facts.DocumentAST != nil {
		if op := s.facts.DocumentAST.Operations.ForName(name); op != nil {
			s.facts.VariableToType = language.VariableToType(op)
		}
	}
	s.state = tabs.SetPropertiesInActiveTab(s.state, tabs.Partial{OperationName: &name})
	onEditOperationName := s.opts.OnEditOperationName
	s.mu.Unlock()

	if onEditOperationName != nil {
		onEditOperationName(name)
	}
	s.schedulePersist()
	s.notifyTabs()
}

// SetShouldPersistHeaders toggles header persistence. Enabling immediately
// persists the current headers and re-serializes the tab state with headers
// included; disabling wipes headers from everything already persisted.
func (s *Store) SetShouldPersistHeaders(persist bool) {
	s.mu.Lock()
	s.shouldPersistHeaders = persist
	s.mu.Unlock()

	if persist {
		s.storage.Set(headersKey, s.headersEditor.GetValue())
		s.persistNow()
	} else {
		s.storage.Set(headersKey, "")
		tabs.ClearHeadersFromTabs(s.storage)
	}
	value := "false"
	if persist {
		value = "true"
	}
	s.storage.Set(persistHeadersKey, value)
}

// syncActiveTabFromEditors folds the live editor contents into the active
// tab so no edits are lost before a structural change.
func (s *Store) syncActiveTabFromEditors() {
	// The sync below captures the freshest text, so any pending debounced
	// update is superseded and must not fire into a different tab later.
	s.tabUpdate.Stop()

	query := s.queryEditor.GetValue()
	variables := s.variablesEditor.GetValue()
	headers := s.headersEditor.GetValue()
	response := s.responseEditor.GetValue()

	s.mu.Lock()
	name := s.facts.OperationName
	s.state = tabs.SetPropertiesInActiveTab(s.state, tabs.Partial{
		Query:         &query,
		Variables:     &variables,
		Headers:       &headers,
		Response:      &response,
		OperationName: &name,
	})
	s.mu.Unlock()
}

// pushActiveTabToEditors writes the newly active tab's stored values into
// the editor handles.
func (s *Store) pushActiveTabToEditors() {
	s.mu.Lock()
	tab := *s.state.Active()
	s.mu.Unlock()

	s.queryEditor.SetValue(tab.Query)
	s.variablesEditor.SetValue(tab.Variables)
	s.headersEditor.SetValue(tab.Headers)
	s.responseEditor.SetValue(tab.Response)
}

func (s *Store) schedulePersist() {
	s.persist.Call(struct{}{})
}

// persistNow serializes the tab state to storage immediately.
func (s *Store) persistNow() {
	s.mu.Lock()
	state := s.state
	persistHeaders := s.shouldPersistHeaders
	s.mu.Unlock()

	serialized, err := tabs.Serialize(state, persistHeaders)
	if err != nil {
		return
	}
	s.storage.Set(tabs.StorageKey, serialized)
}

func (s *Store) notifyTabs() {
	s.mu.Lock()
	state := s.state
	onTabChange := s.opts.OnTabChange
	s.mu.Unlock()

	eventbus.Publish(context.Background(), events.TabsChange{
		TabCount:    len(state.Tabs),
		ActiveIndex: state.ActiveIndex,
	})
	if onTabChange != nil {
		onTabChange(state)
	}
}
