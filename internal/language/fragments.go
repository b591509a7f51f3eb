package language

// FragmentDependencies resolves the external fragment definitions referenced
// by doc. Spreads satisfied by fragments defined inside the document are not
// reported. External fragments may spread further external fragments; the
// transitive closure is returned in first-use order.
func FragmentDependencies(doc *QueryDocument, external map[string]*FragmentDefinition) []*FragmentDefinition {
	if doc == nil || len(external) == 0 {
		return nil
	}
	local := make(map[string]bool, len(doc.Fragments))
	for _, frag := range doc.Fragments {
		local[frag.Name] = true
	}

	var deps []*FragmentDefinition
	seen := map[string]bool{}

	var visit func(sel SelectionSet)
	visit = func(sel SelectionSet) {
		for _, s := range sel {
			switch node := s.(type) {
			case *Field:
				visit(node.SelectionSet)
			case *InlineFragment:
				visit(node.SelectionSet)
			case *FragmentSpread:
				if local[node.Name] || seen[node.Name] {
					continue
				}
				seen[node.Name] = true
				if frag := external[node.Name]; frag != nil {
					deps = append(deps, frag)
					visit(frag.SelectionSet)
				}
			}
		}
	}
	for _, op := range doc.Operations {
		visit(op.SelectionSet)
	}
	for _, frag := range doc.Fragments {
		visit(frag.SelectionSet)
	}
	return deps
}

// MergeFragments inlines all named fragment definitions of doc into its
// operations and deduplicates the resulting selections. Spreads and inline
// fragments carrying directives are left untouched since inlining them would
// change execution semantics.
func MergeFragments(doc *QueryDocument) *QueryDocument {
	frags := make(map[string]*FragmentDefinition, len(doc.Fragments))
	for _, frag := range doc.Fragments {
		frags[frag.Name] = frag
	}

	merged := &QueryDocument{Position: doc.Position}
	for _, op := range doc.Operations {
		clone := *op
		clone.SelectionSet = dedupeSelections(inlineSpreads(frags, op.SelectionSet, map[string]bool{}))
		merged.Operations = append(merged.Operations, &clone)
	}
	return merged
}

func inlineSpreads(frags map[string]*FragmentDefinition, sel SelectionSet, seen map[string]bool) SelectionSet {
	var out SelectionSet
	for _, s := range sel {
		switch node := s.(type) {
		case *Field:
			clone := *node
			clone.SelectionSet = inlineSpreads(frags, node.SelectionSet, seen)
			out = append(out, &clone)
		case *InlineFragment:
			if len(node.Directives) == 0 {
				out = append(out, inlineSpreads(frags, node.SelectionSet, seen)...)
				continue
			}
			clone := *node
			clone.SelectionSet = inlineSpreads(frags, node.SelectionSet, seen)
			out = append(out, &clone)
		case *FragmentSpread:
			if len(node.Directives) > 0 {
				out = append(out, node)
				continue
			}
			if seen[node.Name] {
				continue
			}
			frag := frags[node.Name]
			if frag == nil {
				out = append(out, node)
				continue
			}
			// Guard against spread cycles while descending.
			seen[node.Name] = true
			out = append(out, inlineSpreads(frags, frag.SelectionSet, seen)...)
			delete(seen, node.Name)
		}
	}
	return out
}

func dedupeSelections(sel SelectionSet) SelectionSet {
	byName := map[string]*Field{}
	var out SelectionSet
	for _, s := range sel {
		field, ok := s.(*Field)
		if !ok {
			out = append(out, s)
			continue
		}
		name := field.Name
		if field.Alias != "" {
			name = field.Alias
		}
		existing := byName[name]
		switch {
		case len(field.Directives) > 0:
			out = append(out, field)
		case existing != nil && existing.SelectionSet != nil && field.SelectionSet != nil:
			existing.SelectionSet = append(existing.SelectionSet, field.SelectionSet...)
		case existing == nil:
			clone := *field
			byName[name] = &clone
			out = append(out, &clone)
		}
	}
	for _, s := range out {
		if field, ok := s.(*Field); ok && len(field.SelectionSet) > 0 {
			field.SelectionSet = dedupeSelections(field.SelectionSet)
		}
	}
	return out
}
