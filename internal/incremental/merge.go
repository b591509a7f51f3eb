// Package incremental reassembles one coherent execution result from the
// partial payloads of a GraphQL incremental delivery response (@defer /
// @stream, multipart or equivalent framing).
package incremental

import "errors"

// ErrInvalidFormat is raised when a chunk references a delivery id that was
// never declared via a pending entry. This is the only fatal condition of a
// merge; everything else is applied as it arrives.
var ErrInvalidFormat = errors.New("Invalid incremental delivery format.")

// Path addresses a location inside the accumulated result: string segments
// index objects, int segments index lists.
type Path []any

// Accumulator merges the chunks of one streamed response. It owns the
// id-to-path table for the lifetime of its result, so concurrently merging
// unrelated results never share state.
type Accumulator struct {
	result  map[string]any
	pending map[string]Path
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		result:  map[string]any{},
		pending: map[string]Path{},
	}
}

// Result returns the accumulated execution result.
func (a *Accumulator) Result() map[string]any { return a.result }

// Parts extracts the incremental payload sequence from a decoded response
// value: an array is taken as-is, an object carrying hasNext becomes a
// single-element sequence. The second return is false for complete,
// non-incremental results.
func Parts(result any) ([]any, bool) {
	if list, ok := result.([]any); ok {
		return list, true
	}
	if obj, ok := result.(map[string]any); ok {
		if _, hasNext := obj["hasNext"]; hasNext {
			return []any{obj}, true
		}
	}
	return nil, false
}

// Merge applies one incremental chunk to the accumulated result. Chunks must
// be merged strictly in transport delivery order; the protocol guarantees a
// pending declaration precedes any use of its id, and Merge faults with
// ErrInvalidFormat when that is violated.
func (a *Accumulator) Merge(chunk any) error {
	part, ok := chunk.(map[string]any)
	if !ok {
		return nil
	}

	path := append(Path{"data"}, toPath(part["path"])...)

	for _, source := range []map[string]any{a.result, part} {
		pending, ok := source["pending"].([]any)
		if !ok {
			continue
		}
		for _, entry := range pending {
			decl, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			id, _ := decl["id"].(string)
			if id == "" {
				continue
			}
			a.pending[id] = append(Path{"data"}, toPath(decl["path"])...)
		}
	}

	id, _ := part["id"].(string)

	if items, ok := part["items"].([]any); ok && items != nil {
		if id != "" {
			target, ok := a.pending[id]
			if !ok {
				return ErrInvalidFormat
			}
			list, _ := getIn(a.result, target).([]any)
			a.set(target, append(list, items...), false)
		} else {
			// New list elements are written at successive explicit indices.
			path = append(Path{"data"}, toPath(part["path"])...)
			for _, item := range items {
				a.set(path, item, false)
				last := len(path) - 1
				if index, ok := path[last].(int); ok {
					path[last] = index + 1
				}
			}
		}
	}

	if data, ok := part["data"].(map[string]any); ok && data != nil {
		target := path
		if id != "" {
			declared, ok := a.pending[id]
			if !ok {
				return ErrInvalidFormat
			}
			target = declared
			if subPath, ok := part["subPath"].([]any); ok {
				target = append(append(Path{}, declared...), toPath(subPath)...)
			}
		}
		a.set(target, data, true)
	}

	if errs, ok := part["errors"].([]any); ok {
		a.appendErrors(errs)
	}

	if extensions, ok := part["extensions"].(map[string]any); ok {
		a.set(Path{"extensions"}, extensions, true)
	}

	if nested, ok := part["incremental"].([]any); ok {
		for _, sub := range nested {
			if err := a.Merge(sub); err != nil {
				return err
			}
		}
	}

	if completed, ok := part["completed"].([]any); ok {
		for _, entry := range completed {
			note, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if completedID, _ := note["id"].(string); completedID != "" {
				delete(a.pending, completedID)
			}
			if errs, ok := note["errors"].([]any); ok {
				a.appendErrors(errs)
			}
		}
	}

	return nil
}

func (a *Accumulator) appendErrors(errs []any) {
	existing, _ := a.result["errors"].([]any)
	a.result["errors"] = append(existing, errs...)
}

func (a *Accumulator) set(path Path, value any, merge bool) {
	a.result = setIn(a.result, path, value, merge).(map[string]any)
}

// toPath converts a decoded JSON path array into Path segments. JSON numbers
// arrive as float64 and become int indices.
func toPath(v any) Path {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	path := make(Path, 0, len(raw))
	for _, seg := range raw {
		switch s := seg.(type) {
		case float64:
			path = append(path, int(s))
		case int:
			path = append(path, s)
		default:
			path = append(path, s)
		}
	}
	return path
}

// setIn writes value at path inside container, creating intermediate maps
// and lists as needed, and returns the (possibly replaced) container. With
// merge set, maps at the destination are combined instead of overwritten.
func setIn(container any, path Path, value any, merge bool) any {
	if len(path) == 0 {
		if merge {
			return deepMerge(container, value)
		}
		return value
	}
	switch key := path[0].(type) {
	case string:
		m, ok := container.(map[string]any)
		if !ok || m == nil {
			m = map[string]any{}
		}
		m[key] = setIn(m[key], path[1:], value, merge)
		return m
	case int:
		list, _ := container.([]any)
		for len(list) <= key {
			list = append(list, nil)
		}
		list[key] = setIn(list[key], path[1:], value, merge)
		return list
	default:
		return container
	}
}

// deepMerge combines nested objects key by key rather than overwriting
// siblings; non-object values are replaced by src.
func deepMerge(dst, src any) any {
	dstMap, dstOK := dst.(map[string]any)
	srcMap, srcOK := src.(map[string]any)
	if !dstOK || !srcOK {
		return src
	}
	for key, value := range srcMap {
		dstMap[key] = deepMerge(dstMap[key], value)
	}
	return dstMap
}

// getIn resolves path inside container, returning nil when any segment is
// missing or of the wrong shape.
func getIn(container any, path Path) any {
	current := container
	for _, seg := range path {
		switch key := seg.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return nil
			}
			current = m[key]
		case int:
			list, ok := current.([]any)
			if !ok || key < 0 || key >= len(list) {
				return nil
			}
			current = list[key]
		default:
			return nil
		}
	}
	return current
}
