package incremental

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMergeInitialAndDeferredData(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data":    map[string]any{"a": float64(1)},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"data":    map[string]any{"b": float64(2)},
		"hasNext": false,
	}))

	want := map[string]any{
		"data": map[string]any{"a": float64(1), "b": float64(2)},
	}
	if diff := cmp.Diff(want, acc.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeNestedObjectsCombine(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data": map[string]any{"user": map[string]any{"name": "ada"}},
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{
				"data": map[string]any{"email": "ada@example.com"},
				"path": []any{"user"},
			},
		},
		"hasNext": false,
	}))

	want := map[string]any{
		"data": map[string]any{
			"user": map[string]any{"name": "ada", "email": "ada@example.com"},
		},
	}
	if diff := cmp.Diff(want, acc.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergePendingThenCompleted(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data": map[string]any{"a": float64(1)},
		"pending": []any{
			map[string]any{"id": "0", "path": []any{"a"}},
		},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"completed": []any{map[string]any{"id": "0"}},
		"hasNext":   false,
	}))

	want := map[string]any{"data": map[string]any{"a": float64(1)}}
	if diff := cmp.Diff(want, acc.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	require.Empty(t, acc.pending)
}

func TestMergeDeferredDataByID(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data": map[string]any{"hero": map[string]any{"name": "R2-D2"}},
		"pending": []any{
			map[string]any{"id": "0", "path": []any{"hero"}},
		},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{
				"id":   "0",
				"data": map[string]any{"homePlanet": "Naboo"},
			},
		},
		"completed": []any{map[string]any{"id": "0"}},
		"hasNext":   false,
	}))

	want := map[string]any{
		"data": map[string]any{
			"hero": map[string]any{"name": "R2-D2", "homePlanet": "Naboo"},
		},
	}
	if diff := cmp.Diff(want, acc.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeDeferredDataWithSubPath(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data": map[string]any{
			"hero": map[string]any{"friends": []any{map[string]any{"name": "Luke"}}},
		},
		"pending": []any{
			map[string]any{"id": "0", "path": []any{"hero"}},
		},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{
				"id":      "0",
				"subPath": []any{"friends", float64(0)},
				"data":    map[string]any{"homePlanet": "Tatooine"},
			},
		},
		"hasNext": false,
	}))

	want := map[string]any{
		"data": map[string]any{
			"hero": map[string]any{
				"friends": []any{
					map[string]any{"name": "Luke", "homePlanet": "Tatooine"},
				},
			},
		},
	}
	if diff := cmp.Diff(want, acc.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeStreamedItemsByID(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data": map[string]any{"friends": []any{}},
		"pending": []any{
			map[string]any{"id": "0", "path": []any{"friends"}},
		},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{"id": "0", "items": []any{map[string]any{"name": "Luke"}}},
		},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{"id": "0", "items": []any{map[string]any{"name": "Leia"}}},
		},
		"completed": []any{map[string]any{"id": "0"}},
		"hasNext":   false,
	}))

	want := map[string]any{
		"data": map[string]any{
			"friends": []any{
				map[string]any{"name": "Luke"},
				map[string]any{"name": "Leia"},
			},
		},
	}
	if diff := cmp.Diff(want, acc.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeStreamedItemsByExplicitIndex(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data":    map[string]any{"friends": []any{}},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{
				"items": []any{"Luke", "Leia"},
				"path":  []any{"friends", float64(0)},
			},
		},
		"hasNext": false,
	}))

	want := map[string]any{
		"data": map[string]any{"friends": []any{"Luke", "Leia"}},
	}
	if diff := cmp.Diff(want, acc.Result()); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeUnknownIDFaults(t *testing.T) {
	acc := NewAccumulator()

	err := acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{"id": "9", "data": map[string]any{"x": float64(1)}},
		},
		"hasNext": false,
	})
	require.ErrorIs(t, err, ErrInvalidFormat)

	err = acc.Merge(map[string]any{
		"incremental": []any{
			map[string]any{"id": "9", "items": []any{"x"}},
		},
		"hasNext": false,
	})
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestMergeErrorsAccumulate(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data":   map[string]any{"a": nil},
		"errors": []any{map[string]any{"message": "boom"}},
		"pending": []any{
			map[string]any{"id": "0", "path": []any{}},
		},
		"hasNext": true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"completed": []any{
			map[string]any{"id": "0", "errors": []any{map[string]any{"message": "late"}}},
		},
		"hasNext": false,
	}))

	errs, ok := acc.Result()["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 2)
}

func TestMergeExtensions(t *testing.T) {
	acc := NewAccumulator()

	require.NoError(t, acc.Merge(map[string]any{
		"data":       map[string]any{},
		"extensions": map[string]any{"tracing": map[string]any{"version": float64(1)}},
		"hasNext":    true,
	}))
	require.NoError(t, acc.Merge(map[string]any{
		"extensions": map[string]any{"cost": float64(3)},
		"hasNext":    false,
	}))

	want := map[string]any{
		"tracing": map[string]any{"version": float64(1)},
		"cost":    float64(3),
	}
	if diff := cmp.Diff(want, acc.Result()["extensions"]); diff != "" {
		t.Errorf("extensions mismatch (-want +got):\n%s", diff)
	}
}

func TestParts(t *testing.T) {
	parts, ok := Parts([]any{map[string]any{"data": map[string]any{}}})
	require.True(t, ok)
	require.Len(t, parts, 1)

	parts, ok = Parts(map[string]any{"data": map[string]any{}, "hasNext": false})
	require.True(t, ok)
	require.Len(t, parts, 1)

	_, ok = Parts(map[string]any{"data": map[string]any{}})
	require.False(t, ok)

	_, ok = Parts("not a result")
	require.False(t, ok)
}
