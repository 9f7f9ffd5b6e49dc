// Package diff compares a desired job against its remote counterpart and
// reports the differences as path-addressed records.
package diff

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
)

// Kind classifies a single difference.
type Kind string

// Difference kinds.
const (
	ValuesChanged         Kind = "values_changed"
	DictionaryItemAdded   Kind = "dictionary_item_added"
	DictionaryItemRemoved Kind = "dictionary_item_removed"
	IterableItemAdded     Kind = "iterable_item_added"
	IterableItemRemoved   Kind = "iterable_item_removed"
)

// Difference is one changed location. OldValue is the remote side and
// NewValue the desired side.
type Difference struct {
	Path     string `json:"path"`
	Kind     Kind   `json:"kind"`
	OldValue any    `json:"old_value,omitempty"`
	NewValue any    `json:"new_value,omitempty"`
}

func (d Difference) String() string {
	switch d.Kind {
	case DictionaryItemAdded, IterableItemAdded:
		return fmt.Sprintf("%s: + %v", d.Path, d.NewValue)
	case DictionaryItemRemoved, IterableItemRemoved:
		return fmt.Sprintf("%s: - %v", d.Path, d.OldValue)
	default:
		return fmt.Sprintf("%s: %v -> %v", d.Path, d.OldValue, d.NewValue)
	}
}

// StructuredDiff is an ordered list of differences, sorted by path.
type StructuredDiff []Difference

// Empty reports whether there are no differences.
func (s StructuredDiff) Empty() bool {
	return len(s) == 0
}

// Paths returns the path of every difference.
func (s StructuredDiff) Paths() []string {
	paths := make([]string, 0, len(s))
	for _, d := range s {
		paths = append(paths, d.Path)
	}
	return paths
}

// excludedFields never take part in a job comparison: the remote id is
// absent from configuration, env vars are compared separately, and the
// remote service does not store linked_id.
var excludedFields = []string{"id", "custom_environment_variables", "linked_id"}

// unorderedPaths are sequences compared regardless of element order.
var unorderedPaths = map[string]bool{
	"job_completion_trigger_condition.condition.statuses": true,
}

// CompareJobs reports whether desired and remote are equivalent and, if
// not, where they differ.
func CompareJobs(desired, remote *job.Job) (bool, StructuredDiff, error) {
	want, err := project(desired)
	if err != nil {
		return false, nil, err
	}
	got, err := project(remote)
	if err != nil {
		return false, nil, err
	}

	r := &reporter{}
	cmp.Equal(got, want, cmp.Reporter(r), cmpopts.EquateEmpty(), unorderedOption())

	sort.SliceStable(r.diffs, func(i, j int) bool {
		if r.diffs[i].Path != r.diffs[j].Path {
			return r.diffs[i].Path < r.diffs[j].Path
		}
		return r.diffs[i].Kind < r.diffs[j].Kind
	})
	return len(r.diffs) == 0, r.diffs, nil
}

func project(j *job.Job) (map[string]any, error) {
	fields, err := j.Fields()
	if err != nil {
		return nil, err
	}
	for _, key := range excludedFields {
		delete(fields, key)
	}
	collapse(fields)
	return fields, nil
}

// collapse replaces empty collections with nil so that absent, null and
// empty compare equal once values are boxed in interfaces.
func collapse(m map[string]any) {
	for k, v := range m {
		m[k] = collapseValue(v)
	}
}

func collapseValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
		collapse(t)
		return t
	case []any:
		if len(t) == 0 {
			return nil
		}
		for i := range t {
			t[i] = collapseValue(t[i])
		}
		return t
	default:
		return v
	}
}

func unorderedOption() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		return unorderedPaths[dottedKeys(p)]
	}, cmpopts.SortSlices(func(a, b any) bool {
		af, aok := a.(float64)
		bf, bok := b.(float64)
		if aok && bok {
			return af < bf
		}
		return fmt.Sprint(a) < fmt.Sprint(b)
	}))
}

func dottedKeys(p cmp.Path) string {
	var keys []string
	for _, step := range p {
		if mi, ok := step.(cmp.MapIndex); ok {
			keys = append(keys, fmt.Sprint(mi.Key().Interface()))
		}
	}
	return strings.Join(keys, ".")
}

type reporter struct {
	path  cmp.Path
	diffs StructuredDiff
}

func (r *reporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *reporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func (r *reporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}

	vx, vy := r.path.Last().Values()
	d := Difference{Path: bracketPath(r.path)}
	inSlice := lastIndexIsSlice(r.path)

	switch {
	case !vx.IsValid():
		d.Kind = DictionaryItemAdded
		if inSlice {
			d.Kind = IterableItemAdded
		}
		d.NewValue = value(vy)
	case !vy.IsValid():
		d.Kind = DictionaryItemRemoved
		if inSlice {
			d.Kind = IterableItemRemoved
		}
		d.OldValue = value(vx)
	default:
		d.Kind = ValuesChanged
		d.OldValue = value(vx)
		d.NewValue = value(vy)
	}
	r.diffs = append(r.diffs, d)
}

func value(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

func lastIndexIsSlice(p cmp.Path) bool {
	for i := len(p) - 1; i >= 0; i-- {
		switch p[i].(type) {
		case cmp.SliceIndex:
			return true
		case cmp.MapIndex:
			return false
		}
	}
	return false
}

// bracketPath renders a path as root['settings']['threads'] or root['execute_steps'][1].
func bracketPath(p cmp.Path) string {
	var b strings.Builder
	b.WriteString("root")
	for _, step := range p {
		switch s := step.(type) {
		case cmp.MapIndex:
			fmt.Fprintf(&b, "['%v']", s.Key().Interface())
		case cmp.SliceIndex:
			ix, iy := s.SplitKeys()
			if ix < 0 {
				ix = iy
			}
			fmt.Fprintf(&b, "[%d]", ix)
		}
	}
	return b.String()
}
