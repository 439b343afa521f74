package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// isoMillis is the normalised wire form of audited dates.
const isoMillis = "2006-01-02T15:04:05.000Z"

// noAssignees renders an empty assignment list.
const noAssignees = "None"

type fieldKind int

const (
	kindScalar fieldKind = iota
	kindDate
	kindRefs
)

// fieldSpec describes one patchable field of T.
type fieldSpec[T any] struct {
	kind   fieldKind
	get    func(*T) any
	decode func(json.RawMessage) (any, error)
	set    func(*T, any)
}

// RefResolver maps employee ids to display names. Unknown ids are absent from the result.
type RefResolver func(ctx context.Context, ids []string) (map[string]string, error)

// RefFilter narrows a proposed reference list before it is compared.
type RefFilter func(ctx context.Context, ids []string) ([]string, error)

// DiffEngine compares a JSON patch against an entity without mutating it.
type DiffEngine[T any] struct {
	fields map[string]fieldSpec[T]
}

// ChangeSet is the outcome of DiffEngine.Compute.
type ChangeSet[T any] struct {
	Diff    domain.Diff
	setters []func(*T)
}

// Empty reports whether no field changed.
func (c *ChangeSet[T]) Empty() bool {
	return len(c.Diff) == 0
}

// Fields returns the changed field names sorted.
func (c *ChangeSet[T]) Fields() []string {
	names := make([]string, 0, len(c.Diff))
	for name := range c.Diff {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Note renders the audit note for an update.
func (c *ChangeSet[T]) Note() string {
	return "Updated fields: " + strings.Join(c.Fields(), ", ")
}

// Apply writes the accepted values onto entity.
func (c *ChangeSet[T]) Apply(entity *T) {
	for _, set := range c.setters {
		set(entity)
	}
}

// Compute builds the change set for patch. Unknown keys are ignored; a known key
// with an unusable value fails the whole patch with a validation error.
func (e *DiffEngine[T]) Compute(ctx context.Context, entity *T, patch map[string]json.RawMessage, resolve RefResolver, filter RefFilter) (*ChangeSet[T], error) {
	cs := &ChangeSet[T]{Diff: domain.Diff{}}

	keys := make([]string, 0, len(patch))
	for key := range patch {
		if _, ok := e.fields[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		field := e.fields[key]
		next, err := field.decode(patch[key])
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("Invalid value for %s", key), map[string]any{"field": key})
		}
		current := field.get(entity)

		switch field.kind {
		case kindScalar:
			if reflect.DeepEqual(current, next) {
				continue
			}
			cs.Diff[key] = domain.Change{From: current, To: next}
		case kindDate:
			from, to := isoDate(current.(*time.Time)), isoDate(next.(*time.Time))
			if from == to {
				continue
			}
			cs.Diff[key] = domain.Change{From: nullableString(from), To: nullableString(to)}
		case kindRefs:
			ids := next.([]string)
			if filter != nil {
				if ids, err = filter(ctx, ids); err != nil {
					return nil, err
				}
			}
			next = ids
			old := current.([]string)
			if sameIDSet(old, ids) {
				continue
			}
			from, to, err := refNames(ctx, resolve, old, ids)
			if err != nil {
				return nil, err
			}
			if from != to {
				cs.Diff[key] = domain.Change{From: from, To: to}
			}
		}

		set, value := field.set, next
		cs.setters = append(cs.setters, func(t *T) { set(t, value) })
	}
	return cs, nil
}

func stringField[T any](get func(*T) *string) fieldSpec[T] {
	return fieldSpec[T]{
		kind: kindScalar,
		get:  func(t *T) any { return *get(t) },
		decode: func(raw json.RawMessage) (any, error) {
			var v string
			if isNull(raw) {
				return "", nil
			}
			err := json.Unmarshal(raw, &v)
			return v, err
		},
		set: func(t *T, v any) { *get(t) = v.(string) },
	}
}

func requiredStringField[T any](get func(*T) *string) fieldSpec[T] {
	field := stringField(get)
	decode := field.decode
	field.decode = func(raw json.RawMessage) (any, error) {
		v, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(v.(string)) == "" {
			return nil, fmt.Errorf("empty value")
		}
		return v, nil
	}
	return field
}

// enumField handles string-backed enums with a validity check.
func enumField[T any, E ~string](get func(*T) *E, valid func(E) bool) fieldSpec[T] {
	return fieldSpec[T]{
		kind: kindScalar,
		get:  func(t *T) any { return *get(t) },
		decode: func(raw json.RawMessage) (any, error) {
			var v E
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			if !valid(v) {
				return nil, fmt.Errorf("invalid value %q", v)
			}
			return v, nil
		},
		set: func(t *T, v any) { *get(t) = v.(E) },
	}
}

func stringListField[T any](get func(*T) *[]string) fieldSpec[T] {
	return fieldSpec[T]{
		kind: kindScalar,
		get:  func(t *T) any { return nonNil(*get(t)) },
		decode: func(raw json.RawMessage) (any, error) {
			var v []string
			if isNull(raw) {
				return []string{}, nil
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return nonNil(v), nil
		},
		set: func(t *T, v any) { *get(t) = v.([]string) },
	}
}

func dateField[T any](get func(*T) **time.Time) fieldSpec[T] {
	return fieldSpec[T]{
		kind: kindDate,
		get:  func(t *T) any { return *get(t) },
		decode: func(raw json.RawMessage) (any, error) {
			if isNull(raw) {
				return (*time.Time)(nil), nil
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
			return parseDate(s)
		},
		set: func(t *T, v any) { *get(t) = v.(*time.Time) },
	}
}

func refsField[T any](get func(*T) *[]string) fieldSpec[T] {
	return fieldSpec[T]{
		kind: kindRefs,
		get:  func(t *T) any { return nonNil(*get(t)) },
		decode: func(raw json.RawMessage) (any, error) {
			return decodeRefs(raw)
		},
		set: func(t *T, v any) { *get(t) = v.([]string) },
	}
}

// decodeRefs accepts null, a single id or an array of ids and dedupes them.
func decodeRefs(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		var one string
		if errOne := json.Unmarshal(raw, &one); errOne != nil {
			return nil, err
		}
		many = []string{one}
	}
	return dedupe(many), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseDate accepts RFC 3339 timestamps, zone-less timestamps (read as UTC) and plain dates.
// An empty string clears the date.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC().Truncate(time.Millisecond)
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unparseable date %q", s)
}

func isoDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(isoMillis)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameIDSet(a, b []string) bool {
	a, b = dedupe(a), dedupe(b)
	if len(a) != len(b) {
		return false
	}
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func refNames(ctx context.Context, resolve RefResolver, from, to []string) (string, string, error) {
	if resolve == nil {
		return joinNames(nil, from), joinNames(nil, to), nil
	}
	names, err := resolve(ctx, dedupe(append(append([]string{}, from...), to...)))
	if err != nil {
		return "", "", err
	}
	return joinNames(names, from), joinNames(names, to), nil
}

// joinNames renders ids as sorted display names, skipping ids without a name.
// Without a name table the ids themselves are used.
func joinNames(names map[string]string, ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range dedupe(ids) {
		if names == nil {
			out = append(out, id)
			continue
		}
		if name, ok := names[id]; ok {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return noAssignees
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
