package graph

import (
	"fmt"
	"maps"
	"reflect"
)

// StateSchema defines the initial state of a graph and how a node's partial
// update is merged into the current state.
type StateSchema[S any] interface {
	// Init returns the initial state.
	Init() S

	// Update merges the update into the current state.
	Update(current, update S) (S, error)
}

// StructSchema implements StateSchema for struct states with a merge function.
type StructSchema[S any] struct {
	InitialValue S
	MergeFunc    func(current, update S) (S, error)
}

// NewStructSchema creates a StructSchema. A nil merge replaces the state.
func NewStructSchema[S any](initial S, merge func(current, update S) (S, error)) *StructSchema[S] {
	return &StructSchema[S]{
		InitialValue: initial,
		MergeFunc:    merge,
	}
}

// Init returns the initial value.
func (s *StructSchema[S]) Init() S {
	return s.InitialValue
}

// Update applies the merge function.
func (s *StructSchema[S]) Update(current, update S) (S, error) {
	if s.MergeFunc == nil {
		return update, nil
	}
	return s.MergeFunc(current, update)
}

// Reducer defines how a state value should be updated.
// It takes the current value and the new value, and returns the merged value.
type Reducer func(current, new any) (any, error)

// MapSchema implements StateSchema for map[string]any.
// It allows defining reducers for specific keys.
type MapSchema struct {
	Reducers map[string]Reducer
}

var _ StateSchema[map[string]any] = (*MapSchema)(nil)

// NewMapSchema creates a new MapSchema.
func NewMapSchema() *MapSchema {
	return &MapSchema{
		Reducers: make(map[string]Reducer),
	}
}

// RegisterReducer adds a reducer for a specific key.
func (s *MapSchema) RegisterReducer(key string, reducer Reducer) {
	s.Reducers[key] = reducer
}

// Init returns an empty map.
func (s *MapSchema) Init() map[string]any {
	return make(map[string]any)
}

// Update merges the new map into a copy of the current map using registered
// reducers. Keys without a reducer are overwritten.
func (s *MapSchema) Update(current, update map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(current)+len(update))
	maps.Copy(result, current)

	for k, v := range update {
		reducer, ok := s.Reducers[k]
		if !ok {
			result[k] = v
			continue
		}
		merged, err := reducer(result[k], v)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce key %s: %w", k, err)
		}
		result[k] = merged
	}

	return result, nil
}

// OverwriteReducer replaces the old value with the new one.
func OverwriteReducer(_, new any) (any, error) {
	return new, nil
}

// AppendReducer appends the new value to the current slice.
// It supports appending a slice to a slice, or a single element to a slice.
// The result never shares its backing array with current.
func AppendReducer(current, new any) (any, error) {
	newVal := reflect.ValueOf(new)

	if current == nil {
		if newVal.Kind() == reflect.Slice {
			return new, nil
		}
		slice := reflect.MakeSlice(reflect.SliceOf(newVal.Type()), 0, 1)
		return reflect.Append(slice, newVal).Interface(), nil
	}

	currVal := reflect.ValueOf(current)
	if currVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("current value is not a slice")
	}

	if newVal.Kind() == reflect.Slice {
		if currVal.Type().Elem() != newVal.Type().Elem() {
			result := make([]any, 0, currVal.Len()+newVal.Len())
			for i := range currVal.Len() {
				result = append(result, currVal.Index(i).Interface())
			}
			for i := range newVal.Len() {
				result = append(result, newVal.Index(i).Interface())
			}
			return result, nil
		}
		out := reflect.MakeSlice(currVal.Type(), 0, currVal.Len()+newVal.Len())
		out = reflect.AppendSlice(out, currVal)
		return reflect.AppendSlice(out, newVal).Interface(), nil
	}

	if !newVal.Type().AssignableTo(currVal.Type().Elem()) {
		return nil, fmt.Errorf("cannot append %T to %T", new, current)
	}
	out := reflect.MakeSlice(currVal.Type(), 0, currVal.Len()+1)
	out = reflect.AppendSlice(out, currVal)
	return reflect.Append(out, newVal).Interface(), nil
}
