package bind

import (
	"reflect"

	"github.com/rbaliyan/flatwire"
)

// checkCycles walks a decoded value graph and returns ErrCyclicValue if any
// container is reachable from itself. Struct binding flattens the graph, so
// a cycle would recurse forever; shared references that do not cycle are
// fine and bind as duplicated values.
func checkCycles(v any) error {
	return walk(v, make(map[uintptr]bool))
}

// walk tracks containers on the current path by their data pointer. A
// container seen again while still on the path closes a cycle.
func walk(v any, path map[uintptr]bool) error {
	var ptr uintptr

	switch val := v.(type) {
	case []any:
		if len(val) == 0 {
			return nil
		}
		ptr = reflect.ValueOf(val).Pointer()
		if path[ptr] {
			return ErrCyclicValue
		}
		path[ptr] = true
		for _, elem := range val {
			if err := walk(elem, path); err != nil {
				return err
			}
		}
	case map[string]any:
		if val == nil {
			return nil
		}
		ptr = reflect.ValueOf(val).Pointer()
		if path[ptr] {
			return ErrCyclicValue
		}
		path[ptr] = true
		for _, elem := range val {
			if err := walk(elem, path); err != nil {
				return err
			}
		}
	case *flatwire.Set:
		if val == nil {
			return nil
		}
		ptr = reflect.ValueOf(val).Pointer()
		if path[ptr] {
			return ErrCyclicValue
		}
		path[ptr] = true
		for _, elem := range val.Values() {
			if err := walk(elem, path); err != nil {
				return err
			}
		}
	case *flatwire.Map:
		if val == nil {
			return nil
		}
		ptr = reflect.ValueOf(val).Pointer()
		if path[ptr] {
			return ErrCyclicValue
		}
		path[ptr] = true
		var werr error
		val.Range(func(key, elem any) bool {
			if err := walk(key, path); err != nil {
				werr = err
				return false
			}
			if err := walk(elem, path); err != nil {
				werr = err
				return false
			}
			return true
		})
		if werr != nil {
			return werr
		}
	default:
		return nil
	}

	delete(path, ptr)
	return nil
}
