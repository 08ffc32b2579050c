package export

import (
	"github.com/utrack/rsexport/ast"
)

// visitSet holds the canonical types a walk has entered. Records are added
// before their fields so that a record reachable from itself is entered once.
type visitSet map[ast.Type]bool

// shapeRules is one pass over the canonical shape of a type. The walker owns
// canonicalization, the visited set and recursion order; the rules decide
// legality and carry per-pass state S down the tree.
//
// A rule that rejects a type must report the diagnostic itself.
type shapeRules[S any] interface {
	builtin(t *ast.BuiltinType, s S) bool
	// record returns the state for the fields and whether to descend into
	// them at all.
	record(t *ast.RecordType, s S) (next S, descend bool, ok bool)
	// field runs after the field's type was walked successfully.
	field(rec *ast.RecordType, f *ast.FieldDecl, s S) bool
	pointer(t *ast.PointerType, s S) (S, bool)
	vector(t *ast.VectorType, s S) (S, bool)
	array(t *ast.ConstantArrayType, s S) (S, bool)
	enum(t *ast.EnumType, s S) ast.Type
	other(t ast.Type, s S) bool
}

type walker[S any] struct {
	visited visitSet
	rules   shapeRules[S]
}

func newWalker[S any](visited visitSet, rules shapeRules[S]) *walker[S] {
	return &walker[S]{visited: visited, rules: rules}
}

// walk returns the canonical form of t, or nil if the rules rejected it.
// Enumerations may canonicalize to a different type.
func (w *walker[S]) walk(t ast.Type, s S) ast.Type {
	t = ast.Canonical(t)
	if t == nil {
		return nil
	}
	if w.visited[t] {
		return t
	}

	switch t := t.(type) {
	case *ast.BuiltinType:
		if !w.rules.builtin(t, s) {
			return nil
		}
		return t

	case *ast.RecordType:
		next, descend, ok := w.rules.record(t, s)
		if !ok {
			return nil
		}
		if !descend {
			return t
		}
		w.visited[t] = true
		for _, f := range t.Decl.Fields {
			if w.walk(f.Type, next) == nil {
				return nil
			}
			if !w.rules.field(t, f, next) {
				return nil
			}
		}
		return t

	case *ast.PointerType:
		next, ok := w.rules.pointer(t, s)
		if !ok || w.walk(t.Pointee, next) == nil {
			return nil
		}
		return t

	case *ast.VectorType:
		next, ok := w.rules.vector(t, s)
		if !ok || w.walk(t.Elem, next) == nil {
			return nil
		}
		return t

	case *ast.ConstantArrayType:
		next, ok := w.rules.array(t, s)
		if !ok || w.walk(t.Elem, next) == nil {
			return nil
		}
		return t

	case *ast.EnumType:
		return w.rules.enum(t, s)
	}

	if !w.rules.other(t, s) {
		return nil
	}
	return t
}
