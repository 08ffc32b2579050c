// Package export decides which source types can be exported from a kernel
// compilation and builds the canonical, interned descriptor graph for them.
//
// All state lives in a Context, one per translation unit. Descriptors refer to
// each other through Handles into the Context's type table, so self-referential
// structs are plain index cycles.
package export

import (
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/reflection"
)

// Context owns the intern table of one compilation.
type Context struct {
	ast    *ast.Context
	target config.Target
	table  *reflection.Table
	diags  diag.Reporter
	layout DataLayout

	// types is indexed by Handle; slot 0 stays nil.
	types []*ExportType
	index map[string]Handle
}

// New creates a context for target. Diagnostics go to diags; pass
// diag.Discard to drop them.
func New(actx *ast.Context, target config.Target, diags diag.Reporter) *Context {
	if diags == nil {
		diags = diag.Discard
	}
	return &Context{
		ast:    actx,
		target: target,
		table:  reflection.New(),
		diags:  diags,
		layout: DataLayout{PointerSize: target.PointerSize()},
		types:  []*ExportType{nil},
		index:  map[string]Handle{},
	}
}

func (c *Context) AST() *ast.Context        { return c.ast }
func (c *Context) Target() config.Target    { return c.target }
func (c *Context) Table() *reflection.Table { return c.table }
func (c *Context) Reporter() diag.Reporter  { return c.diags }
func (c *Context) DataLayout() DataLayout   { return c.layout }

// Type resolves a handle. It returns nil for InvalidHandle and for handles
// past the end of the table.
func (c *Context) Type(h Handle) *ExportType {
	if h == InvalidHandle || int(h) >= len(c.types) {
		return nil
	}
	return c.types[h]
}

// Lookup returns the interned descriptor named name.
func (c *Context) Lookup(name string) *ExportType {
	if h, ok := c.index[name]; ok {
		return c.types[h]
	}
	return nil
}

// Types returns every live descriptor in creation order, interned or not.
func (c *Context) Types() []*ExportType {
	return append([]*ExportType(nil), c.types[1:]...)
}

// Kept returns the descriptors marked by Keep, in creation order.
func (c *Context) Kept() []*ExportType {
	var ret []*ExportType
	for _, et := range c.types[1:] {
		if et.kept {
			ret = append(ret, et)
		}
	}
	return ret
}

// Len is the number of interned descriptors.
func (c *Context) Len() int {
	return len(c.index)
}

// add assigns a handle to et and interns it under its name unless the name
// is a dummy.
func (c *Context) add(name string, inner Inner) *ExportType {
	et := &ExportType{
		ctx:    c,
		handle: Handle(len(c.types)),
		name:   name,
		inner:  inner,
	}
	c.types = append(c.types, et)
	if !IsDummyName(name) {
		c.index[name] = et.handle
	}
	return et
}

// mark returns a snapshot of the table for rollback.
func (c *Context) mark() int {
	return len(c.types)
}

// rollback drops every descriptor added since m. Used when a record fails
// after its placeholder and some of its field types were registered.
func (c *Context) rollback(m int) {
	for _, et := range c.types[m:] {
		if h, ok := c.index[et.name]; ok && h == et.handle {
			delete(c.index, et.name)
		}
	}
	for i := m; i < len(c.types); i++ {
		c.types[i] = nil
	}
	c.types = c.types[:m]
}

// report sends a diagnostic to r and returns the matching error.
func report(r diag.Reporter, pos ast.Position, code diag.Code, template string, args ...interface{}) error {
	r.Report(pos, code, template, args...)
	return errors.Wrap(code.Sentinel(), diag.Expand(template, args...))
}

// locate picks the declaration diagnostics should point at: the outermost
// record when there is one, the declaration being exported otherwise.
func locate(top *ast.RecordDecl, decl ast.NamedDecl) (ast.Position, string) {
	if top != nil {
		return top.Pos, top.DeclName()
	}
	if decl != nil {
		return decl.Location(), decl.DeclName()
	}
	return ast.Position{}, ""
}
