package ast

// Context uniques types so that canonical types compare by identity.
// Front ends must build every type through one Context.
type Context struct {
	builtins map[BuiltinKind]*BuiltinType
	pointers map[Type]*PointerType
	vectors  map[sizedKey]*VectorType
	arrays   map[sizedKey]*ConstantArrayType
	flexible map[Type]*IncompleteArrayType
	records  map[*RecordDecl]*RecordType
	enums    map[string]*EnumType
}

type sizedKey struct {
	elem Type
	n    int
}

// NewContext returns an empty type context.
func NewContext() *Context {
	return &Context{
		builtins: map[BuiltinKind]*BuiltinType{},
		pointers: map[Type]*PointerType{},
		vectors:  map[sizedKey]*VectorType{},
		arrays:   map[sizedKey]*ConstantArrayType{},
		flexible: map[Type]*IncompleteArrayType{},
		records:  map[*RecordDecl]*RecordType{},
		enums:    map[string]*EnumType{},
	}
}

// Builtin returns the scalar type of kind k.
func (c *Context) Builtin(k BuiltinKind) *BuiltinType {
	if t, ok := c.builtins[k]; ok {
		return t
	}
	t := &BuiltinType{Kind: k}
	c.builtins[k] = t
	return t
}

// IntType is the plain signed 32-bit integer type.
func (c *Context) IntType() *BuiltinType { return c.Builtin(Int) }

// PointerTo returns the pointer type to pointee.
func (c *Context) PointerTo(pointee Type) *PointerType {
	if t, ok := c.pointers[pointee]; ok {
		return t
	}
	t := &PointerType{Pointee: pointee}
	c.pointers[pointee] = t
	return t
}

// Vector returns the ext vector of n elements of elem.
func (c *Context) Vector(elem Type, n int) *VectorType {
	k := sizedKey{elem, n}
	if t, ok := c.vectors[k]; ok {
		return t
	}
	t := &VectorType{Elem: elem, Len: n}
	c.vectors[k] = t
	return t
}

// ConstantArray returns elem[n].
func (c *Context) ConstantArray(elem Type, n int) *ConstantArrayType {
	k := sizedKey{elem, n}
	if t, ok := c.arrays[k]; ok {
		return t
	}
	t := &ConstantArrayType{Elem: elem, Len: n}
	c.arrays[k] = t
	return t
}

// IncompleteArray returns elem[].
func (c *Context) IncompleteArray(elem Type) *IncompleteArrayType {
	if t, ok := c.flexible[elem]; ok {
		return t
	}
	t := &IncompleteArrayType{Elem: elem}
	c.flexible[elem] = t
	return t
}

// Record returns the record type declared by d.
func (c *Context) Record(d *RecordDecl) *RecordType {
	if t, ok := c.records[d]; ok {
		return t
	}
	t := &RecordType{Decl: d}
	c.records[d] = t
	return t
}

// Enum returns the enumeration named name.
func (c *Context) Enum(name string) *EnumType {
	if t, ok := c.enums[name]; ok {
		return t
	}
	t := &EnumType{Name: name}
	c.enums[name] = t
	return t
}

// Typedef introduces an alias. When underlying is an anonymous record the
// record takes the typedef's name, like C does for naming purposes.
func (c *Context) Typedef(name string, underlying Type) *TypedefType {
	if rt, ok := Canonical(underlying).(*RecordType); ok {
		if rt.Decl.Name == "" && rt.Decl.TypedefName == "" {
			rt.Decl.TypedefName = name
		}
	}
	return &TypedefType{Name: name, Underlying: underlying}
}

// Struct declares a defined struct with the given fields and returns its type.
func (c *Context) Struct(name string, fields ...*FieldDecl) *RecordType {
	return c.Record(&RecordDecl{Name: name, Defined: true, Fields: fields})
}

// Union declares a defined union with the given fields and returns its type.
func (c *Context) Union(name string, fields ...*FieldDecl) *RecordType {
	return c.Record(&RecordDecl{Name: name, Union: true, Defined: true, Fields: fields})
}

// Field is a shorthand constructor for a plain member.
func Field(name string, t Type) *FieldDecl {
	return &FieldDecl{Name: name, Type: t}
}
