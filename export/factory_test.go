package export

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/reflection"
)

func TestInterningIdentity(t *testing.T) {
	f := newFixture(config.Default())
	typs := []ast.Type{
		f.builtin(ast.Float),
		f.ast.Vector(f.builtin(ast.Int), 4),
		f.ast.PointerTo(f.builtin(ast.UChar)),
		f.ast.Struct("light", ast.Field("color", f.ast.Vector(f.builtin(ast.Float), 4))),
		f.object("rs_allocation"),
	}
	for _, typ := range typs {
		a := f.create(t, typ)
		b := f.create(t, typ)
		if a != b {
			t.Errorf("%s: expected the same descriptor twice", typ)
		}
		if f.ctx.Lookup(a.Name()) != a {
			t.Errorf("%s: expected Lookup to return the interned descriptor", typ)
		}
	}

	// Different source spellings of the same canonical type share a descriptor.
	a := f.create(t, f.builtin(ast.UInt))
	b := f.create(t, f.ast.Typedef("uint32_t", f.builtin(ast.ULong)))
	if a != b {
		t.Error("expected unsigned int and unsigned long to share a descriptor")
	}
}

func TestArraysAreNotInterned(t *testing.T) {
	f := newFixture(config.Default())
	arr := f.ast.ConstantArray(f.builtin(ast.Int), 4)
	a := f.create(t, arr)
	b := f.create(t, arr)
	if a == b {
		t.Error("expected array descriptors to be built fresh")
	}
	if !a.Equals(b) {
		t.Error("expected array descriptors of the same shape to be equal")
	}
	if !a.IsDummy() || f.ctx.Lookup(a.Name()) != nil {
		t.Error("expected array descriptors to stay out of the intern table")
	}
	if a.Elem() != b.Elem() {
		t.Error("expected array elements to be interned")
	}
}

func TestEqualsIsStructural(t *testing.T) {
	build := func(f *fixture, name string) *ExportType {
		decl := &ast.RecordDecl{Name: name, Defined: true}
		rec := f.ast.Record(decl)
		decl.Fields = []*ast.FieldDecl{
			ast.Field("pos", f.ast.Vector(f.builtin(ast.Float), 2)),
			ast.Field("id", f.builtin(ast.Int)),
			ast.Field("next", f.ast.PointerTo(rec)),
		}
		return f.create(t, rec)
	}

	f := newFixture(config.Default())
	a := build(f, "a")
	b := build(f, "b")
	if a == b {
		t.Fatal("expected distinct descriptors for distinct names")
	}
	if !a.Equals(b) || !b.Equals(a) {
		t.Error("expected records with the same field types to be equal")
	}

	other := newFixture(config.Default())
	if !a.Equals(build(other, "a")) {
		t.Error("expected equality across contexts")
	}

	swapped := f.create(t, f.ast.Struct("c",
		ast.Field("id", f.builtin(ast.Int)),
		ast.Field("pos", f.ast.Vector(f.builtin(ast.Float), 2)),
	))
	if a.Equals(swapped) {
		t.Error("expected field order to matter")
	}

	packedDecl := &ast.RecordDecl{Name: "d", Packed: true, Defined: true}
	packed := f.ast.Record(packedDecl)
	packedDecl.Fields = []*ast.FieldDecl{
		ast.Field("pos", f.ast.Vector(f.builtin(ast.Float), 2)),
		ast.Field("id", f.builtin(ast.Int)),
		ast.Field("next", f.ast.PointerTo(packed)),
	}
	if a.Equals(f.create(t, packed)) {
		t.Error("expected the packed flag to matter")
	}

	f2 := f.create(t, f.ast.Vector(f.builtin(ast.Float), 2))
	f3 := f.create(t, f.ast.Vector(f.builtin(ast.Float), 3))
	i2 := f.create(t, f.ast.Vector(f.builtin(ast.Int), 2))
	if f2.Equals(f3) || f2.Equals(i2) {
		t.Error("expected vectors to compare element type and width")
	}
	if f2.Equals(nil) {
		t.Error("expected nothing to equal nil")
	}
}

func TestObjectSizeDuality(t *testing.T) {
	f32 := newFixture(target(32, 24, config.DialectFull))
	f64 := newFixture(target(64, 24, config.DialectFull))
	a := f32.create(t, f32.object("rs_allocation"))
	b := f64.create(t, f64.object("rs_allocation"))

	if a.Class() != ClassPrimitive || b.Class() != ClassPrimitive {
		t.Fatalf("expected primitives, got %s and %s", a.Class(), b.Class())
	}
	if a.Name() != b.Name() || a.DataType() != b.DataType() {
		t.Errorf("expected the same identity, got %s/%s and %s/%s", a.Name(), a.DataType(), b.Name(), b.DataType())
	}
	if !a.IsObject() {
		t.Error("expected an object type")
	}
	if a.SizeInBits() != 32 {
		t.Errorf("expected 32 bits on 32-bit targets, got %d", a.SizeInBits())
	}
	if b.SizeInBits() != 256 {
		t.Errorf("expected 256 bits on 64-bit targets, got %d", b.SizeInBits())
	}
	if a.StoreSize() != 4 || b.StoreSize() != 32 {
		t.Errorf("expected store sizes 4 and 32, got %d and %d", a.StoreSize(), b.StoreSize())
	}
	if a.Align() != 4 || b.Align() != 8 {
		t.Errorf("expected alignments 4 and 8, got %d and %d", a.Align(), b.Align())
	}
	if a.ElementName() != "ALLOCATION" {
		t.Errorf("expected ALLOCATION, got %s", a.ElementName())
	}
}

func TestMatrixShape(t *testing.T) {
	f := newFixture(config.Default())
	_, err := f.ctx.CreateType(f.matrix("rs_matrix3x3", 8))
	if errors.Cause(err) != diag.ErrMalformedSpecialType {
		t.Fatalf("expected ErrMalformedSpecialType, got %v", err)
	}
	f.expectDiag(t, diag.CodeMalformedSpecialType, "first field should be an array with size 9: 'rs_matrix3x3'")

	f = newFixture(config.Default())
	et := f.create(t, f.matrix("rs_matrix3x3", 9))
	if et.Class() != ClassMatrix {
		t.Fatalf("expected a matrix, got %s", et.Class())
	}
	if et.Dim() != 3 {
		t.Errorf("expected dimension 3, got %d", et.Dim())
	}
	if et.StoreSize() != 36 || et.AllocSize() != 36 {
		t.Errorf("expected 36 bytes, got %d/%d", et.StoreSize(), et.AllocSize())
	}
	if et.DataType() != reflection.DataTypeMatrix3x3 {
		t.Errorf("expected MATRIX_3X3, got %s", et.DataType())
	}
}

func TestMatrixFieldChecks(t *testing.T) {
	tests := []struct {
		name   string
		fields func(f *fixture) []*ast.FieldDecl
		msg    string
	}{
		{"no fields", func(f *fixture) []*ast.FieldDecl { return nil }, "must have 1 field for saving values"},
		{"not an array", func(f *fixture) []*ast.FieldDecl {
			return []*ast.FieldDecl{ast.Field("m", f.builtin(ast.Float))}
		}, "first field should be an array with constant size"},
		{"not float", func(f *fixture) []*ast.FieldDecl {
			return []*ast.FieldDecl{ast.Field("m", f.ast.ConstantArray(f.builtin(ast.Int), 4))}
		}, "first field should be a float array"},
		{"extra field", func(f *fixture) []*ast.FieldDecl {
			return []*ast.FieldDecl{
				ast.Field("m", f.ast.ConstantArray(f.builtin(ast.Float), 4)),
				ast.Field("tag", f.builtin(ast.Int)),
			}
		}, "must have exactly 1 field"},
	}
	for _, tt := range tests {
		f := newFixture(config.Default())
		rec := f.ast.Struct("rs_matrix2x2", tt.fields(f)...)
		_, err := f.ctx.CreateType(rec)
		if errors.Cause(err) != diag.ErrMalformedSpecialType {
			t.Errorf("%s: expected ErrMalformedSpecialType, got %v", tt.name, err)
			continue
		}
		f.expectDiag(t, diag.CodeMalformedSpecialType, tt.msg)
	}
}

func TestFailedRecordRollsBack(t *testing.T) {
	f := newFixture(config.Default())
	rec := f.ast.Struct("broken",
		ast.Field("ok", f.builtin(ast.Float)),
		ast.Field("bad", f.ast.Vector(f.builtin(ast.Float), 5)),
	)
	// Create skips exportability checks; the field failure must still undo
	// the placeholder.
	if _, err := f.ctx.Create(rec, "broken"); err == nil {
		t.Fatal("expected an error")
	}
	if f.ctx.Lookup("broken") != nil || f.ctx.Lookup("float") != nil {
		t.Error("expected the failed record and its fields to be rolled back")
	}
	if len(f.ctx.Types()) != 0 {
		t.Errorf("expected an empty table, got %d", len(f.ctx.Types()))
	}
}

func TestPointerCollapse(t *testing.T) {
	f := newFixture(config.Default())
	pp := f.ast.PointerTo(f.ast.PointerTo(f.builtin(ast.Float)))
	et, err := f.ctx.Create(pp, "**float")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if et.Pointee().Name() != "int" {
		t.Errorf("expected pointer-to-pointer to collapse to int*, got *%s", et.Pointee().Name())
	}
}

func TestRecordLayout(t *testing.T) {
	f := newFixture(config.Default())
	et := f.create(t, f.ast.Struct("rec",
		ast.Field("c", f.builtin(ast.CharS)),
		ast.Field("i", f.builtin(ast.Int)),
		ast.Field("v", f.ast.Vector(f.builtin(ast.Float), 3)),
		ast.Field("s", f.builtin(ast.Short)),
	))

	var offsets []int
	for _, fld := range et.Fields() {
		offsets = append(offsets, fld.Offset)
		if fld.Parent() != et {
			t.Errorf("%s: expected parent to be the record", fld.Name)
		}
	}
	if diff := pretty.Diff([]int{0, 4, 16, 32}, offsets); len(diff) > 0 {
		t.Errorf("offsets mismatch: %v", diff)
	}
	if et.StoreSize() != 34 {
		t.Errorf("expected store size 34, got %d", et.StoreSize())
	}
	if et.AllocSize() != 48 {
		t.Errorf("expected alloc size 48, got %d", et.AllocSize())
	}

	packed := f.create(t, f.ast.Record(&ast.RecordDecl{
		Name:    "tight",
		Packed:  true,
		Defined: true,
		Fields: []*ast.FieldDecl{
			ast.Field("c", f.builtin(ast.UChar)),
			ast.Field("i", f.builtin(ast.UInt)),
		},
	}))
	if packed.Fields()[1].Offset != 1 || packed.AllocSize() != 5 {
		t.Errorf("expected packed offset 1 and size 5, got %d and %d", packed.Fields()[1].Offset, packed.AllocSize())
	}
}

func TestVectorSizes(t *testing.T) {
	f := newFixture(config.Default())
	tests := []struct {
		typ                ast.Type
		store, alloc, bits int
	}{
		{f.ast.Vector(f.builtin(ast.Float), 3), 12, 16, 96},
		{f.ast.Vector(f.builtin(ast.UChar), 3), 3, 4, 24},
		{f.ast.Vector(f.builtin(ast.Double), 2), 16, 16, 128},
		{f.builtin(ast.Bool), 1, 1, 8},
	}
	for _, tt := range tests {
		et := f.create(t, tt.typ)
		if et.StoreSize() != tt.store || et.AllocSize() != tt.alloc {
			t.Errorf("%s: expected %d/%d, got %d/%d", et.Name(), tt.store, tt.alloc, et.StoreSize(), et.AllocSize())
		}
		if et.SizeInBits() != tt.bits {
			t.Errorf("%s: expected %d bits, got %d", et.Name(), tt.bits, et.SizeInBits())
		}
	}
}

func TestPointerWidth(t *testing.T) {
	for _, width := range []int{32, 64} {
		f := newFixture(target(width, 24, config.DialectFull))
		et := f.create(t, f.ast.PointerTo(f.builtin(ast.Float)))
		if et.StoreSize() != width/8 {
			t.Errorf("%d-bit: expected pointer size %d, got %d", width, width/8, et.StoreSize())
		}
	}
}

func TestElementNames(t *testing.T) {
	f := newFixture(config.Default())
	float3 := f.ast.Vector(f.builtin(ast.Float), 3)
	tests := []struct {
		typ  ast.Type
		want string
	}{
		{f.builtin(ast.Float), "F32"},
		{f.builtin(ast.Bool), "BOOLEAN"},
		{float3, "F32_3"},
		{f.ast.ConstantArray(float3, 1), "F32_3"},
		{f.ast.Struct("s", ast.Field("x", f.builtin(ast.Int))), "ScriptField_s"},
		{f.ast.PointerTo(f.builtin(ast.Int)), "@@INVALID@@"},
		{f.matrix("rs_matrix2x2", 4), "@@INVALID@@"},
	}
	for _, tt := range tests {
		et := f.create(t, tt.typ)
		if got := et.ElementName(); got != tt.want {
			t.Errorf("%s: expected %s, got %s", et.Name(), tt.want, got)
		}
	}
}

func TestReflectionData(t *testing.T) {
	f := newFixture(config.Default())
	float3 := f.ast.Vector(f.builtin(ast.Float), 3)

	rtd, err := f.create(t, f.ast.PointerTo(float3)).ReflectionData()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rtd.Type.RSType != "FLOAT_32" || rtd.VecSize != 3 || !rtd.IsPointer || rtd.ArraySize != 0 {
		t.Errorf("unexpected pointer data %# v", pretty.Formatter(rtd))
	}

	rtd, err = f.create(t, f.ast.ConstantArray(f.builtin(ast.Int), 7)).ReflectionData()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rtd.Type.RSType != "SIGNED_32" || rtd.VecSize != 1 || rtd.ArraySize != 7 {
		t.Errorf("unexpected array data %# v", pretty.Formatter(rtd))
	}

	rtd, err = f.create(t, f.matrix("rs_matrix4x4", 16)).ReflectionData()
	if err != nil || rtd.Type.RSType != "MATRIX_4X4" {
		t.Errorf("expected MATRIX_4X4, got %v (%v)", rtd.Type, err)
	}

	_, err = f.create(t, f.ast.Struct("s", ast.Field("x", f.builtin(ast.Int)))).ReflectionData()
	if errors.Cause(err) != diag.ErrInternal {
		t.Errorf("expected records to have no flat data, got %v", err)
	}
}

func TestContainsObject(t *testing.T) {
	f := newFixture(config.Default())
	plain := f.ast.Struct("plain", ast.Field("x", f.builtin(ast.Int)))
	holder := f.ast.Struct("holder", ast.Field("a", f.ast.ConstantArray(f.object("rs_allocation"), 2)))
	nested := f.ast.Struct("nested", ast.Field("h", holder))
	withMatrix := f.ast.Struct("xf", ast.Field("m", f.matrix("rs_matrix4x4", 16)))

	tests := []struct {
		typ  ast.Type
		want bool
	}{
		{plain, false},
		{holder, true},
		{nested, true},
		{f.ast.ConstantArray(nested, 3), true},
		{withMatrix, true},
		{f.object("rs_allocation"), false},
	}
	for _, tt := range tests {
		if got := f.ctx.ContainsObject(tt.typ); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.typ, tt.want, got)
		}
	}

	if !f.create(t, nested).ContainsObject() {
		t.Error("expected the nested descriptor to contain an object")
	}
	if f.create(t, plain).ContainsObject() {
		t.Error("expected the plain descriptor to hold no object")
	}
}

func TestNestedAnonymousTypeNamesDeclaration(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *fixture, anon ast.Type) ast.Type
	}{
		{"arr", func(f *fixture, anon ast.Type) ast.Type { return f.ast.ConstantArray(anon, 2) }},
		{"ptr", func(f *fixture, anon ast.Type) ast.Type { return f.ast.PointerTo(anon) }},
	}
	for _, tt := range tests {
		f := newFixture(config.Default())
		anon := f.ast.Record(&ast.RecordDecl{Defined: true, Fields: []*ast.FieldDecl{ast.Field("x", f.builtin(ast.Int))}})
		vd := f.global(tt.name, tt.build(f, anon))
		vd.Pos = ast.Position{File: "k.rs", Line: 7, Column: 3}

		_, err := f.ctx.CreateFromDecl(vd)
		if errors.Cause(err) != diag.ErrAnonymousType {
			t.Errorf("%s: expected ErrAnonymousType, got %v", tt.name, err)
			continue
		}
		f.expectDiag(t, diag.CodeAnonymousType, "anonymous types cannot be exported: '"+tt.name+"'")
		if got := f.diags.Errors()[0].Pos.String(); got != "k.rs:7:3" {
			t.Errorf("%s: expected the diagnostic at k.rs:7:3, got %s", tt.name, got)
		}
	}
}

func TestKeep(t *testing.T) {
	tests := []struct {
		name    string
		build   func(f *fixture) ast.Type
		reached func(et *ExportType) []*ExportType
	}{
		{
			name:  "pointer",
			build: func(f *fixture) ast.Type { return f.ast.PointerTo(f.builtin(ast.Float)) },
			reached: func(et *ExportType) []*ExportType {
				return []*ExportType{et.Pointee()}
			},
		},
		{
			name: "array",
			build: func(f *fixture) ast.Type {
				return f.ast.ConstantArray(f.ast.Struct("cell", ast.Field("v", f.builtin(ast.Short))), 3)
			},
			reached: func(et *ExportType) []*ExportType {
				return []*ExportType{et.Elem(), et.Elem().Fields()[0].Type()}
			},
		},
		{
			name: "record",
			build: func(f *fixture) ast.Type {
				return f.ast.Struct("pair", ast.Field("a", f.builtin(ast.Int)), ast.Field("b", f.ast.Vector(f.builtin(ast.Float), 2)))
			},
			reached: func(et *ExportType) []*ExportType {
				return []*ExportType{et.Fields()[0].Type(), et.Fields()[1].Type()}
			},
		},
	}
	for _, tt := range tests {
		f := newFixture(config.Default())
		et := f.create(t, tt.build(f))
		before := et.BackendType()

		if !et.Keep() {
			t.Errorf("%s: expected the first Keep to report a change", tt.name)
		}
		if et.backend != nil {
			t.Errorf("%s: expected Keep to drop the cached backend type", tt.name)
		}
		for _, r := range tt.reached(et) {
			if !r.IsKept() {
				t.Errorf("%s: expected %s to be kept", tt.name, r.Name())
			}
		}
		after := et.BackendType()
		if after == before {
			t.Errorf("%s: expected the backend type to be recomputed", tt.name)
		}
		if diff := pretty.Diff(before, after); len(diff) > 0 {
			t.Errorf("%s: expected the same lowering, got diff %v", tt.name, diff)
		}
		if et.Keep() {
			t.Errorf("%s: expected a second Keep to be a no-op", tt.name)
		}
	}
}
