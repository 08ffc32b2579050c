package schema

import (
	"bytes"
	"testing"

	"github.com/kr/pretty"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/compile"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
)

func build(t *testing.T) *compile.Result {
	t.Helper()
	actx := ast.NewContext()
	decl := &ast.RecordDecl{Name: "particle", Defined: true}
	particle := actx.Record(decl)
	decl.Fields = []*ast.FieldDecl{
		ast.Field("pos", actx.Vector(actx.Builtin(ast.Float), 2)),
		ast.Field("life", actx.Builtin(ast.UChar)),
		ast.Field("hist", actx.ConstantArray(actx.Builtin(ast.Short), 4)),
	}
	tu := &ast.TranslationUnit{
		Vars: []*ast.VarDecl{
			{Name: "gParticle", Type: particle, Linkage: ast.ExternalLinkage},
			{Name: "gCount", Type: actx.Builtin(ast.Int), Linkage: ast.ExternalLinkage},
		},
		Funcs: []*ast.FuncDecl{
			{Name: "root", Linkage: ast.ExternalLinkage, Params: []*ast.VarDecl{
				{Name: "in", Type: actx.PointerTo(particle)},
				{Name: "scale", Type: actx.Builtin(ast.Float)},
			}},
		},
	}
	diags := diag.NewList()
	res, err := compile.Run(config.Default(), actx, tu, diags)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, diags.Format())
	}
	return res
}

func TestDocumentComponents(t *testing.T) {
	doc, err := Document(build(t), "particles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Components.Schemas) != 1 {
		t.Fatalf("expected only the user record as a component, got %d", len(doc.Components.Schemas))
	}
	sc := doc.Components.Schemas["particle"].Value
	if sc == nil || sc.Type != "object" {
		t.Fatalf("expected an object schema for particle, got %# v", pretty.Formatter(sc))
	}

	pos := sc.Properties["pos"].Value
	if pos.Type != "array" || pos.MinItems != 2 || pos.MaxItems == nil || *pos.MaxItems != 2 {
		t.Errorf("expected pos to be a 2-item array, got %# v", pretty.Formatter(pos))
	}
	if pos.Items.Value.Format != "float" {
		t.Errorf("expected float items, got %s", pos.Items.Value.Format)
	}
	life := sc.Properties["life"].Value
	if life.Type != "integer" || life.Min == nil || *life.Min != 0 || life.Max == nil || *life.Max != 255 {
		t.Errorf("expected life to be a uint8 range, got %# v", pretty.Formatter(life))
	}
	if hist := sc.Properties["hist"].Value; hist.MinItems != 4 {
		t.Errorf("expected hist to have 4 items, got %d", hist.MinItems)
	}

	offsets, ok := sc.Extensions[extOffsets].(map[string]int)
	if !ok {
		t.Fatalf("expected offsets, got %v", sc.Extensions[extOffsets])
	}
	want := map[string]int{"pos": 0, "life": 8, "hist": 10}
	if diff := pretty.Diff(want, offsets); len(diff) > 0 {
		t.Errorf("unexpected offsets: %v", diff)
	}
	if got := sc.Extensions[extElement]; got != "ScriptField_particle" {
		t.Errorf("expected ScriptField_particle, got %v", got)
	}
	if got := sc.Extensions[extSize]; got != 24 {
		t.Errorf("expected alloc size 24, got %v", got)
	}
}

func TestDocumentPaths(t *testing.T) {
	doc, err := Document(build(t), "particles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range []string{"/vars/gParticle", "/vars/gCount", "/funcs/root"} {
		if doc.Paths[p] == nil {
			t.Errorf("expected path %s", p)
		}
	}

	get := doc.Paths["/vars/gParticle"].Get
	ref := get.Responses.Get(200).Value.Content.Get("application/json").Schema
	if ref.Ref != "#/components/schemas/particle" {
		t.Errorf("expected a reference to particle, got %q", ref.Ref)
	}

	body := doc.Paths["/funcs/root"].Post.RequestBody.Value.Content.Get("application/json").Schema.Value
	in := body.Properties["in"].Value
	if len(in.AnyOf) != 2 || in.AnyOf[1].Ref != "#/components/schemas/particle" {
		t.Errorf("expected in to be a nullable particle reference, got %# v", pretty.Formatter(in))
	}
	if _, ok := body.Extensions[extElement]; ok {
		t.Error("expected no element name on the parameter pack")
	}
	if got := body.Extensions[extOffsets].(map[string]int)["scale"]; got != 4 {
		t.Errorf("expected scale at offset 4, got %d", got)
	}
}

func TestYAML(t *testing.T) {
	doc, err := Document(build(t), "particles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := YAML(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(out, []byte("openapi: 3.0.3")) {
		t.Errorf("expected the YAML to carry the version, got:\n%s", out)
	}
	if !bytes.Contains(out, []byte("title: particles")) {
		t.Errorf("expected the YAML to carry the title, got:\n%s", out)
	}
}
