package cfront

import (
	"strings"
	"testing"

	"modernc.org/cc/v3"

	"github.com/utrack/rsexport/ast"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
)

const kernel = `
struct particle {
	float3 pos;
	uchar4 color;
	struct particle *next;
};

typedef struct {
	int count;
	float weights[4];
} params_t;

struct particle gParticle;
params_t gParams;
static int gCounter;
rs_allocation gIn;
rs_matrix4x4 gTransform;

void root(const uchar4 *in, uint x) {
}

static void helper(float f) {
}
`

func translate(t *testing.T, target config.Target) (*ast.TranslationUnit, *diag.List) {
	t.Helper()
	diags := diag.NewList()
	_, tu, err := Translate(target, []Source{{Name: "k.rs", Value: kernel}}, diags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tu, diags
}

func TestTranslateVars(t *testing.T) {
	tu, diags := translate(t, config.Default())
	if diags.Len() != 0 {
		t.Fatalf("expected no diagnostics, got:\n%s", diags.Format())
	}

	var names []string
	for _, v := range tu.Vars {
		names = append(names, v.Name)
	}
	if got := strings.Join(names, ","); got != "gParticle,gParams,gCounter,gIn,gTransform" {
		t.Errorf("expected variables in source order, got %s", got)
	}

	p := tu.Var("gParticle")
	rt, ok := ast.Canonical(p.Type).(*ast.RecordType)
	if !ok {
		t.Fatalf("expected a record, got %v", p.Type)
	}
	if rt.Decl.Name != "particle" || len(rt.Decl.Fields) != 3 {
		t.Fatalf("expected struct particle with 3 fields, got %s with %d", rt.Decl.Name, len(rt.Decl.Fields))
	}
	pos, ok := ast.Canonical(rt.Decl.Fields[0].Type).(*ast.VectorType)
	if !ok || pos.Len != 3 {
		t.Errorf("expected a 3-element vector, got %v", rt.Decl.Fields[0].Type)
	}
	next, ok := ast.Canonical(rt.Decl.Fields[2].Type).(*ast.PointerType)
	if !ok || ast.Canonical(next.Pointee) != rt {
		t.Errorf("expected next to point back at particle, got %v", rt.Decl.Fields[2].Type)
	}

	params, ok := ast.Canonical(tu.Var("gParams").Type).(*ast.RecordType)
	if !ok || params.Decl.DeclName() != "params_t" {
		t.Errorf("expected the typedef to name the anonymous struct, got %v", tu.Var("gParams").Type)
	}

	if tu.Var("gCounter").Linkage != ast.InternalLinkage {
		t.Error("expected static variables to have internal linkage")
	}
	if tu.Var("gIn").Linkage != ast.ExternalLinkage {
		t.Error("expected globals to have external linkage")
	}
	obj, ok := ast.Canonical(tu.Var("gIn").Type).(*ast.RecordType)
	if !ok || obj.Decl.DeclName() != "rs_allocation" {
		t.Errorf("expected rs_allocation, got %v", tu.Var("gIn").Type)
	}
}

func TestTranslateFuncs(t *testing.T) {
	tu, _ := translate(t, config.Default())
	if len(tu.Funcs) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(tu.Funcs))
	}
	root := tu.Func("root")
	if root == nil || len(root.Params) != 2 {
		t.Fatalf("expected root with 2 params, got %v", root)
	}
	if root.Params[0].Name != "in" || root.Params[1].Name != "x" {
		t.Errorf("expected params in, x, got %s, %s", root.Params[0].Name, root.Params[1].Name)
	}
	ptr, ok := ast.Canonical(root.Params[0].Type).(*ast.PointerType)
	if !ok {
		t.Fatalf("expected a pointer param, got %v", root.Params[0].Type)
	}
	if v, ok := ast.Canonical(ptr.Pointee).(*ast.VectorType); !ok || v.Len != 4 {
		t.Errorf("expected a pointer to a 4-element vector, got %v", ptr.Pointee)
	}
	if tu.Func("helper").Linkage != ast.InternalLinkage {
		t.Error("expected static functions to have internal linkage")
	}
}

func TestPreludeDeclaresRuntimeTypes(t *testing.T) {
	p := Prelude()
	for _, name := range []string{"rs_allocation", "rs_matrix2x2", "float3", "ulong4", "uchar"} {
		if !strings.Contains(p, " "+name) {
			t.Errorf("expected the prelude to declare %s", name)
		}
	}
	if vectorLens["short3"] != 3 {
		t.Errorf("expected short3 to have 3 elements, got %d", vectorLens["short3"])
	}
}

func TestABIFollowsPointerWidth(t *testing.T) {
	for _, width := range []int{32, 64} {
		abi, err := ABI(config.Target{PointerWidth: width, TargetAPI: 24, Dialect: config.DialectFull})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := int(abi.Types[cc.Ptr].Size) * 8; got != width {
			t.Errorf("expected %d-bit pointers, got %d", width, got)
		}
	}
}

func TestParseError(t *testing.T) {
	_, _, err := Translate(config.Default(), []Source{{Name: "bad.rs", Value: "int x = ;"}}, nil)
	if err == nil {
		t.Error("expected a parse error")
	}
}

func TestLongFollowsABI(t *testing.T) {
	tests := []struct {
		width      int
		long, ulng ast.BuiltinKind
	}{
		{32, ast.Long, ast.ULong},
		{64, ast.LongLong, ast.ULongLong},
	}
	for _, tt := range tests {
		target := config.Target{PointerWidth: tt.width, TargetAPI: 24, Dialect: config.DialectFull}
		_, tu, err := Translate(target, []Source{{Name: "k.rs", Value: "long gL;\nunsigned long gU;\n"}}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if bt, ok := ast.Canonical(tu.Var("gL").Type).(*ast.BuiltinType); !ok || bt.Kind != tt.long {
			t.Errorf("%d-bit: expected long to lower to %v, got %v", tt.width, tt.long, tu.Var("gL").Type)
		}
		if bt, ok := ast.Canonical(tu.Var("gU").Type).(*ast.BuiltinType); !ok || bt.Kind != tt.ulng {
			t.Errorf("%d-bit: expected unsigned long to lower to %v, got %v", tt.width, tt.ulng, tu.Var("gU").Type)
		}
	}
}
