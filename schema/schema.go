// Package schema renders exported descriptors as an OpenAPI 3 document, so
// host tooling can read the reflected layout without linking the exporter.
package schema

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/compile"
	"github.com/utrack/rsexport/export"
	"github.com/utrack/rsexport/reflection"
)

const (
	extOffsets = "x-rs-offsets"
	extSize    = "x-rs-alloc-size"
	extElement = "x-rs-element"
	extObject  = "x-rs-object"
	extPointer = "x-rs-pointer-width"
)

type generator struct {
	table *reflection.Table
	refs  map[*export.ExportType]*openapi3.SchemaRef
	comp  openapi3.Schemas
}

// Document describes every kept type of res. Records become component
// schemas; exported variables are GET paths and functions POST paths whose
// body is the parameter pack.
func Document(res *compile.Result, title string) (*openapi3.T, error) {
	g := &generator{
		table: res.Context().Table(),
		refs:  map[*export.ExportType]*openapi3.SchemaRef{},
		comp:  openapi3.Schemas{},
	}

	for _, et := range res.Types {
		if r := et.Record(); r == nil || r.Artificial {
			continue
		}
		if _, err := g.record(et); err != nil {
			return nil, errors.Wrapf(err, "when describing '%v'", et.Name())
		}
	}

	paths := openapi3.Paths{}
	for _, v := range res.Vars {
		ref, err := g.schema(v.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "when describing variable '%v'", v.Name)
		}
		op := openapi3.NewOperation()
		op.OperationID = "get_" + v.Name
		op.Description = fmt.Sprintf("Global %v of type %v.", v.Name, v.Type.Name())
		op.Tags = []string{"vars"}
		rsp := openapi3.NewResponse().WithDescription("current value")
		rsp.Content = openapi3.NewContentWithJSONSchemaRef(ref)
		op.AddResponse(200, rsp)

		p := &openapi3.PathItem{}
		p.SetOperation("GET", op)
		paths["/vars/"+v.Name] = p
	}

	for _, fn := range res.Funcs {
		op := openapi3.NewOperation()
		op.OperationID = "invoke_" + fn.Name
		op.Description = fmt.Sprintf("Invokes %v.", fn.Name)
		op.Tags = []string{"funcs"}
		if fn.ParamPack != nil {
			body, err := g.object(fn.ParamPack)
			if err != nil {
				return nil, errors.Wrapf(err, "when describing parameters of '%v'", fn.Name)
			}
			op.RequestBody = &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithJSONSchema(body).WithRequired(true),
			}
		}
		op.AddResponse(204, openapi3.NewResponse().WithDescription("invoked"))

		p := &openapi3.PathItem{}
		p.SetOperation("POST", op)
		paths["/funcs/"+fn.Name] = p
	}

	comp := openapi3.NewComponents()
	comp.Schemas = g.comp

	root := &openapi3.T{}
	root.OpenAPI = "3.0.3"
	root.Info = &openapi3.Info{
		Title:   title,
		Version: fmt.Sprintf("%d-autogen", reflection.Version),
	}
	root.Info.Extensions = map[string]interface{}{extPointer: res.Target.PointerWidth}
	root.Components = comp
	root.Paths = paths
	return root, nil
}

// JSON marshals the document the way it is served.
func JSON(doc *openapi3.T) ([]byte, error) {
	ret, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "when marshalling document")
	}
	return ret, nil
}

// YAML renders the document as YAML.
func YAML(doc *openapi3.T) ([]byte, error) {
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "when marshalling document")
	}
	ret, err := yaml.JSONToYAML(js)
	if err != nil {
		return nil, errors.Wrap(err, "when converting document to YAML")
	}
	return ret, nil
}

func (g *generator) schema(et *export.ExportType) (*openapi3.SchemaRef, error) {
	switch in := et.Inner().(type) {
	case *export.Primitive:
		return openapi3.NewSchemaRef("", g.scalar(in.Type)), nil

	case *export.Vector:
		return openapi3.NewSchemaRef("", fixedArray(g.scalar(in.Type), in.Len)), nil

	case *export.Matrix:
		sc := fixedArray(openapi3.NewFloat64Schema().WithFormat("float"), in.Dim*in.Dim)
		sc.Description = fmt.Sprintf("%dx%d float matrix, column major", in.Dim, in.Dim)
		return openapi3.NewSchemaRef("", sc), nil

	case *export.ConstantArray:
		elem, err := g.schema(et.Elem())
		if err != nil {
			return nil, errors.Wrap(err, "when describing array element")
		}
		sc := openapi3.NewArraySchema()
		sc.Items = elem
		setLen(sc, in.Len)
		return openapi3.NewSchemaRef("", sc), nil

	case *export.Pointer:
		pointee := et.Pointee()
		val, err := g.schema(pointee)
		if err != nil {
			return nil, errors.Wrap(err, "when describing pointee")
		}
		if val.Ref == "" {
			val.Value.Nullable = true
			return val, nil
		}
		nulltype := openapi3.NewSchema()
		nulltype.Nullable = true
		ret := openapi3.NewSchema()
		ret.AnyOf = append(ret.AnyOf, openapi3.NewSchemaRef("", nulltype), val)
		return openapi3.NewSchemaRef("", ret), nil

	case *export.Record:
		ref, err := g.record(et)
		if err != nil {
			return nil, err
		}
		return openapi3.NewSchemaRef(ref.Ref, nil), nil
	}
	return nil, errors.Errorf("unknown descriptor class %v", et.Class())
}

// record registers the component before describing fields, so pointers back
// to the record resolve to the same reference.
func (g *generator) record(et *export.ExportType) (*openapi3.SchemaRef, error) {
	if ref, ok := g.refs[et]; ok {
		return ref, nil
	}
	sc := openapi3.NewObjectSchema()
	ret := openapi3.NewSchemaRef("#/components/schemas/"+et.Name(), sc)
	g.refs[et] = ret
	g.comp[et.Name()] = openapi3.NewSchemaRef("", sc)

	if err := g.fill(sc, et); err != nil {
		return nil, err
	}
	return ret, nil
}

// object describes an artificial record inline.
func (g *generator) object(et *export.ExportType) (*openapi3.Schema, error) {
	sc := openapi3.NewObjectSchema()
	return sc, g.fill(sc, et)
}

func (g *generator) fill(sc *openapi3.Schema, et *export.ExportType) error {
	offsets := map[string]int{}
	for _, f := range et.Fields() {
		fs, err := g.schema(f.Type())
		if err != nil {
			return errors.Wrapf(err, "when describing field '%v'", f.Name)
		}
		sc.Properties[f.Name] = fs
		sc.Required = append(sc.Required, f.Name)
		offsets[f.Name] = f.Offset
	}
	sc.Extensions = map[string]interface{}{
		extOffsets: offsets,
		extSize:    et.AllocSize(),
	}
	if !et.IsDummy() {
		sc.Extensions[extElement] = et.ElementName()
	}
	return nil
}

func (g *generator) scalar(dt reflection.DataType) *openapi3.Schema {
	sc := openapi3.NewSchema()
	switch dt {
	case reflection.DataTypeFloat16, reflection.DataTypeFloat32:
		sc.Type = "number"
		sc.Format = "float"
	case reflection.DataTypeFloat64:
		sc.Type = "number"
		sc.Format = "double"
	case reflection.DataTypeSigned8:
		sc = openapi3.NewInt32Schema().WithMin(math.MinInt8).WithMax(math.MaxInt8)
	case reflection.DataTypeSigned16:
		sc = openapi3.NewInt32Schema().WithMin(math.MinInt16).WithMax(math.MaxInt16)
	case reflection.DataTypeSigned32:
		sc = openapi3.NewInt32Schema()
	case reflection.DataTypeSigned64:
		sc = openapi3.NewInt64Schema()
	case reflection.DataTypeUnsigned8:
		sc = openapi3.NewInt32Schema().WithMin(0).WithMax(math.MaxUint8)
	case reflection.DataTypeUnsigned16, reflection.DataTypeUnsigned565,
		reflection.DataTypeUnsigned5551, reflection.DataTypeUnsigned4444:
		sc = openapi3.NewInt32Schema().WithMin(0).WithMax(math.MaxUint16)
	case reflection.DataTypeUnsigned32:
		sc = openapi3.NewInt64Schema().WithMin(0).WithMax(math.MaxUint32)
	case reflection.DataTypeUnsigned64:
		sc = openapi3.NewInt64Schema().WithMin(0)
	case reflection.DataTypeBoolean:
		sc.Type = "boolean"
	default:
		if g.table.IsObject(dt) {
			sc = openapi3.NewObjectSchema()
			sc.Description = "runtime object handle"
			sc.Extensions = map[string]interface{}{extObject: dt.String()}
		}
	}
	return sc
}

func fixedArray(items *openapi3.Schema, n int) *openapi3.Schema {
	sc := openapi3.NewArraySchema().WithItems(items)
	setLen(sc, n)
	return sc
}

func setLen(sc *openapi3.Schema, n int) {
	l := uint64(n)
	sc.MinItems = l
	sc.MaxItems = &l
}
