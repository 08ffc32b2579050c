// Package bindings generates Go host code mirroring exported records byte
// for byte, together with element names and layout constants.
package bindings

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"golang.org/x/tools/imports"

	"github.com/utrack/rsexport/compile"
	"github.com/utrack/rsexport/export"
	"github.com/utrack/rsexport/reflection"
)

type tplRequest struct {
	PkgName      string
	Source       string
	PointerWidth int
	TargetAPI    int
	Records      []tplRecord
	Vars         []tplSlot
	Funcs        []tplSlot
}

type tplRecord struct {
	GoName    string
	CName     string
	Element   string
	Size      int
	Align     int
	HasObject bool
	Fields    []tplField
	TailPad   int
}

type tplField struct {
	GoName string
	CName  string
	GoType string
	Offset int
	// Pad is the number of bytes of padding emitted before the field.
	Pad int
}

type tplSlot struct {
	GoName string
	CName  string
	Slot   int
	Type   string
}

var tpl = template.Must(template.New("bindings").Parse(`// Code generated by rsexportgen from {{.Source}}. DO NOT EDIT.

package {{.PkgName}}

// PointerWidth is the target pointer width the layouts below were computed for.
const PointerWidth = {{.PointerWidth}}

// TargetAPI is the API level the layouts below were validated against.
const TargetAPI = {{.TargetAPI}}
{{range .Records}}
// {{.GoName}} mirrors struct {{.CName}}.
type {{.GoName}} struct {
{{- range .Fields}}
{{- if .Pad}}
	_ [{{.Pad}}]byte
{{- end}}
	{{.GoName}} {{.GoType}} ` + "`" + `rs:"{{.CName}},offset={{.Offset}}"` + "`" + `
{{- end}}
{{- if .TailPad}}
	_ [{{.TailPad}}]byte
{{- end}}
}

const (
	// {{.GoName}}Element is the element name registered with the runtime.
	{{.GoName}}Element = "{{.Element}}"
	{{.GoName}}Size = {{.Size}}
	{{.GoName}}Align = {{.Align}}
	// {{.GoName}}ZeroInit is set when the record holds object handles or
	// matrices that must be cleared before first use.
	{{.GoName}}ZeroInit = {{.HasObject}}
)
{{end}}
{{- if .Vars}}
// Exported globals, in slot order.
const (
{{- range .Vars}}
	Var{{.GoName}} = {{.Slot}} // {{.Type}} {{.CName}}
{{- end}}
)
{{end}}
{{- if .Funcs}}
// Exported functions, in slot order.
const (
{{- range .Funcs}}
	Func{{.GoName}} = {{.Slot}} // {{.CName}}
{{- end}}
)
{{end}}`))

func tplGen(req tplRequest) ([]byte, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, req); err != nil {
		return nil, errors.Wrap(err, "when executing bindings template")
	}
	ret, err := imports.Process("", buf.Bytes(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "when formatting generated code:\n%s", buf.String())
	}
	return ret, nil
}

// Generate renders the bindings for res into package pkgName. source names
// the kernel the bindings came from.
func Generate(res *compile.Result, pkgName, source string) ([]byte, error) {
	req := tplRequest{
		PkgName:      pkgName,
		Source:       source,
		PointerWidth: res.Target.PointerWidth,
		TargetAPI:    res.Target.TargetAPI,
	}

	for _, et := range res.Types {
		r := et.Record()
		if r == nil || r.Artificial {
			continue
		}
		rec, err := record(et, res.Target.PointerWidth)
		if err != nil {
			return nil, errors.Wrapf(err, "when generating bindings for '%v'", et.Name())
		}
		req.Records = append(req.Records, rec)
	}

	for i, v := range res.Vars {
		req.Vars = append(req.Vars, tplSlot{
			GoName: strcase.ToCamel(v.Name),
			CName:  v.Name,
			Slot:   i,
			Type:   v.Type.Name(),
		})
	}
	for i, fn := range res.Funcs {
		req.Funcs = append(req.Funcs, tplSlot{
			GoName: strcase.ToCamel(fn.Name),
			CName:  fn.Name,
			Slot:   i,
		})
	}
	return tplGen(req)
}

// FileName is the generated file's name for a kernel source name.
func FileName(source string) string {
	return strcase.ToSnake(source) + ".rs.go"
}

func record(et *export.ExportType, ptrWidth int) (tplRecord, error) {
	ret := tplRecord{
		GoName:    et.ElementName(),
		CName:     et.Name(),
		Element:   et.ElementName(),
		Size:      et.AllocSize(),
		Align:     et.Align(),
		HasObject: et.ContainsObject(),
	}

	cur := 0
	for _, f := range et.Fields() {
		gt, err := goType(f.Type(), ptrWidth)
		if err != nil {
			return ret, errors.Wrapf(err, "when mapping field '%v'", f.Name)
		}
		if f.Offset < cur {
			return ret, errors.Errorf("field '%v' at offset %d overlaps the previous field ending at %d", f.Name, f.Offset, cur)
		}
		// Packed records can misalign a field; Go would pad before it.
		if f.Offset%f.Type().Align() != 0 {
			gt = fmt.Sprintf("[%d]byte", goSize(f.Type()))
		}
		ret.Fields = append(ret.Fields, tplField{
			GoName: strcase.ToCamel(f.Name),
			CName:  f.Name,
			GoType: gt,
			Offset: f.Offset,
			Pad:    f.Offset - cur,
		})
		cur = f.Offset + goSize(f.Type())
	}
	if tail := ret.Size - cur; tail > 0 {
		ret.TailPad = tail
	}
	return ret, nil
}

var scalarGoTypes = map[reflection.DataType]string{
	reflection.DataTypeFloat16:      "uint16",
	reflection.DataTypeFloat32:      "float32",
	reflection.DataTypeFloat64:      "float64",
	reflection.DataTypeSigned8:      "int8",
	reflection.DataTypeSigned16:     "int16",
	reflection.DataTypeSigned32:     "int32",
	reflection.DataTypeSigned64:     "int64",
	reflection.DataTypeUnsigned8:    "uint8",
	reflection.DataTypeUnsigned16:   "uint16",
	reflection.DataTypeUnsigned32:   "uint32",
	reflection.DataTypeUnsigned64:   "uint64",
	reflection.DataTypeBoolean:      "bool",
	reflection.DataTypeUnsigned565:  "uint16",
	reflection.DataTypeUnsigned5551: "uint16",
	reflection.DataTypeUnsigned4444: "uint16",
}

func goType(et *export.ExportType, ptrWidth int) (string, error) {
	switch in := et.Inner().(type) {
	case *export.Primitive:
		if et.IsObject() {
			if ptrWidth == 64 {
				return "[4]uint64", nil
			}
			return "[1]uint32", nil
		}
		if gt, ok := scalarGoTypes[in.Type]; ok {
			return gt, nil
		}
		return "", errors.Errorf("no Go type for %v", in.Type)

	case *export.Vector:
		gt, ok := scalarGoTypes[in.Type]
		if !ok {
			return "", errors.Errorf("no Go type for vector of %v", in.Type)
		}
		return fmt.Sprintf("[%d]%s", in.Len, gt), nil

	case *export.Matrix:
		return fmt.Sprintf("[%d]float32", in.Dim*in.Dim), nil

	case *export.ConstantArray:
		elem, err := goType(et.Elem(), ptrWidth)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%d]%s", in.Len, elem), nil

	case *export.Pointer:
		return fmt.Sprintf("uint%d", ptrWidth), nil

	case *export.Record:
		return et.ElementName(), nil
	}
	return "", errors.Errorf("unknown descriptor class %v", et.Class())
}

// goSize is the size of the Go mirror of et. Arrays end with their last
// element's store size, so a trailing 3-element vector has no fourth lane.
func goSize(et *export.ExportType) int {
	switch in := et.Inner().(type) {
	case *export.ConstantArray:
		elem := et.Elem()
		return (in.Len-1)*elem.AllocSize() + goSize(elem)
	case *export.Record:
		return et.AllocSize()
	}
	return et.StoreSize()
}
