// Package server exposes the exporter over HTTP: kernel source in, schema
// document or Go bindings out.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ggicci/httpin"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"

	"github.com/utrack/rsexport/bindings"
	"github.com/utrack/rsexport/cfront"
	"github.com/utrack/rsexport/compile"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/reflection"
	"github.com/utrack/rsexport/schema"
)

// Router routes HTTP requests around.
type Router interface {
	MethodFunc(method, pattern string, hdl http.Handler)
}

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatGo   = "go"
)

const defaultMaxBody = 1 << 20

// exportInput is decoded from the query string. Zero values fall back to
// the server's target.
type exportInput struct {
	PointerWidth int    `in:"query=width"`
	TargetAPI    int    `in:"query=api"`
	Dialect      string `in:"query=dialect"`
	Format       string `in:"query=format"`
	Name         string `in:"query=name"`
}

type Server struct {
	cfg HandlerConfig
}

// New creates a server. Without options it compiles with the C front end
// against config.Default().
func New(opts ...Option) *Server {
	cfg := HandlerConfig{
		target:  config.Default(),
		compile: compile.Sources,
		maxBody: defaultMaxBody,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Server{cfg: cfg}
}

// RegisterHTTP registers the endpoints on r.
func (s *Server) RegisterHTTP(r Router) {
	r.MethodFunc(http.MethodPost, "/v1/export", s.wrap(httpin.NewInput(exportInput{})(http.HandlerFunc(s.export))))
	r.MethodFunc(http.MethodGet, "/v1/types", s.wrap(http.HandlerFunc(s.types)))
}

// Handler returns every endpoint on a fresh Mux.
func (s *Server) Handler() http.Handler {
	m := NewMux()
	s.RegisterHTTP(m)
	return m
}

func (s *Server) wrap(h http.Handler) http.Handler {
	mws := s.cfg.Middlewares()
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) target(in *exportInput) (config.Target, error) {
	return s.cfg.target.Merge(config.Overrides{
		PointerWidth: in.PointerWidth,
		TargetAPI:    in.TargetAPI,
		Dialect:      in.Dialect,
	})
}

type diagJSON struct {
	Pos      string `json:"pos"`
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

type errorJSON struct {
	Error       string     `json:"error"`
	Diagnostics []diagJSON `json:"diagnostics,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error, diags *diag.List) {
	ret := errorJSON{Error: err.Error()}
	if diags != nil {
		for _, d := range diags.Diagnostics() {
			ret.Diagnostics = append(ret.Diagnostics, diagJSON{
				Pos:      d.Pos.String(),
				Severity: d.Severity.String(),
				Code:     string(d.Code),
				Message:  d.Message,
			})
		}
	}
	writeJSON(w, status, ret)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	in := r.Context().Value(httpin.Input).(*exportInput)

	target, err := s.target(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "when reading target"), nil)
		return
	}
	name := in.Name
	if name == "" {
		name = "kernel"
	}
	format := strings.ToLower(in.Format)
	if format == "" {
		format = FormatJSON
	}
	switch format {
	case FormatJSON, FormatYAML, FormatGo:
	default:
		writeError(w, http.StatusBadRequest, errors.Errorf("unknown format '%v'", in.Format), nil)
		return
	}

	src, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.maxBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "when reading kernel source"), nil)
		return
	}
	if int64(len(src)) > s.cfg.maxBody {
		writeError(w, http.StatusRequestEntityTooLarge, errors.Errorf("kernel source exceeds %d bytes", s.cfg.maxBody), nil)
		return
	}

	diags := diag.NewList()
	res, err := s.cfg.compile(target, []cfront.Source{{Name: name + ".rs", Value: string(src)}}, diags)
	if err != nil {
		status := http.StatusBadRequest
		if diags.HasErrors() {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err, diags)
		return
	}

	var out []byte
	contentType := "application/json"
	switch format {
	case FormatGo:
		out, err = bindings.Generate(res, strcase.ToSnake(name), name+".rs")
		contentType = "text/x-go"
	default:
		doc, derr := schema.Document(res, name)
		if derr != nil {
			err = derr
			break
		}
		if format == FormatYAML {
			out, err = schema.YAML(doc)
			contentType = "application/yaml"
		} else {
			out, err = schema.JSON(doc)
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err, nil)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

type typeJSON struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Bits32   uint32 `json:"bits32"`
	Bits64   uint32 `json:"bits64"`
}

// types lists the record type names with a dedicated data type.
func (s *Server) types(w http.ResponseWriter, r *http.Request) {
	table := reflection.New()
	var ret []typeJSON
	for _, name := range reflection.Names() {
		dt := table.SpecificType(name)
		ret = append(ret, typeJSON{
			Name:     name,
			DataType: dt.String(),
			Bits32:   table.SizeInBits(dt, false),
			Bits64:   table.SizeInBits(dt, true),
		})
	}
	writeJSON(w, http.StatusOK, ret)
}
