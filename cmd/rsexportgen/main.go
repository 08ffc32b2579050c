package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/ryboe/q"

	"github.com/utrack/rsexport/bindings"
	"github.com/utrack/rsexport/cfront"
	"github.com/utrack/rsexport/compile"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
	"github.com/utrack/rsexport/schema"
	"github.com/utrack/rsexport/server"
)

// scriptExts are the kernel source extensions picked up from -dir.
var scriptExts = []string{".rs", ".fs"}

type outputs struct {
	dir      string
	schema   string
	bindings bool
	pkg      string
}

func main() {
	dir := flag.String("dir", ".", "directory to read kernel sources from")
	out := flag.String("out", "", "directory to write generated files to; defaults to -dir")
	width := flag.Int("width", 0, "pointer width, 32 or 64")
	api := flag.Int("api", 0, "target API level")
	dialect := flag.String("dialect", "", "kernel dialect: full or restricted")
	format := flag.String("format", "", "schema format: yaml, json or none")
	pkg := flag.String("pkg", "", "package name of generated bindings")
	noBindings := flag.Bool("no-bindings", false, "skip generating Go bindings")
	serve := flag.String("serve", "", "serve the export API on given address instead of generating files")
	debug := flag.Bool("debug", false, "dump exported descriptors")
	help := flag.Bool("help", false, "print help string and exit")

	flag.Parse()
	if *help {
		flag.Usage()
		return
	}

	absDir, err := filepath.Abs(*dir)
	if err != nil {
		log.Fatal(err)
	}
	file, cfgPath, err := config.Load(absDir)
	if err != nil {
		log.Fatal(err)
	}
	if cfgPath != "" {
		log.Printf("using config %v", cfgPath)
	}
	target, err := file.Target()
	if err != nil {
		log.Fatal(errors.Wrapf(err, "when reading config '%v'", cfgPath))
	}
	target, err = target.Merge(config.Overrides{
		PointerWidth: *width,
		TargetAPI:    *api,
		Dialect:      *dialect,
	})
	if err != nil {
		log.Fatal(err)
	}

	if *serve != "" {
		srv := server.New(server.WithTarget(target), server.WithMiddlewares(logRequests))
		log.Printf("serving on %v (%d-bit, API %d, %v)", *serve, target.PointerWidth, target.TargetAPI, target.Dialect)
		log.Fatal(http.ListenAndServe(*serve, srv.Handler()))
	}

	o := outputs{dir: absDir, schema: "yaml", bindings: !*noBindings}
	if file != nil {
		if file.Output.Schema != "" {
			o.schema = file.Output.Schema
		}
		if file.Output.Bindings != "" {
			o.dir = filepath.Join(filepath.Dir(cfgPath), file.Output.Bindings)
		}
		o.pkg = file.Output.Package
	}
	if *out != "" {
		o.dir = *out
	}
	if *format != "" {
		o.schema = *format
	}
	if *pkg != "" {
		o.pkg = *pkg
	}
	if o.pkg == "" {
		o.pkg = strcase.ToSnake(filepath.Base(o.dir))
	}

	paths, err := scripts(absDir)
	if err != nil {
		log.Fatal(err)
	}
	if len(paths) == 0 {
		log.Fatal("no kernel sources found in ", absDir)
	}

	failed := 0
	for _, path := range paths {
		if err := generate(target, path, o, *debug); err != nil {
			log.Print(err)
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("%d of %d scripts failed", failed, len(paths))
	}
}

func scripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "when listing '%v'", dir)
	}
	ret := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, ext := range scriptExts {
			if filepath.Ext(e.Name()) == ext {
				ret = append(ret, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(ret)
	return ret, nil
}

// generate exports one script; each script is its own module.
func generate(target config.Target, path string, o outputs, debug bool) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "when reading a script")
	}
	diags := diag.NewList()
	res, err := compile.Sources(target, []cfront.Source{{Name: path, Value: string(buf)}}, diags)
	if diags.Len() > 0 {
		os.Stderr.WriteString(diags.Format())
	}
	if err != nil {
		return errors.Wrapf(err, "when compiling '%v'", path)
	}
	if debug {
		q.Q(res.Vars, res.Funcs)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return errors.Wrap(err, "when creating output directory")
	}

	if o.schema != "none" {
		doc, err := schema.Document(res, base)
		if err != nil {
			return errors.Wrapf(err, "when generating schema for '%v'", path)
		}
		var data []byte
		switch o.schema {
		case "yaml":
			data, err = schema.YAML(doc)
		case "json":
			data, err = schema.JSON(doc)
		default:
			return errors.Errorf("unknown schema format '%v'", o.schema)
		}
		if err != nil {
			return err
		}
		name := filepath.Join(o.dir, strcase.ToSnake(base)+".openapi."+o.schema)
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return errors.Wrap(err, "when writing a file")
		}
		log.Printf("wrote %v", name)
	}

	if o.bindings {
		data, err := bindings.Generate(res, o.pkg, filepath.Base(path))
		if err != nil {
			return errors.Wrapf(err, "when executing go code template for '%v'", path)
		}
		name := filepath.Join(o.dir, bindings.FileName(base))
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return errors.Wrap(err, "when writing a file")
		}
		log.Printf("wrote %v", name)
	}
	return nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%v %v", r.Method, r.URL)
		next.ServeHTTP(w, r)
	})
}
