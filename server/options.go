package server

import (
	"net/http"

	"github.com/utrack/rsexport/cfront"
	"github.com/utrack/rsexport/compile"
	"github.com/utrack/rsexport/config"
	"github.com/utrack/rsexport/diag"
)

// CompileFunc turns kernel sources into an export result.
type CompileFunc func(config.Target, []cfront.Source, *diag.List) (*compile.Result, error)

// HandlerConfig configures the export handler.
type HandlerConfig struct {
	middlewares []func(http.Handler) http.Handler
	target      config.Target
	compile     CompileFunc
	maxBody     int64
}

func (c HandlerConfig) Clone() HandlerConfig {
	ret := c
	ret.middlewares = append([]func(http.Handler) http.Handler(nil), c.middlewares...)
	return ret
}

// Middlewares returns the middlewares applied around every endpoint, outermost
// first.
func (c HandlerConfig) Middlewares() []func(http.Handler) http.Handler {
	return c.middlewares
}

type Option func(*HandlerConfig)

// WithMiddlewares appends given middlewares that wrap every endpoint.
func WithMiddlewares(mws ...func(http.Handler) http.Handler) Option {
	return func(c *HandlerConfig) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithTarget sets the target used for query parameters that were not given.
func WithTarget(t config.Target) Option {
	return func(c *HandlerConfig) {
		c.target = t
	}
}

// WithCompiler replaces the C front end pipeline.
func WithCompiler(f CompileFunc) Option {
	return func(c *HandlerConfig) {
		c.compile = f
	}
}

// WithMaxBody limits the accepted kernel source size in bytes.
func WithMaxBody(n int64) Option {
	return func(c *HandlerConfig) {
		c.maxBody = n
	}
}
