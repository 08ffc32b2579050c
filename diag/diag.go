// Package diag collects diagnostics produced while exporting types.
//
// Messages are templates in the clang style: %0, %1, ... are replaced by the
// arguments given to Report. Every diagnostic carries a Code that places it in
// the error taxonomy, and each Code has a sentinel error so callers that only
// see the returned error can still tell what went wrong.
package diag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/utrack/rsexport/ast"
)

// Severity represents the severity level of a diagnostic.
type Severity uint8

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Code places a diagnostic in the error taxonomy.
type Code string

const (
	CodeNotExportable        Code = "not-exportable"
	CodeAnonymousType        Code = "anonymous-type"
	CodeDialectViolation     Code = "dialect-violation"
	CodeMalformedSpecialType Code = "malformed-special-type"
	CodeInternal             Code = "internal"
)

var (
	ErrNotExportable        = errors.New("type cannot be exported")
	ErrAnonymousType        = errors.New("anonymous types cannot be exported")
	ErrDialectViolation     = errors.New("type is not allowed by the target dialect")
	ErrMalformedSpecialType = errors.New("malformed special type")
	ErrInternal             = errors.New("internal error")
)

// Sentinel returns the sentinel error for code.
func (c Code) Sentinel() error {
	switch c {
	case CodeNotExportable:
		return ErrNotExportable
	case CodeAnonymousType:
		return ErrAnonymousType
	case CodeDialectViolation:
		return ErrDialectViolation
	case CodeMalformedSpecialType:
		return ErrMalformedSpecialType
	default:
		return ErrInternal
	}
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Pos      ast.Position
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// Reporter is the sink diagnostics are sent to.
type Reporter interface {
	Report(pos ast.Position, code Code, template string, args ...interface{})
}

// Discard drops every report.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Report(ast.Position, Code, string, ...interface{}) {}

// List collects diagnostics during one compilation.
type List struct {
	diagnostics []Diagnostic
	hasErrors   bool
}

// NewList creates an empty list.
func NewList() *List {
	return &List{}
}

// Report adds an error built from template and args.
func (l *List) Report(pos ast.Position, code Code, template string, args ...interface{}) {
	l.Add(Diagnostic{
		Severity: Error,
		Code:     code,
		Message:  Expand(template, args...),
		Pos:      pos,
	})
}

// Warn adds a warning built from template and args.
func (l *List) Warn(pos ast.Position, template string, args ...interface{}) {
	l.Add(Diagnostic{
		Severity: Warning,
		Message:  Expand(template, args...),
		Pos:      pos,
	})
}

// Add adds a diagnostic to the list.
func (l *List) Add(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
	if d.Severity == Error {
		l.hasErrors = true
	}
}

// HasErrors returns true if there are any error-level diagnostics.
func (l *List) HasErrors() bool {
	return l.hasErrors
}

// Diagnostics returns all collected diagnostics.
func (l *List) Diagnostics() []Diagnostic {
	return l.diagnostics
}

// Errors returns only error-level diagnostics.
func (l *List) Errors() []Diagnostic {
	var errs []Diagnostic
	for _, d := range l.diagnostics {
		if d.Severity == Error {
			errs = append(errs, d)
		}
	}
	return errs
}

// Len returns the number of diagnostics.
func (l *List) Len() int {
	return len(l.diagnostics)
}

// Format formats all diagnostics, one per line.
func (l *List) Format() string {
	var sb strings.Builder
	for i := range l.diagnostics {
		sb.WriteString(l.diagnostics[i].Error())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Err returns the first error diagnostic wrapped in its sentinel, or nil.
func (l *List) Err() error {
	for i := range l.diagnostics {
		d := &l.diagnostics[i]
		if d.Severity == Error {
			return errors.Wrap(d.Code.Sentinel(), d.Error())
		}
	}
	return nil
}

// Expand substitutes %N placeholders in template with args[N].
// A placeholder followed by a digit run uses the whole run as the index.
func Expand(template string, args ...interface{}) string {
	if !strings.Contains(template, "%") {
		return template
	}
	var sb strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' || i+1 >= len(template) || !isDigit(template[i+1]) {
			sb.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(template) && isDigit(template[j]) {
			j++
		}
		n, _ := strconv.Atoi(template[i+1 : j])
		if n < len(args) {
			fmt.Fprint(&sb, args[n])
		} else {
			sb.WriteString(template[i:j])
		}
		i = j - 1
	}
	return sb.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
