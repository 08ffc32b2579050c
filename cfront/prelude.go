package cfront

import (
	"fmt"
	"strings"

	"github.com/utrack/rsexport/reflection"
)

// PreludeName is the source name the built-in declarations are parsed under.
const PreludeName = "<rs_prelude>"

var vectorElems = []struct {
	name  string
	ctype string
	size  int
}{
	{"char", "char", 1},
	{"uchar", "unsigned char", 1},
	{"short", "short", 2},
	{"ushort", "unsigned short", 2},
	{"int", "int", 4},
	{"uint", "unsigned int", 4},
	{"long", "long long", 8},
	{"ulong", "unsigned long long", 8},
	{"float", "float", 4},
	{"double", "double", 8},
}

// vectorLens maps every prelude vector typedef to its element count. The C
// parser only knows power-of-two vector sizes, so 3-element vectors are
// declared with 4 lanes and take their length from here.
var vectorLens = map[string]int{}

var prelude string

func init() {
	var sb strings.Builder
	sb.WriteString("typedef _Bool bool;\n")
	sb.WriteString("typedef unsigned char uchar;\n")
	sb.WriteString("typedef unsigned short ushort;\n")
	sb.WriteString("typedef unsigned int uint;\n")
	sb.WriteString("typedef unsigned long long ulong;\n")

	for _, e := range vectorElems {
		for n := 2; n <= reflection.MaxVectorSize; n++ {
			name := fmt.Sprintf("%s%d", e.name, n)
			lanes := n
			if lanes == 3 {
				lanes = 4
			}
			fmt.Fprintf(&sb, "typedef %s %s __attribute__((vector_size(%d)));\n", e.ctype, name, e.size*lanes)
			vectorLens[name] = n
		}
	}

	table := reflection.New()
	for _, name := range reflection.Names() {
		if dim := reflection.MatrixDim(table.SpecificType(name)); dim > 0 {
			fmt.Fprintf(&sb, "typedef struct { float m[%d]; } %s;\n", dim*dim, name)
			continue
		}
		fmt.Fprintf(&sb, "typedef struct { const int* const p; } %s;\n", name)
	}
	prelude = sb.String()
}

// Prelude returns the declarations every kernel sees before its own source.
func Prelude() string {
	return prelude
}
