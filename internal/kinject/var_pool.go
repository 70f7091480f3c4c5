package kinject

import (
	"fmt"
	"go/types"

	"github.com/mazrean/kinject/internal/pkg/strings"
)

// VarPool hands out unique identifiers inside one generated function.
type VarPool struct {
	vars map[string]int
}

func NewVarPool() *VarPool {
	p := &VarPool{
		vars: make(map[string]int),
	}
	for _, ident := range goPredeclaredIdentifiers {
		p.Register(ident)
	}
	p.Register(errVarName)

	return p
}

// Register marks name as taken so generated variables do not shadow it.
func (p *VarPool) Register(name string) {
	if name == "" || name == "_" {
		return
	}
	if count, ok := p.vars[name]; !ok || count == 0 {
		p.vars[name] = 1
	}
}

// Get returns a fresh variable name derived from t.
func (p *VarPool) Get(t types.Type) string {
	return p.GetName(baseName(t))
}

// GetName returns base, or base followed by a number when base is taken.
func (p *VarPool) GetName(base string) string {
	count := p.vars[base]
	p.vars[base] = count + 1
	if count == 0 {
		return base
	}

	for {
		name := fmt.Sprintf("%s%d", base, count)
		if _, ok := p.vars[name]; !ok {
			p.vars[name] = 1
			return name
		}
		count++
		p.vars[base] = count + 1
	}
}

func baseName(t types.Type) string {
	for ptr, ok := t.(*types.Pointer); ok; ptr, ok = t.(*types.Pointer) {
		t = ptr.Elem()
	}

	var name string
	switch t := t.(type) {
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context" {
			return "ctx"
		}
		name = strings.ToLowerCamel(obj.Name())
	case *types.Alias:
		name = strings.ToLowerCamel(t.Obj().Name())
	case *types.Basic:
		switch {
		case t.Info()&types.IsBoolean != 0:
			return "flag"
		case t.Info()&types.IsString != 0:
			return "str"
		case t.Info()&types.IsComplex != 0:
			return "complex"
		case t.Info()&types.IsNumeric != 0:
			return "num"
		default:
			return "val"
		}
	case *types.Slice:
		name = baseName(t.Elem()) + "List"
	case *types.Array:
		name = baseName(t.Elem()) + "List"
	case *types.Map:
		name = baseName(t.Elem()) + "Map"
	case *types.Chan:
		name = baseName(t.Elem()) + "Ch"
	case *types.Signature:
		// factories are named after what they build
		results := t.Results()
		if results.Len() == 0 || isErrorType(results.At(0).Type()) {
			return "fn"
		}
		return strings.Prefixed("new", baseName(results.At(0).Type()))
	default:
		return "val"
	}

	if name == "" || name == "_" {
		return "val"
	}

	return strings.SafeIdent(name)
}
