package kinject

import (
	"bytes"
	"fmt"
	"go/types"
	"io"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"
)

const fileTemplateText = `{{.Header}}

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	{{if .Aliased}}{{.Name}} {{end}}{{printf "%q" .Path}}
{{- end}}
)
{{end}}
{{- range .Funcs}}
{{.}}
{{end -}}
`

var fileTemplate = template.Must(template.New("file").Parse(fileTemplateText))

type fileTemplateData struct {
	Header  string
	Package string
	Imports []*Import
	Funcs   []string
}

// Generate writes the generated file for injectors to w. filename is the output
// file name; it only influences import grouping.
func Generate(w io.Writer, filename string, metaData *MetaData, injectors []*Injector) error {
	src, err := Render(filename, metaData, injectors)
	if err != nil {
		return err
	}

	if _, err := w.Write(src); err != nil {
		return fmt.Errorf("write generated code: %w", err)
	}
	return nil
}

// Render returns the formatted source of the generated file.
func Render(filename string, metaData *MetaData, injectors []*Injector) ([]byte, error) {
	if metaData == nil || metaData.Package == nil {
		return nil, fmt.Errorf("missing package information")
	}
	if metaData.Imports == nil {
		metaData.Imports = NewImportSet(metaData.Package)
	}

	for _, injector := range injectors {
		for _, p := range injector.Params {
			if err := metaData.Imports.Reserve(p.Name); err != nil {
				return nil, fmt.Errorf("generate %s: %w", injector.Name, err)
			}
		}
	}

	funcs := make([]string, 0, len(injectors))
	for _, injector := range injectors {
		fn, err := newFuncWriter(metaData, injector).write()
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", injector.Name, err)
		}
		funcs = append(funcs, fn)
	}

	var buf bytes.Buffer
	err := fileTemplate.Execute(&buf, &fileTemplateData{
		Header:  generatedHeader,
		Package: metaData.Package.Name(),
		Imports: metaData.Imports.Used(),
		Funcs:   funcs,
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	formatted, err := imports.Process(filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w\n%s", err, buf.String())
	}

	return formatted, nil
}

type funcWriter struct {
	meta     *MetaData
	injector *Injector
	qualify  types.Qualifier

	// exprs holds the callee of provider steps and the type of literal steps.
	exprs      map[*InjectorStep]string
	paramTypes map[*Var]string
	results    map[*Injector]string
	zeros      map[*Injector]string
	composite  string

	sb strings.Builder
}

func newFuncWriter(meta *MetaData, injector *Injector) *funcWriter {
	return &funcWriter{
		meta:       meta,
		injector:   injector,
		qualify:    meta.Imports.Use,
		exprs:      make(map[*InjectorStep]string),
		paramTypes: make(map[*Var]string),
		results:    make(map[*Injector]string),
		zeros:      make(map[*Injector]string),
	}
}

func (fw *funcWriter) write() (string, error) {
	inj := fw.injector

	// Every package the function refers to gets its import before variables are
	// named, so no variable can shadow a package it needs.
	if err := fw.prepare(inj); err != nil {
		return "", err
	}
	if inj.Result == nil {
		fw.composite = fw.compositeType()
	}

	fw.nameVars()

	if inj.Declared != "" {
		fmt.Fprintf(&fw.sb, "// %s is generated from the kinject.Component declared at %s.\n", inj.Name, inj.Declared)
	}
	fmt.Fprintf(&fw.sb, "func %s%s {\n", inj.Name, fw.signature(inj))
	fw.writeBody(inj, "\t")
	fw.sb.WriteString("}\n")

	return fw.sb.String(), nil
}

// prepare qualifies every type and callee inj and its injected functions refer to.
func (fw *funcWriter) prepare(inj *Injector) error {
	for _, p := range inj.Params {
		fw.paramTypes[p] = types.TypeString(p.Type, fw.qualify)
	}

	result := types.TypeString(inj.Return, fw.qualify)
	if inj.ReturnsError {
		result = "(" + result + ", error)"
		fw.zeros[inj] = zeroValue(inj.Return, fw.qualify)
	}
	fw.results[inj] = result

	for _, step := range inj.Steps {
		switch step.Binding.Kind {
		case BindingProvider:
			fw.exprs[step] = fw.callee(step.Binding.Callee)
		case BindingValue:
			if !step.Binding.ValueTyped {
				fw.exprs[step] = types.TypeString(step.Binding.Provides[0], fw.qualify)
			}
		case BindingSlice, BindingMap:
			fw.exprs[step] = types.TypeString(step.Binding.Provides[0], fw.qualify)
		case BindingFunc:
			if err := fw.prepare(step.Func); err != nil {
				return err
			}
		default:
			return fmt.Errorf("binding %s of kind %s cannot be evaluated", step.Binding.Source, step.Binding.Kind)
		}
	}

	return nil
}

// signature returns the parameter list and results of inj.
func (fw *funcWriter) signature(inj *Injector) string {
	params := make([]string, 0, len(inj.Params))
	for _, p := range inj.Params {
		params = append(params, p.Ident()+" "+fw.paramTypes[p])
	}

	return fmt.Sprintf("(%s) %s", strings.Join(params, ", "), fw.results[inj])
}

func (fw *funcWriter) callee(c *Callee) string {
	if c.Pkg == nil {
		return c.Expr
	}
	if name := fw.qualify(c.Pkg); name != "" {
		return name + "." + c.Name
	}
	return c.Name
}

// compositeType returns the prefix of the composite literal of a struct component.
func (fw *funcWriter) compositeType() string {
	t := fw.injector.Return
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		return "&" + types.TypeString(ptr.Elem(), fw.qualify)
	}
	return types.TypeString(t, fw.qualify)
}

func (fw *funcWriter) nameVars() {
	pool := NewVarPool()
	for _, name := range fw.meta.Imports.Names() {
		pool.Register(name)
	}
	if scope := fw.meta.Package.Scope(); scope != nil {
		for _, name := range scope.Names() {
			pool.Register(name)
		}
	}
	for _, p := range fw.injector.Params {
		pool.Register(p.Name)
	}

	fw.nameInjector(pool, fw.injector)
}

// nameInjector names the variables of inj. Injected functions share the pool of the
// enclosing function, so no closure variable shadows a captured one.
func (fw *funcWriter) nameInjector(pool *VarPool, inj *Injector) {
	if inj != fw.injector {
		for _, p := range inj.Params {
			if p.Refs > 0 {
				p.Name = pool.Get(p.Type)
			}
		}
	}

	for _, step := range inj.Steps {
		if step.Func != nil {
			fw.nameInjector(pool, step.Func)
		}
		for _, v := range step.Results {
			if v.Refs > 0 {
				v.Name = pool.Get(v.Type)
			}
		}
	}
}

func (fw *funcWriter) writeBody(inj *Injector, indent string) {
	for _, step := range inj.Steps {
		switch step.Binding.Kind {
		case BindingValue:
			fw.writeValue(step, indent)
		case BindingSlice, BindingMap:
			fw.writeCollection(step, indent)
		case BindingFunc:
			fw.writeFunc(step, indent)
		default:
			fw.writeCall(step, inj, indent)
		}
	}

	fw.sb.WriteString(indent + "return ")
	if inj.Result != nil {
		fw.sb.WriteString(inj.Result.Ident())
	} else {
		fw.sb.WriteString(fw.composite)
		fw.sb.WriteString("{\n")
		for _, field := range inj.Fields {
			fmt.Fprintf(&fw.sb, "%s\t%s: %s,\n", indent, field.Name, field.Value.Ident())
		}
		fw.sb.WriteString(indent + "}")
	}
	if inj.ReturnsError {
		fw.sb.WriteString(", nil")
	}
	fw.sb.WriteString("\n")
}

func (fw *funcWriter) writeValue(step *InjectorStep, indent string) {
	v := step.Results[0]
	if typeName, ok := fw.exprs[step]; ok {
		fmt.Fprintf(&fw.sb, "%svar %s %s = %s\n", indent, v.Ident(), typeName, step.Binding.ValueExpr)
		return
	}
	fmt.Fprintf(&fw.sb, "%s%s := %s\n", indent, v.Ident(), step.Binding.ValueExpr)
}

func (fw *funcWriter) writeCollection(step *InjectorStep, indent string) {
	fmt.Fprintf(&fw.sb, "%s%s := %s{\n", indent, step.Results[0].Ident(), fw.exprs[step])
	for i, el := range step.Binding.Elements {
		if step.Binding.Kind == BindingMap {
			fmt.Fprintf(&fw.sb, "%s\t%s: %s,\n", indent, el.MapKey, step.Args[i].Ident())
			continue
		}
		fmt.Fprintf(&fw.sb, "%s\t%s,\n", indent, step.Args[i].Ident())
	}
	fw.sb.WriteString(indent + "}\n")
}

func (fw *funcWriter) writeFunc(step *InjectorStep, indent string) {
	fmt.Fprintf(&fw.sb, "%s%s := func%s {\n", indent, step.Results[0].Ident(), fw.signature(step.Func))
	fw.writeBody(step.Func, indent+"\t")
	fw.sb.WriteString(indent + "}\n")
}

func (fw *funcWriter) writeCall(step *InjectorStep, inj *Injector, indent string) {
	lhs := make([]string, 0, len(step.Results)+1)
	for _, v := range step.Results {
		lhs = append(lhs, v.Ident())
	}
	if step.Binding.ReturnsError {
		lhs = append(lhs, errVarName)
	}

	args := make([]string, 0, len(step.Args))
	for _, a := range step.Args {
		args = append(args, a.Ident())
	}

	fmt.Fprintf(&fw.sb, "%s%s := %s(%s)\n", indent, strings.Join(lhs, ", "), fw.exprs[step], strings.Join(args, ", "))
	if step.Binding.ReturnsError {
		fmt.Fprintf(&fw.sb, "%sif %s != nil {\n%s\treturn %s, %s\n%s}\n", indent, errVarName, indent, fw.zeros[inj], errVarName, indent)
	}
}

// zeroValue returns an expression for the zero value of t.
func zeroValue(t types.Type, qualify types.Qualifier) string {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch {
		case u.Info()&types.IsBoolean != 0:
			return "false"
		case u.Info()&types.IsString != 0:
			return `""`
		case u.Info()&types.IsNumeric != 0:
			return "0"
		default:
			return "nil"
		}
	case *types.Struct, *types.Array:
		return types.TypeString(t, qualify) + "{}"
	default:
		// pointers, interfaces, slices, maps, channels and functions
		return "nil"
	}
}
