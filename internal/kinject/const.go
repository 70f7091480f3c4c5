package kinject

const (
	kinjectPkgPath = "github.com/mazrean/kinject"

	componentFuncName = "Component"
	provideFuncName   = "Provide"
	valueFuncName     = "Value"
	bindFuncName      = "Bind"
	argFuncName       = "Arg"
	setFuncName       = "Set"
	scopedFuncName    = "Scoped"
	intoSliceFuncName = "IntoSlice"
	intoMapFuncName   = "IntoMap"

	directivePrefix = "//kinject:"
	directiveInject = "inject"
	autowireTag     = "@autowire"

	scopeComponent = "component"

	generatedSuffix = "_gen"
	generatedHeader = "// Code generated by kinject. DO NOT EDIT."

	errVarName = "err"
)

// goPredeclaredIdentifiers are never used as generated variable names.
var goPredeclaredIdentifiers = [...]string{
	// Types
	"any", "bool", "byte", "comparable",
	"complex64", "complex128", "error", "float32", "float64",
	"int", "int8", "int16", "int32", "int64", "rune", "string",
	"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",

	// Constants
	"true", "false", "iota",

	// Zero value
	"nil",

	// Functions
	"append", "cap", "clear", "close", "complex", "copy", "delete", "imag", "len",
	"make", "max", "min", "new", "panic", "print", "println", "real", "recover",
}
