// Package strings provides string utility functions for variable naming.
package strings

import (
	"go/token"
	"strings"

	"github.com/stoewer/go-strcase"
)

// ToLowerCamel converts a Go type name into a lower camel case identifier.
// Leading initialisms are lowered as a whole, so HTTPClient becomes httpClient.
func ToLowerCamel(s string) string {
	if s == "" {
		return s
	}

	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	switch {
	case i == len(s):
		return strings.ToLower(s)
	case i > 1:
		// the last upper case letter starts the next word: HTTPClient -> http + Client
		return strings.ToLower(s[:i-1]) + s[i-1:]
	}

	return strcase.LowerCamelCase(s)
}

// SafeIdent returns name, or name with a suffix when it is a Go keyword.
func SafeIdent(name string) string {
	if token.IsKeyword(name) {
		return name + "Value"
	}
	return name
}

// Prefixed joins prefix and a lower camel case name into one identifier: new + userService
// becomes newUserService.
func Prefixed(prefix, name string) string {
	if name == "" {
		return prefix
	}
	return prefix + strcase.UpperCamelCase(name)
}
