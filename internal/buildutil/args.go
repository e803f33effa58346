// Package buildutil reads the arguments of calls in dialect files parsed
// with buildtools.
package buildutil

import (
	"github.com/bazelbuild/buildtools/build"
)

// Keyword returns the value passed as name=..., or nil.
func Keyword(call *build.CallExpr, name string) build.Expr {
	for _, arg := range call.List {
		kw, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if id, ok := kw.LHS.(*build.Ident); ok && id.Name == name {
			return kw.RHS
		}
	}
	return nil
}

// Has reports whether name was passed as a keyword argument.
func Has(call *build.CallExpr, name string) bool {
	return Keyword(call, name) != nil
}

// String is the string literal passed for name, or "".
func String(call *build.CallExpr, name string) string {
	if lit, ok := Keyword(call, name).(*build.StringExpr); ok {
		return lit.Value
	}
	return ""
}

// Bool is true only when name=True.
func Bool(call *build.CallExpr, name string) bool {
	id, ok := Keyword(call, name).(*build.Ident)
	return ok && id.Name == "True"
}

// StringList returns the string literals in the list passed for name.
// Other elements are dropped.
func StringList(call *build.CallExpr, name string) []string {
	list, ok := Keyword(call, name).(*build.ListExpr)
	if !ok {
		return nil
	}
	return literals(list.List)
}

// Positional returns the string literals passed positionally.
func Positional(call *build.CallExpr) []string {
	var args []build.Expr
	for _, arg := range call.List {
		if _, kw := arg.(*build.AssignExpr); !kw {
			args = append(args, arg)
		}
	}
	return literals(args)
}

func literals(exprs []build.Expr) []string {
	var out []string
	for _, e := range exprs {
		if lit, ok := e.(*build.StringExpr); ok {
			out = append(out, lit.Value)
		}
	}
	return out
}

// Callee names the function of a plain call such as ignore_module(...).
// Method calls (rules.ignore_module(...)) have no callee name.
func Callee(call *build.CallExpr) string {
	if id, ok := call.X.(*build.Ident); ok {
		return id.Name
	}
	return ""
}
