// Package jsast finds module definitions in bundled JavaScript and turns
// them into loader factories.
//
// Bundles register modules through calls of the form
//
//	__d("Name.pb", ["Dep.pb", ...], function (a, b, c, d, e, f, g) { ... }, 1)
//
// The parser locates every such call with goja's ECMAScript parser. Factory
// bodies are never executed: Declaration.Factory returns a loader.Factory
// that statically evaluates the small expression subset schema modules use
// (literals, member access, assignment, bitwise arithmetic and calls to the
// require callbacks).
package jsast

import (
	"fmt"
	"os"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// DefineFunc is the global the bundle uses to register modules.
const DefineFunc = "__d"

// Declaration is one module definition found in a bundle.
type Declaration struct {
	Name         string
	Dependencies []string
	Pos          Position

	body *ast.FunctionLiteral
	file *file.File
}

func (d *Declaration) position(idx file.Idx) Position {
	if d.file == nil || idx == 0 {
		return d.Pos
	}
	pos := d.file.Position(int(idx) - d.file.Base())
	return Position{Filename: d.Pos.Filename, Line: pos.Line, Column: pos.Column}
}

// ParseResult contains the declarations found and any diagnostics.
type ParseResult struct {
	Declarations []*Declaration
	Errors       []*ParseError
	Warnings     []*ParseError
}

// HasErrors returns true if there were parse errors.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Parser extracts module definitions from one bundle.
type Parser struct {
	filename string
	file     *file.File
	decls    []*Declaration
	errors   []*ParseError
	warnings []*ParseError
}

// ParseFile reads and parses a bundle from disk.
func ParseFile(filename string) (*ParseResult, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return ParseContent(filename, data)
}

// ParseContent parses bundle source. A syntax error in the bundle is
// returned as a *ParseError; malformed module definitions are reported as
// warnings and skipped.
func ParseContent(filename string, content []byte) (*ParseResult, error) {
	p := &Parser{filename: filename}
	return p.parse(content)
}

func (p *Parser) parse(content []byte) (*ParseResult, error) {
	program, err := parser.ParseFile(nil, p.filename, content, 0, parser.WithDisableSourceMaps)
	if err != nil {
		pe := &ParseError{
			Pos:     Position{Filename: p.filename},
			Message: fmt.Sprintf("syntax error: %v", err),
			Wrapped: err,
		}
		if list, ok := err.(parser.ErrorList); ok && len(list) > 0 {
			pe.Pos.Line = list[0].Position.Line
			pe.Pos.Column = list[0].Position.Column
		}
		return nil, pe
	}
	p.file = program.File

	for _, stmt := range program.Body {
		p.statement(stmt)
	}
	if len(p.decls) == 0 && len(p.errors) == 0 && len(program.Body) > 0 {
		p.addWarning(0, "no %s module definitions found", DefineFunc)
	}

	return &ParseResult{
		Declarations: p.decls,
		Errors:       p.errors,
		Warnings:     p.warnings,
	}, nil
}

func (p *Parser) position(idx file.Idx) Position {
	if p.file == nil || idx == 0 {
		return Position{Filename: p.filename}
	}
	pos := p.file.Position(int(idx) - p.file.Base())
	return Position{Filename: p.filename, Line: pos.Line, Column: pos.Column}
}

func (p *Parser) addWarning(idx file.Idx, format string, args ...any) {
	p.warnings = append(p.warnings, &ParseError{
		Pos:     p.position(idx),
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) addError(idx file.Idx, format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.position(idx),
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) statement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		p.expression(s.Expression)
	case *ast.BlockStatement:
		for _, inner := range s.List {
			p.statement(inner)
		}
	case *ast.IfStatement:
		p.expression(s.Test)
		p.statement(s.Consequent)
		if s.Alternate != nil {
			p.statement(s.Alternate)
		}
	case *ast.VariableStatement:
		p.bindings(s.List)
	case *ast.LexicalDeclaration:
		p.bindings(s.List)
	case *ast.ReturnStatement:
		if s.Argument != nil {
			p.expression(s.Argument)
		}
	case *ast.FunctionDeclaration:
		p.function(s.Function)
	case *ast.TryStatement:
		p.statement(s.Body)
		if s.Catch != nil {
			p.statement(s.Catch.Body)
		}
		if s.Finally != nil {
			p.statement(s.Finally)
		}
	}
}

func (p *Parser) bindings(list []*ast.Binding) {
	for _, b := range list {
		if b.Initializer != nil {
			p.expression(b.Initializer)
		}
	}
}

func (p *Parser) function(fn *ast.FunctionLiteral) {
	if fn == nil || fn.Body == nil {
		return
	}
	for _, stmt := range fn.Body.List {
		p.statement(stmt)
	}
}

// isDefine reports whether callee is the module definition global, called
// bare or as a member of some object (self.__d, window["__d"]).
func isDefine(callee ast.Expression) bool {
	switch c := callee.(type) {
	case *ast.Identifier:
		return c.Name.String() == DefineFunc
	case *ast.DotExpression:
		return c.Identifier.Name.String() == DefineFunc
	case *ast.BracketExpression:
		lit, ok := c.Member.(*ast.StringLiteral)
		return ok && lit.Value.String() == DefineFunc
	}
	return false
}

// expression descends through the wrappers bundlers put around module
// definitions: sequences, IIFEs (including .call/.apply forms), logical
// guards, assignments and literal containers.
func (p *Parser) expression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.CallExpression:
		if isDefine(e.Callee) {
			p.define(e)
			return
		}
		p.expression(e.Callee)
		for _, arg := range e.ArgumentList {
			p.expression(arg)
		}
	case *ast.NewExpression:
		p.expression(e.Callee)
		for _, arg := range e.ArgumentList {
			p.expression(arg)
		}
	case *ast.DotExpression:
		p.expression(e.Left)
	case *ast.BracketExpression:
		p.expression(e.Left)
		p.expression(e.Member)
	case *ast.SequenceExpression:
		for _, inner := range e.Sequence {
			p.expression(inner)
		}
	case *ast.FunctionLiteral:
		p.function(e)
	case *ast.ArrowFunctionLiteral:
		switch body := e.Body.(type) {
		case *ast.BlockStatement:
			p.statement(body)
		case *ast.ExpressionBody:
			p.expression(body.Expression)
		}
	case *ast.UnaryExpression:
		p.expression(e.Operand)
	case *ast.BinaryExpression:
		p.expression(e.Left)
		p.expression(e.Right)
	case *ast.ConditionalExpression:
		p.expression(e.Test)
		p.expression(e.Consequent)
		p.expression(e.Alternate)
	case *ast.AssignExpression:
		p.expression(e.Right)
	case *ast.ArrayLiteral:
		for _, elem := range e.Value {
			p.expression(elem)
		}
	case *ast.ObjectLiteral:
		for _, prop := range e.Value {
			if keyed, ok := prop.(*ast.PropertyKeyed); ok {
				p.expression(keyed.Value)
			}
		}
	}
}

func (p *Parser) define(call *ast.CallExpression) {
	idx := call.Idx0()
	if len(call.ArgumentList) < 3 {
		p.addWarning(idx, "%s call with %d arguments, expected at least 3", DefineFunc, len(call.ArgumentList))
		return
	}

	nameLit, ok := call.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		p.addWarning(idx, "%s call with non-literal module name", DefineFunc)
		return
	}
	name := nameLit.Value.String()

	var deps []string
	switch list := call.ArgumentList[1].(type) {
	case *ast.ArrayLiteral:
		deps = make([]string, 0, len(list.Value))
		for _, elem := range list.Value {
			lit, ok := elem.(*ast.StringLiteral)
			if !ok {
				p.addWarning(elem.Idx0(), "module %s: non-literal dependency name ignored", name)
				continue
			}
			deps = append(deps, lit.Value.String())
		}
	case *ast.NullLiteral:
	default:
		p.addWarning(call.ArgumentList[1].Idx0(), "module %s: dependency list is not an array literal", name)
		return
	}

	fn, ok := call.ArgumentList[2].(*ast.FunctionLiteral)
	if !ok {
		p.addError(call.ArgumentList[2].Idx0(), "module %s: factory is not a function literal", name)
		return
	}

	p.decls = append(p.decls, &Declaration{
		Name:         name,
		Dependencies: deps,
		Pos:          p.position(idx),
		body:         fn,
		file:         p.file,
	})
}
