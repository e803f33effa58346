package jsast

import (
	"errors"
	"fmt"
	"math"

	"github.com/albertocavalcante/go-protorecon/loader"
	"github.com/albertocavalcante/go-protorecon/value"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/token"
)

// Factory parameter positions, matching the bundle runtime's calling
// convention: (global, requireDefault, importDefault, requireModule,
// module, exports, exportsWithDeps).
const (
	paramRequireDefault  = 1
	paramImportDefault   = 2
	paramRequireModule   = 3
	paramModule          = 4
	paramExports         = 5
	paramExportsWithDeps = 6
	paramCount           = 7
)

// EvalError reports a failure while statically evaluating a factory.
type EvalError struct {
	Module  string
	Pos     Position
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: module %s: %s", e.Pos, e.Module, e.Message)
}

// Factory returns a loader factory that evaluates the declaration's body.
func (d *Declaration) Factory() loader.Factory {
	return func(env *loader.Env) error {
		ev := &evaluator{decl: d, env: env}
		return ev.run()
	}
}

// Register declares every module in decls with l, in order.
func Register(l *loader.Loader, decls []*Declaration) error {
	for _, d := range decls {
		if err := l.Register(d.Name, d.Dependencies, d.Factory()); err != nil {
			return fmt.Errorf("register %s (%s): %w", d.Name, d.Pos, err)
		}
	}
	return nil
}

type scope struct {
	vars   map[string]value.Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]value.Value), parent: parent}
}

func (s *scope) lookup(name string) (value.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// assign writes to the nearest scope declaring name, or the outermost one.
func (s *scope) assign(name string, v value.Value) {
	cur := s
	for ; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
		if cur.parent == nil {
			break
		}
	}
	cur.vars[name] = v
}

type evaluator struct {
	decl *Declaration
	env  *loader.Env
}

// errReturn unwinds statement evaluation after a return statement.
var errReturn = errors.New("return")

func (ev *evaluator) run() error {
	fn := ev.decl.body
	sc := newScope(nil)

	args := make([]value.Value, paramCount)
	for i := range args {
		args[i] = value.Null{}
	}
	args[paramRequireDefault] = value.Func(ev.requireDefault)
	args[paramImportDefault] = value.Func(ev.requireDefault)
	args[paramRequireModule] = value.Func(ev.requireModule)
	if len(ev.env.Dependencies) > 0 {
		args[paramExportsWithDeps] = ev.env.Exports
	} else {
		args[paramModule] = ev.env.Exports
		args[paramExports] = ev.env.Exports
	}

	if fn.ParameterList != nil {
		for i, b := range fn.ParameterList.List {
			ident, ok := b.Target.(*ast.Identifier)
			if !ok {
				continue
			}
			var arg value.Value = value.Undefined{}
			if i < len(args) {
				arg = args[i]
			}
			sc.vars[ident.Name.String()] = arg
		}
	}
	if fn.Body == nil {
		return nil
	}
	err := ev.block(sc, fn.Body.List)
	if errors.Is(err, errReturn) {
		return nil
	}
	return err
}

func (ev *evaluator) requireDefault(args []value.Value) (value.Value, error) {
	name, err := ev.moduleArg(args)
	if err != nil {
		return nil, err
	}
	return ev.env.RequireDefault(name)
}

func (ev *evaluator) requireModule(args []value.Value) (value.Value, error) {
	name, err := ev.moduleArg(args)
	if err != nil {
		return nil, err
	}
	return ev.env.Require(name)
}

func (ev *evaluator) moduleArg(args []value.Value) (string, error) {
	if len(args) > 0 {
		if s, ok := args[0].(value.String); ok {
			return string(s), nil
		}
	}
	return "", &EvalError{Module: ev.decl.Name, Pos: ev.decl.Pos, Message: "require called without a module name"}
}

func (ev *evaluator) block(sc *scope, list []ast.Statement) error {
	for _, stmt := range list {
		if err := ev.statement(sc, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) statement(sc *scope, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		_, err := ev.expr(sc, s.Expression)
		return err
	case *ast.VariableStatement:
		return ev.declare(sc, s.List)
	case *ast.LexicalDeclaration:
		return ev.declare(sc, s.List)
	case *ast.BlockStatement:
		return ev.block(sc, s.List)
	case *ast.IfStatement:
		test, err := ev.expr(sc, s.Test)
		if err != nil {
			return err
		}
		if value.Truthy(test) {
			return ev.statement(sc, s.Consequent)
		}
		if s.Alternate != nil {
			return ev.statement(sc, s.Alternate)
		}
		return nil
	case *ast.ReturnStatement:
		if s.Argument != nil {
			if _, err := ev.expr(sc, s.Argument); err != nil {
				return err
			}
		}
		return errReturn
	case *ast.FunctionDeclaration:
		if s.Function != nil && s.Function.Name != nil {
			sc.vars[s.Function.Name.Name.String()] = value.Undefined{}
		}
		return nil
	default:
		return nil
	}
}

func (ev *evaluator) declare(sc *scope, list []*ast.Binding) error {
	for _, b := range list {
		ident, ok := b.Target.(*ast.Identifier)
		if !ok {
			continue
		}
		var v value.Value = value.Undefined{}
		if b.Initializer != nil {
			var err error
			if v, err = ev.expr(sc, b.Initializer); err != nil {
				return err
			}
		}
		sc.vars[ident.Name.String()] = v
	}
	return nil
}

func (ev *evaluator) expr(sc *scope, e ast.Expression) (value.Value, error) {
	switch x := e.(type) {
	case nil:
		return value.Undefined{}, nil
	case *ast.StringLiteral:
		return value.String(x.Value.String()), nil
	case *ast.NumberLiteral:
		switch n := x.Value.(type) {
		case int64:
			return value.Number(n), nil
		case float64:
			return value.Number(n), nil
		}
		return value.Number(math.NaN()), nil
	case *ast.BooleanLiteral:
		return value.Bool(x.Value), nil
	case *ast.NullLiteral:
		return value.Null{}, nil
	case *ast.TemplateLiteral:
		if x.Tag == nil && len(x.Expressions) == 0 && len(x.Elements) == 1 {
			return value.String(x.Elements[0].Parsed.String()), nil
		}
		return value.Undefined{}, nil
	case *ast.Identifier:
		name := x.Name.String()
		if v, ok := sc.lookup(name); ok {
			return v, nil
		}
		return value.Undefined{}, nil
	case *ast.ObjectLiteral:
		return ev.object(sc, x)
	case *ast.ArrayLiteral:
		arr := &value.Array{Elems: make([]value.Value, len(x.Value))}
		for i, elem := range x.Value {
			v, err := ev.expr(sc, elem)
			if err != nil {
				return nil, err
			}
			arr.Elems[i] = v
		}
		return arr, nil
	case *ast.DotExpression:
		base, err := ev.expr(sc, x.Left)
		if err != nil {
			return nil, err
		}
		return value.Member(base, x.Identifier.Name.String()), nil
	case *ast.BracketExpression:
		base, err := ev.expr(sc, x.Left)
		if err != nil {
			return nil, err
		}
		key, err := ev.expr(sc, x.Member)
		if err != nil {
			return nil, err
		}
		k, ok := value.PropertyKey(key)
		if !ok {
			return value.Undefined{}, nil
		}
		return value.Member(base, k), nil
	case *ast.AssignExpression:
		return ev.assign(sc, x)
	case *ast.SequenceExpression:
		var last value.Value = value.Undefined{}
		for _, inner := range x.Sequence {
			v, err := ev.expr(sc, inner)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	case *ast.ConditionalExpression:
		test, err := ev.expr(sc, x.Test)
		if err != nil {
			return nil, err
		}
		if value.Truthy(test) {
			return ev.expr(sc, x.Consequent)
		}
		return ev.expr(sc, x.Alternate)
	case *ast.UnaryExpression:
		return ev.unary(sc, x)
	case *ast.BinaryExpression:
		return ev.binary(sc, x)
	case *ast.CallExpression:
		return ev.call(sc, x)
	default:
		return value.Undefined{}, nil
	}
}

func (ev *evaluator) object(sc *scope, lit *ast.ObjectLiteral) (value.Value, error) {
	obj := value.NewObject()
	for _, prop := range lit.Value {
		switch p := prop.(type) {
		case *ast.PropertyKeyed:
			if p.Kind != ast.PropertyKindValue {
				continue
			}
			keyVal, err := ev.propertyKey(sc, p)
			if err != nil {
				return nil, err
			}
			key, ok := value.PropertyKey(keyVal)
			if !ok {
				continue
			}
			v, err := ev.expr(sc, p.Value)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		case *ast.PropertyShort:
			name := p.Name.Name.String()
			v, _ := sc.lookup(name)
			if v == nil {
				v = value.Undefined{}
			}
			obj.Set(name, v)
		}
	}
	return obj, nil
}

func (ev *evaluator) propertyKey(sc *scope, p *ast.PropertyKeyed) (value.Value, error) {
	if p.Computed {
		return ev.expr(sc, p.Key)
	}
	switch k := p.Key.(type) {
	case *ast.StringLiteral:
		return value.String(k.Value.String()), nil
	case *ast.Identifier:
		return value.String(k.Name.String()), nil
	default:
		return ev.expr(sc, p.Key)
	}
}

func (ev *evaluator) assign(sc *scope, x *ast.AssignExpression) (value.Value, error) {
	right, err := ev.expr(sc, x.Right)
	if err != nil {
		return nil, err
	}
	if x.Operator != token.ASSIGN {
		left, err := ev.expr(sc, x.Left)
		if err != nil {
			return nil, err
		}
		if right, err = applyBinary(x.Operator, left, right); err != nil {
			return nil, ev.errorAt(x, err.Error())
		}
	}

	switch target := x.Left.(type) {
	case *ast.Identifier:
		sc.assign(target.Name.String(), right)
	case *ast.DotExpression:
		base, err := ev.expr(sc, target.Left)
		if err != nil {
			return nil, err
		}
		if obj, ok := base.(*value.Object); ok {
			obj.Set(target.Identifier.Name.String(), right)
		}
	case *ast.BracketExpression:
		base, err := ev.expr(sc, target.Left)
		if err != nil {
			return nil, err
		}
		keyVal, err := ev.expr(sc, target.Member)
		if err != nil {
			return nil, err
		}
		key, ok := value.PropertyKey(keyVal)
		if !ok {
			return right, nil
		}
		switch b := base.(type) {
		case *value.Object:
			b.Set(key, right)
		case *value.Array:
			if n, ok := value.ToNumber(keyVal).Int(); ok && n >= 0 && n < len(b.Elems) {
				b.Elems[n] = right
			}
		}
	}
	return right, nil
}

func (ev *evaluator) unary(sc *scope, x *ast.UnaryExpression) (value.Value, error) {
	if x.Operator == token.DELETE {
		if dot, ok := x.Operand.(*ast.DotExpression); ok {
			base, err := ev.expr(sc, dot.Left)
			if err != nil {
				return nil, err
			}
			if obj, ok := base.(*value.Object); ok {
				obj.Delete(dot.Identifier.Name.String())
			}
		}
		return value.Bool(true), nil
	}
	operand, err := ev.expr(sc, x.Operand)
	if err != nil {
		return nil, err
	}
	switch x.Operator {
	case token.VOID:
		return value.Undefined{}, nil
	case token.MINUS:
		return -value.ToNumber(operand), nil
	case token.PLUS:
		return value.ToNumber(operand), nil
	case token.NOT:
		return value.Bool(!value.Truthy(operand)), nil
	case token.BITWISE_NOT:
		return value.Number(^value.ToNumber(operand).Int32()), nil
	case token.TYPEOF:
		return value.String(typeOf(operand)), nil
	default:
		return value.Undefined{}, nil
	}
}

func (ev *evaluator) binary(sc *scope, x *ast.BinaryExpression) (value.Value, error) {
	left, err := ev.expr(sc, x.Left)
	if err != nil {
		return nil, err
	}
	switch x.Operator {
	case token.LOGICAL_AND:
		if !value.Truthy(left) {
			return left, nil
		}
		return ev.expr(sc, x.Right)
	case token.LOGICAL_OR:
		if value.Truthy(left) {
			return left, nil
		}
		return ev.expr(sc, x.Right)
	case token.COALESCE:
		switch left.(type) {
		case value.Undefined, value.Null:
			return ev.expr(sc, x.Right)
		}
		return left, nil
	}
	right, err := ev.expr(sc, x.Right)
	if err != nil {
		return nil, err
	}
	v, err := applyBinary(x.Operator, left, right)
	if err != nil {
		return nil, ev.errorAt(x, err.Error())
	}
	return v, nil
}

func applyBinary(op token.Token, left, right value.Value) (value.Value, error) {
	switch op {
	case token.OR:
		return value.Number(value.ToNumber(left).Int32() | value.ToNumber(right).Int32()), nil
	case token.AND:
		return value.Number(value.ToNumber(left).Int32() & value.ToNumber(right).Int32()), nil
	case token.EXCLUSIVE_OR:
		return value.Number(value.ToNumber(left).Int32() ^ value.ToNumber(right).Int32()), nil
	case token.SHIFT_LEFT:
		shift := uint32(value.ToNumber(right).Int32()) & 31
		return value.Number(value.ToNumber(left).Int32() << shift), nil
	case token.SHIFT_RIGHT:
		shift := uint32(value.ToNumber(right).Int32()) & 31
		return value.Number(value.ToNumber(left).Int32() >> shift), nil
	case token.UNSIGNED_SHIFT_RIGHT:
		shift := uint32(value.ToNumber(right).Int32()) & 31
		return value.Number(uint32(value.ToNumber(left).Int32()) >> shift), nil
	case token.PLUS:
		ls, lok := left.(value.String)
		rs, rok := right.(value.String)
		if lok || rok {
			return value.String(stringify(left, ls, lok) + stringify(right, rs, rok)), nil
		}
		return value.ToNumber(left) + value.ToNumber(right), nil
	case token.MINUS:
		return value.ToNumber(left) - value.ToNumber(right), nil
	case token.MULTIPLY:
		return value.ToNumber(left) * value.ToNumber(right), nil
	case token.SLASH:
		return value.ToNumber(left) / value.ToNumber(right), nil
	case token.STRICT_EQUAL, token.EQUAL:
		return value.Bool(looseEqual(left, right)), nil
	case token.STRICT_NOT_EQUAL, token.NOT_EQUAL:
		return value.Bool(!looseEqual(left, right)), nil
	default:
		return nil, fmt.Errorf("unsupported operator %s", op)
	}
}

func stringify(v value.Value, s value.String, isString bool) string {
	if isString {
		return string(s)
	}
	switch x := v.(type) {
	case value.Number:
		k, _ := value.PropertyKey(x)
		return k
	case value.Bool:
		if x {
			return "true"
		}
		return "false"
	case value.Null:
		return "null"
	case value.Undefined:
		return "undefined"
	default:
		return "[object Object]"
	}
}

func looseEqual(a, b value.Value) bool {
	switch x := a.(type) {
	case value.Number:
		y, ok := b.(value.Number)
		return ok && x == y
	case value.String:
		y, ok := b.(value.String)
		return ok && x == y
	case value.Bool:
		y, ok := b.(value.Bool)
		return ok && x == y
	case value.Undefined, value.Null:
		switch b.(type) {
		case value.Undefined, value.Null:
			return true
		}
		return false
	case *value.Object:
		y, ok := b.(*value.Object)
		return ok && x == y
	case *value.Array:
		y, ok := b.(*value.Array)
		return ok && x == y
	}
	return false
}

func typeOf(v value.Value) string {
	switch v.(type) {
	case value.Undefined:
		return "undefined"
	case value.Bool:
		return "boolean"
	case value.Number:
		return "number"
	case value.String:
		return "string"
	case value.Func:
		return "function"
	default:
		return "object"
	}
}

func (ev *evaluator) call(sc *scope, x *ast.CallExpression) (value.Value, error) {
	callee, err := ev.expr(sc, x.Callee)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(value.Func)
	if !ok {
		return value.Undefined{}, nil
	}
	args := make([]value.Value, len(x.ArgumentList))
	for i, a := range x.ArgumentList {
		if args[i], err = ev.expr(sc, a); err != nil {
			return nil, err
		}
	}
	return fn(args)
}

func (ev *evaluator) errorAt(node ast.Node, msg string) error {
	return &EvalError{Module: ev.decl.Name, Pos: ev.decl.position(node.Idx0()), Message: msg}
}
