// Package parser builds the AST from a token stream by recursive
// descent. The parser stops at the first syntax error: it reports the
// error and returns a nil tree, matching the rest of the pipeline's
// rule that a pass with errors gates everything after it.
package parser

import (
	"fmt"
	"strconv"

	"triangle/ast"
	"triangle/report"
	"triangle/scanner"
)

type Parser struct {
	tokens   []scanner.Token
	pos      int
	reporter *report.Reporter
}

// Parse parses a whole program. On a syntax error it reports the error
// and returns nil.
func Parse(tokens []scanner.Token, reporter *report.Reporter) *ast.Program {
	p := &Parser{tokens: tokens, reporter: reporter}
	prog, err := p.parseProgram()
	if err != nil {
		return nil
	}
	return prog
}

// errorf reports a syntax error and returns it so callers unwind.
func (p *Parser) errorf(pos report.Pos, format string, args ...interface{}) error {
	p.reporter.Report(pos, format, args...)
	return fmt.Errorf(format, args...)
}

func (p *Parser) current() scanner.Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() scanner.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != scanner.EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind scanner.Kind, what string) (scanner.Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return tok, p.errorf(tok.Pos, "expected %s, found %q", what, tok.Lexeme)
	}
	return p.advance(), nil
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Kind != scanner.EOF {
		return nil, p.errorf(tok.Pos, "unexpected %q after end of program", tok.Lexeme)
	}
	return &ast.Program{Body: body, Pos: body.Position()}, nil
}

func (p *Parser) parseCommand() (ast.Command, error) {
	first, err := p.parseSingleCommand()
	if err != nil {
		return nil, err
	}
	if p.current().Kind != scanner.Semicolon {
		return first, nil
	}
	list := []ast.Command{first}
	for p.current().Kind == scanner.Semicolon {
		p.advance()
		next, err := p.parseSingleCommand()
		if err != nil {
			return nil, err
		}
		list = append(list, next)
	}
	return &ast.SequentialCmd{List: list, Pos: first.Position()}, nil
}

func (p *Parser) parseSingleCommand() (ast.Command, error) {
	tok := p.current()
	switch tok.Kind {
	case scanner.Ident:
		name := p.advance()
		if p.current().Kind == scanner.LParen {
			args, err := p.parseActuals()
			if err != nil {
				return nil, err
			}
			return &ast.CallCmd{Name: name.Lexeme, Args: args, Pos: name.Pos}, nil
		}
		target, err := p.parseVnameTail(name)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Becomes, "\":=\""); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.AssignCmd{Target: target, Value: value, Pos: name.Pos}, nil
	case scanner.Begin:
		p.advance()
		body, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.End, "\"end\""); err != nil {
			return nil, err
		}
		return body, nil
	case scanner.Let:
		p.advance()
		decls, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.In, "\"in\""); err != nil {
			return nil, err
		}
		body, err := p.parseSingleCommand()
		if err != nil {
			return nil, err
		}
		return &ast.LetCmd{Decls: decls, Body: body, Pos: tok.Pos}, nil
	case scanner.If:
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Then, "\"then\""); err != nil {
			return nil, err
		}
		thenCmd, err := p.parseSingleCommand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Else, "\"else\""); err != nil {
			return nil, err
		}
		elseCmd, err := p.parseSingleCommand()
		if err != nil {
			return nil, err
		}
		return &ast.IfCmd{Cond: cond, Then: thenCmd, Else: elseCmd, Pos: tok.Pos}, nil
	case scanner.While:
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Do, "\"do\""); err != nil {
			return nil, err
		}
		body, err := p.parseSingleCommand()
		if err != nil {
			return nil, err
		}
		return &ast.WhileCmd{Cond: cond, Body: body, Pos: tok.Pos}, nil
	case scanner.Repeat:
		p.advance()
		body, err := p.parseSingleCommand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Until, "\"until\""); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.RepeatCmd{Body: body, Cond: cond, Pos: tok.Pos}, nil
	}
	// The empty command: consume nothing.
	return &ast.EmptyCmd{Pos: tok.Pos}, nil
}

func (p *Parser) parseDeclaration() ([]ast.Declaration, error) {
	first, err := p.parseSingleDeclaration()
	if err != nil {
		return nil, err
	}
	decls := []ast.Declaration{first}
	for p.current().Kind == scanner.Semicolon {
		p.advance()
		next, err := p.parseSingleDeclaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, next)
	}
	return decls, nil
}

func (p *Parser) parseSingleDeclaration() (ast.Declaration, error) {
	tok := p.current()
	switch tok.Kind {
	case scanner.Const:
		p.advance()
		name, err := p.expect(scanner.Ident, "an identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Is, "\"~\""); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.ConstDecl{Name: name.Lexeme, Value: value, Pos: tok.Pos}, nil
	case scanner.Var:
		p.advance()
		name, err := p.expect(scanner.Ident, "an identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Colon, "\":\""); err != nil {
			return nil, err
		}
		denoter, err := p.parseTypeDenoter()
		if err != nil {
			return nil, err
		}
		return &ast.VarDecl{Name: name.Lexeme, Denoter: denoter, Pos: tok.Pos}, nil
	case scanner.Type:
		p.advance()
		name, err := p.expect(scanner.Ident, "an identifier")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Is, "\"~\""); err != nil {
			return nil, err
		}
		denoter, err := p.parseTypeDenoter()
		if err != nil {
			return nil, err
		}
		return &ast.TypeDecl{Name: name.Lexeme, Denoter: denoter, Pos: tok.Pos}, nil
	case scanner.Proc:
		p.advance()
		name, err := p.expect(scanner.Ident, "an identifier")
		if err != nil {
			return nil, err
		}
		formals, err := p.parseFormals()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Is, "\"~\""); err != nil {
			return nil, err
		}
		body, err := p.parseSingleCommand()
		if err != nil {
			return nil, err
		}
		return &ast.ProcDecl{Name: name.Lexeme, Formals: formals, Body: body, Pos: tok.Pos}, nil
	case scanner.Func:
		p.advance()
		name, err := p.expect(scanner.Ident, "an identifier")
		if err != nil {
			return nil, err
		}
		formals, err := p.parseFormals()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Colon, "\":\""); err != nil {
			return nil, err
		}
		result, err := p.parseTypeDenoter()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Is, "\"~\""); err != nil {
			return nil, err
		}
		body, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.FuncDecl{Name: name.Lexeme, Formals: formals, Result: result, Body: body, Pos: tok.Pos}, nil
	}
	return nil, p.errorf(tok.Pos, "expected a declaration, found %q", tok.Lexeme)
}

func (p *Parser) parseFormals() ([]*ast.Formal, error) {
	if _, err := p.expect(scanner.LParen, "\"(\""); err != nil {
		return nil, err
	}
	var formals []*ast.Formal
	if p.current().Kind == scanner.RParen {
		p.advance()
		return formals, nil
	}
	for {
		formal, err := p.parseFormal()
		if err != nil {
			return nil, err
		}
		formals = append(formals, formal)
		if p.current().Kind != scanner.Comma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(scanner.RParen, "\")\""); err != nil {
		return nil, err
	}
	return formals, nil
}

func (p *Parser) parseFormal() (*ast.Formal, error) {
	pos := p.current().Pos
	byRef := false
	if p.current().Kind == scanner.Var {
		byRef = true
		p.advance()
	}
	name, err := p.expect(scanner.Ident, "an identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(scanner.Colon, "\":\""); err != nil {
		return nil, err
	}
	denoter, err := p.parseTypeDenoter()
	if err != nil {
		return nil, err
	}
	return &ast.Formal{Name: name.Lexeme, Denoter: denoter, ByRef: byRef, Pos: pos}, nil
}

func (p *Parser) parseActuals() ([]*ast.Actual, error) {
	if _, err := p.expect(scanner.LParen, "\"(\""); err != nil {
		return nil, err
	}
	var actuals []*ast.Actual
	if p.current().Kind == scanner.RParen {
		p.advance()
		return actuals, nil
	}
	for {
		actual, err := p.parseActual()
		if err != nil {
			return nil, err
		}
		actuals = append(actuals, actual)
		if p.current().Kind != scanner.Comma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(scanner.RParen, "\")\""); err != nil {
		return nil, err
	}
	return actuals, nil
}

func (p *Parser) parseActual() (*ast.Actual, error) {
	tok := p.current()
	if tok.Kind == scanner.Var {
		p.advance()
		name, err := p.expect(scanner.Ident, "an identifier")
		if err != nil {
			return nil, err
		}
		v, err := p.parseVnameTail(name)
		if err != nil {
			return nil, err
		}
		return &ast.Actual{ByRef: true, V: v, Pos: tok.Pos}, nil
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.Actual{E: e, Pos: tok.Pos}, nil
}

func (p *Parser) parseExpression() (ast.Expression, error) {
	tok := p.current()
	switch tok.Kind {
	case scanner.Let:
		p.advance()
		decls, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.In, "\"in\""); err != nil {
			return nil, err
		}
		body, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.LetExpr{Decls: decls, Body: body, Pos: tok.Pos}, nil
	case scanner.If:
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Then, "\"then\""); err != nil {
			return nil, err
		}
		thenExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Else, "\"else\""); err != nil {
			return nil, err
		}
		elseExpr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.IfExpr{Cond: cond, Then: thenExpr, Else: elseExpr, Pos: tok.Pos}, nil
	}
	return p.parseSecondaryExpression()
}

// All binary operators share one precedence level and associate left.
func (p *Parser) parseSecondaryExpression() (ast.Expression, error) {
	left, err := p.parsePrimaryExpression()
	if err != nil {
		return nil, err
	}
	for p.current().Kind == scanner.Operator {
		op := p.advance()
		right, err := p.parsePrimaryExpression()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op.Lexeme, Left: left, Right: right, Pos: op.Pos}
	}
	return left, nil
}

func (p *Parser) parsePrimaryExpression() (ast.Expression, error) {
	tok := p.current()
	switch tok.Kind {
	case scanner.IntLit:
		p.advance()
		value, err := strconv.Atoi(tok.Lexeme)
		if err != nil {
			return nil, p.errorf(tok.Pos, "malformed integer literal %q", tok.Lexeme)
		}
		return &ast.IntLitExpr{Value: value, Pos: tok.Pos}, nil
	case scanner.CharLit:
		p.advance()
		return &ast.CharLitExpr{Value: tok.Lexeme[0], Pos: tok.Pos}, nil
	case scanner.Operator:
		p.advance()
		operand, err := p.parsePrimaryExpression()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: tok.Lexeme, Operand: operand, Pos: tok.Pos}, nil
	case scanner.Ident:
		name := p.advance()
		if p.current().Kind == scanner.LParen {
			args, err := p.parseActuals()
			if err != nil {
				return nil, err
			}
			return &ast.CallExpr{Name: name.Lexeme, Args: args, Pos: name.Pos}, nil
		}
		v, err := p.parseVnameTail(name)
		if err != nil {
			return nil, err
		}
		return &ast.VnameExpr{V: v, Pos: name.Pos}, nil
	case scanner.LParen:
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.RParen, "\")\""); err != nil {
			return nil, err
		}
		return e, nil
	case scanner.LBrace:
		p.advance()
		var fields []ast.RecordFieldExpr
		for {
			name, err := p.expect(scanner.Ident, "a field name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(scanner.Is, "\"~\""); err != nil {
				return nil, err
			}
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.RecordFieldExpr{Name: name.Lexeme, Value: value, Pos: name.Pos})
			if p.current().Kind != scanner.Comma {
				break
			}
			p.advance()
		}
		if _, err := p.expect(scanner.RBrace, "\"}\""); err != nil {
			return nil, err
		}
		return &ast.RecordExpr{Fields: fields, Pos: tok.Pos}, nil
	case scanner.LBracket:
		p.advance()
		var elems []ast.Expression
		for {
			elem, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if p.current().Kind != scanner.Comma {
				break
			}
			p.advance()
		}
		if _, err := p.expect(scanner.RBracket, "\"]\""); err != nil {
			return nil, err
		}
		return &ast.ArrayExpr{Elems: elems, Pos: tok.Pos}, nil
	}
	return nil, p.errorf(tok.Pos, "expected an expression, found %q", tok.Lexeme)
}

// parseVnameTail continues a vname whose leading identifier has
// already been consumed.
func (p *Parser) parseVnameTail(name scanner.Token) (ast.Vname, error) {
	var v ast.Vname = &ast.SimpleVname{Name: name.Lexeme, Pos: name.Pos}
	for {
		switch p.current().Kind {
		case scanner.Dot:
			p.advance()
			field, err := p.expect(scanner.Ident, "a field name")
			if err != nil {
				return nil, err
			}
			v = &ast.DotVname{Rec: v, Field: field.Lexeme, Pos: field.Pos}
		case scanner.LBracket:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(scanner.RBracket, "\"]\""); err != nil {
				return nil, err
			}
			v = &ast.SubscriptVname{Arr: v, Index: index, Pos: name.Pos}
		default:
			return v, nil
		}
	}
}

func (p *Parser) parseTypeDenoter() (ast.TypeDenoter, error) {
	tok := p.current()
	switch tok.Kind {
	case scanner.Ident:
		p.advance()
		return &ast.NamedTypeDenoter{Name: tok.Lexeme, Pos: tok.Pos}, nil
	case scanner.Array:
		p.advance()
		count, err := p.expect(scanner.IntLit, "an integer literal")
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.Atoi(count.Lexeme)
		if convErr != nil {
			return nil, p.errorf(count.Pos, "malformed integer literal %q", count.Lexeme)
		}
		if _, err := p.expect(scanner.Of, "\"of\""); err != nil {
			return nil, err
		}
		elem, err := p.parseTypeDenoter()
		if err != nil {
			return nil, err
		}
		return &ast.ArrayTypeDenoter{Count: n, Elem: elem, Pos: tok.Pos}, nil
	case scanner.Record:
		p.advance()
		var fields []ast.FieldDenoter
		for {
			name, err := p.expect(scanner.Ident, "a field name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(scanner.Colon, "\":\""); err != nil {
				return nil, err
			}
			denoter, err := p.parseTypeDenoter()
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.FieldDenoter{Name: name.Lexeme, Denoter: denoter, Pos: name.Pos})
			if p.current().Kind != scanner.Comma {
				break
			}
			p.advance()
		}
		if _, err := p.expect(scanner.End, "\"end\""); err != nil {
			return nil, err
		}
		return &ast.RecordTypeDenoter{Fields: fields, Pos: tok.Pos}, nil
	}
	return nil, p.errorf(tok.Pos, "expected a type denoter, found %q", tok.Lexeme)
}
