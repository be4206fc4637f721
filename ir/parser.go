package ir

import (
	"fmt"
	"strconv"

	"github.com/kperifds/wasmtaint/errs"
)

// Parse parses the textual IR grammar (spec.md §6) into a Program. Parse
// errors are tagged errs.KindParse and carry the offending line number.
func Parse(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}

	var prog Program
	for p.peek().kind != tokEOF {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, *fn)
	}

	return &prog, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(offset int) token {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}

	return p.toks[idx]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}

	return t
}

func (p *parser) errf(format string, args ...interface{}) error {
	t := p.peek()

	return errs.New(errs.KindParse, "ir.Parse", fmt.Errorf("line %d: %s (at %q)", t.line, fmt.Sprintf(format, args...), t.text))
}

func (p *parser) expectKeyword(kw string) error {
	if !p.peek().keyword(kw) {
		return p.errf("expected %q", kw)
	}
	p.next()

	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.peek().kind != kind {
		return token{}, p.errf("expected %s", what)
	}

	return p.next(), nil
}

func (p *parser) parseFunction() (*Function, error) {
	if err := p.expectKeyword("define"); err != nil {
		return nil, err
	}

	name, err := p.expect(tokIdent, "function name")
	if err != nil {
		return nil, err
	}

	fn := &Function{Name: name.text}

	// optional paramdecl := '(' 'param' reg* ')'
	if p.peek().kind == tokLParen && p.peekAt(1).keyword("param") {
		p.next() // (
		p.next() // param
		for p.peek().kind == tokReg {
			fn.Params = append(fn.Params, p.next().text)
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}

	// resultdecl := '(' 'result' integer ')'
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("result"); err != nil {
		return nil, err
	}
	resultTok, err := p.expect(tokNumber, "result count")
	if err != nil {
		return nil, err
	}
	resultsLen, err := strconv.Atoi(resultTok.text)
	if err != nil {
		return nil, errs.New(errs.KindParse, "ir.Parse", fmt.Errorf("line %d: bad result count %q: %w", resultTok.line, resultTok.text, err))
	}
	fn.ResultsLen = resultsLen
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	// defs := '(' 'define' reg* ')'
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("define"); err != nil {
		return nil, err
	}
	for p.peek().kind == tokReg {
		fn.Definitions = append(fn.Definitions, p.next().text)
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}

	for p.peek().kind != tokRBrace {
		instr, err := p.parseInstruction()
		if err != nil {
			return nil, err
		}
		fn.Instructions = append(fn.Instructions, instr)
	}

	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi, "';'"); err != nil {
		return nil, err
	}

	return fn, nil
}

func (p *parser) parseInstruction() (Instruction, error) {
	t := p.peek()

	switch {
	case t.keyword("KILL"):
		p.next()
		dest, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}

		return Kill{Dest: dest.text}, nil

	case t.keyword("BLOCK"):
		p.next()
		label, err := p.expect(tokIdent, "label")
		if err != nil {
			return nil, err
		}

		return Block{Label: label.text}, nil

	case t.keyword("GOTO"):
		p.next()
		label, err := p.expect(tokIdent, "label")
		if err != nil {
			return nil, err
		}

		return Jump{Target: label.text}, nil

	case t.keyword("IF"):
		p.next()
		src, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("GOTO"); err != nil {
			return nil, err
		}
		thenLabel, err := p.expect(tokIdent, "label")
		if err != nil {
			return nil, err
		}
		targets := []string{thenLabel.text}
		if p.peek().keyword("ELSE") {
			p.next()
			if err := p.expectKeyword("GOTO"); err != nil {
				return nil, err
			}
			elseLabel, err := p.expect(tokIdent, "label")
			if err != nil {
				return nil, err
			}
			targets = append(targets, elseLabel.text)
		}

		return Conditional{Src: src.text, Targets: targets}, nil

	case t.keyword("TABLE"):
		p.next()
		if err := p.expectKeyword("GOTO"); err != nil {
			return nil, err
		}
		var targets []string
		for p.peek().kind == tokIdent && !p.peek().keyword("ELSE") {
			targets = append(targets, p.next().text)
		}
		if err := p.expectKeyword("ELSE"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("GOTO"); err != nil {
			return nil, err
		}
		elseLabel, err := p.expect(tokIdent, "label")
		if err != nil {
			return nil, err
		}
		targets = append(targets, elseLabel.text)

		return Table{Targets: targets}, nil

	case t.keyword("CALL"):
		p.next()
		if p.peek().keyword("INDIRECT") {
			p.next()
			var callees []string
			for p.peek().kind == tokIdent {
				callees = append(callees, p.next().text)
			}
			params, err := p.parseRegList()
			if err != nil {
				return nil, err
			}

			return CallIndirect{Callees: callees, Params: params}, nil
		}
		name, err := p.expect(tokIdent, "callee name")
		if err != nil {
			return nil, err
		}
		params, err := p.parseRegList()
		if err != nil {
			return nil, err
		}

		return Call{Callee: name.text, Params: params}, nil

	case t.keyword("RETURN"):
		p.next()
		var regs []string
		for p.peek().kind == tokReg {
			regs = append(regs, p.next().text)
		}
		if _, err := p.expect(tokSemi, "';'"); err != nil {
			return nil, err
		}

		return Return{Regs: regs}, nil

	case t.keyword("STORE"):
		p.next()
		src, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AT"); err != nil {
			return nil, err
		}
		offsetTok, err := p.expect(tokNumber, "offset")
		if err != nil {
			return nil, err
		}
		offset, _ := strconv.ParseFloat(offsetTok.text, 64)
		if _, err := p.expect(tokPlus, "'+'"); err != nil {
			return nil, err
		}
		index, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ALIGN"); err != nil {
			return nil, err
		}
		alignTok, err := p.expect(tokNumber, "align")
		if err != nil {
			return nil, err
		}
		align, _ := strconv.Atoi(alignTok.text)
		widthTok, err := p.expect(tokNumber, "width")
		if err != nil {
			return nil, err
		}
		width, _ := strconv.Atoi(widthTok.text)

		return Store{Src: src.text, Offset: offset, Index: index.text, Align: align, Width: width}, nil

	case t.kind == tokReg:
		return p.parseAssignLike()

	default:
		return nil, p.errf("unexpected token starting an instruction")
	}
}

// parseRegList parses '(' reg* ')'.
func (p *parser) parseRegList() ([]string, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var regs []string
	for p.peek().kind == tokReg {
		regs = append(regs, p.next().text)
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	return regs, nil
}

// parseAssignLike handles the forms that start with one or more registers:
//
//	reg+ '<-' 'CALL' name '(' reg* ')'
//	reg '=' literal
//	reg '=' reg
//	reg '=' 'op' reg
//	reg '=' reg 'op' reg
//	reg '=' 'phi' reg reg
//	reg '=' 'LOAD' reg 'OFFSET' number 'ALIGN' number
func (p *parser) parseAssignLike() (Instruction, error) {
	first, err := p.expect(tokReg, "register")
	if err != nil {
		return nil, err
	}

	if p.peek().kind == tokReg || p.peek().kind == tokArrow {
		// reg+ '<-' 'CALL' name '(' reg* ')'
		dests := []string{first.text}
		for p.peek().kind == tokReg {
			dests = append(dests, p.next().text)
		}
		if _, err := p.expect(tokArrow, "'<-'"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("CALL"); err != nil {
			return nil, err
		}
		if p.peek().keyword("INDIRECT") {
			p.next()
			var callees []string
			for p.peek().kind == tokIdent {
				callees = append(callees, p.next().text)
			}
			params, err := p.parseRegList()
			if err != nil {
				return nil, err
			}

			return CallIndirect{Callees: callees, Params: params, Dests: dests}, nil
		}
		name, err := p.expect(tokIdent, "callee name")
		if err != nil {
			return nil, err
		}
		params, err := p.parseRegList()
		if err != nil {
			return nil, err
		}

		return Call{Callee: name.text, Params: params, Dests: dests}, nil
	}

	if _, err := p.expect(tokEq, "'='"); err != nil {
		return nil, err
	}

	dest := first.text

	switch {
	case p.peek().kind == tokNumber:
		numTok := p.next()
		val, err := strconv.ParseFloat(numTok.text, 64)
		if err != nil {
			return nil, errs.New(errs.KindParse, "ir.Parse", fmt.Errorf("line %d: bad literal %q: %w", numTok.line, numTok.text, err))
		}

		return Const{Dest: dest, Value: val, Type: F64}, nil

	case p.peek().keyword("phi"):
		p.next()
		a, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}
		b, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}

		return Phi{Dest: dest, A: a.text, B: b.text}, nil

	case p.peek().keyword("LOAD"):
		p.next()
		idx, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("OFFSET"); err != nil {
			return nil, err
		}
		offsetTok, err := p.expect(tokNumber, "offset")
		if err != nil {
			return nil, err
		}
		offset, _ := strconv.ParseFloat(offsetTok.text, 64)
		if err := p.expectKeyword("ALIGN"); err != nil {
			return nil, err
		}
		alignTok, err := p.expect(tokNumber, "align")
		if err != nil {
			return nil, err
		}
		align, _ := strconv.Atoi(alignTok.text)

		return Load{Dest: dest, Offset: offset, Index: idx.text, Align: align}, nil

	case p.peek().kind == tokIdent:
		// reg '=' 'op' reg  (unop): op is a bare identifier, not a keyword
		// already handled above.
		p.next() // op name, unused beyond dispatch
		src, err := p.expect(tokReg, "register")
		if err != nil {
			return nil, err
		}

		return Unop{Dest: dest, Src: src.text}, nil

	case p.peek().kind == tokReg:
		src1 := p.next()
		if p.peek().kind == tokIdent {
			p.next() // op name
			src2, err := p.expect(tokReg, "register")
			if err != nil {
				return nil, err
			}

			return BinOp{Dest: dest, A: src1.text, B: src2.text}, nil
		}

		return Assign{Dest: dest, Src: src1.text}, nil

	default:
		return nil, p.errf("unexpected right-hand side")
	}
}
