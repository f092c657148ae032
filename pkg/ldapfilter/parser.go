/*
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2024 The LibreGraph Authors.
 */

package ldapfilter

import (
	"sort"
	"strings"
)

// Parser parses RFC 4515 filter strings. A Parser holds no state between
// calls to Parse, so one value can be shared freely.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

var defaultParser = NewParser()

// Parse parses text with the default Parser.
func Parse(text string) *Model {
	return defaultParser.Parse(text)
}

// Parse parses text into a Model. It never fails; syntax problems are
// reported as diagnostics of the returned model.
func (p *Parser) Parse(text string) *Model {
	ps := &parser{
		src:  text,
		toks: Tokenize(text),
	}
	root := ps.parseTop()

	diags := []*Diagnostic(ps.diags)
	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Offset < diags[j].Offset
	})
	markInvalid(root, diags)

	state := CompleteValid
	switch {
	case ps.truncated:
		state = Truncated
	case len(diags) > 0:
		state = CompleteInvalid
	}

	return &Model{
		root:        root,
		text:        text,
		diagnostics: diags,
		state:       state,
	}
}

// parser is the per call state of Parse.
type parser struct {
	src       string
	toks      []Token
	pos       int
	diags     diagnostics
	truncated bool
}

func (p *parser) peek() Token {
	return p.toks[p.pos]
}

func (p *parser) advance() Token {
	tok := p.toks[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) skipWhitespace() {
	for p.peek().Kind == TokenWhitespace {
		p.pos++
	}
}

// flagWhitespace skips whitespace at positions where the grammar does not
// allow it and reports it.
func (p *parser) flagWhitespace() {
	if tok := p.peek(); tok.Kind == TokenWhitespace {
		p.advance()
		p.diags.add(UnexpectedToken, tok.span(), "unexpected whitespace")
	}
}

func (p *parser) span(start, end int) (Span, string) {
	return Span{Start: start, End: end}, p.src[start:end]
}

func (p *parser) invalid(start, end int, reason ErrorKind) *InvalidFilter {
	span, source := p.span(start, end)
	return &InvalidFilter{
		base:   base{span: span, source: source, invalid: true},
		Raw:    source,
		Reason: reason,
	}
}

// parseTop parses the top-level filter. Content before and after it is
// reported and skipped.
func (p *parser) parseTop() Node {
	start := p.peek().Start
	for k := p.peek().Kind; k != TokenLParen && k != TokenEOF; k = p.peek().Kind {
		p.advance()
	}
	if end := p.peek().Start; end > start {
		p.diags.add(UnexpectedToken, Span{Start: start, End: end}, "unexpected %q before filter", p.src[start:end])
	}

	if p.peek().Kind == TokenEOF {
		p.truncated = true
		if len(p.src) == 0 {
			p.diags.add(UnexpectedToken, Span{}, "empty filter")
		}
		return p.invalid(0, len(p.src), UnexpectedToken)
	}

	root := p.parseFilter()

	if tok := p.peek(); tok.Kind != TokenEOF {
		p.diags.add(TrailingContent, Span{Start: tok.Start, End: len(p.src)}, "unexpected %q after filter", p.src[tok.Start:])
		p.pos = len(p.toks) - 1
	}
	return root
}

// parseFilter parses filter = '(' filtercomp ')'. The current token must be
// a left parenthesis.
func (p *parser) parseFilter() Node {
	open := p.advance()
	p.flagWhitespace()

	switch tok := p.peek(); tok.Kind {
	case TokenAnd, TokenOr:
		return p.parseList(open)
	case TokenNot:
		return p.parseNot(open)
	case TokenRParen:
		p.advance()
		p.diags.add(MissingOperator, Span{Start: open.Start, End: tok.End}, "empty filter component")
		return p.invalid(open.Start, tok.End, MissingOperator)
	case TokenEOF:
		p.truncated = true
		p.diags.add(UnbalancedParenthesis, open.span(), "missing ')'")
		return p.invalid(open.Start, tok.Start, UnbalancedParenthesis)
	default:
		return p.parseItem(open)
	}
}

// expectClose consumes the closing parenthesis of the production opened by
// open and returns the end offset of the production.
func (p *parser) expectClose(open Token) int {
	p.skipWhitespace()
	tok := p.peek()
	if tok.Kind == TokenRParen {
		p.advance()
		return tok.End
	}
	if tok.Kind == TokenEOF {
		p.truncated = true
	}
	p.diags.add(UnbalancedParenthesis, open.span(), "missing ')'")
	return tok.Start
}

// parseGarbage consumes tokens up to the next parenthesis or the end of the
// input and returns them as an InvalidFilter.
func (p *parser) parseGarbage() Node {
	start := p.peek().Start
	for k := p.peek().Kind; k != TokenLParen && k != TokenRParen && k != TokenEOF; k = p.peek().Kind {
		p.advance()
	}
	end := p.peek().Start
	p.diags.add(UnexpectedToken, Span{Start: start, End: end}, "unexpected %q, expected '('", p.src[start:end])
	return p.invalid(start, end, UnexpectedToken)
}

// parseList parses and = '&' filterlist and or = '|' filterlist.
func (p *parser) parseList(open Token) Node {
	op := p.advance()

	var operands []Node
loop:
	for {
		p.skipWhitespace()
		switch p.peek().Kind {
		case TokenLParen:
			operands = append(operands, p.parseFilter())
		case TokenRParen, TokenEOF:
			break loop
		default:
			operands = append(operands, p.parseGarbage())
		}
	}
	if len(operands) == 0 {
		p.diags.add(EmptyFilterList, op.span(), "empty filter list after '%s'", op.Text)
	}

	end := p.expectClose(open)
	span, source := p.span(open.Start, end)
	if op.Kind == TokenAnd {
		return &AndFilter{base: base{span: span, source: source}, Operands: operands}
	}
	return &OrFilter{base: base{span: span, source: source}, Operands: operands}
}

// parseNot parses not = '!' filter.
func (p *parser) parseNot(open Token) Node {
	op := p.advance()
	p.skipWhitespace()

	var operand Node
	switch p.peek().Kind {
	case TokenLParen:
		operand = p.parseFilter()
	case TokenRParen, TokenEOF:
		p.diags.add(UnexpectedToken, op.span(), "missing filter after '!'")
	default:
		operand = p.parseGarbage()
	}

	// Only a single operand is allowed, additional filters are reported and
	// left out of the tree.
	for {
		p.skipWhitespace()
		tok := p.peek()
		if tok.Kind == TokenRParen || tok.Kind == TokenEOF {
			break
		}
		if tok.Kind != TokenLParen {
			p.parseGarbage()
			continue
		}
		extra := p.parseFilter()
		p.diags.add(UnexpectedToken, extra.Span(), "unexpected additional filter in negation")
	}

	end := p.expectClose(open)
	span, source := p.span(open.Start, end)
	return &NotFilter{base: base{span: span, source: source}, Operand: operand}
}

// parseItem parses item = simple / present / substring / extensible.
func (p *parser) parseItem(open Token) Node {
	item := &ItemFilter{}

	if tok := p.peek(); tok.Kind == TokenAttr {
		p.advance()
		item.Attribute = tok.Text
		item.AttributeSpan = tok.span()
		if !isValidAttributeDescription(tok.Text) {
			p.diags.add(InvalidAttributeDescription, tok.span(), "invalid attribute description %q", tok.Text)
		}
	}
	p.flagWhitespace()

	ext := p.parseExtensibleComponents(item)

	opTok := p.peek()
	if !opTok.Kind.isOperator() {
		errSpan := opTok.span()
		if item.Attribute != "" && opTok.Kind != TokenInvalid {
			errSpan = item.AttributeSpan
		}
		if opTok.Kind == TokenEOF {
			errSpan = Span{Start: open.Start, End: opTok.Start}
		}
		p.diags.add(MissingOperator, errSpan, "missing filter operator")
		for k := p.peek().Kind; k != TokenLParen && k != TokenRParen && k != TokenEOF; k = p.peek().Kind {
			p.advance()
		}
		end := p.expectClose(open)
		return p.invalid(open.Start, end, MissingOperator)
	}
	p.advance()

	switch {
	case ext != nil && opTok.Kind != TokenExtEquals:
		p.diags.add(UnexpectedToken, opTok.span(), "expected ':=' in extensible match, got %q", opTok.Text)
	case ext == nil && opTok.Kind == TokenExtEquals:
		start := item.AttributeSpan.Start
		if item.Attribute == "" {
			start = opTok.Start
		}
		ext = &ExtensibleSpec{
			Span:      Span{Start: start},
			Attribute: item.Attribute,
		}
	}
	if item.Attribute == "" {
		switch {
		case ext == nil:
			p.diags.add(InvalidAttributeDescription, opTok.span(), "missing attribute description")
		case ext.MatchingRule == "":
			p.diags.add(InvalidAttributeDescription, opTok.span(), "extensible match without attribute requires a matching rule")
		}
	}

	valueStart := p.peek().Start
	var parts []Token
	for k := p.peek().Kind; k == TokenValue || k == TokenAsterisk; k = p.peek().Kind {
		parts = append(parts, p.advance())
	}
	item.ValueSpan = Span{Start: valueStart, End: p.peek().Start}

	switch {
	case ext != nil:
		item.Type = Extensible
		item.Value = p.scalarValue(parts, "extensible match")
		ext.Value = item.Value
		ext.Span.End = item.ValueSpan.End
		item.Extensible = ext
	case opTok.Kind == TokenGreaterEq:
		item.Type = GreaterOrEqual
		item.Value = p.scalarValue(parts, "greater or equal")
	case opTok.Kind == TokenLessEq:
		item.Type = LessOrEqual
		item.Value = p.scalarValue(parts, "less or equal")
	case opTok.Kind == TokenApprox:
		item.Type = Approximate
		item.Value = p.scalarValue(parts, "approximate")
	case !hasAsterisk(parts):
		item.Type = Equality
		item.Value = p.scalarValue(parts, "equality")
	case len(parts) == 1:
		item.Type = Present
	default:
		item.Type = Substring
		item.Substring = p.substringValue(parts, item.ValueSpan)
	}

	end := p.expectClose(open)
	item.span, item.source = p.span(open.Start, end)
	return item
}

// parseExtensibleComponents parses the [':dn'] [':' rule] part of an
// extensible match. It returns nil if the item has none.
func (p *parser) parseExtensibleComponents(item *ItemFilter) *ExtensibleSpec {
	var ext *ExtensibleSpec
	for p.peek().Kind == TokenColon {
		colon := p.advance()
		if ext == nil {
			start := colon.Start
			if item.Attribute != "" {
				start = item.AttributeSpan.Start
			}
			ext = &ExtensibleSpec{
				Span:      Span{Start: start},
				Attribute: item.Attribute,
			}
		}

		tok := p.peek()
		if tok.Kind != TokenAttr {
			p.diags.add(UnexpectedToken, tok.span(), "expected 'dn' or matching rule after ':'")
			if tok.Kind == TokenColon {
				continue
			}
			break
		}
		p.advance()

		switch {
		case strings.EqualFold(tok.Text, "dn") && !ext.DNAttributes && ext.MatchingRule == "":
			ext.DNAttributes = true
			ext.dnSource = tok.Text
		case ext.MatchingRule == "":
			ext.MatchingRule = tok.Text
			ext.MatchingRuleSpan = tok.span()
			if !isValidOID(tok.Text) {
				p.diags.add(InvalidAttributeDescription, tok.span(), "invalid matching rule %q", tok.Text)
			}
		default:
			p.diags.add(UnexpectedToken, tok.span(), "unexpected %q in extensible match", tok.Text)
		}
	}
	return ext
}

// scalarValue returns the unescaped value of an assertion which does not
// allow unescaped asterisks. If one is found the value is dropped.
func (p *parser) scalarValue(parts []Token, what string) string {
	for _, tok := range parts {
		if tok.Kind == TokenAsterisk {
			p.diags.add(UnexpectedToken, tok.span(), "unescaped '*' in %s value", what)
			return ""
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return unescapeValue(parts[0].Text, parts[0].Start, &p.diags)
}

// substringValue splits value tokens at asterisks into initial, any and
// final components. Empty any components are skipped.
func (p *parser) substringValue(parts []Token, span Span) *SubstringSpec {
	segments := make([]string, 0, len(parts))
	current := ""
	for _, tok := range parts {
		if tok.Kind == TokenAsterisk {
			segments = append(segments, current)
			current = ""
			continue
		}
		current = unescapeValue(tok.Text, tok.Start, &p.diags)
	}
	segments = append(segments, current)

	sub := &SubstringSpec{
		Span:    span,
		Initial: segments[0],
		Final:   segments[len(segments)-1],
	}
	for _, segment := range segments[1 : len(segments)-1] {
		if segment != "" {
			sub.Any = append(sub.Any, segment)
		}
	}
	return sub
}

func hasAsterisk(parts []Token) bool {
	for _, tok := range parts {
		if tok.Kind == TokenAsterisk {
			return true
		}
	}
	return false
}

// markInvalid flags every node whose span contains a diagnostic. diags must
// be sorted by offset.
func markInvalid(root Node, diags []*Diagnostic) {
	if len(diags) == 0 {
		return
	}
	Walk(root, func(n Node) bool {
		b := baseOf(n)
		if b == nil {
			return true
		}
		i := sort.Search(len(diags), func(i int) bool {
			return diags[i].Offset >= b.span.Start
		})
		if i < len(diags) && b.span.contains(diags[i].Offset) {
			b.invalid = true
		}
		return true
	})
}

func baseOf(n Node) *base {
	switch f := n.(type) {
	case *AndFilter:
		return &f.base
	case *OrFilter:
		return &f.base
	case *NotFilter:
		return &f.base
	case *ItemFilter:
		return &f.base
	case *InvalidFilter:
		return &f.base
	}
	return nil
}

// isValidAttributeDescription checks attributedescription = attributetype
// options, where attributetype is a descr or numericoid.
func isValidAttributeDescription(s string) bool {
	parts := strings.Split(s, ";")
	if !isValidOID(parts[0]) {
		return false
	}
	for _, option := range parts[1:] {
		if option == "" {
			return false
		}
		for i := 0; i < len(option); i++ {
			if c := option[i]; !isAlpha(c) && !isDigit(c) && c != '-' {
				return false
			}
		}
	}
	return true
}

// isValidOID checks oid = descr / numericoid.
func isValidOID(s string) bool {
	if s == "" {
		return false
	}
	if isAlpha(s[0]) {
		for i := 1; i < len(s); i++ {
			if c := s[i]; !isAlpha(c) && !isDigit(c) && c != '-' {
				return false
			}
		}
		return true
	}

	numbers := strings.Split(s, ".")
	if len(numbers) < 2 {
		return false
	}
	for _, number := range numbers {
		if number == "" {
			return false
		}
		for i := 0; i < len(number); i++ {
			if !isDigit(number[i]) {
				return false
			}
		}
	}
	return true
}
