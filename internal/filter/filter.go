// Package filter parses boolean keyword expressions and evaluates them
// against document fields. Expressions use infix AND, OR, NOT with
// parentheses for grouping; matching is case-insensitive and
// substring-based per field.
package filter

import (
	"fmt"
	"strings"
)

// SyntaxError reports a malformed boolean expression. Fragment names the
// offending part of the input so callers can surface it verbatim.
type SyntaxError struct {
	Fragment string
	Reason   string
}

func (e *SyntaxError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("invalid keyword expression: %s", e.Reason)
	}
	return fmt.Sprintf("invalid keyword expression near %q: %s", e.Fragment, e.Reason)
}

// TermSlot is one mandatory or optional term together with its semantic
// expansion alternatives. A slot matches when the original term or any
// alternative is found, so an expanded MUST term stays mandatory as a
// nested OR-group.
type TermSlot struct {
	Term         string
	Alternatives []string
}

func (s TermSlot) matches(values []string) bool {
	if containsTerm(values, s.Term) {
		return true
	}
	for _, alt := range s.Alternatives {
		if containsTerm(values, alt) {
			return true
		}
	}
	return false
}

// Expression is the parsed form of a boolean keyword query. Must, Should
// and MustNot summarize the expression per the AND/OR/NOT parsing policy;
// evaluation walks the underlying tree so parenthesized grouping keeps its
// exact semantics.
type Expression struct {
	Must    []TermSlot
	Should  []TermSlot
	MustNot []string

	root node
}

type node interface {
	eval(values []string) bool
}

type termNode struct {
	slot *TermSlot
}

func (n *termNode) eval(values []string) bool { return n.slot.matches(values) }

type notNode struct {
	operand node
}

func (n *notNode) eval(values []string) bool { return !n.operand.eval(values) }

type andNode struct {
	operands []node
}

func (n *andNode) eval(values []string) bool {
	for _, op := range n.operands {
		if !op.eval(values) {
			return false
		}
	}
	return true
}

type orNode struct {
	operands []node
}

func (n *orNode) eval(values []string) bool {
	for _, op := range n.operands {
		if op.eval(values) {
			return true
		}
	}
	return false
}

// Parse parses a boolean keyword expression. Operator precedence is
// NOT > AND > OR; adjacent operands are joined with an implicit AND, so
// "berlin NOT mauer" means "berlin AND NOT mauer".
func Parse(input string) (*Expression, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &SyntaxError{Reason: "expression is empty"}
	}

	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, &SyntaxError{Fragment: p.peek().text, Reason: "unexpected token"}
	}

	expr := &Expression{root: root}
	expr.summarize()
	return expr, nil
}

// Matches evaluates the expression against a document's fields. Only the
// fields named in searchIn are considered; an empty searchIn selects all
// fields. The document passes when every MUST slot is found, at least one
// SHOULD slot is found (if any exist), and no MUST_NOT term is found.
func (e *Expression) Matches(fields map[string]string, searchIn []string) bool {
	values := selectFieldValues(fields, searchIn)
	return e.root.eval(values)
}

// IsEmpty reports whether the expression carries no terms at all.
func (e *Expression) IsEmpty() bool {
	return len(e.Must) == 0 && len(e.Should) == 0 && len(e.MustNot) == 0
}

// Terms returns the unique MUST and SHOULD terms, in parse order. These
// are the terms eligible for semantic expansion; MUST_NOT terms are never
// expanded.
func (e *Expression) Terms() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, slot := range e.Must {
		if _, ok := seen[slot.Term]; !ok {
			seen[slot.Term] = struct{}{}
			out = append(out, slot.Term)
		}
	}
	for _, slot := range e.Should {
		if _, ok := seen[slot.Term]; !ok {
			seen[slot.Term] = struct{}{}
			out = append(out, slot.Term)
		}
	}
	return out
}

// ExpandTerm widens every slot holding term with the given alternatives.
// The slot keeps its MUST/SHOULD position: expansion loosens a single term
// into "original OR alternatives", never into the global SHOULD set.
func (e *Expression) ExpandTerm(term string, alternatives []string) {
	term = strings.ToLower(strings.TrimSpace(term))
	widen := func(slot *TermSlot) {
		if slot.Term != term {
			return
		}
		for _, alt := range alternatives {
			alt = strings.ToLower(strings.TrimSpace(alt))
			if alt == "" || alt == slot.Term || containsString(slot.Alternatives, alt) {
				continue
			}
			slot.Alternatives = append(slot.Alternatives, alt)
		}
	}
	for i := range e.Must {
		widen(&e.Must[i])
	}
	for i := range e.Should {
		widen(&e.Should[i])
	}
	// The summary slices hold copies; the evaluation tree has its own
	// slots and must be widened too.
	widenTree(e.root, widen)
}

func widenTree(n node, widen func(*TermSlot)) {
	switch n := n.(type) {
	case *termNode:
		widen(n.slot)
	case *notNode:
		// Negated terms are never expanded.
	case *andNode:
		for _, op := range n.operands {
			widenTree(op, widen)
		}
	case *orNode:
		for _, op := range n.operands {
			widenTree(op, widen)
		}
	}
}

// summarize derives the Must/Should/MustNot sets from the parse tree.
// OR-joined operands outside AND groups become SHOULD, AND-joined operands
// become MUST, NOT operands become MUST_NOT. A parenthesized OR-group used
// as an AND operand collapses into one mandatory slot whose alternatives
// are the group's terms.
func (e *Expression) summarize() {
	switch n := e.root.(type) {
	case *orNode:
		for _, op := range n.operands {
			e.addShould(op)
		}
	default:
		e.addMust(e.root)
	}
	e.dedupe()
}

func (e *Expression) addMust(n node) {
	switch n := n.(type) {
	case *termNode:
		e.Must = append(e.Must, *n.slot)
	case *notNode:
		e.addMustNot(n.operand)
	case *andNode:
		for _, op := range n.operands {
			e.addMust(op)
		}
	case *orNode:
		e.Must = append(e.Must, collapseToSlot(n))
	}
}

func (e *Expression) addShould(n node) {
	switch n := n.(type) {
	case *termNode:
		e.Should = append(e.Should, *n.slot)
	case *notNode:
		e.addMustNot(n.operand)
	default:
		e.Should = append(e.Should, collapseToSlot(n))
	}
}

func (e *Expression) addMustNot(n node) {
	for _, term := range collectTerms(n) {
		e.MustNot = append(e.MustNot, term)
	}
}

func (e *Expression) dedupe() {
	inMust := make(map[string]struct{}, len(e.Must))
	e.Must = dedupeSlots(e.Must, nil, inMust)
	e.Should = dedupeSlots(e.Should, inMust, make(map[string]struct{}))

	seen := make(map[string]struct{}, len(e.MustNot))
	var mustNot []string
	for _, term := range e.MustNot {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		mustNot = append(mustNot, term)
	}
	e.MustNot = mustNot
}

func dedupeSlots(slots []TermSlot, skip, seen map[string]struct{}) []TermSlot {
	var out []TermSlot
	for _, slot := range slots {
		if skip != nil {
			if _, ok := skip[slot.Term]; ok {
				continue
			}
		}
		if _, ok := seen[slot.Term]; ok {
			continue
		}
		seen[slot.Term] = struct{}{}
		out = append(out, slot)
	}
	return out
}

// collapseToSlot summarizes a nested group as a single slot: the group's
// first term becomes the slot term, the rest its alternatives. The parse
// tree still evaluates the group exactly.
func collapseToSlot(n node) TermSlot {
	terms := collectTerms(n)
	slot := TermSlot{Term: terms[0]}
	for _, t := range terms[1:] {
		if t != slot.Term && !containsString(slot.Alternatives, t) {
			slot.Alternatives = append(slot.Alternatives, t)
		}
	}
	return slot
}

func collectTerms(n node) []string {
	switch n := n.(type) {
	case *termNode:
		return append([]string{n.slot.Term}, n.slot.Alternatives...)
	case *notNode:
		return collectTerms(n.operand)
	case *andNode:
		var out []string
		for _, op := range n.operands {
			out = append(out, collectTerms(op)...)
		}
		return out
	case *orNode:
		var out []string
		for _, op := range n.operands {
			out = append(out, collectTerms(op)...)
		}
		return out
	}
	return nil
}

// tokenizer

type tokenKind int

const (
	tokenTerm tokenKind = iota
	tokenAnd
	tokenOr
	tokenNot
	tokenOpen
	tokenClose
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		word := current.String()
		current.Reset()
		switch strings.ToUpper(word) {
		case "AND":
			tokens = append(tokens, token{kind: tokenAnd, text: word})
		case "OR":
			tokens = append(tokens, token{kind: tokenOr, text: word})
		case "NOT":
			tokens = append(tokens, token{kind: tokenNot, text: word})
		default:
			tokens = append(tokens, token{kind: tokenTerm, text: strings.ToLower(word)})
		}
	}

	for _, r := range input {
		switch r {
		case '(':
			flush()
			tokens = append(tokens, token{kind: tokenOpen, text: "("})
		case ')':
			flush()
			tokens = append(tokens, token{kind: tokenClose, text: ")"})
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	depth := 0
	for _, t := range tokens {
		switch t.kind {
		case tokenOpen:
			depth++
		case tokenClose:
			depth--
			if depth < 0 {
				return nil, &SyntaxError{Fragment: ")", Reason: "unbalanced parentheses"}
			}
		}
	}
	if depth != 0 {
		return nil, &SyntaxError{Fragment: "(", Reason: "unbalanced parentheses"}
	}

	return tokens, nil
}

// parser

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) done() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) parseOr() (node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for !p.done() && p.peek().kind == tokenOr {
		p.next()
		operand, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, operand)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return &orNode{operands: operands}, nil
}

func (p *parser) parseAnd() (node, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for !p.done() {
		switch p.peek().kind {
		case tokenAnd:
			p.next()
			operand, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			operands = append(operands, operand)
		case tokenTerm, tokenNot, tokenOpen:
			// Implicit AND between adjacent operands.
			operand, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			operands = append(operands, operand)
		default:
			if len(operands) == 1 {
				return operands[0], nil
			}
			return &andNode{operands: operands}, nil
		}
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return &andNode{operands: operands}, nil
}

func (p *parser) parseNot() (node, error) {
	if !p.done() && p.peek().kind == tokenNot {
		p.next()
		if p.done() {
			return nil, &SyntaxError{Fragment: "NOT", Reason: "missing operand"}
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.done() {
		last := p.tokens[len(p.tokens)-1]
		return nil, &SyntaxError{Fragment: last.text, Reason: "missing operand"}
	}
	t := p.next()
	switch t.kind {
	case tokenTerm:
		return &termNode{slot: &TermSlot{Term: t.text}}, nil
	case tokenOpen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().kind != tokenClose {
			return nil, &SyntaxError{Fragment: "(", Reason: "unbalanced parentheses"}
		}
		p.next()
		return inner, nil
	case tokenClose:
		return nil, &SyntaxError{Fragment: "()", Reason: "empty group"}
	default:
		return nil, &SyntaxError{Fragment: t.text, Reason: "operator without operand"}
	}
}

// matching helpers

func selectFieldValues(fields map[string]string, searchIn []string) []string {
	var values []string
	if len(searchIn) == 0 {
		for _, v := range fields {
			values = append(values, strings.ToLower(v))
		}
		return values
	}
	for _, name := range searchIn {
		if v, ok := fields[name]; ok {
			values = append(values, strings.ToLower(v))
		}
	}
	return values
}

func containsTerm(values []string, term string) bool {
	for _, v := range values {
		if strings.Contains(v, term) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// ExtractTerms returns the plain terms of an expression in order of first
// appearance, skipping operators. It tolerates malformed input: anything
// that is not AND/OR/NOT or a parenthesis counts as a term. Used by the
// keyword expansion API, which expands terms individually.
func ExtractTerms(expression string) []string {
	tokens, err := tokenize(expression)
	if err != nil {
		// Fall back to whitespace splitting so expansion still sees the
		// user's words even with unbalanced parentheses.
		tokens = nil
		for _, word := range strings.Fields(expression) {
			word = strings.Trim(word, "()")
			switch strings.ToUpper(word) {
			case "", "AND", "OR", "NOT":
				continue
			}
			tokens = append(tokens, token{kind: tokenTerm, text: strings.ToLower(word)})
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, t := range tokens {
		if t.kind != tokenTerm {
			continue
		}
		if _, ok := seen[t.text]; ok {
			continue
		}
		seen[t.text] = struct{}{}
		out = append(out, t.text)
	}
	return out
}
