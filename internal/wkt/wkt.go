// Package wkt parses Well-Known-Text coordinate reference system
// definitions into a generic keyword tree.
//
// Both WKT1 (OGC 01-009, GDAL and ESRI flavours) and WKT2 (ISO 19162)
// share the same surface syntax: KEYWORD[arg, arg, ...] where an argument
// is a quoted string, a bare literal (number or enumeration) or another
// keyword node. Round and square brackets are interchangeable.
// Interpreting the tree is left to the caller.
package wkt

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is one KEYWORD[...] element of a WKT definition.
type Node struct {
	Keyword string
	Args    []Arg
}

// Arg is a single argument of a node: exactly one of Node or Text is set.
type Arg struct {
	Node   *Node
	Text   string
	Quoted bool
}

// SyntaxError reports a malformed definition and the byte offset where
// parsing stopped.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("wkt: %s at offset %d", e.Msg, e.Offset)
}

// Parse parses a complete definition. Trailing non-space input is an error.
func Parse(s string) (*Node, error) {
	p := &parser{src: s}
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, &SyntaxError{Offset: 0, Msg: "empty definition"}
	}
	n, err := p.node()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.peekSnippet())
	}
	return n, nil
}

// Is reports whether the node keyword matches any of the given keywords,
// ignoring case.
func (n *Node) Is(keywords ...string) bool {
	if n == nil {
		return false
	}
	for _, k := range keywords {
		if strings.EqualFold(n.Keyword, k) {
			return true
		}
	}
	return false
}

// Child returns the first direct child node matching any keyword, or nil.
func (n *Node) Child(keywords ...string) *Node {
	if n == nil {
		return nil
	}
	for _, a := range n.Args {
		if a.Node != nil && a.Node.Is(keywords...) {
			return a.Node
		}
	}
	return nil
}

// Children returns all direct child nodes matching any keyword, in order.
func (n *Node) Children(keywords ...string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, a := range n.Args {
		if a.Node != nil && a.Node.Is(keywords...) {
			out = append(out, a.Node)
		}
	}
	return out
}

// Find returns the first node matching any keyword in a depth-first walk
// of the subtree rooted at n (n itself included).
func (n *Node) Find(keywords ...string) *Node {
	if n == nil {
		return nil
	}
	if n.Is(keywords...) {
		return n
	}
	for _, a := range n.Args {
		if a.Node == nil {
			continue
		}
		if f := a.Node.Find(keywords...); f != nil {
			return f
		}
	}
	return nil
}

// Name returns the first quoted argument, which by convention is the name
// of the object the node describes.
func (n *Node) Name() string {
	if n == nil {
		return ""
	}
	for _, a := range n.Args {
		if a.Node == nil && a.Quoted {
			return a.Text
		}
	}
	return ""
}

// Text returns the i-th non-node argument (quoted or literal).
func (n *Node) Text(i int) (string, bool) {
	if n == nil {
		return "", false
	}
	k := 0
	for _, a := range n.Args {
		if a.Node != nil {
			continue
		}
		if k == i {
			return a.Text, true
		}
		k++
	}
	return "", false
}

// Number returns the i-th non-node argument parsed as a float. Quoted
// numbers are accepted since WKT1 AUTHORITY codes are quoted.
func (n *Node) Number(i int) (float64, bool) {
	s, ok := n.Text(i)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Numbers returns every non-node argument that parses as a float, in order.
func (n *Node) Numbers() []float64 {
	if n == nil {
		return nil
	}
	var out []float64
	for _, a := range n.Args {
		if a.Node != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(a.Text), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// String renders the node back to compact WKT.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	b.WriteString(n.Keyword)
	b.WriteByte('[')
	for i, a := range n.Args {
		if i > 0 {
			b.WriteByte(',')
		}
		switch {
		case a.Node != nil:
			a.Node.write(b)
		case a.Quoted:
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(a.Text, `"`, `""`))
			b.WriteByte('"')
		default:
			b.WriteString(a.Text)
		}
	}
	b.WriteByte(']')
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peekSnippet() string {
	end := p.pos + 16
	if end > len(p.src) {
		end = len(p.src)
	}
	return p.src[p.pos:end]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '-' || c == '+' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func (p *parser) word() string {
	start := p.pos
	for p.pos < len(p.src) && isWordByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func closing(open byte) byte {
	if open == '(' {
		return ')'
	}
	return ']'
}

// node parses KEYWORD[args].
func (p *parser) node() (*Node, error) {
	kw := p.word()
	if kw == "" {
		return nil, p.errorf("expected keyword, got %q", p.peekSnippet())
	}
	p.skipSpace()
	if p.pos >= len(p.src) || (p.src[p.pos] != '[' && p.src[p.pos] != '(') {
		return nil, p.errorf("expected '[' after %s", kw)
	}
	end := closing(p.src[p.pos])
	p.pos++

	n := &Node{Keyword: kw}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == end {
		p.pos++
		return n, nil
	}
	for {
		p.skipSpace()
		a, err := p.arg()
		if err != nil {
			return nil, err
		}
		n.Args = append(n.Args, a)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated %s", kw)
		}
		c := p.src[p.pos]
		switch {
		case c == ',':
			p.pos++
		case c == end:
			p.pos++
			return n, nil
		default:
			return nil, p.errorf("unexpected %q in %s", string(c), kw)
		}
	}
}

func (p *parser) arg() (Arg, error) {
	if p.pos >= len(p.src) {
		return Arg{}, p.errorf("unexpected end of input")
	}
	if p.src[p.pos] == '"' {
		s, err := p.quoted()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Text: s, Quoted: true}, nil
	}
	start := p.pos
	w := p.word()
	if w == "" {
		return Arg{}, p.errorf("expected argument, got %q", p.peekSnippet())
	}
	save := p.pos
	p.skipSpace()
	if p.pos < len(p.src) && (p.src[p.pos] == '[' || p.src[p.pos] == '(') {
		p.pos = start
		n, err := p.node()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Node: n}, nil
	}
	p.pos = save
	return Arg{Text: w}, nil
}

// quoted parses a double-quoted string; "" inside is an escaped quote.
func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '"' {
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '"' {
				b.WriteByte('"')
				p.pos += 2
				continue
			}
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	p.pos = start
	return "", p.errorf("unterminated string")
}
