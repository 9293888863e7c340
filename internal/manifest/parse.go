package manifest

import (
	"fmt"
	"strings"
)

// The pbxproj format is an OpenStep property list. The parser below keeps the
// byte offsets of every object entry and list item so edits can be applied to
// the original text without reformatting anything else.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokString
	tokWord
	tokPunct
)

type token struct {
	kind       tokenKind
	text       string
	start, end int
}

type lexer struct {
	src    string
	pos    int
	peeked *token
}

func (lx *lexer) skipSpaceAndComments() error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			lx.pos++
		case strings.HasPrefix(lx.src[lx.pos:], "//"):
			nl := strings.IndexByte(lx.src[lx.pos:], '\n')
			if nl < 0 {
				lx.pos = len(lx.src)
			} else {
				lx.pos += nl + 1
			}
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				return fmt.Errorf("unterminated comment at offset %d", lx.pos)
			}
			lx.pos += end + 4
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) peek() (token, error) {
	if lx.peeked == nil {
		t, err := lx.scan()
		if err != nil {
			return token{}, err
		}
		lx.peeked = &t
	}
	return *lx.peeked, nil
}

func (lx *lexer) next() (token, error) {
	if lx.peeked != nil {
		t := *lx.peeked
		lx.peeked = nil
		return t, nil
	}
	return lx.scan()
}

func (lx *lexer) scan() (token, error) {
	if err := lx.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	if lx.pos >= len(lx.src) {
		return token{kind: tokEOF, start: lx.pos, end: lx.pos}, nil
	}

	start := lx.pos
	c := lx.src[lx.pos]
	switch {
	case strings.IndexByte("={}();,", c) >= 0:
		lx.pos++
		return token{kind: tokPunct, text: string(c), start: start, end: lx.pos}, nil
	case c == '"':
		return lx.scanString()
	}

	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '"' || strings.IndexByte("={}();,", c) >= 0 {
			break
		}
		if strings.HasPrefix(lx.src[lx.pos:], "/*") || strings.HasPrefix(lx.src[lx.pos:], "//") {
			break
		}
		lx.pos++
	}
	return token{kind: tokWord, text: lx.src[start:lx.pos], start: start, end: lx.pos}, nil
}

func (lx *lexer) scanString() (token, error) {
	start := lx.pos
	lx.pos++ // opening quote
	var b strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch c {
		case '\\':
			if lx.pos+1 >= len(lx.src) {
				return token{}, fmt.Errorf("unterminated string at offset %d", start)
			}
			switch e := lx.src[lx.pos+1]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
			lx.pos += 2
		case '"':
			lx.pos++
			return token{kind: tokString, text: b.String(), start: start, end: lx.pos}, nil
		default:
			b.WriteByte(c)
			lx.pos++
		}
	}
	return token{}, fmt.Errorf("unterminated string at offset %d", start)
}

type valueKind int

const (
	scalarValue valueKind = iota
	listValue
	dictValue
)

// item is one list element; end includes the trailing comma when present
type item struct {
	val        string
	start, end int
}

type value struct {
	kind        valueKind
	str         string
	start, end  int
	items       []item
	open, close int // list parenthesis offsets
	dict        *dict
}

type entry struct {
	key      string
	keyStart int
	val      *value
	end      int // offset just past the terminating ';'
}

type dict struct {
	entries []*entry
	byKey   map[string]*entry
	dups    []string
}

func (d *dict) str(key string) string {
	if e, ok := d.byKey[key]; ok && e.val.kind == scalarValue {
		return e.val.str
	}
	return ""
}

func (d *dict) list(key string) []string {
	e, ok := d.byKey[key]
	if !ok || e.val.kind != listValue {
		return nil
	}
	out := make([]string, len(e.val.items))
	for i, it := range e.val.items {
		out[i] = it.val
	}
	return out
}

type parser struct {
	lx lexer
}

func parseDocument(src string) (*dict, error) {
	p := &parser{lx: lexer{src: src}}
	t, err := p.lx.next()
	if err != nil {
		return nil, err
	}
	if t.kind != tokPunct || t.text != "{" {
		return nil, fmt.Errorf("expected '{' at offset %d", t.start)
	}
	root, err := p.parseDict()
	if err != nil {
		return nil, err
	}
	if t, err := p.lx.next(); err != nil {
		return nil, err
	} else if t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q after root dictionary at offset %d", t.text, t.start)
	}
	return root, nil
}

// parseDict parses entries up to and including the closing '}'
func (p *parser) parseDict() (*dict, error) {
	d := &dict{byKey: make(map[string]*entry)}
	for {
		t, err := p.lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokPunct && t.text == "}":
			return d, nil
		case t.kind == tokEOF:
			return nil, fmt.Errorf("unexpected end of input in dictionary")
		case t.kind == tokPunct:
			return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.start)
		}

		if err := p.expect("="); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		semi, err := p.lx.next()
		if err != nil {
			return nil, err
		}
		if semi.kind != tokPunct || semi.text != ";" {
			return nil, fmt.Errorf("expected ';' after %q at offset %d", t.text, semi.start)
		}

		e := &entry{key: t.text, keyStart: t.start, val: v, end: semi.end}
		if _, exists := d.byKey[t.text]; exists {
			d.dups = append(d.dups, t.text)
		} else {
			d.byKey[t.text] = e
		}
		d.entries = append(d.entries, e)
	}
}

func (p *parser) parseValue() (*value, error) {
	t, err := p.lx.next()
	if err != nil {
		return nil, err
	}
	switch {
	case t.kind == tokString || t.kind == tokWord:
		return &value{kind: scalarValue, str: t.text, start: t.start, end: t.end}, nil
	case t.kind == tokPunct && t.text == "{":
		d, err := p.parseDict()
		if err != nil {
			return nil, err
		}
		return &value{kind: dictValue, dict: d, start: t.start, end: p.lx.pos}, nil
	case t.kind == tokPunct && t.text == "(":
		return p.parseList(t.start)
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.start)
}

func (p *parser) parseList(open int) (*value, error) {
	v := &value{kind: listValue, open: open, start: open}
	for {
		t, err := p.lx.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokPunct && t.text == ")" {
			p.lx.next()
			v.close, v.end = t.start, t.end
			return v, nil
		}

		elem, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		it := item{val: elem.str, start: elem.start, end: elem.end}

		sep, err := p.lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case sep.kind == tokPunct && sep.text == ",":
			it.end = sep.end
			v.items = append(v.items, it)
		case sep.kind == tokPunct && sep.text == ")":
			v.items = append(v.items, it)
			v.close, v.end = sep.start, sep.end
			return v, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in list at offset %d", sep.start)
		}
	}
}

func (p *parser) expect(punct string) error {
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	if t.kind != tokPunct || t.text != punct {
		return fmt.Errorf("expected %q at offset %d, got %q", punct, t.start, t.text)
	}
	return nil
}
