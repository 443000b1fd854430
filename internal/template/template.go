// Package template compiles format strings with named placeholders into
// renderers and, for simple formats, structural inverse parsers. Placeholders
// are $name or $(expr); $(expr) admits a small whitelisted expression grammar
// over the supplied bindings, compiled once at Compile time.
package template

import (
	"fmt"
	"sort"
	"strings"
)

// Bindings supplies named values to Render. A name missing from the map
// renders as the null spelling.
type Bindings map[string]any

// Null is how an absent binding renders.
const Null = "null"

type segment interface {
	render(b Bindings) (string, error)
}

type literal string

func (l literal) render(Bindings) (string, error) { return string(l), nil }

type placeholder struct {
	expr node
	src  string
}

func (p placeholder) render(b Bindings) (string, error) {
	v, err := p.expr.eval(b)
	if err != nil {
		return "", fmt.Errorf("template: $(%s): %w", p.src, err)
	}
	return formatValue(v), nil
}

// Template is a compiled format string.
type Template struct {
	format   string
	segments []segment
	names    []string
}

// Compile scans format and compiles every placeholder. If required names are
// given, each discovered root name must be among them; compilation fails
// listing every unsupported extra.
func Compile(format string, required ...string) (*Template, error) {
	segments, names, err := scan(format)
	if err != nil {
		return nil, err
	}

	if len(required) > 0 {
		allowed := make(map[string]bool, len(required))
		for _, r := range required {
			allowed[r] = true
		}
		var extras []string
		for _, n := range names {
			if !allowed[n] {
				extras = append(extras, n)
			}
		}
		if len(extras) > 0 {
			sort.Strings(extras)
			return nil, fmt.Errorf("template: unsupported names in %q: %s",
				format, strings.Join(extras, ", "))
		}
	}

	return &Template{format: format, segments: segments, names: names}, nil
}

// MustCompile is Compile for trusted literals; it panics on failure.
func MustCompile(format string, required ...string) *Template {
	t, err := Compile(format, required...)
	if err != nil {
		panic(err)
	}
	return t
}

// Format returns the source format string.
func (t *Template) Format() string { return t.format }

// Names returns the root binding names the template references, sorted.
func (t *Template) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Render produces the formatted string for the given bindings.
func (t *Template) Render(b Bindings) (string, error) {
	var sb strings.Builder
	for _, s := range t.segments {
		part, err := s.render(b)
		if err != nil {
			return "", err
		}
		sb.WriteString(part)
	}
	return sb.String(), nil
}

// scan splits format into literal and placeholder segments. $$ escapes a
// literal dollar sign.
func scan(format string) ([]segment, []string, error) {
	var (
		segments []segment
		lit      strings.Builder
		seen     = map[string]bool{}
		names    []string
	)
	addNames := func(ns []string) {
		for _, n := range ns {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	flush := func() {
		if lit.Len() > 0 {
			segments = append(segments, literal(lit.String()))
			lit.Reset()
		}
	}

	i := 0
	for i < len(format) {
		c := format[i]
		if c != '$' {
			lit.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(format) {
			return nil, nil, fmt.Errorf("template: dangling $ at end of %q", format)
		}
		next := format[i+1]
		switch {
		case next == '$':
			lit.WriteByte('$')
			i += 2
		case next == '(':
			end, err := matchParen(format, i+1)
			if err != nil {
				return nil, nil, err
			}
			src := format[i+2 : end]
			expr, err := parseExpr(src)
			if err != nil {
				return nil, nil, err
			}
			flush()
			segments = append(segments, placeholder{expr: expr, src: src})
			addNames(expr.names())
			i = end + 1
		case isIdentStart(rune(next)):
			j := i + 1
			for j < len(format) && isIdentRune(rune(format[j])) {
				j++
			}
			name := format[i+1 : j]
			flush()
			segments = append(segments, placeholder{expr: identNode{name: name}, src: name})
			addNames([]string{name})
			i = j
		default:
			return nil, nil, fmt.Errorf("template: bad placeholder at byte %d of %q", i, format)
		}
	}
	flush()
	sort.Strings(names)
	return segments, names, nil
}

// matchParen returns the index of the ')' closing the '(' at open.
func matchParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("template: unbalanced parentheses in %q", s)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return Null
	case float64:
		// Whole numbers print without a trailing .0 so rendered lines stay
		// parseable as plain integers.
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case string:
		return x
	default:
		return fmt.Sprint(v)
	}
}
