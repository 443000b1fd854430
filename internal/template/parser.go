package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Parser is the structural inverse of a format string: it recovers the
// placeholder fields from a previously rendered line.
//
// Only simple $name / $(name) placeholders are supported. Expression
// placeholders render fine but have no structural inverse, so NewParser
// rejects them; this is a deliberate restriction, not a gap.
type Parser struct {
	format  string
	pattern *regexp.Regexp
	names   []string
}

// NewParser builds a parser for format. Each placeholder becomes a named
// non-greedy capture bounded by the next literal run, and the whole pattern
// is anchored to the full line.
func NewParser(format string) (*Parser, error) {
	segments, _, err := scan(format)
	if err != nil {
		return nil, err
	}

	var (
		sb    strings.Builder
		names []string
	)
	sb.WriteString("^")
	for _, s := range segments {
		switch seg := s.(type) {
		case literal:
			sb.WriteString(regexp.QuoteMeta(string(seg)))
		case placeholder:
			ident, ok := seg.expr.(identNode)
			if !ok {
				return nil, fmt.Errorf("template: parser supports simple placeholders only, got $(%s)", seg.src)
			}
			names = append(names, ident.name)
			fmt.Fprintf(&sb, "(?P<%s>.*?)", ident.name)
		}
	}
	sb.WriteString("$")

	pattern, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("template: compile parser for %q: %w", format, err)
	}
	return &Parser{format: format, pattern: pattern, names: names}, nil
}

// Parse maps a raw line to its placeholder fields. The second return is
// false when the line does not match the format.
func (p *Parser) Parse(line string) (map[string]string, bool) {
	m := p.pattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	fields := make(map[string]string, len(p.names))
	for i, name := range p.pattern.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		fields[name] = m[i]
	}
	return fields, true
}

// Names returns the placeholder names in format order.
func (p *Parser) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}
