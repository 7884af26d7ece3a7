package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Pattern is a compiled line pattern.
//
// Patterns use the regexp2 engine in RE2-compatible mode, so (?P<name>...)
// and (?<name>...) both declare named groups and lookaround is available.
// The match timeout bounds how long a single line evaluation may take.
//
// Groups are numbered left to right by their opening parenthesis, named or
// not. The engine numbers named groups after unnamed ones, so order maps
// positional group k+1 to the engine's group number.
type Pattern struct {
	expr  string
	re    *regexp2.Regexp
	order []int
	names map[string]int
}

// CompilePattern compiles expr. A non-positive matchTimeout leaves evaluation unbounded.
func CompilePattern(expr string, matchTimeout time.Duration) (*Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.RE2)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, expr, err)
	}
	if matchTimeout > 0 {
		re.MatchTimeout = matchTimeout
	}
	p := &Pattern{expr: expr, re: re}
	if !p.sourceOrder() {
		p.engineOrder()
	}
	return p, nil
}

// sourceOrder numbers groups as they appear in expr. It reports false when
// the scan cannot be reconciled with the compiled groups.
func (p *Pattern) sourceOrder() bool {
	declared, ok := scanGroups(p.expr)
	if !ok {
		return false
	}

	var unnamed []int
	for _, num := range p.re.GetGroupNumbers() {
		if num > 0 && p.re.GroupNameFromNumber(num) == strconv.Itoa(num) {
			unnamed = append(unnamed, num)
		}
	}

	order := make([]int, 0, len(declared))
	names := make(map[string]int)
	next := 0
	for i, name := range declared {
		if name == "" {
			if next >= len(unnamed) {
				return false
			}
			order = append(order, unnamed[next])
			next++
			continue
		}
		num := p.re.GroupNumberFromName(name)
		if num < 0 {
			return false
		}
		if _, dup := names[name]; dup {
			return false
		}
		order = append(order, num)
		names[name] = i + 1
	}
	if next != len(unnamed) || len(order) != len(p.re.GetGroupNumbers())-1 {
		return false
	}

	p.order, p.names = order, names
	return true
}

func (p *Pattern) engineOrder() {
	p.order = p.order[:0]
	p.names = make(map[string]int)
	for _, num := range p.re.GetGroupNumbers() {
		if num == 0 {
			continue
		}
		p.order = append(p.order, num)
		if name := p.re.GroupNameFromNumber(num); name != strconv.Itoa(num) {
			p.names[name] = len(p.order)
		}
	}
}

// scanGroups lists the capturing groups of expr in source order, with ""
// for unnamed groups. It skips escapes and character classes. ok is false
// for constructs it does not model (numbered or balancing group names).
func scanGroups(expr string) (names []string, ok bool) {
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '\\':
			i++
		case '[':
			i = classEnd(expr, i)
		case '(':
			rest := expr[i+1:]
			if !strings.HasPrefix(rest, "?") {
				names = append(names, "")
				continue
			}
			rest = rest[1:]
			var name string
			switch {
			case strings.HasPrefix(rest, "P<"):
				name, ok = groupName(rest[2:], '>')
			case strings.HasPrefix(rest, "<") && !strings.HasPrefix(rest, "<=") && !strings.HasPrefix(rest, "<!"):
				name, ok = groupName(rest[1:], '>')
			case strings.HasPrefix(rest, "'"):
				name, ok = groupName(rest[1:], '\'')
			case strings.HasPrefix(rest, "#"):
				if end := strings.IndexByte(rest, ')'); end >= 0 {
					i += 2 + end
				}
				continue
			default:
				continue
			}
			if !ok {
				return nil, false
			}
			names = append(names, name)
		}
	}
	return names, true
}

// classEnd returns the index of the ']' closing the class opened at start.
func classEnd(expr string, start int) int {
	j := start + 1
	if j < len(expr) && expr[j] == '^' {
		j++
	}
	if j < len(expr) && expr[j] == ']' {
		j++
	}
	for ; j < len(expr) && expr[j] != ']'; j++ {
		if expr[j] == '\\' {
			j++
		}
	}
	return j
}

func groupName(s string, term byte) (string, bool) {
	end := strings.IndexByte(s, term)
	if end <= 0 {
		return "", false
	}
	name := s[:end]
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '_' && !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') && !(i > 0 && c >= '0' && c <= '9') {
			return "", false
		}
	}
	return name, true
}

// String returns the source expression.
func (p *Pattern) String() string {
	return p.expr
}

// Match searches line for the first occurrence of the pattern.
// The error is non-nil only when evaluation exceeded the match timeout.
func (p *Pattern) Match(line string) (*Match, bool, error) {
	m, err := p.re.FindStringMatch(line)
	if err != nil {
		return nil, false, err
	}
	if m == nil {
		return nil, false, nil
	}
	return p.newMatch(line, m), true, nil
}

// Match is the structured result of a successful wait.
type Match struct {
	// Line is the full output line that matched.
	Line string
	// Text is the matched portion of Line.
	Text string

	groups  []string
	present []bool
	names   map[string]int
}

func (p *Pattern) newMatch(line string, m *regexp2.Match) *Match {
	res := &Match{
		Line:    line,
		Text:    m.String(),
		groups:  make([]string, len(p.order)+1),
		present: make([]bool, len(p.order)+1),
		names:   p.names,
	}
	res.groups[0], res.present[0] = res.Text, true
	for k, num := range p.order {
		if g := m.GroupByNumber(num); g != nil && len(g.Captures) > 0 {
			res.groups[k+1] = g.String()
			res.present[k+1] = true
		}
	}
	return res
}

// Group returns positional group i (0 is the whole match).
// ok is false when the group does not exist or did not participate.
func (m *Match) Group(i int) (string, bool) {
	if i < 0 || i >= len(m.groups) || !m.present[i] {
		return "", false
	}
	return m.groups[i], true
}

// Groups returns groups 1..n in source order; non-participating groups are empty.
func (m *Match) Groups() []string {
	if len(m.groups) <= 1 {
		return []string{}
	}
	out := make([]string, len(m.groups)-1)
	copy(out, m.groups[1:])
	return out
}

// Named returns the named group.
func (m *Match) Named(name string) (string, bool) {
	i, ok := m.names[name]
	if !ok {
		return "", false
	}
	return m.Group(i)
}

// NamedGroups returns every named group that participated in the match.
func (m *Match) NamedGroups() map[string]string {
	out := make(map[string]string, len(m.names))
	for name, i := range m.names {
		if m.present[i] {
			out[name] = m.groups[i]
		}
	}
	return out
}

// Names returns the declared group names.
func (m *Match) Names() []string {
	out := make([]string, 0, len(m.names))
	for name := range m.names {
		out = append(out, name)
	}
	return out
}
