package query

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompilePattern_Invalid(t *testing.T) {
	tests := []string{
		`invalid[regex`,
		`(unclosed`,
		`*leading`,
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			p, err := CompilePattern(expr, 0)
			require.Nil(t, p)
			require.True(t, errors.Is(err, ErrInvalidPattern), "got %v", err)
		})
	}
}

func TestPatternMatch_PositionalGroups(t *testing.T) {
	p, err := CompilePattern(`There are (\d+) of a max of (\d+) players online:(.*)`, time.Second)
	require.NoError(t, err)

	m, ok, err := p.Match("There are 3 of a max of 20 players online: A, B, C")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{"3", "20", " A, B, C"}, m.Groups())
	g1, ok := m.Group(1)
	require.True(t, ok)
	require.Equal(t, "3", g1)
	whole, ok := m.Group(0)
	require.True(t, ok)
	require.Equal(t, m.Text, whole)
	_, ok = m.Group(4)
	require.False(t, ok)
}

func TestPatternMatch_NamedGroups(t *testing.T) {
	p, err := CompilePattern(`(?<player>\w+) joined the game`, 0)
	require.NoError(t, err)

	m, ok, err := p.Match("[12:00:00] Steve joined the game")
	require.NoError(t, err)
	require.True(t, ok)

	name, ok := m.Named("player")
	require.True(t, ok)
	require.Equal(t, "Steve", name)
	require.Equal(t, map[string]string{"player": "Steve"}, m.NamedGroups())
	require.Equal(t, []string{"player"}, m.Names())
	require.Equal(t, "Steve joined the game", m.Text)
	require.Equal(t, "[12:00:00] Steve joined the game", m.Line)

	_, ok = m.Named("missing")
	require.False(t, ok)
}

func TestPatternMatch_NonParticipatingGroup(t *testing.T) {
	p, err := CompilePattern(`value: (?:(\d+)|(none))`, 0)
	require.NoError(t, err)

	m, ok, err := p.Match("value: none")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok = m.Group(1)
	require.False(t, ok)
	g2, ok := m.Group(2)
	require.True(t, ok)
	require.Equal(t, "none", g2)
	require.Equal(t, []string{"", "none"}, m.Groups())
}

func TestPatternMatch_NoMatch(t *testing.T) {
	p, err := CompilePattern(`^\[candy_tools] carpet mod has been loaded on the server$`, 0)
	require.NoError(t, err)

	m, ok, err := p.Match("Unknown or incomplete command")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, m)
	require.Equal(t, `^\[candy_tools] carpet mod has been loaded on the server$`, p.String())
}

func TestPatternMatch_MixedGroupsNumberedLeftToRight(t *testing.T) {
	p, err := CompilePattern(`Player (?P<name>\w+) joined with (\d+) hp`, 0)
	require.NoError(t, err)

	m, ok, err := p.Match("Player Steve joined with 20 hp")
	require.NoError(t, err)
	require.True(t, ok)

	g1, ok := m.Group(1)
	require.True(t, ok)
	require.Equal(t, "Steve", g1)
	g2, ok := m.Group(2)
	require.True(t, ok)
	require.Equal(t, "20", g2)
	require.Equal(t, []string{"Steve", "20"}, m.Groups())

	name, ok := m.Named("name")
	require.True(t, ok)
	require.Equal(t, "Steve", name)
	require.Equal(t, map[string]string{"name": "Steve"}, m.NamedGroups())
}

func TestPatternMatch_GroupOrderIgnoresEscapesAndClasses(t *testing.T) {
	p, err := CompilePattern(`\((\d+)\) [(]x[)] (?<dim>[a-z_:]+) (?:at )?(?'pos'-?\d+) (\w+)`, 0)
	require.NoError(t, err)

	m, ok, err := p.Match("(7) (x) minecraft:overworld at -12 done")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"7", "minecraft:overworld", "-12", "done"}, m.Groups())

	pos, ok := m.Named("pos")
	require.True(t, ok)
	require.Equal(t, "-12", pos)
}

func TestScanGroups(t *testing.T) {
	tests := []struct {
		expr string
		want []string
		ok   bool
	}{
		{`(a)(?P<b>b)(c)`, []string{"", "b", ""}, true},
		{`(?:a)(?=b)(?!c)(?<=d)(?<!e)(?>f)(?i)(g)`, []string{""}, true},
		{`\(a\)[(\]]`, nil, true},
		{`(?#note: (x is not)(x)`, []string{""}, true},
		{`(?<1>a)`, nil, false},
		{`(?<a-b>x)`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := scanGroups(tt.expr)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}
