package region

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/google/uuid"
)

const marker = "[candy_tools]"

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// enumerateCommand lists the names of players standing in box in dimension dim.
// The reply is a single line: "[candy_tools] <token> players: a,b,c".
func enumerateCommand(token, dim string, box Box) string {
	b := box.Normalize()
	return fmt.Sprintf(
		"script run l = map(filter(player('all'), _~'dimension' == '%s' && (p = pos(_); "+
			"p:0 >= %s && p:0 <= %s && p:1 >= %s && p:1 <= %s && p:2 >= %s && p:2 <= %s)), _~'name'); "+
			"logger('%s %s players: ' + join(',', l))",
		dim,
		formatBound(b.X1), formatBound(b.X2),
		formatBound(b.Y1), formatBound(b.Y2),
		formatBound(b.Z1), formatBound(b.Z2),
		marker, token,
	)
}

func enumeratePattern(token string) string {
	return `^` + regexp2.Escape(marker+" "+token) + ` players: (?<names>.*)$`
}

// attributeCommand queries attr of one player. The reply is
// "[candy_tools] <token> value: <v>" or "[candy_tools] <token> missing" when
// the player has left.
func attributeCommand(token, player, attr string) string {
	return fmt.Sprintf(
		"script run p = player('%s'); if(p, logger('%s %s value: ' + p~'%s'), logger('%s %s missing'))",
		player, marker, token, attr, marker, token,
	)
}

func attributePattern(token string) string {
	return `^` + regexp2.Escape(marker+" "+token) + ` (?:value: (?<value>.*)|(?<missing>missing))$`
}

// parseNames splits an enumeration reply. Invalid names are returned separately.
func parseNames(list string) (names, invalid []string) {
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !ValidPlayerName(name) {
			invalid = append(invalid, name)
			continue
		}
		names = append(names, name)
	}
	return names, invalid
}
