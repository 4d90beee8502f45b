package mux

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned for patterns that cannot be compiled.
var ErrInvalidPattern = errors.New("invalid topic pattern")

// Syntax describes the wildcard grammar of a transport.
type Syntax struct {
	Separator   string
	SingleLevel string
	MultiLevel  string
}

var (
	// MQTT topic filters: a/+/c, a/#.
	MQTT = Syntax{Separator: "/", SingleLevel: "+", MultiLevel: "#"}
	// NATS subjects: a.*.c, a.>.
	NATS = Syntax{Separator: ".", SingleLevel: "*", MultiLevel: ">"}
)

// Compile turns pattern into an anchored regular expression. A multi-level
// wildcard is only accepted as the last token and also matches its parent.
func (s Syntax) Compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if pattern == s.MultiLevel {
		return regexp.MustCompile(`^.*$`), nil
	}

	sep := regexp.QuoteMeta(s.Separator)
	tokens := strings.Split(pattern, s.Separator)

	var b strings.Builder
	b.WriteByte('^')
	for i, token := range tokens {
		switch token {
		case s.MultiLevel:
			if i != len(tokens)-1 {
				return nil, fmt.Errorf("%w: %q: %s must be the last token", ErrInvalidPattern, pattern, s.MultiLevel)
			}
			b.WriteString("(?:" + sep + ".*)?")
			continue
		case s.SingleLevel:
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteString("[^" + sep + "]*")
		default:
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteString(regexp.QuoteMeta(token))
		}
	}
	b.WriteByte('$')

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}
