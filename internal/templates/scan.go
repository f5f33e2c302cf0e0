package templates

import (
	"strings"

	"github.com/idle-engine/idle/pkg/schema"
)

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenEscape
	tokenPlaceholder
)

// token is one lexed piece of a template string. For placeholders, text is
// the trimmed inner path.
type token struct {
	kind tokenKind
	text string
}

// scan lexes a template string, validating brace balance up front. Any
// opening/closing mismatch is a syntax error naming the offending string.
func scan(s string) ([]token, error) {
	var tokens []token
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, token{kind: tokenLiteral, text: literal.String()})
			literal.Reset()
		}
	}

	i := 0
	for i < len(s) {
		// Literal escape: \{{ yields {{ without substitution.
		if strings.HasPrefix(s[i:], `\{{`) {
			flush()
			tokens = append(tokens, token{kind: tokenEscape})
			i += 3
			continue
		}

		if strings.HasPrefix(s[i:], "{{") {
			end := strings.Index(s[i+2:], "}}")
			if end == -1 {
				return nil, schema.NewErrorf(schema.ErrCodeTemplate,
					"unbalanced braces in template string %q: missing closing }}", s)
			}
			inner := s[i+2 : i+2+end]
			if strings.Contains(inner, "{{") {
				return nil, schema.NewErrorf(schema.ErrCodeTemplate,
					"unbalanced braces in template string %q: nested {{", s)
			}
			flush()
			tokens = append(tokens, token{kind: tokenPlaceholder, text: strings.TrimSpace(inner)})
			i += 2 + end + 2
			continue
		}

		if strings.HasPrefix(s[i:], "}}") {
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"unbalanced braces in template string %q: stray }}", s)
		}

		literal.WriteByte(s[i])
		i++
	}
	flush()
	return tokens, nil
}

// pureToken reports whether the string is exactly one placeholder optionally
// surrounded by whitespace, returning its path.
func pureToken(tokens []token) (string, bool) {
	path := ""
	count := 0
	for _, tok := range tokens {
		switch tok.kind {
		case tokenPlaceholder:
			path = tok.text
			count++
		case tokenEscape:
			return "", false
		case tokenLiteral:
			if strings.TrimSpace(tok.text) != "" {
				return "", false
			}
		}
	}
	return path, count == 1
}
