package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/colreplace/pkg/errors"
)

// ResolveTemplate validates a user replacement template against re and
// translates it into regexp.Expand syntax.
//
// In literal mode the template is inert: the result, once expanded, is
// exactly the input text. In regex mode \N refers to capture group N (0 is the
// whole match) and \\ is a backslash; any other escape, a trailing backslash,
// or a group beyond re.NumSubexp() is an ErrorTypeTemplate error.
func ResolveTemplate(re *regexp.Regexp, template string, isRegex bool) (string, error) {
	if !isRegex {
		return escapeLiteral(template), nil
	}

	var b strings.Builder
	b.Grow(len(template) + 8)
	maxGroup := -1

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '$':
			b.WriteString("$$")
			continue
		case '\\':
		default:
			b.WriteByte(c)
			continue
		}

		i++
		if i == len(template) {
			return "", templateError(`Rewrite schema error: '\' not allowed at end.`)
		}
		next := template[i]
		switch {
		case next == '\\':
			b.WriteByte('\\')
		case next >= '0' && next <= '9':
			n := int(next - '0')
			if n > maxGroup {
				maxGroup = n
			}
			// Braces keep "\12" meaning group 1 followed by a literal "2".
			fmt.Fprintf(&b, "${%d}", n)
		default:
			return "", templateError(`Rewrite schema error: '\' must be followed by a digit or '\'.`)
		}
	}

	if maxGroup > re.NumSubexp() {
		return "", templateError(fmt.Sprintf(
			"Rewrite schema requests %d matches, but the regexp only has %d parenthesized subexpressions.",
			maxGroup, re.NumSubexp()))
	}

	return b.String(), nil
}

// escapeLiteral neutralizes the only metacharacter regexp.Expand knows.
func escapeLiteral(template string) string {
	return strings.ReplaceAll(template, "$", "$$")
}

func templateError(msg string) error {
	return errors.New(errors.ErrorTypeTemplate, msg).WithField(FieldReplacement)
}
