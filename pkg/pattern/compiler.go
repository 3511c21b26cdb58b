// Package pattern compiles user search parameters into an immutable matcher
// and substitution template.
//
// Two user-facing languages meet here: search text that is either literal or
// an RE2 regular expression, and a replacement template that uses RE2 rewrite
// syntax (\0-\9 for groups, \\ for a backslash). Both are translated into Go
// regexp terms with explicit rules, so no quirk of the underlying engine leaks
// through:
//
//   - literal search text is quoted before compilation;
//   - a literal replacement never expands, whatever backslashes or dollar
//     signs it contains;
//   - a regex replacement is checked against the pattern's capture groups
//     before any row is touched.
//
// A Compiled value is read-only after construction and may be shared between
// goroutines.
package pattern

import (
	"fmt"
	"regexp"
	"regexp/syntax"

	"github.com/ajitpratap0/colreplace/pkg/errors"
)

// Parameter names errors are attributed to.
const (
	FieldSearch      = "to_replace"
	FieldReplacement = "replace_with"
)

// Options holds the raw user parameters that shape a pattern.
type Options struct {
	// Search is the text or regular expression to look for.
	Search string
	// Regex treats Search as an RE2 regular expression instead of literal text.
	Regex bool
	// MatchCase disables case-insensitive matching.
	MatchCase bool
	// MatchEntire requires Search to match a whole value rather than a substring.
	MatchEntire bool
	// Replacement is the substitution template.
	Replacement string
}

// Compiled is a validated matcher plus its resolved replacement.
type Compiled struct {
	re       *regexp.Regexp
	template string
	opts     Options
}

// Compile builds a Compiled pattern from opts. The returned error is an
// *errors.Error of type ErrorTypePattern or ErrorTypeTemplate.
func Compile(opts Options) (*Compiled, error) {
	re, err := CompileMatcher(opts.Search, opts.Regex, opts.MatchCase, opts.MatchEntire)
	if err != nil {
		return nil, err
	}

	tmpl, err := ResolveTemplate(re, opts.Replacement, opts.Regex)
	if err != nil {
		return nil, err
	}

	return &Compiled{re: re, template: tmpl, opts: opts}, nil
}

// CompileMatcher turns search text into a regular expression.
func CompileMatcher(search string, isRegex, matchCase, matchEntire bool) (*regexp.Regexp, error) {
	expr := search
	if isRegex {
		// Parse the bare user text first so syntax errors quote what the
		// user typed, not the anchored and flagged expression.
		if _, err := syntax.Parse(search, syntax.Perl); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypePattern, syntaxMessage(err)).
				WithField(FieldSearch)
		}
	} else {
		expr = regexp.QuoteMeta(expr)
	}
	if matchEntire {
		expr = "^(?:" + expr + ")$"
	}
	if !matchCase {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypePattern, syntaxMessage(err)).
			WithField(FieldSearch)
	}
	return re, nil
}

// syntaxMessage strips the "error parsing regexp: " prefix Go adds.
func syntaxMessage(err error) string {
	var se *syntax.Error
	if errors.As(err, &se) {
		return fmt.Sprintf("%s: `%s`", se.Code, se.Expr)
	}
	return err.Error()
}

// Replace rewrites every non-overlapping match in s.
func (c *Compiled) Replace(s string) string {
	return c.re.ReplaceAllString(s, c.template)
}

// MatchString reports whether s contains a match.
func (c *Compiled) MatchString(s string) bool {
	return c.re.MatchString(s)
}

// Regexp returns the underlying matcher.
func (c *Compiled) Regexp() *regexp.Regexp {
	return c.re
}

// Template returns the resolved replacement in Go Expand syntax.
func (c *Compiled) Template() string {
	return c.template
}

// Options returns the parameters c was compiled from.
func (c *Compiled) Options() Options {
	return c.opts
}

func (c *Compiled) String() string {
	return c.re.String()
}
