// Package i18n holds the message catalogs behind user-facing render errors.
//
// A Message is an ID plus named arguments. It is resolved late, against the
// caller's preferred languages, so the same error can be shown in any
// supported locale. Templates use {name} placeholders.
package i18n

import (
	"fmt"
	"io"
	"sync"

	"github.com/valyala/fasttemplate"
	"golang.org/x/text/language"
)

// Message IDs emitted by the replace step.
const (
	RegexGeneral     = "error.regex.general"
	TemplateInvalid  = "error.replace_with.template"
	ColumnNotInTable = "error.colnames.unknown"
)

// Message is a localizable message: a catalog ID and the values for its
// placeholders.
type Message struct {
	ID        string                 `json:"id" yaml:"id"`
	Arguments map[string]interface{} `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// NewMessage builds a Message from alternating key/value pairs.
func NewMessage(id string, kv ...interface{}) Message {
	m := Message{ID: id}
	if len(kv) > 0 {
		m.Arguments = make(map[string]interface{}, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Arguments[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return m
}

// String renders the message in the default locale.
func (m Message) String() string {
	return Default().Localize(m)
}

// Catalog maps locales to message templates.
type Catalog struct {
	mu        sync.RWMutex
	tags      []language.Tag
	templates map[language.Tag]map[string]*fasttemplate.Template
	matcher   language.Matcher
}

// NewCatalog creates an empty catalog whose fallback locale is fallback.
func NewCatalog(fallback language.Tag) *Catalog {
	c := &Catalog{
		tags:      []language.Tag{fallback},
		templates: map[language.Tag]map[string]*fasttemplate.Template{fallback: {}},
	}
	c.matcher = language.NewMatcher(c.tags)
	return c
}

// Set registers the template for id in locale tag. Placeholders are written
// as {name}; an unterminated placeholder is an error.
func (c *Catalog) Set(tag language.Tag, id, tmpl string) error {
	t, err := fasttemplate.NewTemplate(tmpl, "{", "}")
	if err != nil {
		return fmt.Errorf("i18n: template %q for %s: %w", id, tag, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, ok := c.templates[tag]
	if !ok {
		msgs = make(map[string]*fasttemplate.Template)
		c.templates[tag] = msgs
		c.tags = append(c.tags, tag)
		c.matcher = language.NewMatcher(c.tags)
	}
	msgs[id] = t
	return nil
}

// Locales lists the registered locales, fallback first.
func (c *Catalog) Locales() []language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]language.Tag, len(c.tags))
	copy(out, c.tags)
	return out
}

// Match returns the best registered locale for the preferences, which may be
// BCP 47 tags or Accept-Language strings.
func (c *Catalog) Match(preferred ...string) language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var want []language.Tag
	for _, p := range preferred {
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		want = append(want, tags...)
	}
	_, idx, _ := c.matcher.Match(want...)
	return c.tags[idx]
}

// Localize renders m in the best locale for preferred. An ID missing from
// the chosen locale falls back to the fallback locale, then to the ID itself.
// Placeholders without an argument are left as written.
func (c *Catalog) Localize(m Message, preferred ...string) string {
	tag := c.Match(preferred...)

	c.mu.RLock()
	t, ok := c.templates[tag][m.ID]
	if !ok {
		t, ok = c.templates[c.tags[0]][m.ID]
	}
	c.mu.RUnlock()
	if !ok {
		return m.ID
	}

	return t.ExecuteFuncString(func(w io.Writer, name string) (int, error) {
		v, ok := m.Arguments[name]
		if !ok {
			return w.Write([]byte("{" + name + "}"))
		}
		return w.Write([]byte(fmt.Sprint(v)))
	})
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog with English and Spanish messages.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = NewCatalog(language.English)
		for tag, msgs := range builtin {
			for id, tmpl := range msgs {
				if err := defaultCatalog.Set(tag, id, tmpl); err != nil {
					panic(err)
				}
			}
		}
	})
	return defaultCatalog
}

// Localize renders m with the default catalog.
func Localize(m Message, preferred ...string) string {
	return Default().Localize(m, preferred...)
}
