// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		"en-US": NewCatalog("en-US", messagesEnUS),
		"pt-BR": NewCatalog("pt-BR", messagesPtBR),
	}
	matcher = language.NewMatcher([]language.Tag{
		language.AmericanEnglish,
		language.BrazilianPortuguese,
	})
)

// NewCatalog builds a catalog for a locale from a code-to-template map.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	return &Catalog{locale: locale, messages: messages}
}

// GetCatalog returns the catalog for the given locale.
// Unknown locales resolve through language matching and fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	catalogsMu.RLock()
	c, ok := catalogs[requested]
	catalogsMu.RUnlock()
	if ok {
		return c
	}

	tag, err := language.Parse(requested)
	if err == nil {
		matched, _, confidence := matcher.Match(tag)
		if confidence > language.No {
			base, _ := matched.Base()
			region, _ := matched.Region()
			resolved := base.String() + "-" + region.String()
			catalogsMu.RLock()
			c, ok = catalogs[resolved]
			catalogsMu.RUnlock()
			if ok {
				return c
			}
		}
	}

	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	return catalogs[BaseLocale]
}

// Register installs or replaces a locale catalog at runtime.
func Register(c *Catalog) {
	if c == nil || strings.TrimSpace(c.locale) == "" {
		return
	}
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[c.locale] = c
}

// Locale reports which locale this catalog renders.
func (c *Catalog) Locale() string {
	if c == nil {
		return ""
	}
	return c.locale
}

// Format renders the message template for a code with the given metadata.
// Missing codes fall back to the code itself; template failures fall back
// to the raw template text.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	if c == nil {
		return code
	}
	raw, ok := c.messages[code]
	if !ok {
		return code
	}
	tmpl, err := template.New(code).Parse(raw)
	if err != nil {
		return raw
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return raw
	}
	return buf.String()
}
