// Package i18n holds the display strings of the quick analysis flow.
//
// The catalog is loaded once from an embedded YAML document and is immutable
// afterwards; switching locale is a pure lookup.
package i18n

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var defaultDocument []byte

// Strings is the full set of display strings for one locale.
type Strings struct {
	Title               string `yaml:"title" json:"title"`
	UploadText          string `yaml:"uploadText" json:"uploadText"`
	DropHint            string `yaml:"dropHint" json:"dropHint"`
	StartAnalysis       string `yaml:"startAnalysis" json:"startAnalysis"`
	Uploading           string `yaml:"uploading" json:"uploading"`
	AnalysisTitle       string `yaml:"analysisTitle" json:"analysisTitle"`
	Confidence          string `yaml:"confidence" json:"confidence"`
	Recommendation      string `yaml:"recommendation" json:"recommendation"`
	ErrorNoFile         string `yaml:"errorNoFile" json:"errorNoFile"`
	ErrorInvalidFile    string `yaml:"errorInvalidFile" json:"errorInvalidFile"`
	PDFNotImplemented   string `yaml:"pdfNotImplemented" json:"pdfNotImplemented"`
	ShareNotImplemented string `yaml:"shareNotImplemented" json:"shareNotImplemented"`
}

// Locale is one selectable language.
type Locale struct {
	Key     string  `yaml:"key" json:"key"`
	Code    string  `yaml:"code" json:"code"`
	Flag    string  `yaml:"flag" json:"flag"`
	Strings Strings `yaml:"strings" json:"strings"`
}

type document struct {
	Default         string   `yaml:"default"`
	WaitingMessages []string `yaml:"waitingMessages"`
	Locales         []Locale `yaml:"locales"`
}

// Catalog maps locale keys to their strings.
type Catalog struct {
	locales []Locale
	byKey   map[string]int
	byCode  map[string]int
	def     int
	waiting []string
	matcher language.Matcher
}

var defaultCatalog *Catalog

func init() {
	c, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("i18n: embedded catalog: %v", err))
	}
	defaultCatalog = c
}

// Default returns the catalog built from the embedded locale document.
func Default() *Catalog {
	return defaultCatalog
}

// Parse builds a catalog from a YAML locale document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing locale document: %w", err)
	}
	if len(doc.Locales) == 0 {
		return nil, fmt.Errorf("locale document has no locales")
	}
	if len(doc.WaitingMessages) == 0 {
		return nil, fmt.Errorf("locale document has no waiting messages")
	}

	c := &Catalog{
		locales: doc.Locales,
		byKey:   make(map[string]int, len(doc.Locales)),
		byCode:  make(map[string]int, len(doc.Locales)),
		waiting: doc.WaitingMessages,
	}

	tags := make([]language.Tag, 0, len(doc.Locales))
	for i, l := range doc.Locales {
		if l.Key == "" || l.Code == "" {
			return nil, fmt.Errorf("locale %d: key and code are required", i)
		}
		if _, dup := c.byKey[l.Key]; dup {
			return nil, fmt.Errorf("duplicate locale key %q", l.Key)
		}
		tag, err := language.Parse(l.Code)
		if err != nil {
			return nil, fmt.Errorf("locale %q: invalid code %q: %w", l.Key, l.Code, err)
		}
		c.byKey[l.Key] = i
		c.byCode[strings.ToLower(l.Code)] = i
		tags = append(tags, tag)
	}

	def, ok := c.byKey[doc.Default]
	if !ok {
		def = 0
	}
	c.def = def

	// The matcher falls back to its first tag, so the default goes first.
	ordered := append([]language.Tag{tags[def]}, tags...)
	c.matcher = language.NewMatcher(ordered)

	return c, nil
}

// Locales returns every locale in display order.
func (c *Catalog) Locales() []Locale {
	out := make([]Locale, len(c.locales))
	copy(out, c.locales)
	return out
}

// DefaultLocale returns the fallback locale.
func (c *Catalog) DefaultLocale() Locale {
	return c.locales[c.def]
}

// Lookup finds a locale by key ("Eng", "한") or ISO code ("en", "ko").
func (c *Catalog) Lookup(name string) (Locale, bool) {
	if i, ok := c.byKey[name]; ok {
		return c.locales[i], true
	}
	if i, ok := c.byCode[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c.locales[i], true
	}
	return Locale{}, false
}

// Resolve is Lookup with a fallback to the default locale.
func (c *Catalog) Resolve(name string) Locale {
	if l, ok := c.Lookup(name); ok {
		return l
	}
	return c.DefaultLocale()
}

// Match picks the best locale for an Accept-Language header value.
func (c *Catalog) Match(acceptLanguage string) Locale {
	if strings.TrimSpace(acceptLanguage) == "" {
		return c.DefaultLocale()
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.DefaultLocale()
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No || idx == 0 {
		return c.DefaultLocale()
	}
	return c.locales[idx-1]
}

// Others returns every locale except the given one, for the language selector.
func (c *Catalog) Others(key string) []Locale {
	out := make([]Locale, 0, len(c.locales))
	for _, l := range c.locales {
		if l.Key != key {
			out = append(out, l)
		}
	}
	return out
}

// WaitingMessages returns the rotating status messages shown while pending.
func (c *Catalog) WaitingMessages() []string {
	out := make([]string, len(c.waiting))
	copy(out, c.waiting)
	return out
}

// WaitingMessage returns the status message at index, wrapping around.
func (c *Catalog) WaitingMessage(index int) string {
	n := len(c.waiting)
	return c.waiting[((index%n)+n)%n]
}
