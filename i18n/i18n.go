// Package i18n provides the localization dictionary consumed by message key.
// The core never validates the dictionary beyond presence; missing keys fall
// back to the default language and then to built-in English text.
package i18n

import (
	"encoding/json"
	"fmt"
	"os"

	"ekadashi.app/errors"
)

// Built-in English fallback templates. Event-name templates substitute the
// localized event name via %s.
var builtinDefaults = map[string]string{
	"notif_2day_title":   "Ekadashi in 2 days",
	"notif_2day_body":    "%s begins in 2 days. Prepare for the fast.",
	"notif_1day_title":   "Ekadashi tomorrow",
	"notif_1day_body":    "%s begins tomorrow.",
	"notif_start_title":  "Ekadashi today",
	"notif_start_body":   "%s fasting starts now.",
	"notif_parana_title": "Parana time",
	"notif_parana_body":  "The parana window for %s is open. You may break your fast.",
}

// Dictionary maps language code -> message key -> template string
type Dictionary struct {
	messages        map[string]map[string]string
	defaultLanguage string
}

// LoadFromFile reads a localization dictionary asset
func LoadFromFile(path, defaultLanguage string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("read messages file %s", path), err)
	}
	return LoadFromBytes(data, defaultLanguage)
}

// LoadFromBytes parses a localization dictionary from memory
func LoadFromBytes(data []byte, defaultLanguage string) (*Dictionary, error) {
	var messages map[string]map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid messages document: %v", err))
	}
	return &Dictionary{messages: messages, defaultLanguage: defaultLanguage}, nil
}

// Empty returns a dictionary with no loaded messages; every lookup serves the
// built-in defaults. Useful for tests and degraded startup.
func Empty(defaultLanguage string) *Dictionary {
	return &Dictionary{messages: map[string]map[string]string{}, defaultLanguage: defaultLanguage}
}

// Message returns the template for a key in the requested language, falling
// back to the default language and then to the built-in English text.
func (d *Dictionary) Message(lang, key string) string {
	if text, ok := d.messages[lang][key]; ok && text != "" {
		return text
	}
	if text, ok := d.messages[d.defaultLanguage][key]; ok && text != "" {
		return text
	}
	return builtinDefaults[key]
}

// Languages returns the language codes present in the loaded dictionary
func (d *Dictionary) Languages() []string {
	langs := make([]string, 0, len(d.messages))
	for lang := range d.messages {
		langs = append(langs, lang)
	}
	return langs
}
