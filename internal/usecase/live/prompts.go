package live

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/johnquangdev/meeting-copilot/internal/domain/entities"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptSet holds the system instructions for one language
type PromptSet struct {
	Questions string `yaml:"questions"`
	Answer    string `yaml:"answer"`
	Actions   string `yaml:"actions"`
	Summary   string `yaml:"summary"`
}

func (p PromptSet) complete() bool {
	return p.Questions != "" && p.Answer != "" && p.Actions != "" && p.Summary != ""
}

// PromptCatalog maps a language code to its prompt set
type PromptCatalog map[string]PromptSet

// DefaultPrompts returns the built-in en/fr catalog
func DefaultPrompts() PromptCatalog {
	catalog, err := ParsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded prompt catalog is invalid: %v", err))
	}
	return catalog
}

// ParsePrompts decodes a YAML prompt catalog and checks every set is complete
func ParsePrompts(data []byte) (PromptCatalog, error) {
	var catalog PromptCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("prompt catalog is empty")
	}
	for lang, set := range catalog {
		if !set.complete() {
			return nil, fmt.Errorf("prompt set %q is incomplete", lang)
		}
	}
	return catalog, nil
}

// For returns the prompt set of lang
func (c PromptCatalog) For(lang string) (PromptSet, error) {
	set, ok := c[lang]
	if !ok {
		return PromptSet{}, fmt.Errorf("%w: %q", entities.ErrUnsupportedLang, lang)
	}
	return set, nil
}

// Languages lists the available language codes
func (c PromptCatalog) Languages() []string {
	langs := make([]string, 0, len(c))
	for lang := range c {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
