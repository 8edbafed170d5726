package host

import (
	"errors"
	"fmt"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/asterisk/internal/keycodec"
)

// DocumentSpec describes a document as loaded from YAML.
type DocumentSpec struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Pages []PageSpec `yaml:"pages"`
}

// PageSpec is one page of a document.
type PageSpec struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Elements []ElementSpec `yaml:"elements"`
}

// ElementSpec is one element of a page.
type ElementSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

var identifierRule = validation.By(func(v any) error {
	s, _ := v.(string)
	return keycodec.ValidateIdentifier(s)
})

// Validate checks that the document has pages and that every identifier can
// be used as a storage key segment. An empty document id is allowed.
func (d *DocumentSpec) Validate() error {
	if err := validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.When(d.ID != "", identifierRule)),
		validation.Field(&d.Pages, validation.Required),
	); err != nil {
		return err
	}
	pages := make(map[string]struct{}, len(d.Pages))
	for i := range d.Pages {
		p := &d.Pages[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
		if _, dup := pages[p.ID]; dup {
			return fmt.Errorf("duplicate page id %q", p.ID)
		}
		pages[p.ID] = struct{}{}
	}
	return nil
}

// Validate checks the page and its elements.
func (p *PageSpec) Validate() error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required, identifierRule),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(p.Elements))
	for i := range p.Elements {
		e := &p.Elements[i]
		if err := validation.ValidateStruct(e,
			validation.Field(&e.ID, validation.Required, identifierRule),
		); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("duplicate element id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// LoadDocument reads and validates a YAML document description.
func LoadDocument(path string) (DocumentSpec, error) {
	var doc DocumentSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("host: read document %s: %w", path, err)
	}
	if len(data) == 0 {
		return doc, errors.New("host: document is empty")
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("host: parse document %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return doc, fmt.Errorf("host: invalid document %s: %w", path, err)
	}
	return doc, nil
}
