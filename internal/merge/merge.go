// Package merge splices dFlow model documents together section by section.
//
// A dFlow document is made of named top-level sections (gslots, entities,
// synonyms, triggers, eservices, dialogues), each opened by its keyword and
// closed by an "end" token. Merge collects every document's section bodies
// and emits one document holding all six sections in canonical order.
package merge

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Section names in the order they are emitted in a merged document.
const (
	GSlots    = "gslots"
	Entities  = "entities"
	Synonyms  = "synonyms"
	Triggers  = "triggers"
	EServices = "eservices"
	Dialogues = "dialogues"
)

const endToken = "end"

var canonical = []string{GSlots, Entities, Synonyms, Triggers, EServices, Dialogues}

var (
	// ErrEmptyDocument is returned for documents that are empty or whitespace only.
	ErrEmptyDocument = errors.New("empty document")
	// ErrNotText is returned for documents that are not valid UTF-8 text.
	ErrNotText = errors.New("document is not text")
	// ErrMalformedSection is returned when a section header has no closing end token.
	ErrMalformedSection = errors.New("section has no closing end")
)

// DocumentError reports which input document (and section, when known)
// could not be processed.
type DocumentError struct {
	Index   int
	Section string
	Offset  int
	Err     error
}

func (e *DocumentError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("document %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("document %d: section %q at offset %d: %v", e.Index, e.Section, e.Offset, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Sections returns the canonical section order.
func Sections() []string {
	out := make([]string, len(canonical))
	copy(out, canonical)
	return out
}

// Merge combines docs into a single document. Like-named section bodies are
// concatenated in input order and all six sections are always emitted, so
// merging an empty list yields six empty sections.
func Merge(docs []string) (string, error) {
	acc := make(map[string]*strings.Builder, len(canonical))
	for _, name := range canonical {
		acc[name] = &strings.Builder{}
	}
	for i, doc := range docs {
		parts, err := extract(i, doc)
		if err != nil {
			return "", err
		}
		for _, p := range parts {
			acc[p.name].WriteString(p.body)
		}
	}
	bodies := make(map[string]string, len(acc))
	for name, b := range acc {
		bodies[name] = b.String()
	}
	return Render(bodies), nil
}

// Extract returns the section bodies of a single document keyed by section
// name. Sections the document does not define are absent from the map.
func Extract(doc string) (map[string]string, error) {
	parts, err := extract(0, doc)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(parts))
	for _, p := range parts {
		out[p.name] += p.body
	}
	return out, nil
}

// Render emits bodies as a canonical document. A body that already ends in
// a newline is closed by "end" directly, which keeps Merge idempotent.
func Render(bodies map[string]string) string {
	out := make([]string, 0, len(canonical))
	for _, name := range canonical {
		body := bodies[name]
		sep := "\n"
		if strings.HasSuffix(body, "\n") {
			sep = ""
		}
		out = append(out, name+body+sep+endToken)
	}
	return strings.Join(out, "\n\n")
}

type part struct {
	name string
	body string
}

func extract(idx int, doc string) ([]part, error) {
	if !utf8.ValidString(doc) || strings.IndexByte(doc, 0) >= 0 {
		return nil, &DocumentError{Index: idx, Err: ErrNotText}
	}
	if strings.TrimSpace(doc) == "" {
		return nil, &DocumentError{Index: idx, Err: ErrEmptyDocument}
	}

	headers := scanHeaders(doc)
	parts := make([]part, 0, len(headers))
	for i, h := range headers {
		limit := len(doc)
		if i+1 < len(headers) {
			limit = headers[i+1].start
		}
		region := doc[h.bodyStart:limit]
		end := lastWord(region, endToken)
		if end < 0 {
			return nil, &DocumentError{Index: idx, Section: h.name, Offset: h.start, Err: ErrMalformedSection}
		}
		parts = append(parts, part{name: h.name, body: region[:end]})
	}
	return parts, nil
}
