package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Schema parses the raw text an agent produces into its structured output.
type Schema interface {
	// ParsePartial accepts a possibly truncated prefix. ok is false while the
	// prefix is not yet structurally usable; that is expected mid-stream.
	ParsePartial(raw string) (any, bool)
	// ParseFinal requires a complete document that passes validation.
	ParseFinal(raw string) (any, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// StructuredSchema decodes JSON into T. Normalize, when set, fills defaults
// so partial and final outputs serialize with the same shape.
type StructuredSchema[T any] struct {
	Normalize func(*T)
}

func (s StructuredSchema[T]) ParsePartial(raw string) (any, bool) {
	repaired, ok := repairJSON(raw, s.openers())
	if !ok {
		return nil, false
	}
	var out T
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, false
	}
	if s.Normalize != nil {
		s.Normalize(&out)
	}
	return &out, true
}

func (s StructuredSchema[T]) ParseFinal(raw string) (any, error) {
	doc := extractDocument(stripFences(raw), s.openers())
	if doc == "" {
		return nil, ErrEmptyResponse
	}
	var out T
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputFormat, err)
	}
	if s.Normalize != nil {
		s.Normalize(&out)
	}
	if err := validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputFormat, err)
	}
	return &out, nil
}

// openers lists the characters a JSON encoding of T starts with. Prose
// before an object may then contain brackets.
func (StructuredSchema[T]) openers() string {
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	switch typ.Kind() {
	case reflect.Struct, reflect.Map:
		return "{"
	case reflect.Slice, reflect.Array:
		return "["
	}
	return "{["
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractDocument drops prose around the outermost JSON value opened by
// one of openers.
func extractDocument(s, openers string) string {
	closers := strings.NewReplacer("{", "}", "[", "]").Replace(openers)
	i := strings.IndexAny(s, openers)
	j := strings.LastIndexAny(s, closers)
	if i < 0 || j < i {
		return s
	}
	return s[i : j+1]
}
