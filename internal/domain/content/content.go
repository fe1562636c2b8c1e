package content

import (
	"fmt"
	"math"

	"github.com/aulaviva/checkout/internal/domain/errors"
)

// Type is the closed set of purchasable content variants.
type Type string

const (
	TypeCourse Type = "course"
	TypeLesson Type = "lesson"
	TypeEvent  Type = "event"
	TypeBundle Type = "bundle"
)

// ParseType converts a raw string into a Type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCourse, TypeLesson, TypeEvent, TypeBundle:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%q: %w", s, errors.ErrUnsupportedContentType)
	}
}

// Reference is an immutable snapshot of a content item taken at checkout start.
// The price is server-authoritative and must never be trusted from client state.
type Reference struct {
	Type       Type
	ID         string
	PriceCents int64
	Currency   string
	Title      string
}

// IsFree reports whether the content requires no payment.
func (r Reference) IsFree() bool {
	return r.PriceCents == 0
}

// Validate checks that the reference is usable for entitlement and checkout.
func (r Reference) Validate() error {
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	if r.ID == "" {
		return errors.NewValidationError("content_id", "cannot be empty")
	}
	if r.PriceCents < 0 {
		return errors.NewValidationError("price", "cannot be negative")
	}
	if r.PriceCents > 0 && len(r.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

// meta holds the per-type dispatch table: the identifier field used by the
// source payloads and the human-facing labels and verbs.
type meta struct {
	idField  string
	label    string
	freeVerb string
	paidVerb string
}

var typeMeta = map[Type]meta{
	TypeCourse: {idField: "courseId", label: "Curso", freeVerb: "Acessar", paidVerb: "Comprar"},
	TypeLesson: {idField: "lessonId", label: "Aula", freeVerb: "Acessar", paidVerb: "Comprar"},
	TypeEvent:  {idField: "eventId", label: "Evento", freeVerb: "Participar", paidVerb: "Inscrever"},
	TypeBundle: {idField: "id", label: "Pacote", freeVerb: "Acessar", paidVerb: "Comprar"},
}

// IDField returns the identifier field name used by raw payloads of this type.
func (t Type) IDField() string {
	return typeMeta[t].idField
}

// Label returns the human-facing label for this type.
func (t Type) Label() string {
	return typeMeta[t].label
}

// Verb returns the call-to-action verb for this type, depending on whether
// the content is free or paid.
func (t Type) Verb(free bool) string {
	m := typeMeta[t]
	if free {
		return m.freeVerb
	}
	return m.paidVerb
}

// Resolve normalizes a polymorphic raw content payload into a Reference.
// The identifier is read from the type-specific field, falling back to "id".
// Prices arrive in currency units and are stored as cents.
func Resolve(contentType string, raw map[string]any) (Reference, error) {
	t, err := ParseType(contentType)
	if err != nil {
		return Reference{}, err
	}

	id := stringField(raw, t.IDField())
	if id == "" {
		id = stringField(raw, "id")
	}
	if id == "" {
		return Reference{}, errors.NewValidationError(t.IDField(), "missing content identifier")
	}

	price, ok := numberField(raw, "price")
	if !ok {
		return Reference{}, errors.NewValidationError("price", "missing or not a number")
	}
	if price < 0 {
		return Reference{}, errors.NewValidationError("price", "cannot be negative")
	}

	currency := stringField(raw, "currency")
	if price > 0 && len(currency) != 3 {
		return Reference{}, errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}

	return Reference{
		Type:       t,
		ID:         id,
		PriceCents: int64(math.Round(price * 100)),
		Currency:   currency,
		Title:      stringField(raw, "title"),
	}, nil
}

func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func numberField(raw map[string]any, key string) (float64, bool) {
	switch v := raw[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
