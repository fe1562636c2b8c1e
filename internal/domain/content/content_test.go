package content

import (
	"errors"
	"testing"

	domainErrors "github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType_KnownVariants(t *testing.T) {
	for _, s := range []string{"course", "lesson", "event", "bundle"} {
		got, err := ParseType(s)
		require.NoError(t, err)
		assert.Equal(t, Type(s), got)
	}
}

func TestParseType_Unknown(t *testing.T) {
	_, err := ParseType("webinar")
	assert.True(t, errors.Is(err, domainErrors.ErrUnsupportedContentType))
}

func TestResolve_CourseUsesCourseIdField(t *testing.T) {
	ref, err := Resolve("course", map[string]any{
		"courseId": "c-42",
		"price":    500.0,
		"currency": "MZN",
		"title":    "Marketing Digital",
	})
	require.NoError(t, err)
	assert.Equal(t, TypeCourse, ref.Type)
	assert.Equal(t, "c-42", ref.ID)
	assert.Equal(t, int64(50000), ref.PriceCents)
	assert.Equal(t, "MZN", ref.Currency)
	assert.False(t, ref.IsFree())
}

func TestResolve_FallsBackToGenericID(t *testing.T) {
	ref, err := Resolve("lesson", map[string]any{
		"id":    "l-7",
		"price": 0.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "l-7", ref.ID)
	assert.True(t, ref.IsFree())
}

func TestResolve_MissingIdentifier(t *testing.T) {
	_, err := Resolve("event", map[string]any{"price": 10.0, "currency": "MZN"})
	var ve *domainErrors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "eventId", ve.Field)
}

func TestResolve_MissingPrice(t *testing.T) {
	_, err := Resolve("course", map[string]any{"courseId": "c-1", "currency": "MZN"})
	var ve *domainErrors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "price", ve.Field)
}

func TestResolve_PaidRequiresCurrency(t *testing.T) {
	_, err := Resolve("course", map[string]any{"courseId": "c-1", "price": 12.5})
	assert.Error(t, err)
}

func TestResolve_UnsupportedType(t *testing.T) {
	_, err := Resolve("podcast", map[string]any{"id": "p-1", "price": 0.0})
	assert.True(t, errors.Is(err, domainErrors.ErrUnsupportedContentType))
}

func TestVerbs(t *testing.T) {
	assert.Equal(t, "Acessar", TypeCourse.Verb(true))
	assert.Equal(t, "Comprar", TypeCourse.Verb(false))
	assert.Equal(t, "Participar", TypeEvent.Verb(true))
	assert.Equal(t, "Inscrever", TypeEvent.Verb(false))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Curso", TypeCourse.Label())
	assert.Equal(t, "Aula", TypeLesson.Label())
	assert.Equal(t, "Evento", TypeEvent.Label())
	assert.Equal(t, "Pacote", TypeBundle.Label())
}

func TestReferenceValidate(t *testing.T) {
	ref := Reference{Type: TypeCourse, ID: "c-1", PriceCents: 50000, Currency: "MZN"}
	assert.NoError(t, ref.Validate())

	assert.Error(t, Reference{Type: "x", ID: "c-1"}.Validate())
	assert.Error(t, Reference{Type: TypeCourse, ID: ""}.Validate())
	assert.Error(t, Reference{Type: TypeCourse, ID: "c-1", PriceCents: -1}.Validate())
	assert.Error(t, Reference{Type: TypeCourse, ID: "c-1", PriceCents: 100, Currency: "MZ"}.Validate())
}
