package dashboard

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/chxlky/trello-citydash/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCustomFieldValueListOption(t *testing.T) {
	field := &models.CustomField{ID: "f1", Name: "Ciudad", Type: "list"}
	opt := models.CustomFieldOption{ID: "opt-madrid"}
	opt.Value.Text = ptr("Madrid")
	field.Options = []models.CustomFieldOption{opt}

	got := DecodeCustomFieldValue(field, models.CustomFieldItem{IDCustomField: "f1", IDValue: ptr("opt-madrid")})
	assert.Equal(t, StringScalar("Madrid"), got)

	got = DecodeCustomFieldValue(field, models.CustomFieldItem{IDCustomField: "f1", IDValue: ptr("opt-unknown")})
	assert.Equal(t, StringScalar("opt-unknown"), got)

	got = DecodeCustomFieldValue(field, models.CustomFieldItem{IDCustomField: "f1"})
	assert.True(t, got.IsNull())
}

func TestDecodeCustomFieldValueBag(t *testing.T) {
	field := &models.CustomField{ID: "f1", Type: "text"}
	tests := []struct {
		name  string
		value *models.CustomFieldValue
		want  Scalar
	}{
		{"text", &models.CustomFieldValue{Text: ptr("hola")}, StringScalar("hola")},
		{"text wins over number", &models.CustomFieldValue{Text: ptr("x"), Number: ptr("2")}, StringScalar("x")},
		{"number", &models.CustomFieldValue{Number: ptr("12.5")}, NumberScalar(12.5)},
		{"bad number stays raw", &models.CustomFieldValue{Number: ptr("12,5")}, StringScalar("12,5")},
		{"NaN stays raw", &models.CustomFieldValue{Number: ptr("NaN")}, StringScalar("NaN")},
		{"Infinity stays raw", &models.CustomFieldValue{Number: ptr("Infinity")}, StringScalar("Infinity")},
		{"negative Inf stays raw", &models.CustomFieldValue{Number: ptr("-Inf")}, StringScalar("-Inf")},
		{"date", &models.CustomFieldValue{Date: ptr("2024-01-02T00:00:00.000Z")}, StringScalar("2024-01-02T00:00:00.000Z")},
		{"checked", &models.CustomFieldValue{Checked: ptr("true")}, BoolScalar(true)},
		{"unchecked", &models.CustomFieldValue{Checked: ptr("false")}, BoolScalar(false)},
		{"empty bag", &models.CustomFieldValue{}, Scalar{}},
		{"missing bag", nil, Scalar{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeCustomFieldValue(field, models.CustomFieldItem{Value: tt.value}))
		})
	}
}

func TestNormalizeCustomFieldsUnknownDefinition(t *testing.T) {
	values := NormalizeCustomFields([]models.CustomFieldItem{
		{IDCustomField: "ghost", Value: &models.CustomFieldValue{Text: ptr("x")}},
	}, map[string]*models.CustomField{})
	require.Len(t, values, 1)
	assert.Equal(t, "ghost", values[0].FieldName)
	assert.Equal(t, "unknown", values[0].FieldType)
	assert.JSONEq(t, `{"text":"x"}`, string(values[0].RawValue))
}

func TestNonFiniteNumberScalarMarshals(t *testing.T) {
	b, err := json.Marshal(NumberScalar(math.Inf(1)))
	require.NoError(t, err)
	assert.JSONEq(t, `"+Inf"`, string(b))
}

func TestScalarJSON(t *testing.T) {
	for _, s := range []Scalar{{}, StringScalar("a"), NumberScalar(3.5), BoolScalar(true)} {
		b, err := json.Marshal(s)
		require.NoError(t, err)
		var back Scalar
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, s, back)
	}
}

func TestInferCreatedAt(t *testing.T) {
	got := InferCreatedAt("5f3a1b2c0000000000000000")
	require.NotNil(t, got)
	assert.Equal(t, time.Unix(0x5f3a1b2c, 0).UTC(), *got)

	assert.Nil(t, InferCreatedAt("zzzz1b2c0000"))
	assert.Nil(t, InferCreatedAt("abc"))
}

func TestPickCoverImageURL(t *testing.T) {
	card := models.Card{
		IDAttachmentCover: ptr("a2"),
		Attachments: []models.Attachment{
			{ID: "a1", Name: "brief.pdf", URL: "https://x/brief.pdf"},
			{ID: "a2", Name: "cover", URL: "https://x/cover", MimeType: ptr("image/png")},
			{ID: "a3", Name: "other.jpg", URL: "https://x/other.jpg"},
		},
	}
	assert.Equal(t, "https://x/cover", *PickCoverImageURL(card))

	card.IDAttachmentCover = ptr("a1")
	assert.Equal(t, "https://x/cover", *PickCoverImageURL(card), "non-image cover falls back to first image")

	card.IDAttachmentCover = nil
	card.Attachments = []models.Attachment{{ID: "a1", Name: "x", URL: "https://x/photo.JPEG?v=2"}}
	assert.Equal(t, "https://x/photo.JPEG?v=2", *PickCoverImageURL(card))

	card.Attachments = []models.Attachment{{ID: "a1", Name: "notes.txt", URL: "https://x/notes.txt"}}
	assert.Nil(t, PickCoverImageURL(card))
}

func TestExtractDesigners(t *testing.T) {
	members := []models.Member{{ID: "m1", FullName: "Ana Ruiz", Username: "anaruiz"}}
	fields := []CustomFieldValue{
		{FieldID: "f1", FieldName: "Disenador", Value: StringScalar("Luis Gomez; Marta Diaz")},
	}
	assert.Equal(t, []string{"Ana Ruiz", "Luis Gomez", "Marta Diaz"}, ExtractDesigners(members, fields, DefaultVocabulary().Designer))
}

func TestExtractDesignersDedupAndFallbacks(t *testing.T) {
	members := []models.Member{
		{ID: "m1", FullName: "", Username: "luisg"},
		{ID: "m2", FullName: "Ana Ruiz"},
	}
	fields := []CustomFieldValue{
		{FieldName: "DISEÑADOR principal", Value: StringScalar("Ana Ruiz | luisg / ,Pepe")},
		{FieldName: "Autor", Value: NumberScalar(7)},
		{FieldName: "Ciudad", Value: StringScalar("Madrid")},
	}
	assert.Equal(t, []string{"luisg", "Ana Ruiz", "Pepe", "7"}, ExtractDesigners(members, fields, DefaultVocabulary().Designer))
}

func TestFoldToken(t *testing.T) {
	assert.Equal(t, "disenador", foldToken("  Diseñador "))
	assert.Equal(t, "sin definir", foldToken("SIN DEFINÍR"))
}
