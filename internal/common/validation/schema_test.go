package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDraftValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	v, err := NewDraftValidator()
	require.NoError(t, err)
	return v
}

func TestDraftValidator_AcceptsEngineSnapshots(t *testing.T) {
	v := createTestDraftValidator(t)

	docs := []string{
		`{}`,
		`{"role":"founder","founder":{"fullName":"Ada","skills":["design"]},"venture":{"track":"startup","startup":{},"research":{},"residence":{}},"coFounders":[],"uploads":{},"declarations":{}}`,
		`{"role":"innovator","innovator":{"leadName":"Lin"},"coFounders":null,"uploads":null,"declarations":null}`,
		`{"coFounders":[{"id":"c1","name":"Grace","fullTime":true}],"uploads":{"pitchDeck":"deck.pdf"},"declarations":{"isAccurate":true}}`,
	}
	for _, doc := range docs {
		res, err := v.Validate([]byte(doc))
		require.NoError(t, err)
		assert.True(t, res.Valid, "%s: %v", doc, res.GetErrorMessages())
	}
}

func TestDraftValidator_RejectsMalformedSnapshots(t *testing.T) {
	v := createTestDraftValidator(t)

	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"unknown role", `{"role":"mentor"}`, "role"},
		{"unknown track", `{"venture":{"track":"garage"}}`, "venture.track"},
		{"declaration not bool", `{"declarations":{"isAccurate":"yes"}}`, "declarations.isAccurate"},
		{"upload not string", `{"uploads":{"pitchDeck":3}}`, "uploads.pitchDeck"},
		{"co-founder without id", `{"coFounders":[{"name":"x"}]}`, "coFounders.0"},
		{"unknown domain", `{"mentor":{}}`, "(root)"},
		{"founder not object", `{"founder":"Ada"}`, "founder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate([]byte(tt.doc))
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.NotEmpty(t, res.GetErrorsForField(tt.field), "%v", res.GetErrorMessages())
		})
	}
}

func TestDraftValidator_NotJSON(t *testing.T) {
	v := createTestDraftValidator(t)
	_, err := v.Validate([]byte(`{"role":`))
	assert.Error(t, err)
}

func TestSchemaValidator_ValidateValue(t *testing.T) {
	v, err := NewSchemaValidator([]byte(`{"type":"object","required":["id"]}`))
	require.NoError(t, err)

	res, err := v.ValidateValue(map[string]interface{}{"id": "x"})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.ValidateValue(map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "required", res.Errors[0].Code)
	assert.True(t, res.HasErrors("(root)"))
}

func TestNewSchemaValidator_InvalidSchema(t *testing.T) {
	_, err := NewSchemaValidator([]byte(`{"type": 12}`))
	assert.Error(t, err)
}

func TestDraftSchema_ReturnsCopy(t *testing.T) {
	a := DraftSchema()
	a[0] = 'X'
	assert.Equal(t, byte('{'), DraftSchema()[0])
}
