package schema

import (
	"testing"

	"github.com/jchristn/lattice/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string          { return &s }
func intPtr(i int) *int                { return &i }
func floatPtr(f float64) *float64      { return &f }
func dtPtr(d core.DataType) *core.DataType { return &d }

func validate(t *testing.T, mode core.SchemaEnforcementMode, constraints []core.FieldConstraint, body string) *core.ValidationError {
	t.Helper()
	v := NewValidator(mode, constraints)
	err := v.Validate(mustFlatten(t, body))
	if err == nil {
		return nil
	}
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "expected *core.ValidationError, got %T", err)
	return verr
}

func codes(verr *core.ValidationError) []core.ValidationErrorCode {
	if verr == nil {
		return nil
	}
	out := make([]core.ValidationErrorCode, len(verr.Errors))
	for i, f := range verr.Errors {
		out[i] = f.ErrorCode
	}
	return out
}

func TestValidator_NoneModeSkipsEverything(t *testing.T) {
	constraints := []core.FieldConstraint{{FieldPath: "Name", Required: true}}
	assert.Nil(t, validate(t, core.EnforcementNone, constraints, `{"Other":"x"}`))
}

func TestValidator_StrictRejectsUncoveredFields(t *testing.T) {
	constraints := []core.FieldConstraint{
		{FieldPath: "Name", DataType: dtPtr(core.DataTypeString), Required: true},
	}
	verr := validate(t, core.EnforcementStrict, constraints, `{"Name":"Joel","Extra":"x"}`)
	require.NotNil(t, verr)
	assert.Contains(t, codes(verr), core.CodeUnexpectedField)
}

func TestValidator_FlexibleAllowsExtras(t *testing.T) {
	constraints := []core.FieldConstraint{
		{FieldPath: "Name", DataType: dtPtr(core.DataTypeString), Required: true},
	}
	assert.Nil(t, validate(t, core.EnforcementFlexible, constraints, `{"Name":"Joel","Extra":"x"}`))
}

func TestValidator_MissingRequiredField(t *testing.T) {
	constraints := []core.FieldConstraint{{FieldPath: "Name", Required: true}}
	verr := validate(t, core.EnforcementFlexible, constraints, `{"Other":"x"}`)
	require.NotNil(t, verr)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeMissingRequiredField}, codes(verr))
}

func TestValidator_PartialIgnoresAbsentRequired(t *testing.T) {
	constraints := []core.FieldConstraint{
		{FieldPath: "Name", Required: true},
		{FieldPath: "Age", DataType: dtPtr(core.DataTypeInteger)},
	}
	// Name is absent but required is inert in Partial mode; Age is present
	// and still checked.
	assert.Nil(t, validate(t, core.EnforcementPartial, constraints, `{"Age":30}`))

	verr := validate(t, core.EnforcementPartial, constraints, `{"Age":"old"}`)
	require.NotNil(t, verr)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeTypeMismatch}, codes(verr))
}

func TestValidator_NullHandling(t *testing.T) {
	notNullable := []core.FieldConstraint{{FieldPath: "A", Nullable: false}}
	verr := validate(t, core.EnforcementFlexible, notNullable, `{"A":null}`)
	require.NotNil(t, verr)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeNullNotAllowed}, codes(verr))

	nullable := []core.FieldConstraint{{FieldPath: "A", Nullable: true, DataType: dtPtr(core.DataTypeString)}}
	assert.Nil(t, validate(t, core.EnforcementFlexible, nullable, `{"A":null}`))
}

func TestValidator_TypeChecks(t *testing.T) {
	tests := []struct {
		name string
		fc   core.FieldConstraint
		body string
		want []core.ValidationErrorCode
	}{
		{"numberAcceptsInteger", core.FieldConstraint{FieldPath: "N", DataType: dtPtr(core.DataTypeNumber)}, `{"N":42}`, nil},
		{"integerRejectsFractional", core.FieldConstraint{FieldPath: "N", DataType: dtPtr(core.DataTypeInteger)}, `{"N":2.5}`, []core.ValidationErrorCode{core.CodeTypeMismatch}},
		{"integerRejectsWholeFractionalLiteral", core.FieldConstraint{FieldPath: "N", DataType: dtPtr(core.DataTypeInteger)}, `{"N":2.0}`, []core.ValidationErrorCode{core.CodeTypeMismatch}},
		{"booleanRejectsStringTrue", core.FieldConstraint{FieldPath: "B", DataType: dtPtr(core.DataTypeBoolean)}, `{"B":"true"}`, []core.ValidationErrorCode{core.CodeTypeMismatch}},
		{"booleanAcceptsBool", core.FieldConstraint{FieldPath: "B", DataType: dtPtr(core.DataTypeBoolean)}, `{"B":true}`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verr := validate(t, core.EnforcementFlexible, []core.FieldConstraint{tc.fc}, tc.body)
			assert.Equal(t, tc.want, codes(verr))
		})
	}
}

func TestValidator_Pattern(t *testing.T) {
	fc := core.FieldConstraint{FieldPath: "Code", RegexPattern: strPtr(`[A-Z]{3}`)}
	assert.Nil(t, validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Code":"ABC"}`))

	// Full match is required, not a substring match.
	verr := validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Code":"xABCx"}`)
	require.NotNil(t, verr)
	assert.Equal(t, []core.ValidationErrorCode{core.CodePatternMismatch}, codes(verr))
}

func TestValidator_NumericRange(t *testing.T) {
	fc := core.FieldConstraint{FieldPath: "Age", MinValue: floatPtr(18), MaxValue: floatPtr(65)}
	assert.Nil(t, validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Age":30}`))

	verr := validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Age":12}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeValueTooSmall}, codes(verr))

	verr = validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Age":70}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeValueTooLarge}, codes(verr))
}

func TestValidator_StringLength(t *testing.T) {
	fc := core.FieldConstraint{FieldPath: "Name", MinLength: intPtr(2), MaxLength: intPtr(5)}
	assert.Nil(t, validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Name":"Joel"}`))

	verr := validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Name":"J"}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeStringTooShort}, codes(verr))

	verr = validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Name":"Bartholomew"}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeStringTooLong}, codes(verr))
}

func TestValidator_ArrayLengthAndElementType(t *testing.T) {
	fc := core.FieldConstraint{
		FieldPath:        "Tags",
		DataType:         dtPtr(core.DataTypeArray),
		MinLength:        intPtr(2),
		MaxLength:        intPtr(3),
		ArrayElementType: dtPtr(core.DataTypeString),
	}
	assert.Nil(t, validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Tags":["a","b"]}`))

	verr := validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Tags":["a"]}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeArrayTooShort}, codes(verr))

	verr = validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Tags":["a","b","c","d"]}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeArrayTooLong}, codes(verr))

	verr = validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Tags":["a",2]}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeInvalidArrayElement}, codes(verr))
}

func TestValidator_AllowedValues(t *testing.T) {
	fc := core.FieldConstraint{FieldPath: "Color", AllowedValues: []string{"red", "green"}}
	assert.Nil(t, validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Color":"red"}`))

	verr := validate(t, core.EnforcementFlexible, []core.FieldConstraint{fc}, `{"Color":"mauve"}`)
	assert.Equal(t, []core.ValidationErrorCode{core.CodeValueNotAllowed}, codes(verr))
}

func TestValidator_AccumulatesAllFailures(t *testing.T) {
	constraints := []core.FieldConstraint{
		{FieldPath: "Name", Required: true},
		{FieldPath: "Age", DataType: dtPtr(core.DataTypeInteger)},
	}
	verr := validate(t, core.EnforcementStrict, constraints, `{"Age":"old","Extra":1}`)
	require.NotNil(t, verr)
	got := codes(verr)
	assert.Contains(t, got, core.CodeMissingRequiredField)
	assert.Contains(t, got, core.CodeTypeMismatch)
	assert.Contains(t, got, core.CodeUnexpectedField)
	assert.Len(t, got, 3)
}
