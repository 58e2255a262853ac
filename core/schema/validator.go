package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/flatten"
)

// Validator enforces a collection's field constraints against a flattened
// document under one of the four enforcement modes. All failures are
// collected before the validator raises.
type Validator struct {
	mode        core.SchemaEnforcementMode
	constraints []core.FieldConstraint
	failures    []core.ValidationFailure
}

// NewValidator creates a validator for one collection's configuration.
func NewValidator(mode core.SchemaEnforcementMode, constraints []core.FieldConstraint) *Validator {
	return &Validator{mode: mode, constraints: constraints}
}

// Validate checks the document's leaves against every applicable
// constraint. It returns nil on success or a *core.ValidationError
// carrying every failure found.
func (v *Validator) Validate(leaves []flatten.LeafRecord) error {
	if v.mode == core.EnforcementNone {
		return nil
	}
	v.failures = v.failures[:0]

	byPath := make(map[string][]flatten.LeafRecord, len(leaves))
	pathOrder := make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		if _, seen := byPath[leaf.Path]; !seen {
			pathOrder = append(pathOrder, leaf.Path)
		}
		byPath[leaf.Path] = append(byPath[leaf.Path], leaf)
	}

	covered := make(map[string]bool, len(v.constraints))
	for _, fc := range v.constraints {
		covered[fc.FieldPath] = true
		present, exists := byPath[fc.FieldPath]
		if !exists {
			// Partial mode only evaluates constraints whose path is in the
			// document; required is inert for absent fields.
			if v.mode == core.EnforcementPartial {
				continue
			}
			if fc.Required {
				v.addFailure(core.CodeMissingRequiredField, fc.FieldPath,
					fmt.Sprintf("required field '%s' is missing", fc.FieldPath))
			}
			continue
		}
		v.checkPresent(fc, present)
	}

	if v.mode == core.EnforcementStrict {
		for _, path := range pathOrder {
			if !covered[path] {
				v.addFailure(core.CodeUnexpectedField, path,
					fmt.Sprintf("field '%s' is not covered by a constraint", path))
			}
		}
	}

	if len(v.failures) > 0 {
		return &core.ValidationError{Errors: append([]core.ValidationFailure(nil), v.failures...)}
	}
	return nil
}

// checkPresent runs every per-constraint check, in table order, against the
// leaves present at the constraint's path.
func (v *Validator) checkPresent(fc core.FieldConstraint, leaves []flatten.LeafRecord) {
	arrayConstraint := fc.DataType != nil && *fc.DataType == core.DataTypeArray

	for _, leaf := range leaves {
		if leaf.IsNull() && !fc.Nullable {
			v.addFailure(core.CodeNullNotAllowed, fc.FieldPath,
				fmt.Sprintf("field '%s' must not be null", fc.FieldPath))
			break
		}
	}

	// A scalar leaf is indistinguishable from a one-element array after
	// flattening, so an array constraint skips the scalar type check and
	// relies on ArrayElementType for elements.
	if fc.DataType != nil && !arrayConstraint {
		for _, leaf := range leaves {
			if leaf.IsNull() {
				continue
			}
			if !typeMatches(leaf.Type, *fc.DataType) {
				v.addFailure(core.CodeTypeMismatch, fc.FieldPath,
					fmt.Sprintf("field '%s' expected %s, got %s", fc.FieldPath, *fc.DataType, leaf.Type))
				break
			}
		}
	}

	if fc.RegexPattern != nil {
		v.checkPattern(fc, leaves)
	}

	if fc.MinValue != nil || fc.MaxValue != nil {
		v.checkRange(fc, leaves)
	}

	if fc.MinLength != nil || fc.MaxLength != nil {
		v.checkLength(fc, leaves, arrayConstraint)
	}

	if len(fc.AllowedValues) > 0 {
		v.checkAllowedValues(fc, leaves)
	}

	if fc.ArrayElementType != nil {
		for _, leaf := range leaves {
			if leaf.IsNull() {
				continue
			}
			if !typeMatches(leaf.Type, *fc.ArrayElementType) {
				v.addFailure(core.CodeInvalidArrayElement, fc.FieldPath,
					fmt.Sprintf("array '%s' expected elements of type %s, got %s",
						fc.FieldPath, *fc.ArrayElementType, leaf.Type))
				break
			}
		}
	}
}

// checkPattern requires a full match of the pattern against every string
// leaf at the path.
func (v *Validator) checkPattern(fc core.FieldConstraint, leaves []flatten.LeafRecord) {
	re, err := regexp.Compile("^(?:" + *fc.RegexPattern + ")$")
	if err != nil {
		v.addFailure(core.CodePatternMismatch, fc.FieldPath,
			fmt.Sprintf("invalid pattern for field '%s': %v", fc.FieldPath, err))
		return
	}
	for _, leaf := range leaves {
		if leaf.IsNull() || leaf.Type != core.DataTypeString {
			continue
		}
		if !re.MatchString(*leaf.Value) {
			v.addFailure(core.CodePatternMismatch, fc.FieldPath,
				fmt.Sprintf("value '%s' does not match pattern for field '%s'", *leaf.Value, fc.FieldPath))
			break
		}
	}
}

// checkRange applies numeric bounds to every numeric leaf at the path.
func (v *Validator) checkRange(fc core.FieldConstraint, leaves []flatten.LeafRecord) {
	for _, leaf := range leaves {
		if leaf.IsNull() || (leaf.Type != core.DataTypeInteger && leaf.Type != core.DataTypeNumber) {
			continue
		}
		f, err := strconv.ParseFloat(*leaf.Value, 64)
		if err != nil {
			continue
		}
		if fc.MinValue != nil && f < *fc.MinValue {
			v.addFailure(core.CodeValueTooSmall, fc.FieldPath,
				fmt.Sprintf("value %s of field '%s' is below minimum %v", *leaf.Value, fc.FieldPath, *fc.MinValue))
		}
		if fc.MaxValue != nil && f > *fc.MaxValue {
			v.addFailure(core.CodeValueTooLarge, fc.FieldPath,
				fmt.Sprintf("value %s of field '%s' is above maximum %v", *leaf.Value, fc.FieldPath, *fc.MaxValue))
		}
	}
}

// checkLength applies Min/MaxLength: element count for array constraints,
// rune length for string leaves otherwise.
func (v *Validator) checkLength(fc core.FieldConstraint, leaves []flatten.LeafRecord, arrayConstraint bool) {
	if arrayConstraint {
		n := len(leaves)
		if fc.MinLength != nil && n < *fc.MinLength {
			v.addFailure(core.CodeArrayTooShort, fc.FieldPath,
				fmt.Sprintf("array '%s' has %d elements, minimum is %d", fc.FieldPath, n, *fc.MinLength))
		}
		if fc.MaxLength != nil && n > *fc.MaxLength {
			v.addFailure(core.CodeArrayTooLong, fc.FieldPath,
				fmt.Sprintf("array '%s' has %d elements, maximum is %d", fc.FieldPath, n, *fc.MaxLength))
		}
		return
	}

	for _, leaf := range leaves {
		if leaf.IsNull() || leaf.Type != core.DataTypeString {
			continue
		}
		n := utf8.RuneCountInString(*leaf.Value)
		if fc.MinLength != nil && n < *fc.MinLength {
			v.addFailure(core.CodeStringTooShort, fc.FieldPath,
				fmt.Sprintf("value of field '%s' has length %d, minimum is %d", fc.FieldPath, n, *fc.MinLength))
		}
		if fc.MaxLength != nil && n > *fc.MaxLength {
			v.addFailure(core.CodeStringTooLong, fc.FieldPath,
				fmt.Sprintf("value of field '%s' has length %d, maximum is %d", fc.FieldPath, n, *fc.MaxLength))
		}
	}
}

// checkAllowedValues requires every string leaf to be a member of the
// allowed set.
func (v *Validator) checkAllowedValues(fc core.FieldConstraint, leaves []flatten.LeafRecord) {
	allowed := make(map[string]struct{}, len(fc.AllowedValues))
	for _, val := range fc.AllowedValues {
		allowed[val] = struct{}{}
	}
	for _, leaf := range leaves {
		if leaf.IsNull() || leaf.Type != core.DataTypeString {
			continue
		}
		if _, ok := allowed[*leaf.Value]; !ok {
			v.addFailure(core.CodeValueNotAllowed, fc.FieldPath,
				fmt.Sprintf("value '%s' is not allowed for field '%s'", *leaf.Value, fc.FieldPath))
			break
		}
	}
}

// typeMatches compares a leaf type to a constraint type, with number
// accepting integer. Boolean never accepts the strings "true"/"false";
// integer never accepts a fractional literal (the flattener types by the
// literal, not the parsed value).
func typeMatches(leafType, expected core.DataType) bool {
	if leafType == expected {
		return true
	}
	return expected == core.DataTypeNumber && leafType == core.DataTypeInteger
}

func (v *Validator) addFailure(code core.ValidationErrorCode, path, message string) {
	v.failures = append(v.failures, core.ValidationFailure{
		ErrorCode: code,
		FieldPath: path,
		Message:   message,
	})
}
