// Package validation cross-checks user-supplied check parameters against the
// declarative schema carried by a check definition.
package validation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rmorley/dqcheck/internal/domain"
	"github.com/rmorley/dqcheck/internal/platform/logger"
)

// comparisonTolerance is the absolute tolerance applied to EQUALS and
// NOT_EQUALS rules, since parameter values travel as strings and are compared
// as floating point.
const comparisonTolerance = 1e-4

// ParameterValidator validates named parameter values against a definition's
// parameter schema. It has no side effects beyond returning the first
// violation encountered; unparsable comparison inputs are logged and skipped.
type ParameterValidator struct {
	log *logger.Logger
}

// NewParameterValidator wires a validator with the given logger.
func NewParameterValidator(log *logger.Logger) *ParameterValidator {
	return &ParameterValidator{log: log}
}

// Validate checks the supplied values against the declared parameters. Each
// parameter's required-check and rule-check run independently in definition
// order.
func (v *ParameterValidator) Validate(values []domain.ParameterValue, definitions []domain.ParameterDefinition) error {
	if values == nil {
		return nil
	}

	if len(definitions) == 0 && len(values) > 0 {
		return domain.NewValidationError("parameterValues", "",
			"parameter values do not match the definition's parameter schema")
	}

	byName := make(map[string]string, len(values))
	for _, value := range values {
		byName[value.Name] = value.Value
	}

	for _, definition := range definitions {
		if definition.Required {
			if value, ok := byName[definition.Name]; !ok || value == "" {
				return domain.NewValidationError(definition.Name, "",
					fmt.Sprintf("required parameter %s is not passed in parameterValues", definition.Name))
			}
		}
		if err := v.validateRule(definition, byName); err != nil {
			return err
		}
	}

	return nil
}

func (v *ParameterValidator) validateRule(definition domain.ParameterDefinition, values map[string]string) error {
	rule := definition.ValidationRule
	if rule == nil {
		return nil
	}

	value, hasValue := values[definition.Name]
	against, hasAgainst := values[rule.ParameterField]
	if !hasValue || !hasAgainst {
		// Only validate when both sides are present.
		return nil
	}

	parsed, ok := parseFloat(value)
	parsedAgainst, okAgainst := parseFloat(against)
	if !ok || !okAgainst {
		// A non-numeric pair is unvalidatable, not an error.
		v.log.Warn("cannot compare non-numeric parameter values, skipping rule",
			"parameter", definition.Name,
			"value", value,
			"against", against)
		return nil
	}

	return compareValues(definition.Name, rule.Rule, parsed, parsedAgainst)
}

func compareValues(field string, rule domain.Comparator, value, against float64) error {
	switch rule {
	case domain.ComparatorGreaterThanOrEquals:
		if value < against {
			return ruleViolation(field, value, "is not greater than", against)
		}
	case domain.ComparatorLessThanOrEquals:
		if value > against {
			return ruleViolation(field, value, "is not less than", against)
		}
	case domain.ComparatorEquals:
		if math.Abs(value-against) > comparisonTolerance {
			return ruleViolation(field, value, "is not equal to", against)
		}
	case domain.ComparatorNotEquals:
		if math.Abs(value-against) < comparisonTolerance {
			return ruleViolation(field, value, "is equal to", against)
		}
	}
	return nil
}

func ruleViolation(field string, value float64, relation string, against float64) error {
	return domain.NewValidationError(field, formatFloat(value),
		fmt.Sprintf("value %s %s %s", formatFloat(value), relation, formatFloat(against)))
}

func parseFloat(value string) (float64, bool) {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
