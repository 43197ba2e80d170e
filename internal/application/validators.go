package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-qra/infrastructure/units"
)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ValidateUnitParameters checks a unit's parameters against the schema of
// its type. Unknown fields are rejected so typos do not silently fall
// back to defaults.
func ValidateUnitParameters(unitType string, params yaml.Node) error {
	if err := units.ValidateParameters(unitType, params); err != nil {
		return fmt.Errorf("%s: %w", unitType, err)
	}
	return nil
}

// registerCustomValidators adds the tags GraphConfig relies on beyond the
// validator built-ins.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z with non-negative integer components.
func validateSemver(fl validator.FieldLevel) bool {
	return semverPattern.MatchString(fl.Field().String())
}
