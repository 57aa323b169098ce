package utils

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

type CustomValidator struct {
	Validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	Validator := &CustomValidator{validator.New()}
	Validator.ValidatorRegistery()
	return Validator
}

func (c *CustomValidator) ValidatorRegistery() {
	c.Validator.RegisterValidation("isphone", c.IsValidPhone)
}

// IsValidPhone accepts anything canonicalizable to E.164: an optional
// leading + followed by 10 to 15 digits.
func (c *CustomValidator) IsValidPhone(fl validator.FieldLevel) bool {
	phoneNumber := strings.TrimSpace(fl.Field().String())
	phoneNumber = strings.TrimPrefix(phoneNumber, "+")
	if len(phoneNumber) < 10 || len(phoneNumber) > 15 {
		return false
	}
	for _, char := range phoneNumber {
		if !unicode.IsDigit(char) {
			return false
		}
	}
	return true
}
