package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/acadamier/backend/core"
)

var (
	difficultyTag  = "difficulty"
	difficultyText = "must be one of beginner, intermediate or advanced"

	// decimal(8,2)
	maxPrice  = decimal.RequireFromString("999999.99")
	priceText = "price must be a positive amount with at most 2 decimal places, lower than 1,000,000"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(difficultyTag, difficultyValidation)
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)
}

func difficultyValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, d := range Difficulties {
		if val == d {
			return true
		}
	}
	return false
}
