package scorm

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/acadamier/backend/core"
)

var (
	versionTag  = "scorm_version"
	versionText = "must be one of 1.2 or 2004"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(versionTag, versionValidation)
	core.RegisterCustomTranslation(validate, translator, versionTag, versionText)
}

func versionValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, v := range Versions {
		if val == v {
			return true
		}
	}
	return false
}
