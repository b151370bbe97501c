package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// registerCustomTranslations registers translations for custom validation rules.
func (v *Validator) registerCustomTranslations() {
	if trans := v.GetTranslator(LangEN); trans != nil {
		for tag, message := range map[string]string{
			TagNoWhitespace: "{0} must not contain whitespace characters",
			TagTrimmed:      "{0} must not have leading or trailing spaces",
			TagNotBlank:     "{0} must not be blank",
			TagDocumentID:   "{0} must be at most 128 printable characters without whitespace or '/'",
		} {
			registerTranslation(v.validate, trans, tag, message)
		}
	}

	if trans := v.GetTranslator(LangZH); trans != nil {
		for tag, message := range map[string]string{
			TagNoWhitespace: "{0}不能包含空白字符",
			TagTrimmed:      "{0}不能有前导或尾随空格",
			TagNotBlank:     "{0}不能为空",
			TagDocumentID:   "{0}必须是不超过128个字符的可打印字符串，且不含空白字符或'/'",
		} {
			registerTranslation(v.validate, trans, tag, message)
		}
	}
}

// registerTranslation registers a single translation.
func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}

// RegisterTranslation registers a single translation override.
func (v *Validator) RegisterTranslation(lang, tag, message string) {
	trans := v.GetTranslator(lang)
	if trans == nil {
		return
	}
	registerTranslation(v.validate, trans, tag, message)
}
