// Package validator wraps go-playground/validator with English and Chinese
// translations and the custom rules used by docqa request types.
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
	zhtranslations "github.com/go-playground/validator/v10/translations/zh"
)

// Supported languages.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator validates structs and renders translated field errors.
type Validator struct {
	validate *validator.Validate
	uni      *ut.UniversalTranslator
	trans    map[string]ut.Translator
}

var (
	globalMu sync.RWMutex
	global   = New()
)

// Global returns the process-wide validator.
func Global() *Validator {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetGlobal replaces the process-wide validator.
func SetGlobal(v *Validator) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = v
}

// New creates a validator with translations and custom rules registered.
func New() *Validator {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		uni:      uni,
		trans:    make(map[string]ut.Translator, 2),
	}
	v.validate.RegisterTagNameFunc(fieldName)

	if t, ok := uni.GetTranslator(LangEN); ok {
		_ = entranslations.RegisterDefaultTranslations(v.validate, t)
		v.trans[LangEN] = t
	}
	if t, ok := uni.GetTranslator(LangZH); ok {
		_ = zhtranslations.RegisterDefaultTranslations(v.validate, t)
		v.trans[LangZH] = t
	}

	v.registerCustomRules()
	v.registerCustomTranslations()
	return v
}

// fieldName reports json or form names so messages match the wire format.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Engine returns the underlying validator.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// GetTranslator returns the translator for lang, or nil.
func (v *Validator) GetTranslator(lang string) ut.Translator {
	return v.trans[normalizeLang(lang)]
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if strings.HasPrefix(lang, "zh") {
		return LangZH
	}
	return LangEN
}

// Validate validates a struct. The error, if any, is *ValidationErrors in English.
func (v *Validator) Validate(obj any) error {
	if errs := v.ValidateWithLang(obj, LangEN); errs != nil {
		return errs
	}
	return nil
}

// ValidateWithLang validates a struct and translates messages to lang.
func (v *Validator) ValidateWithLang(obj any, lang string) *ValidationErrors {
	return v.translate(v.validate.Struct(obj), lang)
}

// ValidateVar validates a single value against tag.
func (v *Validator) ValidateVar(field any, tag string) error {
	if errs := v.translate(v.validate.Var(field, tag), LangEN); errs != nil {
		return errs
	}
	return nil
}

func (v *Validator) translate(err error, lang string) *ValidationErrors {
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewValidationErrors(NewValidationError("", "", err.Error()))
	}

	trans := v.GetTranslator(lang)
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		msg := fe.Error()
		if trans != nil {
			msg = fe.Translate(trans)
		}
		out.Errors = append(out.Errors, FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: msg})
	}
	return out
}

// RegisterValidation registers a custom rule.
func (v *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return v.validate.RegisterValidation(tag, fn)
}
