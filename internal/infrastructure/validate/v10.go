package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// PlaygroundV10 Validator implementation using go-playground
type PlaygroundV10 struct {
	core  *validator.Validate
	trans ut.Translator
}

// NewValidator create a new Validator, messages are translated into locale ("en" or "zh")
func NewValidator(locale ...string) *PlaygroundV10 {
	en := en.New()
	zh := zh.New()
	uni := ut.New(en, en, zh)

	validate := validator.New()
	enTrans, _ := uni.GetTranslator("en")
	zhTrans, _ := uni.GetTranslator("zh")
	en_translations.RegisterDefaultTranslations(validate, enTrans)
	zh_translations.RegisterDefaultTranslations(validate, zhTrans)

	trans := enTrans // en translator as default
	if len(locale) > 0 && locale[0] == "zh" {
		trans = zhTrans
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			name = strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	return &PlaygroundV10{
		core:  validate,
		trans: trans,
	}
}

// Struct validate struct
func (v PlaygroundV10) Struct(s interface{}) []*FieldError {
	var result []*FieldError
	validate := v.core
	if err := validate.Struct(s); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return []*FieldError{NewFieldError("", err.Error())}
		}
		for _, item := range verrs {
			result = append(result, NewFieldError(item.Field(), item.Translate(v.trans)))
		}
		return result
	}
	return nil
}

// Identifiers check that no identifier is blank
func (v PlaygroundV10) Identifiers(ids ...Identifier) []*FieldError {
	var result []*FieldError
	for _, id := range ids {
		if err := v.core.Var(strings.TrimSpace(id.Value), "required"); err != nil {
			result = append(result, NewFieldError(id.Name, fmt.Sprintf("%s is required", id.Name)))
		}
	}
	return result
}
