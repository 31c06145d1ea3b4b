// Package form はサインアップ・ユーザー編集・ログインの入力値を検証する。
//
// 検証はgo-playground/validatorのタグで宣言し、失敗したフィールドごとに画面表示用のメッセージを返す。
// 検証に失敗した入力はリモートAPIに送信しない。
package form

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// emailPattern はブラウザ版と同じ緩いメールアドレス形式。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Departments は選択可能な学科コードと表示名。
var Departments = []Department{
	{Code: "CSE", Label: "Computer Science & Engineering"},
	{Code: "EEE", Label: "Electrical & Electronic Engineering"},
	{Code: "BBA", Label: "Business Administration"},
	{Code: "MECHANICAL", Label: "Mechanical Engineering"},
	{Code: "BANGLA", Label: "Bengali Literature"},
	{Code: "ENGLISH", Label: "English Literature"},
	{Code: "NAVAL", Label: "Naval Architecture"},
	{Code: "LAW", Label: "Law"},
	{Code: "CIVIL", Label: "Civil Engineering"},
}

// Department は学科コードと表示名の組。
type Department struct {
	Code  string
	Label string
}

// ValidEmail はメールアドレスの形式が正しいかどうかを返す。
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Errors はフィールド名（フォームのname属性）ごとのエラーメッセージ。
type Errors map[string]string

// Has は指定フィールドにエラーがあるかどうかを返す。
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Get は指定フィールドのエラーメッセージを返す。
func (e Errors) Get(field string) string {
	return e[field]
}

// Validator はフォーム構造体を検証する。並行に使用してよい。
type Validator struct {
	validate *validator.Validate
}

// NewValidator はValidatorを生成する。
// フィールド名にはformタグの値を使い、独自ルール loose_email, department, strong_password を登録する。
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// 登録は起動時に1回だけ行われ、失敗するのはタグ名の誤りのみ
	mustRegister(v, "loose_email", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
	mustRegister(v, "department", func(fl validator.FieldLevel) bool {
		return IsDepartment(fl.Field().String())
	})
	mustRegister(v, "strong_password", func(fl validator.FieldLevel) bool {
		return Strength(fl.Field().String()).Score == len(strengthRules)
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Validate はフォーム構造体を検証し、失敗したフィールドのメッセージを返す。
// 全フィールドが正しい場合はnilを返す。
// 1フィールドに複数の違反がある場合は最初のものだけを返す。
func (v *Validator) Validate(f any) Errors {
	err := v.validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{"": err.Error()}
	}

	out := make(Errors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe.Field(), fe.Tag(), fe.Param())
	}
	return out
}

// IsDepartment は学科コードが選択肢に含まれるかどうかを返す。
func IsDepartment(code string) bool {
	for _, d := range Departments {
		if d.Code == code {
			return true
		}
	}
	return false
}
