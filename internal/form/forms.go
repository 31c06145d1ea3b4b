package form

import (
	"net/http"
	"strings"
)

// Login はログインフォーム。
type Login struct {
	Email    string `form:"email" validate:"required,loose_email"`
	Password string `form:"password" validate:"required"`
}

// StudentSignup は学生登録フォーム。Roleは常にStudent。
type StudentSignup struct {
	Name       string `form:"name" validate:"required"`
	Email      string `form:"email" validate:"required,loose_email"`
	StudentID  string `form:"studentId" validate:"required"`
	Department string `form:"dept" validate:"required,department"`
}

// AdminSignup は管理者登録フォーム。
// パスワードは強度ルールを全て満たす必要がある。
type AdminSignup struct {
	Name            string `form:"name" validate:"required,min=2"`
	Email           string `form:"email" validate:"required,loose_email"`
	Password        string `form:"password" validate:"required,min=8,strong_password"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
	Department      string `form:"dept" validate:"required,department"`
}

// UserEdit はユーザー編集フォーム。学籍番号は任意。
type UserEdit struct {
	Name       string `form:"name" validate:"required"`
	Email      string `form:"email" validate:"required,loose_email"`
	Department string `form:"dept" validate:"required,department"`
	StudentID  string `form:"studentId"`
}

// ParseLogin はリクエストのフォーム値からLoginを組み立てる。
func ParseLogin(r *http.Request) Login {
	return Login{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
}

// ParseStudentSignup はリクエストのフォーム値からStudentSignupを組み立てる。
func ParseStudentSignup(r *http.Request) StudentSignup {
	return StudentSignup{
		Name:       strings.TrimSpace(r.PostFormValue("name")),
		Email:      strings.TrimSpace(r.PostFormValue("email")),
		StudentID:  strings.TrimSpace(r.PostFormValue("studentId")),
		Department: r.PostFormValue("dept"),
	}
}

// ParseAdminSignup はリクエストのフォーム値からAdminSignupを組み立てる。
// パスワードは前後の空白も含めてそのまま扱う。
func ParseAdminSignup(r *http.Request) AdminSignup {
	return AdminSignup{
		Name:            strings.TrimSpace(r.PostFormValue("name")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
		Department:      r.PostFormValue("dept"),
	}
}

// ParseUserEdit はリクエストのフォーム値からUserEditを組み立てる。
func ParseUserEdit(r *http.Request) UserEdit {
	return UserEdit{
		Name:       strings.TrimSpace(r.PostFormValue("name")),
		Email:      strings.TrimSpace(r.PostFormValue("email")),
		Department: r.PostFormValue("dept"),
		StudentID:  strings.TrimSpace(r.PostFormValue("studentId")),
	}
}
