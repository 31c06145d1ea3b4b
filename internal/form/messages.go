package form

import "fmt"

// fieldLabels はフィールド名の表示名。
var fieldLabels = map[string]string{
	"name":            "Name",
	"email":           "Email",
	"password":        "Password",
	"confirmPassword": "Confirm password",
	"studentId":       "Student ID",
	"dept":            "Department",
}

// fixedMessages はフィールドとルールの組ごとの固定メッセージ。
var fixedMessages = map[string]string{
	"confirmPassword/required": "Please confirm your password",
	"confirmPassword/eqfield":  "Passwords do not match",
	"email/loose_email":        "Please enter a valid email",
	"dept/department":          "Please select a valid department",
	"password/strong_password": "Password must contain upper and lower case letters, a number and a special character",
}

// message は検証エラーを画面表示用のメッセージに変換する。
func message(field, tag, param string) string {
	if msg, ok := fixedMessages[field+"/"+tag]; ok {
		return msg
	}

	label, ok := fieldLabels[field]
	if !ok {
		label = field
	}

	switch tag {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, param)
	default:
		return label + " is invalid"
	}
}
