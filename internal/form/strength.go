package form

import (
	"regexp"
	"unicode/utf8"
)

// strengthRule はパスワード強度の1ルール。
type strengthRule struct {
	Key   string
	Label string
	ok    func(string) bool
}

var (
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	digitPattern   = regexp.MustCompile(`\d`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

var strengthRules = []strengthRule{
	{Key: "length", Label: "At least 8 characters", ok: func(s string) bool { return utf8.RuneCountInString(s) >= 8 }},
	{Key: "uppercase", Label: "One uppercase letter", ok: upperPattern.MatchString},
	{Key: "lowercase", Label: "One lowercase letter", ok: lowerPattern.MatchString},
	{Key: "number", Label: "One number", ok: digitPattern.MatchString},
	{Key: "special", Label: "One special character", ok: specialPattern.MatchString},
}

// RuleResult は1ルールの判定結果。
type RuleResult struct {
	Key   string
	Label string
	OK    bool
}

// PasswordStrength はパスワード強度の判定結果。
type PasswordStrength struct {
	Score   int // 満たしたルールの数（0〜5）
	Label   string
	Percent int
	Rules   []RuleResult
}

// Strength はパスワードの強度を判定する。
// ラベルは満たしたルール数が2以下でWeak、3でFair、4でGood、5でStrong。
func Strength(password string) PasswordStrength {
	results := make([]RuleResult, 0, len(strengthRules))
	score := 0
	for _, rule := range strengthRules {
		ok := rule.ok(password)
		if ok {
			score++
		}
		results = append(results, RuleResult{Key: rule.Key, Label: rule.Label, OK: ok})
	}

	return PasswordStrength{
		Score:   score,
		Label:   strengthLabel(score),
		Percent: score * 100 / len(strengthRules),
		Rules:   results,
	}
}

func strengthLabel(score int) string {
	switch {
	case score <= 2:
		return "Weak"
	case score == 3:
		return "Fair"
	case score == 4:
		return "Good"
	default:
		return "Strong"
	}
}
