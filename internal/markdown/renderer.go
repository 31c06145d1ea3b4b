// Package markdown はアシスタントの回答（Markdown）を安全なHTMLに変換する。
//
// goldmarkでHTMLに変換したあと、bluemondayの許可リストポリシーでサニタイズする。
// 生のHTMLはgoldmarkの段階で出力せず、さらにサニタイザで除去するため、
// リモートAPIの回答に含まれるscriptやイベント属性はブラウザに届かない。
package markdown

import (
	"bytes"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// codeLanguageClass はフェンスドコードブロックに付与される言語クラス。
var codeLanguageClass = regexp.MustCompile(`^language-[\w+-]+$`)

// Renderer はMarkdownをサニタイズ済みHTMLに変換する。
// 並行に使用してよい。
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer はRendererを生成する。
// ポリシーの内容:
//   - 許可タグ: 段落、改行、見出し、リスト、引用、コード、強調、打ち消し線、表、水平線、a、img
//   - URLスキーム: http/httpsのみ（javascript:, data: 等は除去）
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|center|right)$`)).OnElements("th", "td")

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowURLSchemes("http", "https")

	p.AllowAttrs("src", "alt").OnElements("img")

	return &Renderer{md: md, policy: p}
}

// Render はMarkdownをHTMLに変換してサニタイズする。
// 変換に失敗した場合はエスケープ済みのプレーンテキストを返す。
func (r *Renderer) Render(source string) template.HTML {
	if source == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(source))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}
