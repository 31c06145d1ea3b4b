package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"

	"github.com/hitoshi/intelitalk/internal/dashboard"
	"github.com/hitoshi/intelitalk/internal/form"
	"github.com/hitoshi/intelitalk/internal/markdown"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutTemplate = "layout.html"

// Views は埋め込みテンプレートから組み立てた画面の集合。
// 画面ごとにlayout.htmlと画面テンプレートを組み合わせて保持する。
type Views struct {
	pages map[string]*template.Template
}

// NewViews は全画面のテンプレートを解析する。
// アシスタントの回答はmdで描画する。
func NewViews(md *markdown.Renderer) (*Views, error) {
	funcs := template.FuncMap{
		"markdown":        md.Render,
		"dashboardURL":    dashboardURL,
		"pageNumbers":     pageNumbers,
		"departmentLabel": departmentLabel,
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		base := path.Base(name)
		if base == layoutTemplate {
			continue
		}

		t, err := template.New(layoutTemplate).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", base, err)
		}
		pages[base] = t
	}

	return &Views{pages: pages}, nil
}

// Render は指定画面をレイアウト付きでwに書き込む。
func (v *Views) Render(w io.Writer, name string, data any) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("view %q not found", name)
	}
	return t.ExecuteTemplate(w, layoutTemplate, data)
}

// renderToBuffer は描画結果をバッファに書き込む。
// 途中で失敗した場合に部分的なHTMLを返さないため。
func (v *Views) renderToBuffer(name string, data any) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := v.Render(&buf, name, data); err != nil {
		return nil, err
	}
	return &buf, nil
}

// StaticHandler は埋め込みのCSSとJavaScriptを配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func dashboardURL(q dashboard.Query) string {
	if encoded := q.Values().Encode(); encoded != "" {
		return "/admin?" + encoded
	}
	return "/admin"
}

// pageNumbers は1からtotalまでのページ番号を返す。
func pageNumbers(total int) []int {
	pages := make([]int, 0, total)
	for i := 1; i <= total; i++ {
		pages = append(pages, i)
	}
	return pages
}

func departmentLabel(code string) string {
	for _, d := range form.Departments {
		if d.Code == code {
			return d.Label
		}
	}
	return code
}
