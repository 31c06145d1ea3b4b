// Package dashboard は管理者ダッシュボードの一覧（検索、学科フィルタ、ソート、ページング）と統計を組み立てる。
// リモートAPIから取得したユーザー一覧だけを入力とし、副作用を持たない。
package dashboard

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/hitoshi/intelitalk/internal/model"
)

// タブ。
const (
	TabOverview = "dashboard"
	TabStudents = "students"
	TabAdmins   = "admins"
)

// ソート順。
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// AllDepartments は学科フィルタを無効にする値。
const AllDepartments = "all"

// DefaultPageSize は1ページあたりの既定件数。
const DefaultPageSize = 10

// PageSizes は選択可能な1ページあたりの件数。
var PageSizes = []int{5, 10, 20, 50}

// sortKeys はソート可能な列。
var sortKeys = []string{"name", "email", "studentId", "dept"}

// Query はダッシュボードの表示条件。
type Query struct {
	Tab        string
	Search     string
	Department string
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}

// DefaultQuery は既定の表示条件を返す。
func DefaultQuery() Query {
	return Query{
		Tab:        TabOverview,
		Department: AllDepartments,
		SortBy:     "name",
		SortOrder:  OrderAsc,
		Page:       1,
		PageSize:   DefaultPageSize,
	}
}

// ParseQuery はURLクエリから表示条件を組み立てる。不正な値は既定値に置き換える。
func ParseQuery(values url.Values) Query {
	q := DefaultQuery()

	switch tab := values.Get("tab"); tab {
	case TabOverview, TabStudents, TabAdmins:
		q.Tab = tab
	}
	q.Search = strings.TrimSpace(values.Get("q"))
	if dept := values.Get("dept"); dept != "" {
		q.Department = dept
	}
	if sortBy := values.Get("sort"); slices.Contains(sortKeys, sortBy) {
		q.SortBy = sortBy
	}
	if order := values.Get("order"); order == OrderAsc || order == OrderDesc {
		q.SortOrder = order
	}
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		q.Page = page
	}
	if size, err := strconv.Atoi(values.Get("size")); err == nil && slices.Contains(PageSizes, size) {
		q.PageSize = size
	}

	return q
}

// Values はURLクエリに戻す。既定値のパラメータは省略する。
func (q Query) Values() url.Values {
	def := DefaultQuery()
	v := url.Values{}
	if q.Tab != def.Tab {
		v.Set("tab", q.Tab)
	}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Department != def.Department {
		v.Set("dept", q.Department)
	}
	if q.SortBy != def.SortBy {
		v.Set("sort", q.SortBy)
	}
	if q.SortOrder != def.SortOrder {
		v.Set("order", q.SortOrder)
	}
	if q.Page != def.Page {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize != def.PageSize {
		v.Set("size", strconv.Itoa(q.PageSize))
	}
	return v
}

// ToggleSort は列見出しのクリックに対応する表示条件を返す。
// 同じ列の昇順をクリックすると降順、それ以外は昇順になる。ページは1に戻す。
func (q Query) ToggleSort(key string) Query {
	next := q
	next.SortBy = key
	next.SortOrder = OrderAsc
	if q.SortBy == key && q.SortOrder == OrderAsc {
		next.SortOrder = OrderDesc
	}
	next.Page = 1
	return next
}

// WithTab は指定タブの先頭ページの表示条件を返す。
func (q Query) WithTab(tab string) Query {
	next := q
	next.Tab = tab
	next.Page = 1
	return next
}

// WithPage は指定ページの表示条件を返す。
func (q Query) WithPage(page int) Query {
	next := q
	next.Page = page
	return next
}

// DepartmentCount は学科ごとの人数。
type DepartmentCount struct {
	Department string
	Count      int
}

// Stats はダッシュボードの統計。
type Stats struct {
	TotalStudents int
	TotalAdmins   int
	Departments   int
	AdminRatio    string // 管理者数/学生数 を百分率に丸めた値（学生が0人の場合は "0%"）
}

// View はダッシュボードの表示内容。
type View struct {
	Query       Query
	Students    []model.User // 検索とフィルタ適用後、ソート済み
	Admins      []model.User
	Rows        []model.User // 現在のタブの現在ページ
	TotalPages  int
	Departments []string // 全ユーザーに現れる学科（初出順）
	DeptStats   []DepartmentCount
	Stats       Stats
}

// Build はユーザー一覧と表示条件からダッシュボードを組み立てる。
// ページは [1, TotalPages] に収める。
func Build(users []model.User, q Query) View {
	var students, admins []model.User
	for _, u := range users {
		switch u.Role {
		case model.RoleStudent:
			students = append(students, u)
		case model.RoleAdmin:
			admins = append(admins, u)
		}
	}

	depts, deptStats := departmentStats(users)

	v := View{
		Query:       q,
		Students:    filterAndSort(students, q),
		Admins:      filterAndSort(admins, q),
		Departments: depts,
		DeptStats:   deptStats,
		Stats: Stats{
			TotalStudents: len(students),
			TotalAdmins:   len(admins),
			Departments:   len(depts),
			AdminRatio:    adminRatio(len(admins), len(students)),
		},
	}

	current := v.Students
	if q.Tab == TabAdmins {
		current = v.Admins
	}

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	v.TotalPages = (len(current) + size - 1) / size

	page := q.Page
	if page > v.TotalPages {
		page = v.TotalPages
	}
	if page < 1 {
		page = 1
	}
	v.Query.Page = page
	v.Query.PageSize = size

	start := min((page-1)*size, len(current))
	end := min(start+size, len(current))
	v.Rows = current[start:end]

	return v
}

// filterAndSort は検索語と学科で絞り込み、指定列で安定ソートする。
func filterAndSort(users []model.User, q Query) []model.User {
	term := strings.ToLower(q.Search)

	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if q.Department != "" && q.Department != AllDepartments && u.Department != q.Department {
			continue
		}
		if term != "" && !matches(u, term) {
			continue
		}
		out = append(out, u)
	}

	slices.SortStableFunc(out, func(a, b model.User) int {
		c := strings.Compare(strings.ToLower(sortValue(a, q.SortBy)), strings.ToLower(sortValue(b, q.SortBy)))
		if q.SortOrder == OrderDesc {
			return -c
		}
		return c
	})
	return out
}

func matches(u model.User, term string) bool {
	for _, field := range []string{u.Name, u.Email, u.StudentID, u.Department} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func sortValue(u model.User, key string) string {
	switch key {
	case "email":
		return u.Email
	case "studentId":
		return u.StudentID
	case "dept":
		return u.Department
	default:
		return u.Name
	}
}

// departmentStats は学科の一覧（初出順）と学科ごとの人数を返す。学科が空のユーザーは数えない。
func departmentStats(users []model.User) ([]string, []DepartmentCount) {
	index := make(map[string]int)
	var counts []DepartmentCount
	for _, u := range users {
		if u.Department == "" {
			continue
		}
		i, ok := index[u.Department]
		if !ok {
			i = len(counts)
			index[u.Department] = i
			counts = append(counts, DepartmentCount{Department: u.Department})
		}
		counts[i].Count++
	}

	depts := make([]string, len(counts))
	for i, c := range counts {
		depts[i] = c.Department
	}
	return depts, counts
}

func adminRatio(admins, students int) string {
	if students == 0 {
		return "0%"
	}
	return strconv.Itoa(int(math.Round(float64(admins)/float64(students)*100))) + "%"
}
