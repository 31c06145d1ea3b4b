package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/intelitalk/internal/api"
	"github.com/hitoshi/intelitalk/internal/dashboard"
	"github.com/hitoshi/intelitalk/internal/form"
	"github.com/hitoshi/intelitalk/internal/middleware"
	"github.com/hitoshi/intelitalk/internal/model"
	"github.com/hitoshi/intelitalk/internal/session"
)

// 画面に表示する通知メッセージ。
const (
	msgFetchUsersFailed   = "Failed to fetch data"
	msgFetchUserFailed    = "Error fetching user data"
	msgStudentRegistered  = "Student registered successfully!"
	msgAdminRegistered    = "Admin registered successfully!"
	msgRegistrationFailed = "Registration failed"
	msgAdminSignupFailed  = "Registration failed. Please try again."
	msgUserDeleted        = "User deleted successfully!"
	msgDeleteFailed       = "Error deleting user"
	msgUserUpdated        = "User details updated successfully!"
	msgUpdateFailed       = "Error updating user details"
)

// UserAPI は管理画面が必要とするリモートAPIのインターフェース。
// api.Clientが満たす。
type UserAPI interface {
	Signup(ctx context.Context, token string, req api.SignupRequest) error
	ListUsers(ctx context.Context, token string) ([]model.User, error)
	GetUser(ctx context.Context, token, id string) (*model.User, error)
	UpdateUser(ctx context.Context, token, id string, update api.UserUpdate) error
	DeleteUser(ctx context.Context, token, id string) error
}

// AdminHandler は管理者向け画面（ダッシュボード、ユーザー登録、詳細、編集、削除）のHTTPハンドラー。
type AdminHandler struct {
	responder
	users     UserAPI
	validator *form.Validator
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(users UserAPI, validator *form.Validator, views *Views, flasher *session.Flasher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		responder: responder{views: views, flasher: flasher, logger: logger},
		users:     users,
		validator: validator,
	}
}

type dashboardView struct {
	View      dashboard.View
	PageSizes []int
	Error     string
}

type studentSignupView struct {
	Form        form.StudentSignup
	Errors      form.Errors
	Error       string
	Departments []form.Department
}

type adminSignupView struct {
	Form        form.AdminSignup
	Errors      form.Errors
	Error       string
	Strength    *form.PasswordStrength
	Departments []form.Department
}

type userDetailView struct {
	User  *model.User
	Error string
}

type userEditView struct {
	ID          string
	Loaded      bool
	Form        form.UserEdit
	Errors      form.Errors
	Error       string
	Departments []form.Department
}

// Dashboard はユーザー一覧を取得し、検索・フィルタ・ソート・ページングを適用して表示する。
// GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	q := dashboard.ParseQuery(r.URL.Query())

	users, err := h.users.ListUsers(r.Context(), sess.Token)
	if err != nil {
		h.logger.Error("failed to list users", slog.String("error", err.Error()))
		h.render(w, r, http.StatusBadGateway, "dashboard.html", "Admin Dashboard", dashboardView{
			View:      dashboard.Build(nil, q),
			PageSizes: dashboard.PageSizes,
			Error:     model.NewRemoteFailureError(api.RemoteMessage(err), msgFetchUsersFailed).Message,
		})
		return
	}

	h.render(w, r, http.StatusOK, "dashboard.html", "Admin Dashboard", dashboardView{
		View:      dashboard.Build(users, q),
		PageSizes: dashboard.PageSizes,
	})
}

// StudentSignupPage は学生登録画面を表示する。
// GET /signup
func (h *AdminHandler) StudentSignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", "Student Registration", studentSignupView{
		Departments: form.Departments,
	})
}

// StudentSignup は学生を登録する。RoleはStudent固定。
// POST /signup
func (h *AdminHandler) StudentSignup(w http.ResponseWriter, r *http.Request) {
	f := form.ParseStudentSignup(r)

	// 1. 入力検証（失敗時はリモートAPIに送信しない）
	if errs := h.validator.Validate(f); errs != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "signup.html", "Student Registration", studentSignupView{
			Form:        f,
			Errors:      errs,
			Error:       model.NewValidationError().Message,
			Departments: form.Departments,
		})
		return
	}

	// 2. 登録
	sess := middleware.SessionFromContext(r.Context())
	err := h.users.Signup(r.Context(), sess.Token, api.SignupRequest{
		Name:       f.Name,
		Email:      f.Email,
		Role:       model.RoleStudent,
		StudentID:  f.StudentID,
		Department: f.Department,
	})
	if err != nil {
		h.logger.Error("student registration failed", slog.String("error", err.Error()))
		h.render(w, r, http.StatusBadGateway, "signup.html", "Student Registration", studentSignupView{
			Form:        f,
			Error:       model.NewRemoteFailureError(api.RemoteMessage(err), msgRegistrationFailed).Message,
			Departments: form.Departments,
		})
		return
	}

	h.flash(w, session.FlashSuccess, msgStudentRegistered)
	redirect(w, r, "/admin")
}

// AdminSignupPage は管理者登録画面を表示する。
// GET /signupadmin
func (h *AdminHandler) AdminSignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup_admin.html", "Admin Registration", adminSignupView{
		Departments: form.Departments,
	})
}

// AdminSignup は管理者を登録する。
// パスワードは強度ルールを全て満たさない限り送信しない。
// POST /signupadmin
func (h *AdminHandler) AdminSignup(w http.ResponseWriter, r *http.Request) {
	f := form.ParseAdminSignup(r)

	// 1. 入力検証
	if errs := h.validator.Validate(f); errs != nil {
		strength := form.Strength(f.Password)
		f.Password, f.ConfirmPassword = "", ""
		h.render(w, r, http.StatusUnprocessableEntity, "signup_admin.html", "Admin Registration", adminSignupView{
			Form:        f,
			Errors:      errs,
			Error:       model.NewValidationError().Message,
			Strength:    &strength,
			Departments: form.Departments,
		})
		return
	}

	// 2. 登録
	sess := middleware.SessionFromContext(r.Context())
	err := h.users.Signup(r.Context(), sess.Token, api.SignupRequest{
		Name:            f.Name,
		Email:           f.Email,
		Role:            model.RoleAdmin,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
		Department:      f.Department,
	})
	if err != nil {
		h.logger.Error("admin registration failed", slog.String("error", err.Error()))
		f.Password, f.ConfirmPassword = "", ""
		h.render(w, r, http.StatusBadGateway, "signup_admin.html", "Admin Registration", adminSignupView{
			Form:        f,
			Error:       model.NewRemoteFailureError(api.RemoteMessage(err), msgAdminSignupFailed).Message,
			Departments: form.Departments,
		})
		return
	}

	h.flash(w, session.FlashSuccess, msgAdminRegistered)
	redirect(w, r, "/admin")
}

// UserDetail はユーザーの詳細を表示する。
// GET /user/{id}
func (h *AdminHandler) UserDetail(w http.ResponseWriter, r *http.Request) {
	user, status, message := h.fetchUser(r, chi.URLParam(r, "id"))
	if user == nil {
		h.render(w, r, status, "user_detail.html", "User Detail", userDetailView{Error: message})
		return
	}
	h.render(w, r, http.StatusOK, "user_detail.html", "User Detail", userDetailView{User: user})
}

// DeleteUser はユーザーを削除してダッシュボードへ戻る。
// POST /user/{id}/delete
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := middleware.SessionFromContext(r.Context())

	if err := h.users.DeleteUser(r.Context(), sess.Token, id); err != nil {
		h.logger.Error("failed to delete user",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		h.flash(w, session.FlashError, msgDeleteFailed)
		redirect(w, r, "/user/"+id)
		return
	}

	h.flash(w, session.FlashSuccess, msgUserDeleted)
	redirect(w, r, "/admin")
}

// EditUserPage はユーザー編集画面を現在の値で表示する。
// GET /user/edit/{id}
func (h *AdminHandler) EditUserPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, status, message := h.fetchUser(r, id)
	if user == nil {
		h.render(w, r, status, "user_edit.html", "Edit User", userEditView{ID: id, Error: message})
		return
	}

	h.render(w, r, http.StatusOK, "user_edit.html", "Edit User", userEditView{
		ID:     id,
		Loaded: true,
		Form: form.UserEdit{
			Name:       user.Name,
			Email:      user.Email,
			Department: user.Department,
			StudentID:  user.StudentID,
		},
		Departments: form.Departments,
	})
}

// EditUser はユーザー情報を更新して詳細画面へ戻る。
// POST /user/edit/{id}
func (h *AdminHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f := form.ParseUserEdit(r)

	view := userEditView{ID: id, Loaded: true, Form: f, Departments: form.Departments}

	// 1. 入力検証
	if errs := h.validator.Validate(f); errs != nil {
		view.Errors = errs
		view.Error = model.NewValidationError().Message
		h.render(w, r, http.StatusUnprocessableEntity, "user_edit.html", "Edit User", view)
		return
	}

	// 2. 更新
	sess := middleware.SessionFromContext(r.Context())
	err := h.users.UpdateUser(r.Context(), sess.Token, id, api.UserUpdate{
		Name:       f.Name,
		Email:      f.Email,
		Department: f.Department,
		StudentID:  f.StudentID,
	})
	if err != nil {
		h.logger.Error("failed to update user",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		view.Error = msgUpdateFailed
		h.render(w, r, http.StatusBadGateway, "user_edit.html", "Edit User", view)
		return
	}

	h.flash(w, session.FlashSuccess, msgUserUpdated)
	redirect(w, r, "/user/"+id)
}

// fetchUser はユーザーを取得する。失敗時はnilと表示用のステータス、メッセージを返す。
func (h *AdminHandler) fetchUser(r *http.Request, id string) (*model.User, int, string) {
	sess := middleware.SessionFromContext(r.Context())

	user, err := h.users.GetUser(r.Context(), sess.Token, id)
	switch {
	case err == nil:
		return user, http.StatusOK, ""
	case errors.Is(err, api.ErrUserNotFound) || api.IsNotFound(err):
		return nil, http.StatusNotFound, model.NewUserNotFoundError().Message
	default:
		h.logger.Error("failed to fetch user",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		return nil, http.StatusBadGateway, model.NewRemoteFailureError(api.RemoteMessage(err), msgFetchUserFailed).Message
	}
}
