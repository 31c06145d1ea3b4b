package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/intelitalk/internal/chat"
	"github.com/hitoshi/intelitalk/internal/markdown"
	"github.com/hitoshi/intelitalk/internal/middleware"
	"github.com/hitoshi/intelitalk/internal/model"
	"github.com/hitoshi/intelitalk/internal/session"
)

// ChatAPI はチャット画面が必要とするリモートAPIのインターフェース。
// api.Clientが満たす。
type ChatAPI interface {
	chat.GuestAPI
	chat.StudentAPI
}

// PanelRegistry はチャットパネルの登録と取得のインターフェース。
// chat.Registryが満たす。
type PanelRegistry interface {
	Mount(ctx context.Context, opts chat.MountOptions) *chat.Panel
	Get(id, owner string) (*chat.Panel, bool)
}

// ChatHandler はゲストと学生のチャット画面のHTTPハンドラー。
type ChatHandler struct {
	responder
	registry PanelRegistry
	api      ChatAPI
	md       *markdown.Renderer
	guests   *session.GuestIdentifier
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(registry PanelRegistry, client ChatAPI, md *markdown.Renderer, guests *session.GuestIdentifier, views *Views, flasher *session.Flasher, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		responder: responder{views: views, flasher: flasher, logger: logger},
		registry:  registry,
		api:       client,
		md:        md,
		guests:    guests,
	}
}

type chatView struct {
	PanelID   string
	Variant   chat.Variant
	SubmitURL string
	Messages  []model.ChatMessage
}

// chatMessageResponse はJSONで返す1メッセージ。
// アシスタントのメッセージはサニタイズ済みのHTMLも含む。
type chatMessageResponse struct {
	Text   string        `json:"text"`
	Sender model.Sender  `json:"sender"`
	HTML   template.HTML `json:"html,omitempty"`
}

type chatSubmitResponse struct {
	PanelID  string                `json:"panelId"`
	Messages []chatMessageResponse `json:"messages"`
}

// GuestChat はゲスト用のチャットパネルをマウントして表示する。
// 未ログインの訪問者には匿名IDのCookieを発行し、再表示では同じ訪問者のパネルを置き換える。
// GET /chat
func (h *ChatHandler) GuestChat(w http.ResponseWriter, r *http.Request) {
	owner := panelOwner(middleware.SessionFromContext(r.Context()))
	if owner == "" {
		owner = guestOwner(h.guests.Ensure(w, r))
	}

	panel := h.registry.Mount(r.Context(), chat.MountOptions{
		Owner:   owner,
		Variant: chat.VariantGuest,
		Asker:   chat.GuestAsker(h.api),
	})
	h.renderPanel(w, r, http.StatusOK, panel)
}

// StudentChat は学生用のチャットパネルをマウントし、履歴を読み込んで表示する。
// GET /student
func (h *ChatHandler) StudentChat(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	panel := h.registry.Mount(r.Context(), chat.MountOptions{
		Owner:   panelOwner(sess),
		Variant: chat.VariantStudent,
		Asker:   chat.StudentAsker(h.api, sess.Token),
		History: chat.StudentHistory(h.api, sess.Token),
		UserID:  sess.Profile.ID,
	})
	h.renderPanel(w, r, http.StatusOK, panel)
}

// SubmitGuest はゲスト用パネルへの質問を処理する。
// POST /chat/{panelID}
func (h *ChatHandler) SubmitGuest(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, chat.VariantGuest)
}

// SubmitStudent は学生用パネルへの質問を処理する。
// POST /student/chat/{panelID}
func (h *ChatHandler) SubmitStudent(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, chat.VariantStudent)
}

func (h *ChatHandler) submit(w http.ResponseWriter, r *http.Request, variant chat.Variant) {
	panelID := chi.URLParam(r, "panelID")
	sess := middleware.SessionFromContext(r.Context())

	// 1. パネルの取得（期限切れ、別セッションのパネル、種類違いは見つからない扱い）
	owner := panelOwner(sess)
	if owner == "" && variant == chat.VariantGuest {
		owner = guestOwner(h.guests.Lookup(r))
	}
	panel, ok := h.registry.Get(panelID, owner)
	if !ok || panel.Variant() != variant {
		h.logger.Warn("chat panel not found",
			slog.String("panel_id", panelID),
			slog.String("variant", string(variant)),
		)
		if wantsJSON(r) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewPanelNotFoundError())
			return
		}
		h.flash(w, session.FlashInfo, model.NewPanelNotFoundError().Message)
		redirect(w, r, mountPath(variant))
		return
	}

	// 2. 質問の送信（失敗時もフォールバックの回答が追記される）
	question := r.PostFormValue("question")
	reply, submitted := panel.Submit(r.Context(), question)

	// 3. レスポンス
	if wantsJSON(r) {
		resp := chatSubmitResponse{PanelID: panel.ID(), Messages: []chatMessageResponse{}}
		if submitted {
			resp.Messages = append(resp.Messages,
				h.toResponse(model.ChatMessage{Text: question, Sender: model.SenderUser}),
				h.toResponse(reply),
			)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	h.renderPanel(w, r, http.StatusOK, panel)
}

func (h *ChatHandler) renderPanel(w http.ResponseWriter, r *http.Request, status int, panel *chat.Panel) {
	title := "Guest Chat"
	submitURL := "/chat/" + panel.ID()
	if panel.Variant() == chat.VariantStudent {
		title = "Student Chat"
		submitURL = "/student/chat/" + panel.ID()
	}

	h.render(w, r, status, "chat.html", title, chatView{
		PanelID:   panel.ID(),
		Variant:   panel.Variant(),
		SubmitURL: submitURL,
		Messages:  panel.Messages(),
	})
}

func (h *ChatHandler) toResponse(msg model.ChatMessage) chatMessageResponse {
	resp := chatMessageResponse{Text: msg.Text, Sender: msg.Sender}
	if msg.Sender.IsAssistant() {
		resp.HTML = h.md.Render(msg.Text)
	}
	return resp
}

// panelOwner はパネルを所有するセッションのキーを返す。
// トークンそのものはメモリに保持しない。未認証の場合は空文字列。
func panelOwner(sess model.Session) string {
	if !sess.IsAuthenticated() {
		return ""
	}
	sum := sha256.Sum256([]byte(sess.Token))
	return hex.EncodeToString(sum[:])
}

// guestOwner は匿名IDからパネルの所有者キーを作る。IDが空なら空文字列。
func guestOwner(guestID string) string {
	if guestID == "" {
		return ""
	}
	return "guest:" + guestID
}

func mountPath(variant chat.Variant) string {
	if variant == chat.VariantStudent {
		return "/student"
	}
	return "/chat"
}
