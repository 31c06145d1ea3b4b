package model

// Sender はチャットメッセージの送信元を表す。
type Sender string

const (
	SenderUser             Sender = "user"
	SenderAssistant        Sender = "assistant"
	SenderUserHistory      Sender = "user-history"
	SenderAssistantHistory Sender = "assistant-history"
)

// IsAssistant はアシスタント側（履歴を含む）のメッセージかどうかを返す。
// アシスタント側のメッセージはMarkdownとして描画する。
func (s Sender) IsAssistant() bool {
	return s == SenderAssistant || s == SenderAssistantHistory
}

// ChatMessage はチャットパネル内の1メッセージ。IDは持たず、挿入順のみで識別される。
type ChatMessage struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// HistoryEntry は過去の質問と回答のペア。
type HistoryEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
