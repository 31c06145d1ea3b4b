package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RegistryConfig はRegistryの設定を保持する。
type RegistryConfig struct {
	IdleTTL         time.Duration // 最後の操作からこの時間が経過したパネルを破棄する
	CleanupInterval time.Duration // 期限切れパネルのクリーンアップ間隔
	MaxPanels       int           // 保持するパネル数の上限。超える場合は最も長く使われていないものから破棄する。0は無制限
}

// DefaultRegistryConfig はデフォルトの設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTTL:         30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxPanels:       10000,
	}
}

// MountOptions はパネルのマウント内容を表す。
type MountOptions struct {
	Owner   string // パネルを所有するセッションまたは訪問者のキー。空の場合は再マウントで置き換えない
	Variant Variant
	Asker   Asker
	History HistoryLoader // 学生用のみ。nilの場合は履歴を読み込まない
	UserID  string
}

// Registry はパネルIDごとのPanelを保持する。
// 一定時間操作のないパネルはバックグラウンドで破棄する。
type Registry struct {
	config   RegistryConfig
	recorder SubmissionRecorder
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	panels  map[string]*Panel
	current map[string]string // owner+variant → 現在のパネルID

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry はRegistryを生成し、クリーンアップを開始する。recorderはnilでもよい。
func NewRegistry(config RegistryConfig, recorder SubmissionRecorder, logger *slog.Logger) *Registry {
	r := &Registry{
		config:   config,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		panels:   make(map[string]*Panel),
		current:  make(map[string]string),
		stopCh:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go r.cleanupLoop()
	}

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Mount は新しいパネルを作成して登録する。
// 学生用は履歴を読み込み、最後に挨拶を追記する。
// 同じ所有者の同じ種類のパネルが既にあれば破棄する（再マウントで会話はクリアされる）。
// パネル数がMaxPanelsに達している場合は最も長く使われていないパネルを破棄してから登録する。
func (r *Registry) Mount(ctx context.Context, opts MountOptions) *Panel {
	panel := NewPanel(uuid.New().String(), opts.Owner, opts.Variant, opts.Asker, r.recorder, r.logger)
	panel.now = r.now
	panel.lastUsed = r.now()

	if opts.History != nil {
		panel.Preload(ctx, opts.History, opts.UserID)
	}
	panel.Greet()

	r.mu.Lock()
	defer r.mu.Unlock()

	if opts.Owner != "" {
		key := ownerKey(opts.Owner, opts.Variant)
		if prev, ok := r.current[key]; ok {
			delete(r.panels, prev)
		}
		r.current[key] = panel.id
	}
	r.evictOverCapacity()
	r.panels[panel.id] = panel

	return panel
}

// Get はパネルIDに対応するパネルを返す。
// 存在しない場合、または所有者が異なる場合はfalseを返す。
func (r *Registry) Get(id, owner string) (*Panel, bool) {
	r.mu.RLock()
	panel, ok := r.panels[id]
	r.mu.RUnlock()

	if !ok || panel.owner != owner {
		return nil, false
	}
	panel.touch()
	return panel, true
}

// Len は登録中のパネル数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.panels)
}

// evictOverCapacity は新しいパネル1つ分の空きができるまで最も古いパネルを削除する。
// r.muを保持した状態で呼ぶ。
func (r *Registry) evictOverCapacity() {
	if r.config.MaxPanels <= 0 {
		return
	}

	evicted := 0
	for len(r.panels) >= r.config.MaxPanels {
		var oldestID string
		var oldest time.Time
		for id, panel := range r.panels {
			if since := panel.idleSince(); oldestID == "" || since.Before(oldest) {
				oldestID, oldest = id, since
			}
		}
		r.remove(oldestID)
		evicted++
	}

	if evicted > 0 {
		r.logger.Warn("chat panel limit reached, evicted least recently used panels",
			slog.Int("evicted", evicted),
			slog.Int("max_panels", r.config.MaxPanels),
		)
	}
}

// remove はパネルと所有者の索引を削除する。r.muを保持した状態で呼ぶ。
func (r *Registry) remove(id string) {
	panel, ok := r.panels[id]
	if !ok {
		return
	}
	delete(r.panels, id)
	if panel.owner == "" {
		return
	}
	if key := ownerKey(panel.owner, panel.variant); r.current[key] == id {
		delete(r.current, key)
	}
}

func ownerKey(owner string, variant Variant) string {
	return owner + "\x00" + string(variant)
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCh:
			return
		}
	}
}

// evictIdle はIdleTTLを超えて操作のないパネルを削除する。
func (r *Registry) evictIdle() {
	cutoff := r.now().Add(-r.config.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, panel := range r.panels {
		if panel.idleSince().Before(cutoff) {
			delete(r.panels, id)
			evicted++
		}
	}
	for key, id := range r.current {
		if _, ok := r.panels[id]; !ok {
			delete(r.current, key)
		}
	}

	if evicted > 0 {
		r.logger.Info("evicted idle chat panels",
			slog.Int("evicted", evicted),
			slog.Int("remaining", len(r.panels)),
		)
	}
}
