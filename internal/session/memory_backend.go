package session

import (
	"context"
	"sync"
	"time"
)

// memoryEntry は保存データと有効期限を保持する。
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend はプロセス内メモリにセッションを保存するBackend。
// 単一インスタンス構成とテスト用。再起動するとセッションは失われる。
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemoryBackend はMemoryBackendを生成する。
// cleanupIntervalが正の場合、期限切れエントリを定期的に削除するゴルーチンを開始する。
func NewMemoryBackend(cleanupInterval time.Duration) *MemoryBackend {
	b := &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go b.cleanupLoop(cleanupInterval)
	}
	return b
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (b *MemoryBackend) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Get は指定IDのデータを返す。
func (b *MemoryBackend) Get(_ context.Context, id string) ([]byte, error) {
	b.mu.RLock()
	entry, ok := b.entries[id]
	b.mu.RUnlock()

	if !ok || !b.now().Before(entry.expiresAt) {
		return nil, nil
	}
	return append([]byte(nil), entry.data...), nil
}

// Set は指定IDにデータを保存する。
func (b *MemoryBackend) Set(_ context.Context, id string, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[id] = memoryEntry{
		data:      append([]byte(nil), data...),
		expiresAt: b.now().Add(ttl),
	}
	return nil
}

// Delete は指定IDのデータを削除する。
func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, id)
	return nil
}

// Len は保持しているエントリ数を返す（期限切れで未削除のものを含む）。
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *MemoryBackend) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.removeExpired()
		case <-b.stopCh:
			return
		}
	}
}

// removeExpired は期限切れのエントリを削除する。
func (b *MemoryBackend) removeExpired() {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, entry := range b.entries {
		if !now.Before(entry.expiresAt) {
			delete(b.entries, id)
		}
	}
}

// compile-time interface check
var _ Backend = (*MemoryBackend)(nil)
