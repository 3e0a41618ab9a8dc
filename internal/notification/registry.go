package notification

import (
	"log"
	"sync"
)

// Registry はユーザーIDからライブセッションを引くための登録簿。
type Registry interface {
	// Register はセッションを登録し、置き換えられた以前のセッションを返す。
	Register(userID string, s *Session) *Session
	// Unregister は登録中のセッションがsと同一の場合のみ登録を解除する。
	Unregister(userID string, s *Session) bool
	// Lookup はユーザーの現在のセッションを返す。
	Lookup(userID string) (*Session, bool)
}

// SessionRegistry はプロセス内で共有されるRegistryの実装。
// 1ユーザーにつき1セッションを保持し、後から登録したセッションが優先される。
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry は空の登録簿を生成する。
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Register はセッションを登録する。
// 同じユーザーの以前のセッションは閉じてから返す。
func (r *SessionRegistry) Register(userID string, s *Session) *Session {
	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()

	if prev != nil && prev != s {
		log.Printf("[Registry] 既存セッションを置き換えました: user=%s, old=%s, new=%s", userID, prev.ID, s.ID)
		prev.Close()
		return prev
	}
	return nil
}

// Unregister は登録中のセッションがsと同一の場合のみ登録を解除する。
// 置き換え済みの古いセッションの切断で新しいセッションが消えることはない。
func (r *SessionRegistry) Unregister(userID string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[userID]; ok && cur == s {
		delete(r.sessions, userID)
		return true
	}
	return false
}

// Lookup はユーザーの現在のセッションを返す。
func (r *SessionRegistry) Lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	return s, ok
}

// Len は登録中のセッション数を返す。
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll は全セッションを閉じて登録を空にする。シャットダウン時に使用する。
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
