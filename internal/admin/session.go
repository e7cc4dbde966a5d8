package admin

import (
	"sync"
	"time"

	"vpn-reseller-bot/internal/db"
)

// SessionState — этап многошагового админского диалога. Помеченные
// состояния вместо строковых флагов режима.
type SessionState int

const (
	StateNone SessionState = iota
	// Добавление панели: поля запрашиваются по одному
	StateAwaitingPanelTitle
	StateAwaitingPanelBaseURL
	StateAwaitingPanelUsername
	StateAwaitingPanelPassword
	StateAwaitingPanelDomain
	// Рассылка
	StateAwaitingBroadcastText
	// Ручное пополнение баланса
	StateAwaitingTopupTgID
	StateAwaitingTopupAmount
)

type Session struct {
	State SessionState
	// Черновик добавляемой панели
	PanelDraft db.Panel
	// Кому зачисляем при ручном пополнении
	TopupTgID int64
	UpdatedAt time.Time
}

// SessionStore — состояние диалогов по id администратора, с TTL:
// брошенный на полпути диалог не висит вечно
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
	}
}

func (s *SessionStore) Get(actorID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[actorID]
	if !ok {
		return nil
	}
	if time.Since(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, actorID)
		return nil
	}
	return sess
}

func (s *SessionStore) Set(actorID int64, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now()
	s.sessions[actorID] = sess
}

func (s *SessionStore) Clear(actorID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, actorID)
}
