package service

import (
	"sync"
	"time"

	"github.com/darshanvss/image-clipper/model"
)

// Session 一次上传的会话状态
// 除 Result 外的字段在创建后不再变化；Result 只经 Commit 替换
type Session struct {
	ID        string
	FilePath  string
	MD5       string
	Width     int
	Height    int
	CreatedAt time.Time

	result *model.SegmentationResult
	token  uint64
}

// SessionStore 内存会话存储
// 分割结果归会话所有：新的分割请求或删除会话会使在途请求的令牌失效，
// 过期的在途结果在提交时被丢弃
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create 创建会话
func (s *SessionStore) Create(id, filePath, md5 string, width, height int) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:        id,
		FilePath:  filePath,
		MD5:       md5,
		Width:     width,
		Height:    height,
		CreatedAt: time.Now(),
	}
	s.sessions[id] = sess
	return sess
}

// Get 查找会话
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return sess, nil
}

// BeginRequest 领取新的请求令牌，同时使所有在途请求失效
func (s *SessionStore) BeginRequest(id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return 0, model.ErrSessionNotFound
	}
	sess.token++
	return sess.token, nil
}

// Commit 提交分割结果；令牌已过期时结果被丢弃
func (s *SessionStore) Commit(id string, token uint64, result *model.SegmentationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.ErrSessionNotFound
	}
	if sess.token != token {
		return model.ErrSuperseded
	}
	sess.result = result
	return nil
}

// Result 返回会话的最新分割结果
func (s *SessionStore) Result(id string) (*model.SegmentationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	if sess.result == nil {
		return nil, model.ErrNotSegmented
	}
	return sess.result, nil
}

// Delete 删除会话并返回其快照，供调用方清理文件
func (s *SessionStore) Delete(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	// 令牌失效，在途请求的结果不会再被提交
	sess.token++
	delete(s.sessions, id)
	return sess, nil
}

// Expired 返回超过保存期限的会话
func (s *SessionStore) Expired(maxAge time.Duration) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-maxAge)
	var expired []*Session
	for _, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			expired = append(expired, sess)
		}
	}
	return expired
}
