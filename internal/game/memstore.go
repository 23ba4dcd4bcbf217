package game

import (
	"context"
	"sort"
	"sync"
)

// MemStore 内存版Store实现
// 满足接口的事务语义：WithinTx 期间持有写锁，改动先写入叠加层，
// 回调成功才合并进基础数据，失败整体丢弃，序号分配同样随之回滚。
// 供单元测试和免数据库的嵌入运行使用。
type MemStore struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	accounts map[string]*Account
	seqs     map[string]uint64
}

// NewMemStore 创建内存存储
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[uint64]*Session),
		accounts: make(map[string]*Account),
		seqs:     make(map[string]uint64),
	}
}

// GetSession 读取对局快照
func (m *MemStore) GetSession(_ context.Context, id uint64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// PutSession 写入对局快照
func (m *MemStore) PutSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

// ListSessions 按ID升序分页枚举对局
func (m *MemStore) ListSessions(_ context.Context, offset, limit int) ([]*Session, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uint64, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lo, hi := pageBounds(len(ids), offset, limit)
	out := make([]*Session, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		cp := *m.sessions[id]
		out = append(out, &cp)
	}
	return out, int64(len(ids)), nil
}

// GetAccount 读取账本条目
func (m *MemStore) GetAccount(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// PutAccount 写入账本条目
func (m *MemStore) PutAccount(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

// ListEarners 按登记序号升序枚举获过奖的账户
func (m *MemStore) ListEarners(_ context.Context, offset, limit int) ([]*Account, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	earners := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		if a.EarnerIndex > 0 {
			earners = append(earners, a)
		}
	}
	sort.Slice(earners, func(i, j int) bool { return earners[i].EarnerIndex < earners[j].EarnerIndex })

	lo, hi := pageBounds(len(earners), offset, limit)
	out := make([]*Account, 0, hi-lo)
	for _, a := range earners[lo:hi] {
		cp := *a
		out = append(out, &cp)
	}
	return out, int64(len(earners)), nil
}

// NextSequence 分配序号，首次分配返回1
func (m *MemStore) NextSequence(_ context.Context, name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[name]++
	return m.seqs[name], nil
}

// WithinTx 在写锁内执行回调，改动经叠加层缓冲，成功才合并
func (m *MemStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		base:     m,
		sessions: make(map[uint64]*Session),
		accounts: make(map[string]*Account),
		seqs:     make(map[string]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}

	// 提交叠加层
	for id, s := range tx.sessions {
		m.sessions[id] = s
	}
	for id, a := range tx.accounts {
		m.accounts[id] = a
	}
	for name, v := range tx.seqs {
		m.seqs[name] = v
	}
	return nil
}

// memTx 事务叠加层，读己之写，提交前不影响基础数据
type memTx struct {
	base     *MemStore
	sessions map[uint64]*Session
	accounts map[string]*Account
	seqs     map[string]uint64
}

func (t *memTx) GetSession(_ context.Context, id uint64) (*Session, error) {
	if s, ok := t.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	if s, ok := t.base.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (t *memTx) PutSession(_ context.Context, s *Session) error {
	cp := *s
	t.sessions[s.ID] = &cp
	return nil
}

func (t *memTx) ListSessions(ctx context.Context, offset, limit int) ([]*Session, int64, error) {
	// 事务内枚举只用于只读场景，直接基于基础数据加叠加层合并
	merged := make(map[uint64]*Session, len(t.base.sessions)+len(t.sessions))
	for id, s := range t.base.sessions {
		merged[id] = s
	}
	for id, s := range t.sessions {
		merged[id] = s
	}
	ids := make([]uint64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	lo, hi := pageBounds(len(ids), offset, limit)
	out := make([]*Session, 0, hi-lo)
	for _, id := range ids[lo:hi] {
		cp := *merged[id]
		out = append(out, &cp)
	}
	return out, int64(len(ids)), nil
}

func (t *memTx) GetAccount(_ context.Context, id string) (*Account, error) {
	if a, ok := t.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	if a, ok := t.base.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (t *memTx) PutAccount(_ context.Context, a *Account) error {
	cp := *a
	t.accounts[a.ID] = &cp
	return nil
}

func (t *memTx) ListEarners(_ context.Context, offset, limit int) ([]*Account, int64, error) {
	merged := make(map[string]*Account, len(t.base.accounts)+len(t.accounts))
	for id, a := range t.base.accounts {
		merged[id] = a
	}
	for id, a := range t.accounts {
		merged[id] = a
	}
	earners := make([]*Account, 0, len(merged))
	for _, a := range merged {
		if a.EarnerIndex > 0 {
			earners = append(earners, a)
		}
	}
	sort.Slice(earners, func(i, j int) bool { return earners[i].EarnerIndex < earners[j].EarnerIndex })
	lo, hi := pageBounds(len(earners), offset, limit)
	out := make([]*Account, 0, hi-lo)
	for _, a := range earners[lo:hi] {
		cp := *a
		out = append(out, &cp)
	}
	return out, int64(len(earners)), nil
}

func (t *memTx) NextSequence(_ context.Context, name string) (uint64, error) {
	if _, ok := t.seqs[name]; !ok {
		t.seqs[name] = t.base.seqs[name]
	}
	t.seqs[name]++
	return t.seqs[name], nil
}

// WithinTx 嵌套事务直接在当前事务内执行
func (t *memTx) WithinTx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

// pageBounds 计算分页切片边界，limit<=0 表示取到末尾
func pageBounds(total, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
