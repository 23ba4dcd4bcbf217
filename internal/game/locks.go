package game

import (
	"sort"
	"sync"
)

// lockTable 按键互斥表
// 对局与账户都是独立串行访问的资源：不同键的操作完全并行，
// 相同键的操作排队。空闲锁条目按引用计数回收，表不会无限增长。
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// Acquire 锁住指定键，返回幂等的释放函数
func (t *lockTable) Acquire(key string) func() {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &lockEntry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			t.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(t.entries, key)
			}
			t.mu.Unlock()
		})
	}
}

// AcquireAll 去重并按字典序依次锁住一组键
// 所有持有多把锁的调用方走同一顺序，互相之间不会交叉等待
func (t *lockTable) AcquireAll(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)

	releases := make([]func(), 0, len(uniq))
	for _, k := range uniq {
		releases = append(releases, t.Acquire(k))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// 逆序释放
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
		})
	}
}
