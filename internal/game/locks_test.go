package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTable_MutualExclusion(t *testing.T) {
	lt := newLockTable()

	// 同一键下的并发读改写不丢更新
	const n = 200
	var counter int
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			release := lt.Acquire("alice")
			counter++
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, n, counter)
}

func TestLockTable_ReleaseIdempotent(t *testing.T) {
	lt := newLockTable()

	release := lt.Acquire("alice")
	release()
	// 重复释放无副作用
	release()

	// 键可以再次锁住
	again := lt.Acquire("alice")
	again()
}

func TestLockTable_EntriesReclaimed(t *testing.T) {
	lt := newLockTable()

	r1 := lt.Acquire("alice")
	r2 := lt.Acquire("bob")
	lt.mu.Lock()
	assert.Len(t, lt.entries, 2)
	lt.mu.Unlock()

	r1()
	r2()

	// 空闲条目按引用计数回收，表不累积历史键
	lt.mu.Lock()
	assert.Empty(t, lt.entries)
	lt.mu.Unlock()
}

func TestLockTable_AcquireAll(t *testing.T) {
	lt := newLockTable()

	// 重复键去重，不会自己等自己
	release := lt.AcquireAll("alice", "alice", "bob")
	release()

	// 两组键以相反顺序并发抢锁：内部统一排序，不会交叉等待
	var wg sync.WaitGroup
	const rounds = 100
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			r := lt.AcquireAll("alice", "bob", "platform")
			r()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			r := lt.AcquireAll("platform", "alice")
			r()
		}
	}()
	wg.Wait()

	lt.mu.Lock()
	assert.Empty(t, lt.entries)
	lt.mu.Unlock()

	require.NotPanics(t, func() {
		r := lt.AcquireAll()
		r()
	})
}
