package game

import "context"

// 序号生成器名称
// 对局ID和获奖账户序号都从1开始单调递增，由存储层在事务内分配，
// 绝不做读-加-写三步的裸自增
const (
	SeqSession = "session_id"
	SeqEarner  = "earner_index"
)

// NextSessionID 分配下一个对局ID
func NextSessionID(ctx context.Context, s Store) (uint64, error) {
	return s.NextSequence(ctx, SeqSession)
}

// NextEarnerIndex 分配下一个获奖账户登记序号
// 在账户战绩首次从零变为非零的那一刻调用，登记先于记分
func NextEarnerIndex(ctx context.Context, s Store) (uint64, error) {
	return s.NextSequence(ctx, SeqEarner)
}
