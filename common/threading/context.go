package threading

import "context"

type shardIDKey struct{}

func withShardID(ctx context.Context, shard int) context.Context {
	return context.WithValue(ctx, shardIDKey{}, shard)
}

// ShardID returns the shard index the calling task runs on, or false when
// ctx is not bound to a pool shard.
func ShardID(ctx context.Context) (int, bool) {
	shard, ok := ctx.Value(shardIDKey{}).(int)
	return shard, ok
}

// MustShardID is ShardID for call sites that are only ever reached from a
// pool task. It panics off-pool.
func MustShardID(ctx context.Context) int {
	shard, ok := ShardID(ctx)
	if !ok {
		panic("threading: context is not bound to a pool shard")
	}
	return shard
}
