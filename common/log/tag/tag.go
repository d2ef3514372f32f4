package tag

import (
	"time"

	"go.uber.org/zap"
)

// Tag is a typed key/value pair attached to log lines. Constructors in this
// package are the only way to build one, which keeps key names consistent
// across the repo.
type Tag struct {
	field zap.Field
}

// Field returns the underlying zap field.
func (t Tag) Field() zap.Field {
	return t.field
}

func newStringTag(key string, value string) Tag {
	return Tag{field: zap.String(key, value)}
}

func newIntTag(key string, value int) Tag {
	return Tag{field: zap.Int(key, value)}
}

func newUint64Tag(key string, value uint64) Tag {
	return Tag{field: zap.Uint64(key, value)}
}

func newBoolTag(key string, value bool) Tag {
	return Tag{field: zap.Bool(key, value)}
}

func newDurationTag(key string, value time.Duration) Tag {
	return Tag{field: zap.Duration(key, value)}
}

// Error returns a tag for the error being reported.
func Error(err error) Tag {
	return Tag{field: zap.Error(err)}
}

// Shard returns a tag for the shard index owning the work.
func Shard(shard int) Tag {
	return newIntTag("shard", shard)
}

// Shards returns a tag for a shard count.
func Shards(n int) Tag {
	return newIntTag("shards", n)
}

// CacheID returns a tag identifying one cache partition.
func CacheID(id string) Tag {
	return newStringTag("cache-id", id)
}

// Evicters returns a tag for the number of registered cache partitions.
func Evicters(n int) Tag {
	return newIntTag("evicters", n)
}

// Bytes returns a tag for a byte amount.
func Bytes(n uint64) Tag {
	return newUint64Tag("bytes", n)
}

// UsageBytes returns a tag for the measured in-memory footprint.
func UsageBytes(n uint64) Tag {
	return newUint64Tag("usage-bytes", n)
}

// LimitBytes returns a tag for a memory limit.
func LimitBytes(n uint64) Tag {
	return newUint64Tag("limit-bytes", n)
}

// AccessCount returns a tag for an accumulated access count.
func AccessCount(n uint64) Tag {
	return newUint64Tag("access-count", n)
}

// ReadAhead returns a tag for the read-ahead state.
func ReadAhead(ok bool) Tag {
	return newBoolTag("read-ahead", ok)
}

// Latency returns a tag for an operation duration.
func Latency(d time.Duration) Tag {
	return newDurationTag("latency", d)
}

// Address returns a tag for a network listen address.
func Address(addr string) Tag {
	return newStringTag("address", addr)
}

// Name returns a general-purpose name tag.
func Name(name string) Tag {
	return newStringTag("name", name)
}

// Dynamic returns a tag with a caller-chosen key. Prefer a typed constructor
// when one exists.
func Dynamic(key string, value interface{}) Tag {
	return Tag{field: zap.Any(key, value)}
}
