package guest

import "github.com/liangcheng-yu/hyperlight/internal/wire"

// Reply builders for hand-written handlers: each returns the serialized
// size-prefixed reply frame the dispatcher expects back.

func VoidReply() ([]byte, error) {
	r := wire.VoidResult()
	return r.Encode()
}

func Int32Reply(v int32) ([]byte, error) {
	r := wire.Int32Result(v)
	return r.Encode()
}

func Int64Reply(v int64) ([]byte, error) {
	r := wire.Int64Result(v)
	return r.Encode()
}

func UInt32Reply(v uint32) ([]byte, error) {
	r := wire.UInt32Result(v)
	return r.Encode()
}

func UInt64Reply(v uint64) ([]byte, error) {
	r := wire.UInt64Result(v)
	return r.Encode()
}

func BoolReply(v bool) ([]byte, error) {
	r := wire.BoolResult(v)
	return r.Encode()
}

func StringReply(s string) ([]byte, error) {
	r := wire.StringResult(s)
	return r.Encode()
}

func BytesReply(b []byte) ([]byte, error) {
	r := wire.BytesResult(b)
	return r.Encode()
}

func BufferReply(b []byte) ([]byte, error) {
	r := wire.BufferResult(b)
	return r.Encode()
}
