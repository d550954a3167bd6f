package guest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

func TestNewTypedFunction(t *testing.T) {
	t.Run("DerivesSignature", func(t *testing.T) {
		def, err := NewTypedFunction("Mix", func(a int32, s string, b bool, n int64) (string, error) {
			return s, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []wire.ParameterType{
			wire.ParamInt32, wire.ParamString, wire.ParamBool, wire.ParamInt64,
		}, def.ParameterTypes)
		assert.Equal(t, wire.ReturnString, def.ReturnType)
	})

	t.Run("VoidReturn", func(t *testing.T) {
		def, err := NewTypedFunction("Fire", func() {})
		require.NoError(t, err)
		assert.Equal(t, wire.ReturnVoid, def.ReturnType)
		assert.Empty(t, def.ParameterTypes)
	})

	t.Run("BytesParameterMapsToVecBytes", func(t *testing.T) {
		def, err := NewTypedFunction("Copy", func(b []byte, n int32) {})
		require.NoError(t, err)
		assert.Equal(t, []wire.ParameterType{wire.ParamVecBytes, wire.ParamInt32}, def.ParameterTypes)
	})

	t.Run("RejectsUnsupportedParameter", func(t *testing.T) {
		_, err := NewTypedFunction("Bad", func(f float64) {})
		require.Error(t, err)
	})

	t.Run("RejectsUnsupportedReturn", func(t *testing.T) {
		_, err := NewTypedFunction("Bad", func() float64 { return 0 })
		require.Error(t, err)
	})

	t.Run("RejectsNonFunc", func(t *testing.T) {
		_, err := NewTypedFunction("Bad", 42)
		require.Error(t, err)
	})

	t.Run("RejectsVariadic", func(t *testing.T) {
		_, err := NewTypedFunction("Bad", func(args ...int32) {})
		require.Error(t, err)
	})
}

func TestTypedHandlerInvocation(t *testing.T) {
	t.Run("DecodesArgumentsAndEncodesReply", func(t *testing.T) {
		def, err := NewTypedFunction("Add", func(a, b int32) int32 { return a + b })
		require.NoError(t, err)

		reply, err := def.Handler([]wire.Value{wire.Int32(2), wire.Int32(3)})
		require.NoError(t, err)
		res, err := wire.DecodeFunctionCallResult(reply)
		require.NoError(t, err)
		assert.Equal(t, int32(5), res.I32)
	})

	t.Run("BytesRoundTrip", func(t *testing.T) {
		def, err := NewTypedFunction("Rev", func(b []byte, n int32) []byte {
			out := make([]byte, n)
			for i := int32(0); i < n; i++ {
				out[i] = b[n-1-i]
			}
			return out
		})
		require.NoError(t, err)

		reply, err := def.Handler([]wire.Value{wire.ByteArray([]byte{1, 2, 3}), wire.Int32(3)})
		require.NoError(t, err)
		res, err := wire.DecodeFunctionCallResult(reply)
		require.NoError(t, err)
		assert.Equal(t, []byte{3, 2, 1}, res.Bytes)
	})

	t.Run("HandlerErrorPropagates", func(t *testing.T) {
		boom := errors.New("boom")
		def, err := NewTypedFunction("Fail", func() error { return boom })
		require.NoError(t, err)

		_, err = def.Handler(nil)
		require.ErrorIs(t, err, boom)
	})

	t.Run("GuestErrorPassesThroughTyped", func(t *testing.T) {
		def, err := NewTypedFunction("Fail", func() error {
			return Errorf(wire.GuestErrorCode, "deliberate")
		})
		require.NoError(t, err)

		_, err = def.Handler(nil)
		var ge *wire.GuestError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, wire.GuestErrorCode, ge.Code)
	})
}
