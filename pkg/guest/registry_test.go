package guest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

func noopHandler([]wire.Value) ([]byte, error) { return VoidReply() }

func TestRegistry(t *testing.T) {
	t.Run("LookupFindsEveryRegisteredFunction", func(t *testing.T) {
		r := NewRegistry()
		names := []string{"Zed", "Alpha", "Mike", "Bravo", "Yankee"}
		for _, n := range names {
			require.NoError(t, r.Register(Definition{Name: n, Handler: noopHandler}))
		}
		require.NoError(t, r.Seal())

		for _, n := range names {
			def, ok := r.Lookup(n)
			require.True(t, ok, "lookup %s", n)
			assert.Equal(t, n, def.Name)
		}
	})

	t.Run("LookupIsCaseSensitive", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Definition{Name: "Echo", Handler: noopHandler}))
		require.NoError(t, r.Seal())

		_, ok := r.Lookup("echo")
		assert.False(t, ok)
	})

	t.Run("LookupBeforeSealMisses", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Definition{Name: "Echo", Handler: noopHandler}))
		_, ok := r.Lookup("Echo")
		assert.False(t, ok)
	})

	t.Run("DuplicateRejectedAtSeal", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Definition{Name: "Echo", Handler: noopHandler}))
		require.NoError(t, r.Register(Definition{Name: "Echo", Handler: noopHandler}))
		require.Error(t, r.Seal())
	})

	t.Run("RegisterAfterSealRejected", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Seal())
		require.Error(t, r.Register(Definition{Name: "Late", Handler: noopHandler}))
	})

	t.Run("EmptyNameRejected", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(Definition{Handler: noopHandler})
		var ge *wire.GuestError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, wire.GuestFunctionNameNotProvided, ge.Code)
	})

	t.Run("TableLimitEnforced", func(t *testing.T) {
		r := NewRegistry()
		for i := 0; i < maxGuestFunctions; i++ {
			require.NoError(t, r.Register(Definition{Name: fmt.Sprintf("F%05d", i), Handler: noopHandler}))
		}
		err := r.Register(Definition{Name: "Overflow", Handler: noopHandler})
		var ge *wire.GuestError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, wire.TooManyGuestFunctions, ge.Code)
	})
}

func TestValidateSignature(t *testing.T) {
	t.Run("VecBytesNeedsLengthCompanion", func(t *testing.T) {
		err := validateSignature("Copy", []wire.ParameterType{wire.ParamVecBytes})
		var ge *wire.GuestError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, wire.ArrayLengthParameterMissing, ge.Code)
	})

	t.Run("VecBytesFollowedByInt32Valid", func(t *testing.T) {
		err := validateSignature("Copy", []wire.ParameterType{wire.ParamVecBytes, wire.ParamInt32})
		require.NoError(t, err)
	})

	t.Run("VecBytesFollowedByOtherInvalid", func(t *testing.T) {
		err := validateSignature("Copy", []wire.ParameterType{wire.ParamVecBytes, wire.ParamString})
		require.Error(t, err)
	})

	t.Run("UnknownKindRejected", func(t *testing.T) {
		err := validateSignature("X", []wire.ParameterType{wire.ParameterType(99)})
		require.True(t, errors.Is(err, wire.ErrUnsupportedTag))
	})
}
