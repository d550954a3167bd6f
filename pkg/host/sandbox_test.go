package host

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangcheng-yu/hyperlight/internal/logger"
	"github.com/liangcheng-yu/hyperlight/internal/wire"
	"github.com/liangcheng-yu/hyperlight/pkg/guest"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Writer = &bytes.Buffer{}
	return cfg
}

func startSandbox(t *testing.T, cfg Config, main guest.MainFunc) *Sandbox {
	t.Helper()
	sb, err := NewSandbox(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })
	require.NoError(t, sb.Start(main))
	return sb
}

// ============================================================================
// End-to-End Scenarios
// ============================================================================

func TestEchoRoundTrip(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Echo", func(s string) string { return s })
	})

	res, err := sb.Call("Echo", wire.ReturnString, wire.Str("hello"))
	require.NoError(t, err)
	assert.Equal(t, wire.ReturnString, res.Kind)
	assert.Equal(t, "hello", res.Str)

	assert.Nil(t, sb.readGuestError(), "guest error buffer must be clean after success")
	assert.True(t, sb.out.Empty(), "reply was consumed")
}

func TestMissingFunction(t *testing.T) {
	sb := startSandbox(t, testConfig(), nil)

	_, err := sb.Call("Missing", wire.ReturnVoid)
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, wire.GuestFunctionNotFound, ge.Code)
	assert.Equal(t, "Missing", ge.Message)
	assert.True(t, sb.out.Empty(), "no reply frame on error")
}

func TestParameterTypeMismatch(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Add", func(a, b int32) int32 { return a + b })
	})

	_, err := sb.Call("Add", wire.ReturnInt32, wire.Int32(2), wire.Str("three"))
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, wire.GuestFunctionParameterTypeMismatch, ge.Code)
	assert.Equal(t, "Function Add parameter 1.", ge.Message)
}

func TestArityMismatch(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Add", func(a, b int32) int32 { return a + b })
	})

	_, err := sb.Call("Add", wire.ReturnInt32, wire.Int32(2))
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, wire.GuestFunctionIncorrectNumberOfParameters, ge.Code)
	assert.Equal(t, "Called function Add with 1 parameters but it takes 2.", ge.Message)
}

func TestMissingArrayLength(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Copy", func(b []byte, n int32) {})
	})

	_, err := sb.Call("Copy", wire.ReturnVoid, wire.ByteArray([]byte{1, 2, 3}))
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, wire.ArrayLengthParameterMissing, ge.Code)
	assert.Equal(t, "Last parameter should be the length of the array", ge.Message)
}

func TestMisplacedArrayLength(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Copy", func(b []byte, n int32) {})
	})

	// vec_bytes followed by a string instead of the int32 length.
	_, err := sb.Call("Copy", wire.ReturnVoid, wire.ByteArray([]byte{1}), wire.Str("x"))
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, wire.ArrayLengthParameterMissing, ge.Code)
	assert.Equal(t, "Parameter 1", ge.Message)
}

func TestGuestCallsHostFunction(t *testing.T) {
	cfg := testConfig()
	sb, err := NewSandbox(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })

	require.NoError(t, sb.RegisterHostFunction("GetTwo", nil, wire.ReturnInt32,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.Int32Result(2), nil
		}))

	require.NoError(t, sb.Start(func(rt *guest.Runtime) error {
		return rt.RegisterTyped("CallHost", func() (int32, error) {
			return rt.CallHostInt32("GetTwo")
		})
	}))

	res, err := sb.Call("CallHost", wire.ReturnInt32)
	require.NoError(t, err)
	assert.Equal(t, int32(2), res.I32)
}

func TestAbortWithCode(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.Register(guest.Definition{
			Name:       "Crash",
			ReturnType: wire.ReturnVoid,
			Handler: func([]wire.Value) ([]byte, error) {
				rt.AbortWithMessage(7, "boom")
				return nil, guest.Errorf(wire.UnknownError, "returned after in-process abort")
			},
		})
	})

	_, err := sb.Call("Crash", wire.ReturnVoid)
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, byte(7), abort.Code)
	assert.Equal(t, "boom", abort.Message)

	// The sandbox is dead afterwards.
	_, err = sb.Call("Crash", wire.ReturnVoid)
	require.ErrorIs(t, err, ErrSandboxDead)
}

// ============================================================================
// Outbound Call Behavior
// ============================================================================

func TestNestedHostCallsAreLIFO(t *testing.T) {
	sb, err := NewSandbox(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })

	calls := []string{}
	require.NoError(t, sb.RegisterHostFunction("First", nil, wire.ReturnInt32,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			calls = append(calls, "First")
			return wire.Int32Result(1), nil
		}))
	require.NoError(t, sb.RegisterHostFunction("Second", nil, wire.ReturnInt32,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			calls = append(calls, "Second")
			return wire.Int32Result(2), nil
		}))

	require.NoError(t, sb.Start(func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Both", func() (int32, error) {
			a, err := rt.CallHostInt32("First")
			if err != nil {
				return 0, err
			}
			b, err := rt.CallHostInt32("Second")
			if err != nil {
				return 0, err
			}
			return a*10 + b, nil
		})
	}))

	res, err := sb.Call("Both", wire.ReturnInt32)
	require.NoError(t, err)
	assert.Equal(t, int32(12), res.I32)
	assert.Equal(t, []string{"First", "Second"}, calls)
	assert.True(t, sb.in.Empty())
	assert.True(t, sb.out.Empty())
}

func TestHostExceptionUnwindsGuest(t *testing.T) {
	sb, err := NewSandbox(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })

	require.NoError(t, sb.RegisterHostFunction("Explode", nil, wire.ReturnInt32,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.FunctionCallResult{}, assert.AnError
		}))

	handlerResumed := false
	require.NoError(t, sb.Start(func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Risky", func() (int32, error) {
			v, err := rt.CallHostInt32("Explode")
			if err != nil {
				return 0, err
			}
			handlerResumed = true
			return v, nil
		})
	}))

	_, err = sb.Call("Risky", wire.ReturnInt32)
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, wire.OutbError, ge.Code)
	assert.False(t, handlerResumed, "host failure must unwind the in-flight call")
}

func TestUnknownHostFunctionFails(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("CallNowhere", func() (int32, error) {
			return rt.CallHostInt32("Nowhere")
		})
	})

	_, err := sb.Call("CallNowhere", wire.ReturnInt32)
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, ge.Message, "Nowhere")
}

func TestHostArgumentTypeChecking(t *testing.T) {
	sb, err := NewSandbox(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })

	require.NoError(t, sb.RegisterHostFunction("WantsString",
		[]wire.ParameterType{wire.ParamString}, wire.ReturnVoid,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.VoidResult(), nil
		}))

	require.NoError(t, sb.Start(func(rt *guest.Runtime) error {
		return rt.RegisterTyped("BadCall", func() error {
			return rt.CallHostVoid("WantsString", wire.Int32(1))
		})
	}))

	_, err = sb.Call("BadCall", wire.ReturnVoid)
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, ge.Message, "parameter 0")
}

func TestWrongReturnKindFromHost(t *testing.T) {
	sb, err := NewSandbox(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })

	require.NoError(t, sb.RegisterHostFunction("Unsigned", nil, wire.ReturnUInt64,
		func([]wire.Value) (wire.FunctionCallResult, error) {
			return wire.UInt64Result(1), nil
		}))

	require.NoError(t, sb.Start(func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Expecting", func() (int64, error) {
			// Asks for int64 from a function advertised as uint64.
			return rt.CallHostInt64("Unsigned")
		})
	}))

	_, err = sb.Call("Expecting", wire.ReturnInt64)
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Contains(t, ge.Message, "returned uint64, expected int64")
}

// ============================================================================
// Builtins, Print, Logging
// ============================================================================

func TestHostPrint(t *testing.T) {
	out := &bytes.Buffer{}
	cfg := DefaultConfig()
	cfg.Writer = out

	sb, err := NewSandbox(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })
	require.NoError(t, sb.Start(func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Say", func(msg string) (int32, error) {
			return rt.Print(msg)
		})
	}))

	res, err := sb.Call("Say", wire.ReturnInt32, wire.Str("hello, host"))
	require.NoError(t, err)
	assert.Equal(t, int32(len("hello, host")), res.I32)
	assert.Equal(t, "hello, host", out.String())
}

func TestBuiltinExports(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		if err := rt.RegisterTyped("Pages", func() (uint32, error) {
			return rt.OSPageSize()
		}); err != nil {
			return err
		}
		return rt.RegisterTyped("Boundary", func() (uint64, error) {
			return rt.StackBoundary()
		})
	})

	res, err := sb.Call("Pages", wire.ReturnUInt32)
	require.NoError(t, err)
	assert.NotZero(t, res.U32)

	res, err = sb.Call("Boundary", wire.ReturnUInt64)
	require.NoError(t, err)
	assert.Equal(t, sb.peb.MinStackAddr(), res.U64)
}

func TestGuestLogForwarding(t *testing.T) {
	logOut := &strings.Builder{}
	logger.InitWithWriter(logOut, "DEBUG", "text")
	t.Cleanup(func() { logger.InitWithWriter(&strings.Builder{}, "INFO", "text") })

	cfg := testConfig()
	cfg.MaxLogLevel = wire.LogTrace
	sb := startSandbox(t, cfg, func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Note", func(msg string) error {
			rt.Logger().Info(msg, "answer", 42)
			return nil
		})
	})

	_, err := sb.Call("Note", wire.ReturnVoid, wire.Str("from inside"))
	require.NoError(t, err)
	assert.Contains(t, logOut.String(), "from inside")
	assert.Contains(t, logOut.String(), "answer=42")
}

func TestGuestLogLevelFiltered(t *testing.T) {
	logOut := &strings.Builder{}
	logger.InitWithWriter(logOut, "DEBUG", "text")
	t.Cleanup(func() { logger.InitWithWriter(&strings.Builder{}, "INFO", "text") })

	cfg := testConfig()
	cfg.MaxLogLevel = wire.LogError
	sb := startSandbox(t, cfg, func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Quiet", func() error {
			rt.Logger().Info("should be dropped")
			return nil
		})
	})

	_, err := sb.Call("Quiet", wire.ReturnVoid)
	require.NoError(t, err)
	assert.NotContains(t, logOut.String(), "should be dropped")
}

// ============================================================================
// Dispatcher Edge Cases
// ============================================================================

func TestFallbackDispatcher(t *testing.T) {
	fallback := func(rt *guest.Runtime, call *wire.FunctionCall) ([]byte, error) {
		if call.Name != "Dynamic" {
			return nil, guest.Errorf(wire.GuestFunctionNotFound, "%s", call.Name)
		}
		return guest.StringReply("resolved dynamically")
	}

	sb, err := NewSandbox(testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sb.Close() })
	require.NoError(t, sb.Start(nil, guest.WithFallbackDispatcher(fallback)))

	res, err := sb.Call("Dynamic", wire.ReturnString)
	require.NoError(t, err)
	assert.Equal(t, "resolved dynamically", res.Str)

	_, err = sb.Call("StillMissing", wire.ReturnVoid)
	var ge *wire.GuestError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, wire.GuestFunctionNotFound, ge.Code)
}

func TestInvalidCallTypeRejected(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Echo", func(s string) string { return s })
	})

	// Hand-push a frame marked as a host call and trigger the dispatcher
	// directly.
	call := &wire.FunctionCall{Name: "Echo", CallType: wire.CallTypeHost, ReturnType: wire.ReturnString}
	frame, err := call.Encode()
	require.NoError(t, err)
	require.NoError(t, sb.in.Push(frame))

	sb.rt.Dispatch()

	ge := sb.readGuestError()
	require.NotNil(t, ge)
	assert.Equal(t, wire.GuestErrorCode, ge.Code)
	assert.Equal(t, "Invalid Function Call Type", ge.Message)
}

func TestEmptyFunctionName(t *testing.T) {
	sb := startSandbox(t, testConfig(), nil)

	call := &wire.FunctionCall{Name: "", CallType: wire.CallTypeGuest}
	frame, err := call.Encode()
	require.NoError(t, err)
	require.NoError(t, sb.in.Push(frame))

	sb.rt.Dispatch()

	ge := sb.readGuestError()
	require.NotNil(t, ge)
	assert.Equal(t, wire.GuestFunctionNameNotProvided, ge.Code)
}

func TestHandlerPanicAborts(t *testing.T) {
	sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
		return rt.RegisterTyped("Blow", func() { panic("unexpected state") })
	})

	_, err := sb.Call("Blow", wire.ReturnVoid)
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Contains(t, abort.Message, "unexpected state")
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestSandboxLifecycle(t *testing.T) {
	t.Run("DispatchPointerPublished", func(t *testing.T) {
		sb := startSandbox(t, testConfig(), nil)
		assert.Equal(t, guest.DispatchHandle, sb.peb.DispatchPtr())
	})

	t.Run("CallBeforeStartRejected", func(t *testing.T) {
		sb, err := NewSandbox(testConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = sb.Close() })
		_, err = sb.Call("Anything", wire.ReturnVoid)
		require.Error(t, err)
	})

	t.Run("DoubleStartRejected", func(t *testing.T) {
		sb := startSandbox(t, testConfig(), nil)
		require.Error(t, sb.Start(nil))
	})

	t.Run("RegisterHostFunctionAfterStartRejected", func(t *testing.T) {
		sb := startSandbox(t, testConfig(), nil)
		err := sb.RegisterHostFunction("Late", nil, wire.ReturnVoid,
			func([]wire.Value) (wire.FunctionCallResult, error) {
				return wire.VoidResult(), nil
			})
		require.Error(t, err)
	})

	t.Run("DuplicateGuestRegistrationFailsStart", func(t *testing.T) {
		sb, err := NewSandbox(testConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = sb.Close() })
		err = sb.Start(func(rt *guest.Runtime) error {
			if err := rt.RegisterTyped("Dup", func() {}); err != nil {
				return err
			}
			return rt.RegisterTyped("Dup", func() {})
		})
		require.Error(t, err)
	})

	t.Run("SandboxesHaveDistinctIDs", func(t *testing.T) {
		a := startSandbox(t, testConfig(), nil)
		b := startSandbox(t, testConfig(), nil)
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("SequentialCallsReuseBuffers", func(t *testing.T) {
		sb := startSandbox(t, testConfig(), func(rt *guest.Runtime) error {
			return rt.RegisterTyped("Echo", func(s string) string { return s })
		})
		for i := 0; i < 50; i++ {
			res, err := sb.Call("Echo", wire.ReturnString, wire.Str("again"))
			require.NoError(t, err)
			require.Equal(t, "again", res.Str)
		}
	})
}
