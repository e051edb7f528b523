package errs

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", &Error{Kind: KindEffect, Err: cause}, "EFFECT: boom"},
		{"with op", &Error{Kind: KindSelector, Op: "doubled", Err: cause}, "SELECTOR: doubled: boom"},
		{"with action", &Error{Kind: KindReducer, Op: "counter", ActionType: "increment", Err: cause}, "REDUCER: counter (action=increment): boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, cause)
		})
	}
}

func TestKindHelpers_Wrapped(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", New(KindReducer, "counter", errors.New("bad")))

	assert.True(t, IsReducer(err))
	assert.False(t, IsEffect(err))
	assert.False(t, IsSelector(errors.New("plain")))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindReducer, kind)
}

func TestFromPanic(t *testing.T) {
	sentinel := errors.New("sentinel")
	assert.ErrorIs(t, FromPanic(sentinel), sentinel)
	assert.Equal(t, "panic: 42", FromPanic(42).Error())
}

func TestLogSink_StructuredFields(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	sink.Report(&Error{Kind: KindSubscriber, Op: "sub-1", Seq: 3, Err: errors.New("oops")})

	out := buf.String()
	assert.Contains(t, out, "kind=SUBSCRIBER")
	assert.Contains(t, out, "op=sub-1")
	assert.Contains(t, out, "seq=3")
}

func TestMulti_FansOut(t *testing.T) {
	var a, b Collector
	sink := Multi(&a, nil, &b)

	sink.Report(errors.New("x"))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 1, b.Len())
}
