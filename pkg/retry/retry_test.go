package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errFlaky = errors.New("flaky")

func TestDo_SucceedsAfterFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	calls := 0

	got, err := Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	}, WithBaseDelay(time.Millisecond), WithLogger(zap.New(core), "jumia"))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, logs.FilterMessage("retrying operation").Len())
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	}, WithMaxAttempts(4), WithBaseDelay(time.Millisecond), WithBackoffFactor(1))

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 4, calls)
}

func TestDo_ShouldRetryStopsEarly(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, permanent
	}, WithBaseDelay(time.Millisecond), WithShouldRetry(func(err error) bool {
		return !errors.Is(err, permanent)
	}))

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errFlaky
	}, WithBaseDelay(time.Hour))

	assert.ErrorIs(t, err, errFlaky)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestOptions_Delay(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, time.Second, o.Delay(1))
	assert.Equal(t, 2*time.Second, o.Delay(2))
	assert.Equal(t, 4*time.Second, o.Delay(3))
}
