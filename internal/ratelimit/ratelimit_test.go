package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/sessionkit/auth-api/mocks"
)

func TestAllow_SetsTTLOnlyOnFirstHit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockCounterStore(ctrl)
	l := NewLimiter(st)
	ctx := context.Background()
	rule := Rule{Name: "login", Limit: 2, TTL: 1500 * time.Millisecond}

	gomock.InOrder(
		st.EXPECT().Incr(gomock.Any(), "k").Return(int64(1), nil),
		st.EXPECT().PExpire(gomock.Any(), "k", 1500*time.Millisecond).Return(nil),
		st.EXPECT().Incr(gomock.Any(), "k").Return(int64(2), nil),
		st.EXPECT().Incr(gomock.Any(), "k").Return(int64(3), nil),
	)

	require.NoError(t, l.Allow(ctx, rule, "k"))
	require.NoError(t, l.Allow(ctx, rule, "k"))

	err := l.Allow(ctx, rule, "k")
	var te *ThrottledError
	require.ErrorAs(t, err, &te)
	require.Equal(t, DefaultMessage, te.Message)
	require.Equal(t, "login", te.Rule)
}

func TestAllow_CustomMessage(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockCounterStore(ctrl)
	st.EXPECT().Incr(gomock.Any(), "k").Return(int64(11), nil)

	err := NewLimiter(st).Allow(context.Background(), Rule{Limit: 10, TTL: time.Second, Message: "slow down"}, "k")
	require.EqualError(t, err, "slow down")
}

// Правило без лимита — пропуск без обращения к хранилищу.
func TestAllow_NoLimit_NoStoreCalls(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockCounterStore(ctrl)

	require.NoError(t, NewLimiter(st).Allow(context.Background(), Rule{}, "k"))
}

func TestAllow_StoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("redis down")

	t.Run("incr", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockCounterStore(ctrl)
		st.EXPECT().Incr(gomock.Any(), "k").Return(int64(0), boom)

		err := NewLimiter(st).Allow(context.Background(), Rule{Limit: 1, TTL: time.Second}, "k")
		require.ErrorIs(t, err, boom)
		var te *ThrottledError
		require.False(t, errors.As(err, &te))
	})

	t.Run("pexpire", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		st := mocks.NewMockCounterStore(ctrl)
		st.EXPECT().Incr(gomock.Any(), "k").Return(int64(1), nil)
		st.EXPECT().PExpire(gomock.Any(), "k", time.Second).Return(boom)

		err := NewLimiter(st).Allow(context.Background(), Rule{Limit: 1, TTL: time.Second}, "k")
		require.ErrorIs(t, err, boom)
	})
}

func TestKeys(t *testing.T) {
	t.Parallel()

	require.Equal(t, "custom_rate_limit:42:/auth/login", CustomKey("42", "/auth/login"))
	require.Equal(t, "throttle:burst:10.0.0.1:/auth/me", ThrottleKey("burst", "10.0.0.1", "/auth/me"))
}
