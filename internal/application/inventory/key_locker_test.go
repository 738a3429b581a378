package inventory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func k(item, wh string) entity.PositionKey {
	return entity.PositionKey{ItemID: item, WarehouseID: wh}
}

func TestKeyLocker_MutualExclusionPerKey(t *testing.T) {
	l := NewKeyLocker()
	var inside, maxInside atomic.Int32

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			unlock, err := l.Lock(context.Background(), k("X", "W1"))
			if err != nil {
				return err
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(100 * time.Microsecond)
			inside.Add(-1)
			unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, l.size())
}

func TestKeyLocker_IndependentKeysDoNotBlock(t *testing.T) {
	l := NewKeyLocker()
	unlockA, err := l.Lock(context.Background(), k("X", "W1"))
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctx, k("X", "W2"), k("Y", "W1"))
	require.NoError(t, err)
	unlockB()
}

func TestKeyLocker_TimeoutReleasesPartialAcquisition(t *testing.T) {
	l := NewKeyLocker()
	// W2 ocupada; una solicitud (W1, W2) toma W1 primero y debe soltarla al vencer.
	unlockW2, err := l.Lock(context.Background(), k("X", "W2"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, k("X", "W2"), k("X", "W1"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	unlockW1, err := l.Lock(short, k("X", "W1"))
	require.NoError(t, err, "W1 quedó liberada tras el timeout")
	unlockW1()

	unlockW2()
	assert.Equal(t, 0, l.size())
}

func TestKeyLocker_DuplicateKeysAndDoubleUnlock(t *testing.T) {
	l := NewKeyLocker()
	unlock, err := l.Lock(context.Background(), k("X", "W1"), k("X", "W1"))
	require.NoError(t, err)
	unlock()
	unlock()
	assert.Equal(t, 0, l.size())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlock, err = l.Lock(ctx, k("X", "W1"))
	require.NoError(t, err)
	unlock()
}

func TestKeyLocker_CancelledContext(t *testing.T) {
	l := NewKeyLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Lock(ctx, k("X", "W1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, l.size())
}

func TestSortedUnique(t *testing.T) {
	got := sortedUnique([]entity.PositionKey{k("B", "W2"), k("A", "W2"), k("Z", "W1"), k("A", "W2")})
	assert.Equal(t, []entity.PositionKey{k("Z", "W1"), k("A", "W2"), k("B", "W2")}, got)
}
