package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyhaul/internal/models"
)

const nectar = models.CommodityID("nectar")

func TestReceiveWithinCapacity(t *testing.T) {
	l := NewLedger()
	l.Register(nectar, 10)

	rep, err := l.Receive(nectar, 4)
	require.NoError(t, err)
	assert.Equal(t, ReceiveReport{Accepted: 4}, rep)
	assert.Equal(t, 4, l.Quantity(nectar))
}

func TestReceiveOverflowAccounting(t *testing.T) {
	l := NewLedger()
	l.Register(nectar, 10)
	_, err := l.Receive(nectar, 8)
	require.NoError(t, err)

	rep, err := l.Receive(nectar, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Accepted)
	assert.Equal(t, 5, rep.Discarded)
	assert.Equal(t, 7, rep.Accepted+rep.Discarded)
	assert.Equal(t, 10, l.Quantity(nectar), "quantity ends exactly at capacity")

	// Already full: everything is discarded.
	rep, err = l.Receive(nectar, 3)
	require.NoError(t, err)
	assert.Equal(t, ReceiveReport{Accepted: 0, Discarded: 3}, rep)
}

func TestConsumeIsAtomic(t *testing.T) {
	l := NewLedger()
	l.Register(nectar, 10)
	_, _ = l.Receive(nectar, 5)

	err := l.Consume(nectar, 6)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, l.Quantity(nectar), "failed consume leaves stock untouched")

	require.NoError(t, l.Consume(nectar, 5))
	assert.Equal(t, 0, l.Quantity(nectar))
}

func TestCapacityShrinkKeepsStock(t *testing.T) {
	l := NewLedger()
	l.Register(nectar, 10)
	_, _ = l.Receive(nectar, 9)

	require.NoError(t, l.SetCapacity(nectar, 4))
	assert.Equal(t, 9, l.Quantity(nectar), "shrink must not destroy stock")

	// No headroom: future receives discard everything.
	rep, err := l.Receive(nectar, 2)
	require.NoError(t, err)
	assert.Equal(t, ReceiveReport{Accepted: 0, Discarded: 2}, rep)

	// Consuming below the new ceiling opens headroom again.
	require.NoError(t, l.Consume(nectar, 6))
	rep, err = l.Receive(nectar, 2)
	require.NoError(t, err)
	assert.Equal(t, ReceiveReport{Accepted: 1, Discarded: 1}, rep)
	assert.Equal(t, 4, l.Quantity(nectar))
}

func TestInvalidArguments(t *testing.T) {
	l := NewLedger()
	l.Register(nectar, 10)

	_, err := l.Receive(nectar, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.Receive("unknown", 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, l.Consume(nectar, -1), ErrInvalidArgument)
	assert.ErrorIs(t, l.Consume("unknown", 1), ErrInvalidArgument)
	assert.ErrorIs(t, l.SetCapacity("unknown", 5), ErrInvalidArgument)
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewLedger()
	l.Register(nectar, 10)
	_, _ = l.Receive(nectar, 3)

	snap := l.Snapshot()
	snap[nectar] = 0
	assert.Equal(t, 3, l.Quantity(nectar))
}
