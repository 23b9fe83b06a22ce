package surface

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSurface struct {
	Board
	openErr error
}

func (f *failingSurface) Open(ctx context.Context, s Snapshot) (Handle, error) {
	return "", f.openErr
}

func TestIconFor(t *testing.T) {
	tests := []struct {
		instruction string
		want        string
	}{
		{"Turn left onto Calzada de Tlalpan", "arrow.turn.up.left"},
		{"Turn right", "arrow.turn.up.right"},
		{"Keep left at the fork", "arrow.up.left"},
		{"Make a U-turn", "arrow.uturn"},
		{"Arrive at destination", "flag"},
		{"Continue straight", "arrow.up"},
		{"", "arrow.up"},
	}
	for _, tt := range tests {
		t.Run(tt.instruction, func(t *testing.T) {
			assert.Equal(t, tt.want, IconFor(tt.instruction))
		})
	}
}

func TestSnapshot_Normalize(t *testing.T) {
	s := Snapshot{DestinationName: "Zócalo"}.Normalize()
	assert.Equal(t, DefaultInstruction, s.Instruction)
	assert.Equal(t, "arrow.up", s.Icon)
}

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	board := NewBoard(true)
	sess := NewSession(board)

	sess.Begin(ctx, Snapshot{Instruction: "Head north", DistanceRemaining: 3000})
	require.True(t, sess.Open())

	card, ok := board.Current()
	require.True(t, ok)
	assert.True(t, card.Active)
	assert.Equal(t, 3000.0, card.Snapshot.DistanceRemaining)

	sess.Refresh(ctx, Snapshot{Instruction: "Turn left", DistanceRemaining: 200})
	card, _ = board.Current()
	assert.Equal(t, 1, card.Updates)
	assert.Equal(t, "arrow.turn.up.left", card.Snapshot.Icon)

	sess.Finish(ctx)
	assert.False(t, sess.Open())
	card, _ = board.Current()
	assert.False(t, card.Active)

	// Refresh after finish is a no-op
	sess.Refresh(ctx, Snapshot{Instruction: "ignored"})
	card, _ = board.Current()
	assert.Equal(t, 1, card.Updates)
}

func TestSession_ReusesActiveCard(t *testing.T) {
	ctx := context.Background()
	board := NewBoard(true)
	existing, err := board.Open(ctx, Snapshot{Instruction: "old"})
	require.NoError(t, err)

	sess := NewSession(board)
	sess.Begin(ctx, Snapshot{Instruction: "new"})

	card, _ := board.Current()
	assert.Equal(t, existing, card.Handle, "no second card is created")
	assert.Equal(t, "new", card.Snapshot.Instruction)
}

func TestSession_OpenFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()

	sess := NewSession(&failingSurface{openErr: errors.New("platform refused")})
	sess.Begin(ctx, Snapshot{})
	assert.False(t, sess.Open())
	sess.Refresh(ctx, Snapshot{})
	sess.Finish(ctx)

	disabled := NewSession(NewBoard(false))
	disabled.Begin(ctx, Snapshot{})
	assert.False(t, disabled.Open())
}

func TestBoard_StaleHandle(t *testing.T) {
	ctx := context.Background()
	board := NewBoard(true)
	h, err := board.Open(ctx, Snapshot{})
	require.NoError(t, err)
	require.NoError(t, board.End(ctx, h))

	assert.ErrorIs(t, board.Update(ctx, h, Snapshot{}), ErrUnknownHandle)
	assert.ErrorIs(t, board.End(ctx, h), ErrUnknownHandle)
	_, ok := board.Active(ctx)
	assert.False(t, ok)
}

func TestNilSurface(t *testing.T) {
	sess := NewSession(nil)
	sess.Begin(context.Background(), Snapshot{})
	assert.False(t, sess.Open())
}
