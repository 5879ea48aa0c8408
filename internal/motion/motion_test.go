package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/flux/internal/domain"
)

type allDrift struct{}

func (allDrift) Drifts(t domain.Thought) bool { return !t.IsBackup }

type holdIDs map[string]bool

func (h holdIDs) Drifts(t domain.Thought) bool { return !h[t.ID] && !t.IsBackup }

var params = Params{
	Footprint: domain.Footprint{Width: 200, Height: 40},
	DtScale:   DefaultDtScale,
}

func thought(id string, x, y, vx, vy float64) domain.Thought {
	return domain.Thought{ID: id, Size: 1, PositionX: x, PositionY: y, VelocityX: vx, VelocityY: vy}
}

func TestStep_FreeDrift(t *testing.T) {
	in := []domain.Thought{thought("a", 300, 200, 1, -0.5)}

	out, stats := Step(in, allDrift{}, domain.Bounds{Width: 800, Height: 600}, params)

	require.Len(t, out, 1)
	assert.InDelta(t, 300.3, out[0].PositionX, 1e-9)
	assert.InDelta(t, 199.85, out[0].PositionY, 1e-9)
	assert.Equal(t, 1.0, out[0].VelocityX)
	assert.Equal(t, -0.5, out[0].VelocityY)
	assert.Equal(t, 1, stats.Moved)
	assert.Zero(t, stats.Bounces)
	assert.Equal(t, 300.0, in[0].PositionX, "input slice must not be mutated")
}

func TestStep_RightEdgeBounce(t *testing.T) {
	const v = 2.0
	b := domain.Bounds{Width: 800, Height: 600}
	// Right edge sits at 799.8; the next step would overshoot 800.
	in := []domain.Thought{thought("a", 699.8, 300, v, 0)}

	out, stats := Step(in, allDrift{}, b, params)

	assert.Equal(t, -v, out[0].VelocityX)
	assert.Equal(t, 0.0, out[0].VelocityY)
	assert.Equal(t, b.Width, out[0].PositionX+params.Footprint.Width/2)
	assert.Equal(t, 1, stats.Bounces)
}

func TestStep_CornerFlipsBothAxes(t *testing.T) {
	b := domain.Bounds{Width: 800, Height: 600}
	in := []domain.Thought{thought("a", 100.1, 20.1, -1, -1)}

	out, stats := Step(in, allDrift{}, b, params)

	assert.Equal(t, 1.0, out[0].VelocityX)
	assert.Equal(t, 1.0, out[0].VelocityY)
	assert.Equal(t, 100.0, out[0].PositionX)
	assert.Equal(t, 20.0, out[0].PositionY)
	assert.Equal(t, 2, stats.Bounces)
}

func TestStep_StaysInsideBounds(t *testing.T) {
	b := domain.Bounds{Width: 480, Height: 300}
	thoughts := []domain.Thought{
		thought("a", 100, 20, 3.1, 0.4),
		thought("b", 380, 280, 0.9, 2.2),
		thought("c", 240, 150, -4, -4),
		thought("d", 101, 21, -0.5, 0.5),
	}

	for i := 0; i < 2000; i++ {
		thoughts, _ = Step(thoughts, allDrift{}, b, params)
		for _, th := range thoughts {
			require.True(t, b.Contains(params.Footprint, th.PositionX, th.PositionY),
				"tick %d: %s escaped to (%v, %v)", i, th.ID, th.PositionX, th.PositionY)
		}
	}
}

func TestStep_SpeedPreserved(t *testing.T) {
	b := domain.Bounds{Width: 480, Height: 300}
	thoughts := []domain.Thought{thought("a", 240, 150, 3, -2)}
	speed := math.Hypot(3, -2)

	for i := 0; i < 500; i++ {
		thoughts, _ = Step(thoughts, allDrift{}, b, params)
		assert.InDelta(t, speed, math.Hypot(thoughts[0].VelocityX, thoughts[0].VelocityY), 1e-12)
	}
}

func TestStep_HeldThoughtsNeverMove(t *testing.T) {
	b := domain.Bounds{Width: 800, Height: 600}
	backup := thought("backup", 300, 300, 1, 1)
	backup.IsBackup = true
	thoughts := []domain.Thought{
		thought("held", 400, 300, 5, 5),
		backup,
		thought("free", 400, 300, 1, 0),
	}
	gate := holdIDs{"held": true}

	for i := 0; i < 100; i++ {
		thoughts, _ = Step(thoughts, gate, b, params)
	}

	assert.Equal(t, 400.0, thoughts[0].PositionX)
	assert.Equal(t, 300.0, thoughts[0].PositionY)
	assert.Equal(t, 5.0, thoughts[0].VelocityX)
	assert.Equal(t, 300.0, thoughts[1].PositionX)
	assert.NotEqual(t, 400.0, thoughts[2].PositionX)
}

func TestStep_DegenerateCanvas(t *testing.T) {
	in := []domain.Thought{thought("a", 10, 10, 1, 1)}

	tests := []struct {
		name string
		b    domain.Bounds
	}{
		{"unmeasured", domain.Bounds{}},
		{"zero width", domain.Bounds{Width: 0, Height: 600}},
		{"zero height", domain.Bounds{Width: 800, Height: 0}},
		{"narrower than a card", domain.Bounds{Width: 150, Height: 600}},
		{"nan", domain.Bounds{Width: math.NaN(), Height: 600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stats := Step(in, allDrift{}, tt.b, params)
			assert.True(t, stats.Skipped)
			assert.Equal(t, in, out)
		})
	}
}

func TestStep_SidePanelNarrowsBounds(t *testing.T) {
	const canvasWidth, panel = 800.0, 320.0
	start := []domain.Thought{thought("a", 470, 300, 50, 0)}

	withPanel, _ := Step(start, allDrift{}, domain.Bounds{Width: canvasWidth - panel, Height: 600}, params)
	withoutPanel, _ := Step(start, allDrift{}, domain.Bounds{Width: canvasWidth, Height: 600}, params)

	assert.Equal(t, 380.0, withPanel[0].PositionX, "clamped against 480")
	assert.Equal(t, -50.0, withPanel[0].VelocityX)
	assert.Equal(t, 485.0, withoutPanel[0].PositionX)
	assert.Equal(t, 50.0, withoutPanel[0].VelocityX)
}
