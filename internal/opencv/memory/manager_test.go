package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/Sergey-Veremeev/CarTesserakt/internal/logger"
	"github.com/Sergey-Veremeev/CarTesserakt/internal/opencv/safe"
)

func TestManagerAccountsForMats(t *testing.T) {
	mgr := NewManager(logger.NewNop())

	a, err := safe.Wrap(gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1), mgr, "gray")
	assert.NoError(t, err)
	b, err := safe.Wrap(gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3), mgr, "color")
	assert.NoError(t, err)

	stats := mgr.GetStats()
	assert.EqualValues(t, 2, stats.ActiveMats)
	assert.EqualValues(t, 16+12, stats.TotalAllocated)
	assert.Equal(t, []string{"color", "gray"}, mgr.Leaks())

	a.Close()
	b.Close()

	stats = mgr.GetStats()
	assert.Zero(t, stats.ActiveMats)
	assert.EqualValues(t, 2, stats.PeakMats)
	assert.Equal(t, stats.TotalAllocated, stats.TotalReleased)
	assert.Empty(t, mgr.Leaks())

	mgr.Shutdown()
}

func TestManagerIgnoresUntrackedRelease(t *testing.T) {
	mgr := NewManager(logger.NewNop())
	mgr.TrackDeallocation(999, "ghost")
	assert.Zero(t, mgr.GetStats().TotalReleased)
}
