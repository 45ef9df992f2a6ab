package core

import "fmt"

const AVG_COUNT uint8 = 30

// FrameCounters are the per-frame performance counters, reset by the front
// end at the start of every frame.
type FrameCounters struct {
	// front end
	LeafsVisited     int
	MarkLeavesCalls  int
	SurfacesCulled   int
	DrawSurfs        int
	LitSurfs         int
	DlightsTraversed int
	DlightsDropped   int
	// back end
	Surfaces  int
	Batches   int
	Vertexes  int
	Indexes   int
	Draws     int
	LitDraws  int
	Commands  int
	Dropped   int
	Overflows int
}

// Metrics tracks frame timing averages and the current frame's counters.
// It is owned by a single renderer instance.
type Metrics struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	Counters FrameCounters
}

func NewMetrics() *Metrics {
	return &Metrics{
		MStimes: [AVG_COUNT]float64{0},
	}
}

// ResetCounters clears the per-frame counters.
func (m *Metrics) ResetCounters() {
	m.Counters = FrameCounters{}
}

func (m *Metrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := (frameElapsedTime * 1000.0)
	m.MStimes[m.FrameAVGCounter] = frameMS
	if m.FrameAVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}

		m.MSavg /= float64(AVG_COUNT)
	}
	m.FrameAVGCounter++
	m.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.AccumulatedFrameMS += frameMS
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}

	// Count all Frames.
	m.Frames++
}

func (m *Metrics) FrameTime() float64 {
	return m.MSavg
}

// Speeds formats the current counters the way the speeds report prints them.
func (m *Metrics) Speeds() string {
	c := m.Counters
	return fmt.Sprintf("%d/%d shaders/surfs %d leafs %d verts %d/%d tris %d draws %d lit %d dropped",
		c.Batches, c.Surfaces, c.LeafsVisited, c.Vertexes, c.Indexes/3, c.DrawSurfs, c.Draws, c.LitDraws, c.Dropped)
}
