package tess

import (
	"github.com/chewxy/math32"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	FUNCTABLE_SHIFT = 10
	FUNCTABLE_SIZE  = 1 << FUNCTABLE_SHIFT
	FUNCTABLE_MASK  = FUNCTABLE_SIZE - 1

	FOG_TABLE_SIZE = 256

	noiseSize = 256
	noiseMask = noiseSize - 1
	noiseSeed = 1001
)

// Waveform lookup tables, one period over FUNCTABLE_SIZE entries.
var (
	SinTable             [FUNCTABLE_SIZE]float32
	SquareTable          [FUNCTABLE_SIZE]float32
	TriangleTable        [FUNCTABLE_SIZE]float32
	SawToothTable        [FUNCTABLE_SIZE]float32
	InverseSawToothTable [FUNCTABLE_SIZE]float32

	// FogTable maps a fog density index to its opacity.
	FogTable [FOG_TABLE_SIZE]float32

	noiseTable [noiseSize]float32
	noisePerm  [noiseSize]int
)

func init() {
	for i := 0; i < FUNCTABLE_SIZE; i++ {
		SinTable[i] = math32.Sin(math.DegToRad(float32(i) * 360.0 / float32(FUNCTABLE_SIZE-1)))
		if i < FUNCTABLE_SIZE/2 {
			SquareTable[i] = 1
		} else {
			SquareTable[i] = -1
		}
		SawToothTable[i] = float32(i) / FUNCTABLE_SIZE
		InverseSawToothTable[i] = 1 - SawToothTable[i]

		if i < FUNCTABLE_SIZE/2 {
			if i < FUNCTABLE_SIZE/4 {
				TriangleTable[i] = float32(i) / (FUNCTABLE_SIZE / 4)
			} else {
				TriangleTable[i] = 1 - TriangleTable[i-FUNCTABLE_SIZE/4]
			}
		} else {
			TriangleTable[i] = -TriangleTable[i-FUNCTABLE_SIZE/2]
		}
	}

	for i := 0; i < FOG_TABLE_SIZE; i++ {
		FogTable[i] = math32.Sqrt(float32(i) / (FOG_TABLE_SIZE - 1))
	}

	r := rand.New(rand.NewSource(noiseSeed))
	for i := 0; i < noiseSize; i++ {
		noiseTable[i] = r.Float32()*2 - 1
		noisePerm[i] = int(r.Float32() * 255)
	}
}

// TableForFunc returns the lookup table of a generator. Noise and none have
// no table and map to the sine table.
func TableForFunc(f metadata.GenFunc) *[FUNCTABLE_SIZE]float32 {
	switch f {
	case metadata.GenFuncSquare:
		return &SquareTable
	case metadata.GenFuncTriangle:
		return &TriangleTable
	case metadata.GenFuncSawtooth:
		return &SawToothTable
	case metadata.GenFuncInverseSawtooth:
		return &InverseSawToothTable
	}
	return &SinTable
}

// WaveValue samples table at phase + time*freq periods.
func WaveValue(table *[FUNCTABLE_SIZE]float32, base, amplitude, phase, freq float32, time float64) float32 {
	idx := int64((float64(phase) + time*float64(freq)) * FUNCTABLE_SIZE)
	return base + table[idx&FUNCTABLE_MASK]*amplitude
}

// EvalWaveForm evaluates a waveform at the given shader time.
func EvalWaveForm(wf *metadata.WaveForm, time float64) float32 {
	if wf.Func == metadata.GenFuncNoise {
		return wf.Base + NoiseGet4f(0, 0, 0, (time+float64(wf.Phase))*float64(wf.Frequency))*wf.Amplitude
	}
	return WaveValue(TableForFunc(wf.Func), wf.Base, wf.Amplitude, wf.Phase, wf.Frequency, time)
}

// EvalWaveFormClamped evaluates a waveform and clamps it to 0..1.
func EvalWaveFormClamped(wf *metadata.WaveForm, time float64) float32 {
	return math.Clamp(EvalWaveForm(wf, time), 0, 1)
}

func noiseValue(x, y, z, t int) float32 {
	v := func(a int) int { return noisePerm[a&noiseMask] }
	return noiseTable[v(x+v(y+v(z+v(t))))]
}

// NoiseGet4f is smooth 4D value noise in -1..1 over a fixed permutation table.
func NoiseGet4f(x, y, z float32, t float64) float32 {
	ix := int(math32.Floor(x))
	fx := x - float32(ix)
	iy := int(math32.Floor(y))
	fy := y - float32(iy)
	iz := int(math32.Floor(z))
	fz := z - float32(iz)
	itf := float64(int64(t))
	if t < 0 && itf != t {
		itf--
	}
	it := int(itf)
	ft := float32(t - itf)

	var value [2]float32
	for i := 0; i < 2; i++ {
		front := [4]float32{
			noiseValue(ix, iy, iz, it+i),
			noiseValue(ix+1, iy, iz, it+i),
			noiseValue(ix, iy+1, iz, it+i),
			noiseValue(ix+1, iy+1, iz, it+i),
		}
		back := [4]float32{
			noiseValue(ix, iy, iz+1, it+i),
			noiseValue(ix+1, iy, iz+1, it+i),
			noiseValue(ix, iy+1, iz+1, it+i),
			noiseValue(ix+1, iy+1, iz+1, it+i),
		}
		fvalue := math.Lerp(math.Lerp(front[0], front[1], fx), math.Lerp(front[2], front[3], fx), fy)
		bvalue := math.Lerp(math.Lerp(back[0], back[1], fx), math.Lerp(back[2], back[3], fx), fy)
		value[i] = math.Lerp(fvalue, bvalue, fz)
	}
	return math.Lerp(value[0], value[1], ft)
}

// FogFactor returns the fog opacity for fog texture coordinates s, t.
func FogFactor(s, t float32) float32 {
	s -= 1.0 / 512
	if s < 0 {
		return 0
	}
	if t < 1.0/32 {
		return 0
	}
	if t < 31.0/32 {
		s *= (t - 1.0/32) / (30.0 / 32)
	}

	// we need to leave a lot of clamp range
	s *= 8
	if s > 1 {
		s = 1
	}
	return FogTable[int(s*(FOG_TABLE_SIZE-1))]
}
