package genetic

// LowPass is a single-pole (PT1) low-pass filter.
type LowPass struct {
	Tau   float64
	Value float64
}

// Update feeds one sample and returns the filtered value.
func (f *LowPass) Update(sample float64) float64 {
	f.Value += (sample - f.Value) / f.Tau
	return f.Value
}

// MovingAverage averages the last Window samples.
type MovingAverage struct {
	samples []float64
	next    int
	filled  int
	sum     float64
}

// NewMovingAverage creates a moving average over window samples.
func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = 1
	}
	return &MovingAverage{samples: make([]float64, window)}
}

// Update feeds one sample and returns the current average.
func (m *MovingAverage) Update(sample float64) float64 {
	if m.filled == len(m.samples) {
		m.sum -= m.samples[m.next]
	} else {
		m.filled++
	}
	m.samples[m.next] = sample
	m.sum += sample
	m.next = (m.next + 1) % len(m.samples)
	return m.Value()
}

// Value returns the current average, or 0 before the first sample.
func (m *MovingAverage) Value() float64 {
	if m.filled == 0 {
		return 0
	}
	return m.sum / float64(m.filled)
}
