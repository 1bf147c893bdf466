package device

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// FurnaceSimulator models the furnace cavity: exponential approach toward
// the setpoint with a small overshoot and gaussian noise. Implements the
// Furnace interface so the engine cannot tell it from the real client.
type FurnaceSimulator struct {
	mu          sync.Mutex
	temperature float64
	setpoint    float64
	heatingRate float64 // °C/s toward the setpoint from below
	coolingRate float64 // °C/s toward the setpoint from above
	noise       float64 // gaussian sigma added per read
	overshoot   float64 // fraction of the setpoint overshot on arrival
	overshootOn bool
	peak        float64
	lastUpdate  time.Time
	connected   bool
	rng         *rand.Rand
}

// FurnaceSimOption tweaks the simulator; tests use these to make runs fast
// and deterministic.
type FurnaceSimOption func(*FurnaceSimulator)

func WithFurnaceRates(heating, cooling float64) FurnaceSimOption {
	return func(s *FurnaceSimulator) { s.heatingRate, s.coolingRate = heating, cooling }
}

func WithFurnaceNoise(sigma float64) FurnaceSimOption {
	return func(s *FurnaceSimulator) { s.noise = sigma }
}

// NewFurnaceSimulator starts at ambient with the rig's nominal dynamics.
func NewFurnaceSimulator(opts ...FurnaceSimOption) *FurnaceSimulator {
	s := &FurnaceSimulator{
		temperature: 25,
		setpoint:    25,
		heatingRate: 2.0,
		coolingRate: 0.5,
		noise:       0.05,
		overshoot:   0.02,
		lastUpdate:  time.Now(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FurnaceSimulator) Connect(string) error { s.connected = true; return nil }
func (s *FurnaceSimulator) Disconnect()          { s.connected = false }
func (s *FurnaceSimulator) Connected() bool      { return s.connected }

func (s *FurnaceSimulator) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return math.Round(s.temperature*1000) / 1000, nil
}

func (s *FurnaceSimulator) ReadSetpoint() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setpoint, nil
}

func (s *FurnaceSimulator) SetSetpoint(value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setpoint = value
	s.overshootOn = false
	return nil
}

// CavityTemperature exposes the current cavity temperature to the multimeter
// simulator, which models sensors immersed in the same cavity.
func (s *FurnaceSimulator) CavityTemperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.temperature
}

func (s *FurnaceSimulator) advance() {
	now := time.Now()
	dt := now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now
	if dt > 10 {
		dt = 0.1
	}

	diff := s.setpoint - s.temperature
	switch {
	case math.Abs(diff) < 0.1:
		if s.overshootOn {
			recovery := 0.3 * dt
			over := s.peak - s.temperature
			if math.Abs(over) > 0.05 {
				if over < 0 {
					s.temperature -= recovery
				} else {
					s.temperature += recovery
				}
			} else {
				s.overshootOn = false
			}
		}
		s.temperature += s.rng.NormFloat64() * s.noise * 0.5
	case diff > 0:
		rate := s.heatingRate * (1 - math.Exp(-math.Abs(diff)/50))
		s.temperature += rate * dt
		if s.temperature > s.setpoint {
			s.overshootOn = true
			s.peak = s.setpoint + s.overshoot*s.setpoint
			s.temperature = math.Min(s.temperature, s.peak)
		}
	default:
		rate := s.coolingRate * (1 - math.Exp(-math.Abs(diff)/30))
		s.temperature -= rate * dt
		if s.temperature < s.setpoint {
			s.overshootOn = true
			s.peak = s.setpoint - s.overshoot*math.Abs(s.setpoint-25)
			s.temperature = math.Max(s.temperature, s.peak)
		}
	}
	s.temperature += s.rng.NormFloat64() * s.noise
}

// MultimeterSimulator models the scanner channels as first-order thermal
// systems tracking a shared heat source, each with a fixed sensor offset.
// A channel can be marked faulty to produce overflow readings.
type MultimeterSimulator struct {
	mu             sync.Mutex
	source         func() float64
	offsets        map[string]float64
	temps          map[string]float64
	timeConstant   float64
	noise          float64
	lastUpdate     time.Time
	currentChannel string
	faultyChannel  string
	connected      bool
	rng            *rand.Rand
}

type MultimeterSimOption func(*MultimeterSimulator)

func WithChannelOffsets(offsets map[string]float64) MultimeterSimOption {
	return func(s *MultimeterSimulator) { s.offsets = offsets }
}

func WithMultimeterNoise(sigma float64) MultimeterSimOption {
	return func(s *MultimeterSimulator) { s.noise = sigma }
}

func WithTimeConstant(seconds float64) MultimeterSimOption {
	return func(s *MultimeterSimulator) { s.timeConstant = seconds }
}

// NewMultimeterSimulator builds a simulator whose channels follow source
// (typically FurnaceSimulator.CavityTemperature).
func NewMultimeterSimulator(source func() float64, opts ...MultimeterSimOption) *MultimeterSimulator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &MultimeterSimulator{
		source: source,
		offsets: map[string]float64{
			"A0": 0,
			"B0": rng.Float64()*0.1 - 0.05,
			"B1": rng.Float64()*0.2 - 0.1,
			"B2": rng.Float64()*0.3 - 0.15,
			"B3": rng.Float64()*0.4 - 0.2,
			"B4": rng.Float64()*0.6 - 0.3,
		},
		timeConstant:   5.0,
		noise:          0.01,
		currentChannel: "A0",
		lastUpdate:     time.Now(),
		rng:            rng,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.temps = make(map[string]float64, len(s.offsets))
	for ch := range s.offsets {
		s.temps[ch] = 25
	}
	return s
}

// SetFaultyChannel makes a channel report overflow, as an open sensor would.
func (s *MultimeterSimulator) SetFaultyChannel(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faultyChannel = channel
}

func (s *MultimeterSimulator) Connect(string) error { s.connected = true; return nil }
func (s *MultimeterSimulator) Disconnect()          { s.connected = false }
func (s *MultimeterSimulator) Connected() bool      { return s.connected }

func (s *MultimeterSimulator) Identification() string {
	return "CROPICO,3001,SIMULATOR,1.0"
}

func (s *MultimeterSimulator) ConfigureChannel(channel, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentChannel = channel
	if _, ok := s.offsets[channel]; !ok {
		s.offsets[channel] = 0
		s.temps[channel] = 25
	}
	return nil
}

func (s *MultimeterSimulator) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	if s.currentChannel == s.faultyChannel {
		return math.Inf(1), ErrOverflow
	}
	return math.Round(s.temps[s.currentChannel]*10000) / 10000, nil
}

// RawValue returns a synthetic PT100 resistance for the current channel.
func (s *MultimeterSimulator) RawValue() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	if s.currentChannel == s.faultyChannel {
		return 9999.999, nil
	}
	const r0, alpha = 100.0, 0.00385
	resistance := r0*(1+alpha*s.temps[s.currentChannel]) + s.rng.NormFloat64()*0.001
	return math.Round(resistance*10000) / 10000, nil
}

func (s *MultimeterSimulator) advance() {
	now := time.Now()
	dt := now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now
	if dt > 10 {
		dt = 0.1
	}
	cavity := s.source()
	for ch, offset := range s.offsets {
		target := cavity + offset
		diff := target - s.temps[ch]
		s.temps[ch] += diff * (1 - math.Exp(-dt/s.timeConstant))
		s.temps[ch] += s.rng.NormFloat64() * s.noise
	}
}
