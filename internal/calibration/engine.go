package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/config"
	"github.com/kpszeniczka/temperature-calibration-system/internal/device"
	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// Recorder is the persistence collaborator. Calls are synchronous; failures
// are logged and never abort a run.
type Recorder interface {
	CreateSession(ctx context.Context, info models.SessionInfo) (int64, error)
	AddMeasurement(ctx context.Context, sessionID int64, m models.Measurement) error
	AddResult(ctx context.Context, sessionID int64, r models.PointResult) error
	FinalizeSession(ctx context.Context, sessionID int64) error
}

// Guard errors returned by the control surface.
var (
	ErrAlreadyRunning = errors.New("calibration: a run is already active")
	ErrNotRunning     = errors.New("calibration: no run is active")
	ErrNoPoints       = errors.New("calibration: no calibration points configured")
	ErrTooFewChannels = errors.New("calibration: need at least two active channels including the reference")
	ErrNotConnected   = errors.New("calibration: devices are not connected")
)

// Engine sequences a calibration run: furnace setpoint stepping, stability
// and equilibrium waiting, measurement bursts, aggregation and
// classification. One dedicated worker goroutine owns all device I/O and
// calibration state; the control surface only flips flags and reads
// snapshots.
type Engine struct {
	log        *logger.Logger
	furnace    device.Furnace
	multimeter device.Multimeter
	recorder   Recorder
	cfg        config.Run
	budget     config.Budget
	events     *broadcaster

	// Everything below is guarded by the state mutex in the embedded
	// engineState. The worker is the only writer during a run.
	state engineState
}

type engineState struct {
	mu             sync.Mutex
	phase          models.EngineState
	paused         bool
	stopRequested  bool
	sessionID      int64
	channels       []string
	sensorTypes    map[string]string
	points         []float64
	currentPoint   int
	currentTarget  float64
	currentChannel string
	lastValues     map[string]float64
	lastPV         *float64
	channelHistory map[string]*trace
	furnaceHistory *trace
	results        map[string][]models.PointResult
}

// NewEngine wires an engine over a device pair. The recorder is optional;
// without one the run proceeds with telemetry only.
func NewEngine(furnace device.Furnace, multimeter device.Multimeter, cfg config.Run, budget config.Budget, log *logger.Logger) *Engine {
	e := &Engine{
		log:        log,
		furnace:    furnace,
		multimeter: multimeter,
		cfg:        cfg,
		budget:     budget,
		events:     newBroadcaster(),
	}
	e.state.phase = models.StateIdle
	e.state.channels = []string{cfg.ReferenceChannel}
	e.state.sensorTypes = map[string]string{}
	e.state.lastValues = map[string]float64{}
	e.state.channelHistory = map[string]*trace{}
	e.state.furnaceHistory = newTrace(historyCapacity)
	e.state.results = map[string][]models.PointResult{}
	return e
}

// SetRecorder attaches the persistence collaborator.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// Subscribe returns a telemetry stream and its cancel func. Subscribers
// never block the worker; slow consumers lose events.
func (e *Engine) Subscribe() (<-chan models.Event, func()) {
	return e.events.subscribe()
}

// ConnectDevices opens both instrument links.
func (e *Engine) ConnectDevices(furnacePort, multimeterPort string) error {
	var errs []error
	if err := e.furnace.Connect(furnacePort); err != nil {
		errs = append(errs, err)
	}
	if err := e.multimeter.Connect(multimeterPort); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DisconnectDevices closes both instrument links. Refused while a run holds
// the handles.
func (e *Engine) DisconnectDevices() error {
	if e.active() {
		return ErrAlreadyRunning
	}
	e.furnace.Disconnect()
	e.multimeter.Disconnect()
	return nil
}

// Configure replaces the active channel set. The reference channel is
// auto-inserted at the front when omitted. Each channel's sensor profile is
// programmed immediately.
func (e *Engine) Configure(channels []string, sensorTypes map[string]string) error {
	// Phase check and mutation share one critical section so a concurrent
	// Start cannot slip in between them.
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	switch e.state.phase {
	case models.StateRunning, models.StatePaused, models.StateStopping:
		return ErrAlreadyRunning
	}
	active := make([]string, 0, len(channels)+1)
	seen := map[string]bool{}
	for _, ch := range channels {
		if !seen[ch] {
			active = append(active, ch)
			seen[ch] = true
		}
	}
	if !seen[e.cfg.ReferenceChannel] {
		active = append([]string{e.cfg.ReferenceChannel}, active...)
	}

	types := make(map[string]string, len(active))
	for _, ch := range active {
		st := sensorTypes[ch]
		if st == "" {
			st = models.SensorPT100
		}
		types[ch] = st
		if e.multimeter.Connected() {
			if err := e.multimeter.ConfigureChannel(ch, st); err != nil {
				e.log.Warnw("channel configuration failed", "channel", ch, "err", err)
			}
		}
	}

	e.state.channels = active
	e.state.sensorTypes = types
	return nil
}

// SetPoints installs the calibration points, sorted ascending.
func (e *Engine) SetPoints(points []float64) error {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	switch e.state.phase {
	case models.StateRunning, models.StatePaused, models.StateStopping:
		return ErrAlreadyRunning
	}
	if e.cfg.MaxPoints > 0 && len(points) > e.cfg.MaxPoints {
		return fmt.Errorf("calibration: at most %d points are supported", e.cfg.MaxPoints)
	}
	sorted := append([]float64(nil), points...)
	sort.Float64s(sorted)

	e.state.points = sorted
	e.log.Infow("calibration points set", "points", sorted)
	return nil
}

// StartSession opens a persisted session and remembers its id for the run.
func (e *Engine) StartSession(ctx context.Context, info models.SessionInfo) (int64, error) {
	if e.recorder == nil {
		return 0, nil
	}
	id, err := e.recorder.CreateSession(ctx, info)
	if err != nil {
		return 0, err
	}
	e.state.mu.Lock()
	e.state.sessionID = id
	e.state.mu.Unlock()
	e.log.Infow("session started", "session_id", id)
	return id, nil
}

// Start validates preconditions and launches the worker. Exactly one run
// per engine instance may be active.
func (e *Engine) Start() error {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	switch e.state.phase {
	case models.StateRunning, models.StatePaused, models.StateStopping:
		return ErrAlreadyRunning
	}
	if len(e.state.points) == 0 {
		return ErrNoPoints
	}
	if len(e.state.channels) < 2 {
		return ErrTooFewChannels
	}
	if !e.furnace.Connected() || !e.multimeter.Connected() {
		return ErrNotConnected
	}

	e.state.phase = models.StateRunning
	e.state.paused = false
	e.state.stopRequested = false
	e.state.currentPoint = 0
	e.state.currentTarget = e.state.points[0]
	e.state.results = map[string][]models.PointResult{}

	go e.run()
	e.log.Infow("calibration started", "points", len(e.state.points), "channels", len(e.state.channels))
	return nil
}

// Stop requests a graceful stop. The worker honors it at the next loop-safe
// checkpoint; in-flight device I/O finishes first. No parking setpoint is
// issued for an explicit stop.
func (e *Engine) Stop() {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.stopRequested = true
	switch e.state.phase {
	case models.StateRunning, models.StatePaused:
		e.state.phase = models.StateStopping
	}
	e.log.Infow("calibration stop requested")
}

// Pause suspends the worker at its next checkpoint.
func (e *Engine) Pause() {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if e.state.phase == models.StateRunning {
		e.state.phase = models.StatePaused
		e.state.paused = true
		e.log.Infow("calibration paused")
	}
}

// Resume releases a paused worker.
func (e *Engine) Resume() {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if e.state.phase == models.StatePaused {
		e.state.phase = models.StateRunning
		e.state.paused = false
		e.log.Infow("calibration resumed")
	}
}

// State returns the lifecycle phase.
func (e *Engine) State() models.EngineState {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.phase
}

// SessionID returns the id of the session the engine records into, or zero
// when no session was started.
func (e *Engine) SessionID() int64 {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.sessionID
}

// SetFurnaceSetpoint writes a manual setpoint. Refused while a run owns the
// serial line.
func (e *Engine) SetFurnaceSetpoint(value float64) error {
	if e.active() {
		return ErrAlreadyRunning
	}
	return e.furnace.SetSetpoint(value)
}

// Status returns the advisory telemetry snapshot. It may lag the worker;
// consumers must not make control decisions from it.
func (e *Engine) Status() models.StatusSnapshot {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.snapshotLocked()
}

// PlotData snapshots the display ring buffers.
func (e *Engine) PlotData() models.PlotData {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	out := models.PlotData{
		Channels: make(map[string][]models.TracePoint, len(e.state.channelHistory)),
		Furnace:  e.state.furnaceHistory.snapshot(),
	}
	for ch, tr := range e.state.channelHistory {
		out.Channels[ch] = tr.snapshot()
	}
	return out
}

// Report assembles the session report from accumulated point results.
func (e *Engine) Report() models.SessionReport {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.reportLocked()
}

func (e *Engine) active() bool {
	switch e.State() {
	case models.StateRunning, models.StatePaused, models.StateStopping:
		return true
	}
	return false
}

func (e *Engine) stopping() bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.stopRequested
}

func (e *Engine) pauseBarrier() {
	for {
		e.state.mu.Lock()
		paused, stopped := e.state.paused, e.state.stopRequested
		e.state.mu.Unlock()
		if !paused || stopped {
			return
		}
		// Short bounded sleep so a stop lands sub-second even while paused.
		time.Sleep(e.cfg.PauseSleep)
	}
}

// run is the worker loop. It owns all device I/O for the duration of the
// run; nothing else touches the serial links until it exits.
func (e *Engine) run() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("calibration worker fault", "panic", r)
			e.finish(models.StateFailed)
			e.events.publish(models.EventError, fmt.Sprintf("worker fault: %v", r))
		}
	}()

	points := e.pointsCopy()
	for idx, target := range points {
		if e.stopping() {
			break
		}
		e.setCurrentPoint(idx, target)
		e.log.Infow("starting calibration point", "index", idx+1, "total", len(points), "target_c", target)

		if err := e.furnace.SetSetpoint(target); err != nil {
			e.log.Warnw("setpoint command failed", "target_c", target, "err", err)
		}
		if !e.waitForStability(target) {
			continue
		}

		results := e.measurePoint(target)
		if len(results) == 0 {
			continue
		}
		e.storeResults(target, results)
		e.events.publish(models.EventPointCompleted, models.PointCompletedEvent{
			Index:   idx,
			Target:  target,
			Results: results,
		})
	}

	if e.stopping() {
		e.finalizeSession()
		e.finish(models.StateIdle)
		e.log.Infow("calibration stopped")
		return
	}

	// Parking happens only on natural completion; an operator stop leaves
	// the furnace where the operator left it.
	if err := e.furnace.SetSetpoint(e.cfg.ParkingTemperatureC); err != nil {
		e.log.Warnw("parking setpoint failed", "err", err)
	}
	e.finalizeSession()
	e.events.publish(models.EventRunCompleted, e.Report())
	e.finish(models.StateCompleted)
	e.log.Infow("calibration finished")
}

// waitForStability polls the furnace PV at the configured cadence until it
// has stayed within tolerance for the dwell duration and the cavity is in
// thermal equilibrium. A failed equilibrium check does not discard accrued
// dwell time; only leaving the tolerance band resets the timer. Returns
// false when the wait was aborted by a stop request.
func (e *Engine) waitForStability(target float64) bool {
	var dwellStart time.Time
	for !e.stopping() {
		e.pauseBarrier()
		if e.stopping() {
			return false
		}

		pv, err := e.furnace.ReadTemperature()
		if err != nil {
			e.log.Warnw("furnace read failed during stability wait", "err", err)
			time.Sleep(e.cfg.StabilityPoll)
			continue
		}
		e.recordFurnace(pv)

		diff := math.Abs(pv - target)
		if diff <= e.cfg.StabilityToleranceC {
			if dwellStart.IsZero() {
				dwellStart = time.Now()
			}
			elapsed := time.Since(dwellStart)
			e.events.publish(models.EventStability, models.StabilityEvent{
				Stable:  true,
				Message: fmt.Sprintf("stabilizing: %.0f/%.0f s", elapsed.Seconds(), e.cfg.StabilityDwell.Seconds()),
			})
			if elapsed >= e.cfg.StabilityDwell {
				if e.checkEquilibrium() {
					e.log.Infow("stability reached", "target_c", target)
					return true
				}
				e.events.publish(models.EventStability, models.StabilityEvent{
					Stable:  false,
					Message: "waiting for thermal equilibrium",
				})
			}
		} else {
			dwellStart = time.Time{}
			e.events.publish(models.EventStability, models.StabilityEvent{
				Stable:  false,
				Message: fmt.Sprintf("deviation %.2f °C (limit %.2f °C)", diff, e.cfg.StabilityToleranceC),
			})
		}

		e.updateStatus()
		time.Sleep(e.cfg.StabilityPoll)
	}
	return false
}

// checkEquilibrium reads every active channel once and accepts the cavity
// when the spread of the successful readings is within the configured
// threshold. Channels that fail to read are excluded from the spread, not
// treated as a failure.
func (e *Engine) checkEquilibrium() bool {
	channels, types := e.channelsCopy()
	if len(channels) < 2 {
		return true
	}

	var temps []float64
	for _, ch := range channels {
		if err := e.multimeter.ConfigureChannel(ch, types[ch]); err != nil {
			continue
		}
		time.Sleep(e.cfg.EquilibriumSettle)
		temp, err := e.multimeter.ReadTemperature()
		if err != nil || math.IsInf(temp, 1) {
			continue
		}
		temps = append(temps, temp)
		e.noteValue(ch, temp)
	}
	if len(temps) < 2 {
		return true
	}
	return Range(temps) <= e.cfg.EquilibriumSpreadC
}

// measurePoint runs the measurement burst: a fixed number of rounds, each
// visiting every active channel in order. Failed reads are skipped without
// retry inside the round. Returns the per-channel aggregates; channels with
// no successful samples are absent.
func (e *Engine) measurePoint(target float64) map[string]models.PointResult {
	channels, types := e.channelsCopy()
	readings := make(map[string][]float64, len(channels))

	for round := 0; round < e.cfg.MeasurementsPerPoint; round++ {
		if e.stopping() {
			break
		}
		e.pauseBarrier()
		if e.stopping() {
			break
		}

		for idx, ch := range channels {
			if e.stopping() {
				break
			}
			if err := e.multimeter.ConfigureChannel(ch, types[ch]); err != nil {
				e.log.Warnw("channel switch failed", "channel", ch, "err", err)
				continue
			}
			e.setCurrentChannel(ch)
			e.events.publish(models.EventChannelChanged, ch)
			time.Sleep(e.cfg.ChannelSwitchDelay)

			temp, err := e.multimeter.ReadTemperature()
			if err != nil {
				if errors.Is(err, device.ErrOverflow) {
					e.log.Debugw("channel overflow, skipping sample", "channel", ch)
				} else {
					e.log.Warnw("channel read failed", "channel", ch, "err", err)
				}
				continue
			}
			raw, rawErr := e.multimeter.RawValue()
			if rawErr != nil {
				raw = 0
			}

			readings[ch] = append(readings[ch], temp)
			e.noteValue(ch, temp)

			reference := e.referenceValue(target)
			if ch == e.cfg.ReferenceChannel {
				reference = temp
			}
			e.events.publish(models.EventMeasurement, models.MeasurementEvent{
				Channel:   ch,
				Measured:  temp,
				Reference: reference,
			})
			e.recordMeasurement(models.Measurement{
				Channel:       ch,
				ChannelIndex:  idx,
				Timestamp:     time.Now().UTC(),
				MeasuredTempC: temp,
				ReferenceC:    reference,
				RawValue:      raw,
				AbsoluteError: temp - reference,
				PointTarget:   target,
			})
		}
		e.updateStatus()
	}
	return e.aggregatePoint(target, readings)
}

// aggregatePoint derives the per-channel PointResults for one point. The
// reference value is the mean of the reference channel's samples, falling
// back to the point target when the reference produced none. Channels with
// zero samples yield no result rather than zeroed placeholders.
func (e *Engine) aggregatePoint(target float64, readings map[string][]float64) map[string]models.PointResult {
	channels, types := e.channelsCopy()

	refMean := target
	if ref := readings[e.cfg.ReferenceChannel]; len(ref) > 0 {
		refMean = Mean(ref)
	}

	results := make(map[string]models.PointResult)
	for _, ch := range channels {
		samples := readings[ch]
		if len(samples) == 0 {
			continue
		}
		mean := Mean(samples)
		std := StdDev(samples)
		pointError := mean - refMean

		maxAbs := 0.0
		for _, s := range samples {
			maxAbs = math.Max(maxAbs, math.Abs(s-refMean))
		}

		eval := NewEvaluator(types[ch], e.budget)
		typeA := eval.TypeA(std, len(samples))
		typeB := eval.TypeB()
		combined := Combined(typeA, typeB)
		class, compliant := eval.Classify(pointError, target)

		results[ch] = models.PointResult{
			Channel:          ch,
			PointTarget:      target,
			N:                len(samples),
			AvgMeasured:      mean,
			AvgReference:     refMean,
			StdDev:           std,
			Error:            pointError,
			MaxAbsoluteError: maxAbs,
			TypeA:            typeA,
			TypeB:            typeB,
			Combined:         combined,
			Expanded:         Expanded(combined, DefaultCoverageFactor),
			SensorClass:      class,
			Compliant:        compliant,
		}
	}
	return results
}

func (e *Engine) storeResults(target float64, results map[string]models.PointResult) {
	e.state.mu.Lock()
	sessionID := e.state.sessionID
	for ch, r := range results {
		e.state.results[ch] = append(e.state.results[ch], r)
	}
	e.state.mu.Unlock()

	if e.recorder == nil || sessionID == 0 {
		return
	}
	ctx := context.Background()
	for _, r := range results {
		if err := e.recorder.AddResult(ctx, sessionID, r); err != nil {
			e.log.Warnw("storing point result failed", "channel", r.Channel, "target_c", target, "err", err)
		}
	}
}

func (e *Engine) recordMeasurement(m models.Measurement) {
	e.state.mu.Lock()
	sessionID := e.state.sessionID
	e.state.mu.Unlock()
	if e.recorder == nil || sessionID == 0 {
		return
	}

	if pv, err := e.furnace.ReadTemperature(); err == nil {
		m.FurnacePV = pv
		e.recordFurnace(pv)
	}
	if sp, err := e.furnace.ReadSetpoint(); err == nil {
		m.FurnaceSP = sp
	}
	if err := e.recorder.AddMeasurement(context.Background(), sessionID, m); err != nil {
		e.log.Warnw("storing measurement failed", "channel", m.Channel, "err", err)
	}
}

func (e *Engine) finalizeSession() {
	e.state.mu.Lock()
	sessionID := e.state.sessionID
	e.state.mu.Unlock()
	if e.recorder == nil || sessionID == 0 {
		return
	}
	if err := e.recorder.FinalizeSession(context.Background(), sessionID); err != nil {
		e.log.Warnw("finalizing session failed", "session_id", sessionID, "err", err)
	}
}

func (e *Engine) finish(phase models.EngineState) {
	e.state.mu.Lock()
	e.state.phase = phase
	e.state.paused = false
	e.state.mu.Unlock()
	e.updateStatus()
}

// reportLocked condenses accumulated results into the session report.
func (e *Engine) reportLocked() models.SessionReport {
	report := models.SessionReport{
		Channels: make(map[string][]models.PointResult, len(e.state.results)),
		Summary:  make(map[string]models.ChannelSummary, len(e.state.results)),
	}
	for ch, rs := range e.state.results {
		report.Channels[ch] = append([]models.PointResult(nil), rs...)

		var errs, stds, targets []float64
		for _, r := range rs {
			errs = append(errs, r.Error)
			stds = append(stds, r.StdDev)
			targets = append(targets, r.PointTarget)
		}
		maxErr := 0.0
		for _, v := range errs {
			maxErr = math.Max(maxErr, math.Abs(v))
		}
		sort.Float64s(targets)
		report.Summary[ch] = models.ChannelSummary{
			Channel:    ch,
			Points:     len(rs),
			Targets:    targets,
			MeanError:  Mean(errs),
			MaxError:   maxErr,
			MeanStdDev: Mean(stds),
		}
	}
	return report
}

func (e *Engine) snapshotLocked() models.StatusSnapshot {
	last := make(map[string]float64, len(e.state.lastValues))
	for k, v := range e.state.lastValues {
		last[k] = v
	}
	snap := models.StatusSnapshot{
		State:          e.state.phase,
		SessionID:      e.state.sessionID,
		CurrentPoint:   e.state.currentPoint + 1,
		TotalPoints:    len(e.state.points),
		CurrentTarget:  e.state.currentTarget,
		CurrentChannel: e.state.currentChannel,
		LastValues:     last,
		UpdatedAt:      time.Now().UTC(),
	}
	if e.state.phase == models.StateIdle {
		snap.CurrentPoint = 0
	}
	if e.state.lastPV != nil {
		pv := *e.state.lastPV
		snap.FurnacePV = &pv
	}
	if len(e.state.points) > 0 {
		sp := e.state.currentTarget
		snap.FurnaceSP = &sp
	}
	return snap
}

func (e *Engine) updateStatus() {
	e.state.mu.Lock()
	snap := e.snapshotLocked()
	e.state.mu.Unlock()
	e.events.publish(models.EventStatus, snap)
}

func (e *Engine) setCurrentPoint(idx int, target float64) {
	e.state.mu.Lock()
	e.state.currentPoint = idx
	e.state.currentTarget = target
	e.state.mu.Unlock()
}

func (e *Engine) setCurrentChannel(ch string) {
	e.state.mu.Lock()
	e.state.currentChannel = ch
	e.state.mu.Unlock()
}

func (e *Engine) noteValue(ch string, temp float64) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.lastValues[ch] = temp
	tr, ok := e.state.channelHistory[ch]
	if !ok {
		tr = newTrace(historyCapacity)
		e.state.channelHistory[ch] = tr
	}
	tr.append(time.Now(), temp)
}

func (e *Engine) recordFurnace(pv float64) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	v := pv
	e.state.lastPV = &v
	e.state.furnaceHistory.append(time.Now(), pv)
}

func (e *Engine) referenceValue(fallback float64) float64 {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	if v, ok := e.state.lastValues[e.cfg.ReferenceChannel]; ok {
		return v
	}
	return fallback
}

func (e *Engine) pointsCopy() []float64 {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return append([]float64(nil), e.state.points...)
}

func (e *Engine) channelsCopy() ([]string, map[string]string) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	channels := append([]string(nil), e.state.channels...)
	types := make(map[string]string, len(e.state.sensorTypes))
	for k, v := range e.state.sensorTypes {
		types[k] = v
	}
	return channels, types
}
