package device

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

// Timing and protocol parameters of the scanning multimeter.
const (
	multimeterReadTimeout = 3 * time.Second
	charPollInterval      = 10 * time.Millisecond
	settleAfterReset      = 300 * time.Millisecond
	settleAfterConnect    = 500 * time.Millisecond
	settleAfterCommand    = 100 * time.Millisecond
	settleAfterTrigger    = 200 * time.Millisecond

	deviceMarker = "CROPICO"

	// Plausible temperature range for any supported sensor, °C.
	minPlausibleC = -200
	maxPlausibleC = 2000
)

var numberPattern = regexp.MustCompile(`[+-]?\d+\.?\d*`)

// MultimeterClient drives the scanning multimeter over its newline-terminated
// ASCII protocol. One channel at a time: the scanner is physically a relay
// mux, so reads are inherently sequential.
type MultimeterClient struct {
	log            *logger.Logger
	open           portOpener
	conn           transport
	readTimeout    time.Duration
	deviceID       string
	currentChannel string
	connected      bool
}

// NewMultimeter returns a client for a real serial-attached multimeter.
func NewMultimeter(log *logger.Logger) *MultimeterClient {
	return &MultimeterClient{
		log:         log,
		readTimeout: multimeterReadTimeout,
		open: func(name string) (transport, error) {
			// Short port timeout: readLine polls per character and
			// enforces the overall deadline itself.
			return openSerialPort(name, charPollInterval)
		},
	}
}

// Connect opens the port, resets the instrument and checks identification.
func (c *MultimeterClient) Connect(port string) error {
	conn, err := c.open(port)
	if err != nil {
		return fmt.Errorf("multimeter: open %s: %w", port, err)
	}
	c.conn = conn
	time.Sleep(settleAfterConnect)
	_ = conn.ResetInputBuffer()

	c.send("*RST")
	time.Sleep(settleAfterReset)
	c.send("*IDN?")
	id, err := c.readLine(c.readTimeout)
	if err != nil || !strings.Contains(strings.ToUpper(id), deviceMarker) {
		_ = conn.Close()
		c.conn = nil
		return fmt.Errorf("multimeter: device on %s did not identify as %s (got %q)", port, deviceMarker, id)
	}
	c.deviceID = id
	c.send("SYST:REM")
	time.Sleep(settleAfterCommand)
	c.connected = true
	c.log.Infow("multimeter connected", "port", port, "id", id)
	return nil
}

// Disconnect returns the instrument to local control and closes the port.
func (c *MultimeterClient) Disconnect() {
	if c.conn != nil {
		c.send("SYST:LOC")
		time.Sleep(settleAfterCommand)
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.log.Infow("multimeter disconnected")
}

func (c *MultimeterClient) Connected() bool        { return c.connected }
func (c *MultimeterClient) Identification() string { return c.deviceID }

// ConfigureChannel selects a scanner slot and programs the sensor profile:
// 4-wire PT100 resistance for RTDs, internal-reference profile for
// thermocouples.
func (c *MultimeterClient) ConfigureChannel(channel, sensorType string) error {
	if !c.connected {
		return ErrNotConnected
	}
	scanner, slot, err := splitChannel(channel)
	if err != nil {
		return err
	}
	c.send(fmt.Sprintf("CONF:CHAN %s,%d", scanner, slot))
	time.Sleep(settleAfterCommand)

	if models.IsThermocouple(sensorType) {
		c.send(fmt.Sprintf("CONF:TEMP:TC %s,INT", models.ThermocoupleType(sensorType)))
	} else {
		c.send("CONF:TEMP:RTD PT100,4W,100,0.00385")
	}
	time.Sleep(settleAfterCommand)
	c.currentChannel = channel
	c.log.Debugw("channel configured", "channel", channel, "sensor", sensorType)
	return nil
}

// ReadTemperature triggers an immediate measurement and parses the reply.
// An overflow marker yields (+Inf, ErrOverflow): the sensor is open or
// over-range this instant, which is not a protocol failure.
func (c *MultimeterClient) ReadTemperature() (float64, error) {
	if !c.connected {
		return 0, ErrNotConnected
	}
	c.send("TRIG:MODE IMM")
	time.Sleep(settleAfterTrigger)
	c.send("READ?")
	line, err := c.readLine(c.readTimeout)
	if err != nil {
		return 0, err
	}
	return parseTemperature(line, c.currentChannel)
}

// RawValue reads the uncorrected resistance or EMF for the audit trail.
func (c *MultimeterClient) RawValue() (float64, error) {
	if !c.connected {
		return 0, ErrNotConnected
	}
	c.send("MEAS:RES?")
	line, err := c.readLine(c.readTimeout)
	if err != nil {
		return 0, err
	}
	if m := numberPattern.FindString(line); m != "" {
		return strconv.ParseFloat(m, 64)
	}
	return 0, fmt.Errorf("no value in %q: %w", line, ErrBadResponse)
}

// SelfTest runs the instrument self test; "0" in the reply means pass.
func (c *MultimeterClient) SelfTest() error {
	if !c.connected {
		return ErrNotConnected
	}
	c.send("*TST?")
	line, err := c.readLine(5 * time.Second)
	if err != nil {
		return err
	}
	if !strings.Contains(line, "0") {
		return fmt.Errorf("self test reported %q", line)
	}
	return nil
}

func (c *MultimeterClient) send(command string) {
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(command + "\r\n")); err != nil {
		c.log.Warnw("multimeter write failed", "cmd", command, "err", err)
	}
}

// readLine polls the port character by character until the newline
// terminator or the deadline. On timeout, whatever was buffered is returned
// rather than discarded; only an empty buffer is an error.
func (c *MultimeterClient) readLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var buf strings.Builder
	one := make([]byte, 1)
	for time.Now().Before(deadline) {
		n, err := c.conn.Read(one)
		if err != nil {
			break
		}
		if n == 0 {
			time.Sleep(charPollInterval)
			continue
		}
		buf.WriteByte(one[0])
		if one[0] == '\n' {
			return strings.TrimSpace(buf.String()), nil
		}
	}
	if buf.Len() > 0 {
		return strings.TrimSpace(buf.String()), nil
	}
	return "", ErrReadTimeout
}

func parseTemperature(line, channel string) (float64, error) {
	if m := numberPattern.FindString(line); m != "" {
		temp, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", line, ErrBadResponse)
		}
		if temp < minPlausibleC || temp > maxPlausibleC {
			return 0, fmt.Errorf("temperature %g out of range: %w", temp, ErrBadResponse)
		}
		return temp, nil
	}
	if upper := strings.ToUpper(line); strings.Contains(upper, "OVF") || strings.Contains(upper, "OVERFLOW") {
		return math.Inf(1), fmt.Errorf("channel %s: %w", channel, ErrOverflow)
	}
	return 0, fmt.Errorf("no value in %q: %w", line, ErrBadResponse)
}

// splitChannel parses "B2" into scanner "B" and slot 2.
func splitChannel(channel string) (string, int, error) {
	if len(channel) < 2 {
		return "", 0, fmt.Errorf("invalid channel %q", channel)
	}
	slot, err := strconv.Atoi(channel[1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid channel %q", channel)
	}
	return strings.ToUpper(channel[:1]), slot, nil
}
