package device

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
)

// Modbus RTU parameters of the calibration furnace controller.
const (
	furnaceSlaveID     = 0x01
	fnReadHolding      = 0x03
	fnWriteMultiple    = 0x10
	exceptionBit       = 0x80
	pvRegisterAddress  = 0x8002
	spRegisterAddress  = 0x8004
	furnaceReadTimeout = time.Second

	// The controller stores temperatures as IEEE-754 floats across two
	// big-endian 16-bit registers.
	floatRegisterCount = 2

	// Reply to a 2-register read: id, fn, byte count, 4 data bytes, CRC.
	readReplyLen = 9
	// Exception reply: id, fn|0x80, code, CRC.
	exceptionReplyLen = 5
	// Echo to a write-multiple request: id, fn, addr, count, CRC.
	writeReplyLen = 8

	settleAfterOpen  = 200 * time.Millisecond
	settleAfterWrite = 100 * time.Millisecond
	settleAfterSet   = 200 * time.Millisecond
)

// FurnaceClient is a Modbus RTU master for the furnace's serial link. All
// calls are synchronous and bounded by the serial timeout; the client never
// retries, since retry cadence belongs to the orchestrator.
type FurnaceClient struct {
	log       *logger.Logger
	open      portOpener
	conn      transport
	slaveID   byte
	connected bool
}

// NewFurnace returns a client for a real serial-attached furnace.
func NewFurnace(log *logger.Logger) *FurnaceClient {
	return &FurnaceClient{
		log:     log,
		slaveID: furnaceSlaveID,
		open: func(name string) (transport, error) {
			return openSerialPort(name, furnaceReadTimeout)
		},
	}
}

// Connect opens the port and validates the link with a PV register read.
func (c *FurnaceClient) Connect(port string) error {
	conn, err := c.open(port)
	if err != nil {
		return fmt.Errorf("furnace: open %s: %w", port, err)
	}
	c.conn = conn
	c.connected = true
	time.Sleep(settleAfterOpen)

	if _, err := c.ReadTemperature(); err != nil {
		c.connected = false
		c.conn = nil
		_ = conn.Close()
		return fmt.Errorf("furnace: validate %s: %w", port, err)
	}
	c.log.Infow("furnace connected", "port", port)
	return nil
}

// Disconnect closes the port. Safe to call when not connected.
func (c *FurnaceClient) Disconnect() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.log.Infow("furnace disconnected")
}

func (c *FurnaceClient) Connected() bool { return c.connected }

// ReadTemperature reads the process value register pair.
func (c *FurnaceClient) ReadTemperature() (float64, error) {
	return c.readFloat(pvRegisterAddress)
}

// ReadSetpoint reads the setpoint register pair.
func (c *FurnaceClient) ReadSetpoint() (float64, error) {
	return c.readFloat(spRegisterAddress)
}

// SetSetpoint writes the setpoint as a float split across two registers.
// Success is judged by the echoed function code lacking the exception bit.
func (c *FurnaceClient) SetSetpoint(value float64) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	request := c.buildWriteRequest(spRegisterAddress, value)
	_ = c.conn.ResetInputBuffer()
	if _, err := c.conn.Write(request); err != nil {
		return fmt.Errorf("furnace: write setpoint: %w", err)
	}
	time.Sleep(settleAfterSet)

	reply := make([]byte, writeReplyLen)
	n := c.readUpTo(reply)
	// Exception replies are only 5 bytes, check them before the length.
	if n >= exceptionReplyLen && reply[1] == fnWriteMultiple|exceptionBit {
		return fmt.Errorf("furnace: modbus exception 0x%02x: %w", reply[2], ErrBadResponse)
	}
	if n < writeReplyLen {
		return fmt.Errorf("furnace: short write echo (%d bytes): %w", n, ErrBadResponse)
	}
	if reply[1] != fnWriteMultiple {
		return fmt.Errorf("furnace: unexpected function 0x%02x: %w", reply[1], ErrBadResponse)
	}
	c.log.Infow("furnace setpoint set", "target_c", value)
	return nil
}

func (c *FurnaceClient) readFloat(address uint16) (float64, error) {
	if c.conn == nil {
		return 0, ErrNotConnected
	}
	request := c.buildReadRequest(address, floatRegisterCount)
	_ = c.conn.ResetInputBuffer()
	if _, err := c.conn.Write(request); err != nil {
		return 0, fmt.Errorf("furnace: write request: %w", err)
	}
	time.Sleep(settleAfterWrite)

	reply := make([]byte, readReplyLen)
	n := c.readUpTo(reply)
	value, err := c.parseFloatReply(reply[:n])
	if err != nil {
		c.log.Warnw("furnace read failed", "addr", fmt.Sprintf("0x%04x", address), "err", err)
		return 0, err
	}
	return value, nil
}

// readUpTo fills buf from the serial link, tolerating the short reads a
// timed-out port produces. Returns the number of bytes actually read.
func (c *FurnaceClient) readUpTo(buf []byte) int {
	total := 0
	for total < len(buf) {
		n, err := c.conn.Read(buf[total:])
		total += n
		// A zero-byte read means the port timeout expired.
		if n == 0 || err != nil {
			break
		}
	}
	return total
}

func (c *FurnaceClient) buildReadRequest(address, count uint16) []byte {
	frame := make([]byte, 0, 8)
	frame = append(frame, c.slaveID, fnReadHolding)
	frame = binary.BigEndian.AppendUint16(frame, address)
	frame = binary.BigEndian.AppendUint16(frame, count)
	return appendCRC(frame)
}

func (c *FurnaceClient) buildWriteRequest(address uint16, value float64) []byte {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], math.Float32bits(float32(value)))

	frame := make([]byte, 0, 13)
	frame = append(frame, c.slaveID, fnWriteMultiple)
	frame = binary.BigEndian.AppendUint16(frame, address)
	frame = binary.BigEndian.AppendUint16(frame, floatRegisterCount)
	frame = append(frame, 4) // payload byte count
	frame = append(frame, raw[:]...)
	return appendCRC(frame)
}

// parseFloatReply validates slave id, function code, byte count and CRC, then
// decodes the two registers as a big-endian IEEE-754 float.
func (c *FurnaceClient) parseFloatReply(reply []byte) (float64, error) {
	if len(reply) >= exceptionReplyLen && reply[1] == fnReadHolding|exceptionBit {
		return 0, fmt.Errorf("modbus exception 0x%02x: %w", reply[2], ErrBadResponse)
	}
	if len(reply) < readReplyLen {
		return 0, fmt.Errorf("short reply (%d bytes): %w", len(reply), ErrBadResponse)
	}
	if reply[0] != c.slaveID {
		return 0, fmt.Errorf("wrong slave id 0x%02x: %w", reply[0], ErrBadResponse)
	}
	if reply[1] != fnReadHolding {
		return 0, fmt.Errorf("unexpected function 0x%02x: %w", reply[1], ErrBadResponse)
	}
	if reply[2] != 4 {
		return 0, fmt.Errorf("unexpected byte count %d: %w", reply[2], ErrBadResponse)
	}
	if !checkCRC(reply[:readReplyLen]) {
		return 0, fmt.Errorf("crc mismatch: %w", ErrBadResponse)
	}
	bits := binary.BigEndian.Uint32(reply[3:7])
	return float64(math.Float32frombits(bits)), nil
}
