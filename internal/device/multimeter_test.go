package device

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
)

// linePort is a scripted command/response port for the ASCII protocol.
// Commands without an entry in responses simply produce no reply, the way
// configuration commands do on the real instrument.
type linePort struct {
	responses map[string]string
	sent      []string
	buf       []byte
	closed    bool
}

func (p *linePort) Write(b []byte) (int, error) {
	cmd := strings.TrimSpace(string(b))
	p.sent = append(p.sent, cmd)
	if reply, ok := p.responses[cmd]; ok {
		p.buf = append(p.buf, []byte(reply+"\r\n")...)
	}
	return len(b), nil
}

func (p *linePort) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		return 0, nil
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *linePort) Close() error            { p.closed = true; return nil }
func (p *linePort) ResetInputBuffer() error { p.buf = nil; return nil }

func (p *linePort) sawCommand(cmd string) bool {
	for _, s := range p.sent {
		if s == cmd {
			return true
		}
	}
	return false
}

func newTestMultimeter(port *linePort) *MultimeterClient {
	c := NewMultimeter(logger.Default())
	c.open = func(string) (transport, error) { return port, nil }
	// Keep failing reads from holding tests for the full production timeout.
	c.readTimeout = 100 * time.Millisecond
	return c
}

func connectMultimeter(t *testing.T, port *linePort) *MultimeterClient {
	t.Helper()
	if port.responses == nil {
		port.responses = map[string]string{}
	}
	if _, ok := port.responses["*IDN?"]; !ok {
		port.responses["*IDN?"] = "CROPICO,DO5000,12345,1.02"
	}
	c := newTestMultimeter(port)
	if err := c.Connect("COM7"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}

func TestMultimeterConnect(t *testing.T) {
	port := &linePort{}
	c := connectMultimeter(t, port)

	if !c.Connected() {
		t.Error("client reports not connected")
	}
	if got := c.Identification(); !strings.Contains(got, "CROPICO") {
		t.Errorf("Identification() = %q", got)
	}
	for _, cmd := range []string{"*RST", "*IDN?", "SYST:REM"} {
		if !port.sawCommand(cmd) {
			t.Errorf("command %q never sent", cmd)
		}
	}
}

func TestMultimeterConnectRejectsForeignInstrument(t *testing.T) {
	port := &linePort{responses: map[string]string{"*IDN?": "KEITHLEY,2700,0,1.0"}}
	c := newTestMultimeter(port)

	if err := c.Connect("COM7"); err == nil {
		t.Fatal("Connect accepted a foreign instrument")
	}
	if !port.closed {
		t.Error("port left open after rejected identification")
	}
}

func TestMultimeterReadTemperature(t *testing.T) {
	port := &linePort{responses: map[string]string{"READ?": "+123.456"}}
	c := connectMultimeter(t, port)

	got, err := c.ReadTemperature()
	if err != nil {
		t.Fatalf("ReadTemperature: %v", err)
	}
	if got != 123.456 {
		t.Errorf("temperature = %g, want 123.456", got)
	}
	if !port.sawCommand("TRIG:MODE IMM") {
		t.Error("trigger mode never set")
	}
}

func TestMultimeterReadOverflow(t *testing.T) {
	port := &linePort{responses: map[string]string{"READ?": "OVF"}}
	c := connectMultimeter(t, port)

	got, err := c.ReadTemperature()
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
	if !math.IsInf(got, 1) {
		t.Errorf("value = %g, want +Inf", got)
	}
}

func TestMultimeterConfigureChannel(t *testing.T) {
	tests := []struct {
		name       string
		channel    string
		sensorType string
		wantCmds   []string
	}{
		{
			name:       "rtd four wire",
			channel:    "B2",
			sensorType: "PT100",
			wantCmds:   []string{"CONF:CHAN B,2", "CONF:TEMP:RTD PT100,4W,100,0.00385"},
		},
		{
			name:       "type K internal reference",
			channel:    "A0",
			sensorType: "TC_K",
			wantCmds:   []string{"CONF:CHAN A,0", "CONF:TEMP:TC K,INT"},
		},
		{
			name:       "type S",
			channel:    "B4",
			sensorType: "TC_S",
			wantCmds:   []string{"CONF:CHAN B,4", "CONF:TEMP:TC S,INT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &linePort{}
			c := connectMultimeter(t, port)
			if err := c.ConfigureChannel(tt.channel, tt.sensorType); err != nil {
				t.Fatalf("ConfigureChannel: %v", err)
			}
			for _, cmd := range tt.wantCmds {
				if !port.sawCommand(cmd) {
					t.Errorf("command %q never sent (sent: %v)", cmd, port.sent)
				}
			}
		})
	}
}

func TestMultimeterConfigureChannelInvalid(t *testing.T) {
	port := &linePort{}
	c := connectMultimeter(t, port)
	if err := c.ConfigureChannel("Z", "PT100"); err == nil {
		t.Error("one-character channel accepted")
	}
}

func TestMultimeterRawValue(t *testing.T) {
	port := &linePort{responses: map[string]string{"MEAS:RES?": "108.332 OHM"}}
	c := connectMultimeter(t, port)

	got, err := c.RawValue()
	if err != nil {
		t.Fatalf("RawValue: %v", err)
	}
	if got != 108.332 {
		t.Errorf("raw = %g, want 108.332", got)
	}
}

func TestMultimeterSelfTest(t *testing.T) {
	port := &linePort{responses: map[string]string{"*TST?": "0"}}
	c := connectMultimeter(t, port)
	if err := c.SelfTest(); err != nil {
		t.Errorf("SelfTest: %v", err)
	}

	port.responses["*TST?"] = "ERR 4"
	if err := c.SelfTest(); err == nil {
		t.Error("failing self test reported success")
	}
}

func TestMultimeterNotConnected(t *testing.T) {
	c := NewMultimeter(logger.Default())
	if _, err := c.ReadTemperature(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
	if err := c.ConfigureChannel("B0", "PT100"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestReadLineKeepsPartialBuffer(t *testing.T) {
	// A reply that stalls before the terminator should still be surfaced.
	port := &linePort{}
	c := connectMultimeter(t, port)
	port.buf = []byte("45.6")

	line, err := c.readLine(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("readLine: %v", err)
	}
	if line != "45.6" {
		t.Errorf("line = %q, want \"45.6\"", line)
	}
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    float64
		wantErr error
	}{
		{name: "plain", line: "123.4", want: 123.4},
		{name: "signed with unit", line: "+25.03 C", want: 25.03},
		{name: "negative", line: "-40.0", want: -40},
		{name: "overflow marker", line: "OVERFLOW", wantErr: ErrOverflow},
		{name: "short marker", line: "OVF", wantErr: ErrOverflow},
		{name: "implausible", line: "99999", wantErr: ErrBadResponse},
		{name: "garbage", line: "???", wantErr: ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTemperature(tt.line, "B0")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTemperature: %v", err)
			}
			if got != tt.want {
				t.Errorf("value = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestSplitChannel(t *testing.T) {
	tests := []struct {
		in          string
		wantScanner string
		wantSlot    int
		wantErr     bool
	}{
		{in: "A0", wantScanner: "A", wantSlot: 0},
		{in: "B12", wantScanner: "B", wantSlot: 12},
		{in: "b3", wantScanner: "B", wantSlot: 3},
		{in: "B", wantErr: true},
		{in: "BX", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		scanner, slot, err := splitChannel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitChannel(%q) accepted", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitChannel(%q): %v", tt.in, err)
			continue
		}
		if scanner != tt.wantScanner || slot != tt.wantSlot {
			t.Errorf("splitChannel(%q) = %s,%d want %s,%d", tt.in, scanner, slot, tt.wantScanner, tt.wantSlot)
		}
	}
}
