package device

import (
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
)

// PortInfo describes an instrument found during a port scan.
type PortInfo struct {
	Port   string `json:"port"`
	Device string `json:"device"`
	Detail string `json:"detail"`
}

const probeTimeout = 500 * time.Millisecond

// ScanPorts probes every serial port on the host for the two instruments:
// a Modbus PV read identifies the furnace, an *IDN? reply containing the
// device marker identifies the multimeter. Ports that answer neither probe
// are skipped silently.
func ScanPorts(log *logger.Logger) ([]PortInfo, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	var found []PortInfo
	for _, name := range names {
		if info, ok := probeFurnace(name); ok {
			found = append(found, info)
			continue
		}
		if info, ok := probeMultimeter(name); ok {
			found = append(found, info)
		}
	}
	log.Infow("port scan finished", "ports", len(names), "found", len(found))
	return found, nil
}

func probeFurnace(name string) (PortInfo, bool) {
	conn, err := openSerialPort(name, probeTimeout)
	if err != nil {
		return PortInfo{}, false
	}
	defer func() { _ = conn.Close() }()

	probe := FurnaceClient{slaveID: furnaceSlaveID, conn: conn}
	frame := probe.buildReadRequest(pvRegisterAddress, floatRegisterCount)
	if _, err := conn.Write(frame); err != nil {
		return PortInfo{}, false
	}
	time.Sleep(settleAfterSet)

	reply := make([]byte, readReplyLen)
	if n := probe.readUpTo(reply); n < readReplyLen || reply[0] != furnaceSlaveID {
		return PortInfo{}, false
	}
	return PortInfo{Port: name, Device: "calibration furnace", Detail: "modbus slave 1"}, true
}

func probeMultimeter(name string) (PortInfo, bool) {
	conn, err := openSerialPort(name, charPollInterval)
	if err != nil {
		return PortInfo{}, false
	}
	defer func() { _ = conn.Close() }()

	_ = conn.ResetInputBuffer()
	if _, err := conn.Write([]byte("*IDN?\r\n")); err != nil {
		return PortInfo{}, false
	}

	probe := MultimeterClient{conn: conn, readTimeout: probeTimeout}
	id, err := probe.readLine(probeTimeout)
	if err != nil || !strings.Contains(strings.ToUpper(id), deviceMarker) {
		return PortInfo{}, false
	}
	return PortInfo{Port: name, Device: "scanning multimeter", Detail: id}, true
}
