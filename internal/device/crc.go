package device

// crc16Modbus computes CRC-16/Modbus: polynomial 0xA001 (reflected 0x8005),
// seed 0xFFFF, processed byte at a time.
func crc16Modbus(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// appendCRC appends the frame checksum in Modbus RTU order: low byte first.
func appendCRC(frame []byte) []byte {
	crc := crc16Modbus(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

// checkCRC verifies a frame whose last two bytes are a little-endian CRC.
func checkCRC(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	body, trailer := frame[:len(frame)-2], frame[len(frame)-2:]
	crc := crc16Modbus(body)
	return trailer[0] == byte(crc) && trailer[1] == byte(crc>>8)
}
