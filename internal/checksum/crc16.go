// Package checksum implements the CRC-16/CCITT-FALSE variant used by
// BR-Code payment payloads.
package checksum

import "fmt"

const polynomial = 0x1021

// CRC16 computes CRC-16/CCITT-FALSE over data and returns it as four
// uppercase hex digits. Register starts at 0xFFFF, no reflection, no
// final XOR.
func CRC16(data []byte) string {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
