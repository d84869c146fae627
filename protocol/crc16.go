package protocol

import "github.com/snksoft/crc"

// The block checksum is CRC-16/MCRF4XX: reflected CCITT polynomial, 0xFFFF
// seed, no final xor. Transmitted high byte first.
var crcTable = crc.NewTable(&crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	ReflectIn:  true,
	ReflectOut: true,
	Init:       0xFFFF,
	FinalXor:   0,
})

// CRC16 returns the block checksum of data.
func CRC16(data []byte) uint16 {
	return uint16(crcTable.CalculateCRC(data))
}
