// Package protocol implements the Klipper-style serial protocol used between
// the ADC firmware and host tools: VLQ argument encoding, CRC16 framed blocks
// with sequence numbers and ACKs, and text message formats that describe
// each command in the data dictionary.
package protocol

// Version is the protocol revision reported in the data dictionary.
const Version = "goadc-1"

// Frame layout: [len][seq] payload [crc hi][crc lo][sync]
const (
	HeaderSize  = 2
	TrailerSize = 3
	MinFrame    = HeaderSize + TrailerSize
	MaxFrame    = 64
	MaxPayload  = MaxFrame - MinFrame

	SyncByte = 0x7E
	DestBit  = 0x10
	SeqMask  = 0x0F
)

// NextSeq returns the sequence number that follows seq.
func NextSeq(seq uint8) uint8 {
	return (seq+1)&SeqMask | DestBit
}
