package protocol

import "testing"

// crcBitwise is the byte-at-a-time form used by Klipper firmware.
func crcBitwise(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		w := uint16(b)
		crc = (w<<8 | crc>>8) ^ (w >> 4) ^ (w << 3)
	}
	return crc
}

func TestCRC16(t *testing.T) {
	if got := CRC16([]byte("123456789")); got != 0x6F91 {
		t.Errorf("check value = %#04x, want 0x6f91", got)
	}
	if got := CRC16(nil); got != 0xFFFF {
		t.Errorf("empty = %#04x", got)
	}
	inputs := [][]byte{
		{5, DestBit},
		{0x00},
		{0xFF, 0x7E, 0x10},
		[]byte("adc_read group=%c"),
	}
	for _, in := range inputs {
		if got, want := CRC16(in), crcBitwise(in); got != want {
			t.Errorf("CRC16(%v) = %#04x, want %#04x", in, got, want)
		}
	}
}
