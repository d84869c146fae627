package core

// itoa converts an integer to a string without pulling in fmt.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// utoa converts an unsigned integer to a string.
func utoa(n uint32) string {
	return itoa(int(n))
}

// joinValues renders conversion results as "a,b,c".
func joinValues(vs []Value) string {
	s := ""
	for i, v := range vs {
		if i > 0 {
			s += ","
		}
		s += utoa(uint32(v))
	}
	return s
}
