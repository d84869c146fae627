package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ArgType is the printf-style type of one message parameter.
type ArgType uint8

const (
	ArgUint   ArgType = iota // %u
	ArgInt                   // %i
	ArgUint16                // %hu
	ArgInt16                 // %hi
	ArgByte                  // %c
	ArgString                // %s
	ArgBuffer                // %*s or %.*s
)

var argTypes = map[string]ArgType{
	"%u":   ArgUint,
	"%i":   ArgInt,
	"%hu":  ArgUint16,
	"%hi":  ArgInt16,
	"%c":   ArgByte,
	"%s":   ArgString,
	"%*s":  ArgBuffer,
	"%.*s": ArgBuffer,
}

func (t ArgType) bytes() bool { return t == ArgString || t == ArgBuffer }

// Param is one name=%type pair of a message format.
type Param struct {
	Name string
	Type ArgType
}

// Format describes a command or response, as listed in the data dictionary:
// "adc_read group=%c".
type Format struct {
	Name   string
	Params []Param
}

// ParseFormat parses a dictionary message format.
func ParseFormat(s string) (Format, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Format{}, errors.New("protocol: empty message format")
	}
	f := Format{Name: fields[0]}
	for _, field := range fields[1:] {
		name, typ, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return Format{}, fmt.Errorf("protocol: %s: malformed parameter %q", f.Name, field)
		}
		t, ok := argTypes[typ]
		if !ok {
			return Format{}, fmt.Errorf("protocol: %s: unknown type %q", f.Name, typ)
		}
		f.Params = append(f.Params, Param{Name: name, Type: t})
	}
	return f, nil
}

// Arg is one decoded message argument.
type Arg struct {
	Name  string
	Int   int64
	Bytes []byte
}

func (a Arg) String() string {
	if a.Bytes != nil {
		return a.Name + "=" + strconv.Quote(string(a.Bytes))
	}
	return a.Name + "=" + strconv.FormatInt(a.Int, 10)
}

// Decode reads the arguments of f from r.
func (f Format) Decode(r *Reader) ([]Arg, error) {
	args := make([]Arg, len(f.Params))
	for i, p := range f.Params {
		args[i].Name = p.Name
		switch p.Type {
		case ArgString, ArgBuffer:
			args[i].Bytes = append([]byte{}, r.Bytes()...)
		case ArgInt, ArgInt16:
			args[i].Int = int64(r.Int())
		default:
			args[i].Int = int64(r.Uint())
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return args, nil
}

// AppendArgs encodes named text arguments in parameter order. Every
// parameter must be present; integers accept any strconv base prefix.
func (f Format) AppendArgs(b []byte, args map[string]string) ([]byte, error) {
	for _, p := range f.Params {
		s, ok := args[p.Name]
		if !ok {
			return b, fmt.Errorf("%s: missing argument %s", f.Name, p.Name)
		}
		if p.Type.bytes() {
			b = AppendString(b, s)
			continue
		}
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return b, fmt.Errorf("%s: argument %s: %w", f.Name, p.Name, err)
		}
		b = AppendInt(b, int32(v))
	}
	if len(args) > len(f.Params) {
		return b, fmt.Errorf("%s: takes %d arguments, got %d", f.Name, len(f.Params), len(args))
	}
	return b, nil
}

func (f Format) String() string {
	var sb strings.Builder
	sb.WriteString(f.Name)
	for _, p := range f.Params {
		sb.WriteByte(' ')
		sb.WriteString(p.Name)
		sb.WriteByte('=')
		for k, t := range argTypes {
			if t == p.Type && k != "%.*s" {
				sb.WriteString(k)
				break
			}
		}
	}
	return sb.String()
}
