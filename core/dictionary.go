package core

import (
	"sort"
	"strconv"
	"sync"

	"goadc/protocol"
	"goadc/tinycompress"
)

// Dictionary is the data dictionary served to the host through identify: a
// zlib-wrapped JSON object with the protocol version, the build constants and
// the command and response formats keyed to their IDs.
type Dictionary struct {
	mu        sync.Mutex
	reg       *CommandRegistry
	version   string
	constants map[string]string
	cached    []byte
}

func NewDictionary(reg *CommandRegistry) *Dictionary {
	return &Dictionary{
		reg:       reg,
		version:   protocol.Version,
		constants: make(map[string]string),
	}
}

// AddConstant exposes a configuration constant to the host.
func (d *Dictionary) AddConstant(name string, value string) {
	d.mu.Lock()
	d.constants[name] = value
	d.cached = nil
	d.mu.Unlock()
}

// Invalidate drops the cached dictionary after new registrations.
func (d *Dictionary) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

// Bytes returns the compressed dictionary, building it on first use.
func (d *Dictionary) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		d.cached = tinycompress.Append(nil, d.json())
	}
	return d.cached
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.json()
}

func (d *Dictionary) json() []byte {
	b := make([]byte, 0, 1024)
	b = append(b, `{"version":`...)
	b = strconv.AppendQuote(b, d.version)
	b = append(b, `,"config":{`...)
	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendQuote(b, name)
		b = append(b, ':')
		b = strconv.AppendQuote(b, d.constants[name])
	}
	b = append(b, `},"commands":{`...)
	b = d.appendFormats(b, true)
	b = append(b, `},"responses":{`...)
	b = d.appendFormats(b, false)
	return append(b, "}}"...)
}

func (d *Dictionary) appendFormats(b []byte, commands bool) []byte {
	first := true
	d.reg.each(func(c *Command) {
		if (c.Handler != nil) != commands {
			return
		}
		if !first {
			b = append(b, ',')
		}
		first = false
		b = strconv.AppendQuote(b, c.Format)
		b = append(b, ':')
		b = strconv.AppendUint(b, uint64(c.ID), 10)
	})
	return b
}

// Chunk returns up to count bytes of the compressed dictionary from offset.
// Past the end it returns an empty chunk, which ends the host's transfer.
func (d *Dictionary) Chunk(offset uint32, count int) []byte {
	data := d.Bytes()
	if offset >= uint32(len(data)) {
		return nil
	}
	end := int(offset) + count
	if end > len(data) {
		end = len(data)
	}
	return data[offset:end]
}
