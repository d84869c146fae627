package client

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dictionary is the board's self-description.
type Dictionary struct {
	Version   string            `json:"version"`
	Config    map[string]string `json:"config"`
	Commands  map[string]int    `json:"commands"`
	Responses map[string]int    `json:"responses"`
}

// ParseDictionary decodes the identify payload, zlib-compressed JSON.
// Uncompressed JSON is accepted too.
func ParseDictionary(raw []byte) (*Dictionary, error) {
	data := raw
	if len(raw) >= 2 && raw[0] == 0x78 {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("client: dictionary: %w", err)
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("client: dictionary: %w", err)
		}
	}
	var d Dictionary
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("client: dictionary: %w", err)
	}
	return &d, nil
}

// Summary renders the dictionary for people, sorted by ID.
func (d *Dictionary) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version %s\n", d.Version)
	keys := make([]string, 0, len(d.Config))
	for k := range d.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s = %s\n", k, d.Config[k])
	}
	list := func(title string, m map[string]int) {
		fmt.Fprintf(&sb, "%s (%d):\n", title, len(m))
		formats := make([]string, 0, len(m))
		for f := range m {
			formats = append(formats, f)
		}
		sort.Slice(formats, func(i, j int) bool { return m[formats[i]] < m[formats[j]] })
		for _, f := range formats {
			fmt.Fprintf(&sb, "  [%2d] %s\n", m[f], f)
		}
	}
	list("commands", d.Commands)
	list("responses", d.Responses)
	return sb.String()
}
