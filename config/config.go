// Package config loads ADC driver configuration tables from YAML (or JSON)
// documents and converts them into core.Config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the document layout.
type File struct {
	Board             Board    `yaml:"board"`
	Features          Features `yaml:"features"`
	Precedence        []string `yaml:"precedence"`
	SwQueueDepth      int      `yaml:"sw_queue_depth"`
	CalibrationBudget uint32   `yaml:"calibration_budget"`
	PowerStates       []uint8  `yaml:"power_states"`
	Units             []Unit   `yaml:"units"`
	Groups            []Group  `yaml:"groups"`
}

// Board holds the settings that do not belong to the scheduler: where the
// converter is and how patient the bridge is.
type Board struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
	I2CAddress    uint16 `yaml:"i2c_address"`
	I2CFrequency  uint32 `yaml:"i2c_frequency"`
	StopBudget    uint32 `yaml:"stop_budget"`
}

// Features are on unless switched off.
type Features struct {
	LimitCheck    *bool `yaml:"limit_check"`
	DMA           *bool `yaml:"dma"`
	HwTrigger     *bool `yaml:"hw_trigger"`
	Notifications *bool `yaml:"notifications"`
	Priority      *bool `yaml:"priority"`
}

type Unit struct {
	ID             int     `yaml:"id"`
	Slots          int     `yaml:"slots"`
	HwTriggerSlots *int    `yaml:"hw_trigger_slots"`
	Resolution     uint8   `yaml:"resolution"`
	SampleTime     uint8   `yaml:"sample_time"`
	DMA            bool    `yaml:"dma"`
	DMAChannel     uint8   `yaml:"dma_channel"`
	ClockDivider   []uint8 `yaml:"clock_divider"`
}

type Group struct {
	ID          int       `yaml:"id"`
	Name        string    `yaml:"name"`
	Unit        int       `yaml:"unit"`
	Trigger     string    `yaml:"trigger"`
	Mode        string    `yaml:"mode"`
	Access      string    `yaml:"access"`
	Buffer      string    `yaml:"buffer"`
	Type        string    `yaml:"type"`
	Priority    uint8     `yaml:"priority"`
	Samples     int       `yaml:"samples"`
	LimitCheck  bool      `yaml:"limit_check"`
	Replacement string    `yaml:"replacement"`
	DMA         bool      `yaml:"dma"`
	HwTrigger   *Trigger  `yaml:"hw_trigger"`
	Channels    []Channel `yaml:"channels"`
}

type Trigger struct {
	Source uint8  `yaml:"source"`
	Edge   string `yaml:"edge"`
}

type Channel struct {
	ID    *int   `yaml:"id"`
	HW    uint8  `yaml:"hw"`
	Range string `yaml:"range"`
	Low   uint16 `yaml:"low"`
	High  uint16 `yaml:"high"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a document and fills in defaults. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	applyDefaults(&f)
	return &f, nil
}
