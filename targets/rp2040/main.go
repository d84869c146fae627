//go:build rp2040 || rp2350

// Firmware for an RP2040 board driving an external converter over I2C. The
// host talks to it over USB CDC with the framed command protocol.
package main

import (
	"machine"
	"time"

	"goadc/core"
	"goadc/errcode"
	"goadc/hal"
	"goadc/protocol"
)

var (
	driver   *core.Driver
	remote   *core.Remote
	bridge   *hal.RegBridge
	regs     *hal.I2CRegisters
	endpoint *protocol.Endpoint

	// Debug counters
	usageErrors uint32
	faults      uint32
	busErrors   uint32
	panics      uint32
)

func main() {
	// Clear any watchdog state left over from before the reset.
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	if err := machine.I2C0.Configure(machine.I2CConfig{Frequency: i2cFrequency}); err != nil {
		return
	}
	regs = hal.NewI2CRegisters(machine.I2C0, converterAddr)
	bridge = hal.NewRegBridge(regs, stopBudget)

	driver = core.New(bridge)
	driver.SetUsageReporter(core.UsageReporterFunc(func(core.UnitID, core.ServiceID, errcode.Code) {
		usageErrors++
	}))
	driver.SetFaultReporter(core.FaultReporterFunc(func(_ core.EventID, status core.EventStatus) {
		if status == core.EventFailed {
			faults++
		}
	}))
	remote = core.NewRemote(driver)
	remote.Dictionary().AddConstant("MCU", "rp2040")

	cfg := boardConfig()
	for i := range cfg.Groups {
		cfg.Groups[i].Notify = remote.Notifier(cfg.Groups[i].ID)
	}
	if err := driver.Init(cfg); err != nil {
		// Keep serving identify so the host can see the driver is down.
		usageErrors++
	}
	for _, g := range cfg.Groups {
		buf := make([]core.Value, len(g.Channels)*g.Samples)
		if err := driver.SetupResultBuffer(g.ID, buf); err != nil {
			usageErrors++
		}
	}

	endpoint = protocol.NewEndpoint(machine.Serial, remote.Dispatch)
	endpoint.OnReset = func() {
		regs.ClearErr()
	}
	remote.SetOutput(endpoint)

	buf := make([]byte, 64)
	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					panics++
				}
			}()

			if n := readSerial(buf); n > 0 {
				endpoint.Receive(buf[:n])
			}
			driver.Poll(bridge)
			remote.NotifyTask()
			if regs.Err() != nil {
				busErrors++
				regs.ClearErr()
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// readSerial drains what USB has buffered without blocking.
func readSerial(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	return n
}
