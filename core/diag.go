package core

import "goadc/errcode"

// ServiceID identifies the public operation that detected a usage error.
type ServiceID uint8

const (
	SvcInit                     ServiceID = 0x00
	SvcDeInit                   ServiceID = 0x01
	SvcStartGroupConversion     ServiceID = 0x02
	SvcStopGroupConversion      ServiceID = 0x03
	SvcReadGroup                ServiceID = 0x04
	SvcEnableHardwareTrigger    ServiceID = 0x05
	SvcDisableHardwareTrigger   ServiceID = 0x06
	SvcEnableGroupNotification  ServiceID = 0x07
	SvcDisableGroupNotification ServiceID = 0x08
	SvcGetGroupStatus           ServiceID = 0x09
	SvcGetVersionInfo           ServiceID = 0x0A
	SvcGetStreamLastPointer     ServiceID = 0x0B
	SvcSetupResultBuffer        ServiceID = 0x0C
	SvcCalibrate                ServiceID = 0x0D
	SvcSetClockMode             ServiceID = 0x0E
	SvcSetPowerState            ServiceID = 0x10
	SvcGetCurrentPowerState     ServiceID = 0x11
	SvcGetTargetPowerState      ServiceID = 0x12
	SvcPreparePowerState        ServiceID = 0x13
	SvcEnableChannel            ServiceID = 0x14
	SvcDisableChannel           ServiceID = 0x15
)

func (s ServiceID) String() string {
	switch s {
	case SvcInit:
		return "Init"
	case SvcDeInit:
		return "DeInit"
	case SvcStartGroupConversion:
		return "StartGroupConversion"
	case SvcStopGroupConversion:
		return "StopGroupConversion"
	case SvcReadGroup:
		return "ReadGroup"
	case SvcEnableHardwareTrigger:
		return "EnableHardwareTrigger"
	case SvcDisableHardwareTrigger:
		return "DisableHardwareTrigger"
	case SvcEnableGroupNotification:
		return "EnableGroupNotification"
	case SvcDisableGroupNotification:
		return "DisableGroupNotification"
	case SvcGetGroupStatus:
		return "GetGroupStatus"
	case SvcGetVersionInfo:
		return "GetVersionInfo"
	case SvcGetStreamLastPointer:
		return "GetStreamLastPointer"
	case SvcSetupResultBuffer:
		return "SetupResultBuffer"
	case SvcCalibrate:
		return "Calibrate"
	case SvcSetClockMode:
		return "SetClockMode"
	case SvcSetPowerState:
		return "SetPowerState"
	case SvcGetCurrentPowerState:
		return "GetCurrentPowerState"
	case SvcGetTargetPowerState:
		return "GetTargetPowerState"
	case SvcPreparePowerState:
		return "PreparePowerState"
	case SvcEnableChannel:
		return "EnableChannel"
	case SvcDisableChannel:
		return "DisableChannel"
	}
	return "Service" + itoa(int(s))
}

// UsageReporter receives API misuse detected at entry of a service.
// Implementations must not call back into the driver.
type UsageReporter interface {
	ReportUsageError(unit UnitID, svc ServiceID, code errcode.Code)
}

// EventID names a hardware fault condition.
type EventID uint8

const (
	EventStopTimeout EventID = iota + 1
	EventCalibrationTimeout
)

func (e EventID) String() string {
	switch e {
	case EventStopTimeout:
		return "stop-timeout"
	case EventCalibrationTimeout:
		return "calibration-timeout"
	}
	return "event" + itoa(int(e))
}

type EventStatus uint8

const (
	EventPassed EventStatus = iota
	EventFailed
)

// FaultReporter receives hardware fault events. It is called with a unit's
// critical region held and must not call back into the driver.
type FaultReporter interface {
	ReportEvent(ev EventID, status EventStatus)
}

// UsageReporterFunc adapts a function to UsageReporter.
type UsageReporterFunc func(unit UnitID, svc ServiceID, code errcode.Code)

func (f UsageReporterFunc) ReportUsageError(unit UnitID, svc ServiceID, code errcode.Code) {
	f(unit, svc, code)
}

// FaultReporterFunc adapts a function to FaultReporter.
type FaultReporterFunc func(ev EventID, status EventStatus)

func (f FaultReporterFunc) ReportEvent(ev EventID, status EventStatus) { f(ev, status) }

// debugReporter is the default for both channels; it writes through the
// driver's DebugWriter.
type debugReporter struct {
	d *Driver
}

func (r debugReporter) ReportUsageError(unit UnitID, svc ServiceID, code errcode.Code) {
	r.d.debugPrintln("[ADC] usage error unit=" + itoa(int(unit)) + " svc=" + svc.String() + " code=" + string(code))
}

func (r debugReporter) ReportEvent(ev EventID, status EventStatus) {
	if status == EventFailed {
		r.d.debugPrintln("[ADC] fault " + ev.String())
	}
}
