package platform

import "plantcode-go/errcode"

var (
	errADCFailed      = &errcode.E{C: errcode.SensorFailed, Op: "adc.read", Msg: "conversion failed"}
	errADCUnsupported = &errcode.E{C: errcode.Unsupported, Op: "adc.read", Msg: "no ADC on this platform"}
	errPWMFailed      = &errcode.E{C: errcode.Error, Op: "pwm.set", Msg: "write failed"}
)
