package config

import (
	"fmt"
	"time"
)

// CaptureMethod selects the frame source strategy.
type CaptureMethod int

const (
	// CaptureDuplication reads frames from the hardware desktop duplication API.
	CaptureDuplication CaptureMethod = iota
	// CaptureBlit copies the region from the desktop compositor on every call.
	CaptureBlit
)

// AreaMode selects where the capture region is centered.
type AreaMode int

const (
	AreaCenter AreaMode = iota
	AreaMouse
)

// PredictorKind selects the trajectory predictor.
type PredictorKind int

const (
	PredictKalman PredictorKind = iota
	PredictWindowed
	PredictEMA
	PredictOneEuro
)

// AxisMode selects which axes the windowed, EMA and One-Euro predictors filter.
type AxisMode int

const (
	// AxesX filters x only; y passes through.
	AxesX AxisMode = iota
	AxesBoth
)

// Alignment selects the vertical aim anchor within a detection box.
type Alignment int

const (
	AlignCenter Alignment = iota
	AlignTop
	AlignBottom
)

var (
	captureMethodNames = []string{"duplication", "blit"}
	areaModeNames      = []string{"center", "mouse"}
	predictorNames     = []string{"kalman", "windowed", "ema", "one_euro"}
	axisModeNames      = []string{"x", "both"}
	alignmentNames     = []string{"center", "top", "bottom"}
)

func enumString(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return "unknown"
	}
	return names[v]
}

func enumParse(kind string, names []string, text string) (int, error) {
	for i, n := range names {
		if n == text {
			return i, nil
		}
	}
	return 0, fmt.Errorf("config: unknown %s %q", kind, text)
}

func (m CaptureMethod) String() string { return enumString(captureMethodNames, int(m)) }
func (m CaptureMethod) Valid() bool    { return m >= 0 && int(m) < len(captureMethodNames) }
func (m CaptureMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
func (m *CaptureMethod) UnmarshalText(b []byte) error {
	v, err := enumParse("capture method", captureMethodNames, string(b))
	*m = CaptureMethod(v)
	return err
}

// ParseCaptureMethod converts a flag value into a CaptureMethod.
func ParseCaptureMethod(s string) (CaptureMethod, error) {
	var m CaptureMethod
	err := m.UnmarshalText([]byte(s))
	return m, err
}

func (m AreaMode) String() string { return enumString(areaModeNames, int(m)) }
func (m AreaMode) Valid() bool    { return m >= 0 && int(m) < len(areaModeNames) }
func (m AreaMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
func (m *AreaMode) UnmarshalText(b []byte) error {
	v, err := enumParse("area mode", areaModeNames, string(b))
	*m = AreaMode(v)
	return err
}

func (k PredictorKind) String() string { return enumString(predictorNames, int(k)) }
func (k PredictorKind) Valid() bool    { return k >= 0 && int(k) < len(predictorNames) }
func (k PredictorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
func (k *PredictorKind) UnmarshalText(b []byte) error {
	v, err := enumParse("prediction method", predictorNames, string(b))
	*k = PredictorKind(v)
	return err
}

func (m AxisMode) String() string { return enumString(axisModeNames, int(m)) }
func (m AxisMode) Valid() bool    { return m >= 0 && int(m) < len(axisModeNames) }
func (m AxisMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
func (m *AxisMode) UnmarshalText(b []byte) error {
	v, err := enumParse("axis mode", axisModeNames, string(b))
	*m = AxisMode(v)
	return err
}

func (a Alignment) String() string { return enumString(alignmentNames, int(a)) }
func (a Alignment) Valid() bool    { return a >= 0 && int(a) < len(alignmentNames) }
func (a Alignment) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
func (a *Alignment) UnmarshalText(b []byte) error {
	v, err := enumParse("alignment", alignmentNames, string(b))
	*a = Alignment(v)
	return err
}

// Duration is a time.Duration that reads and writes Go duration strings ("15ms").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}
