package fptypes

// SensorStrength is the security class a sensor is configured as. Several
// contract behaviors are strength-tiered: authenticator-id invalidation is
// only meaningful on Strong sensors.
type SensorStrength string

const (
	StrengthConvenience SensorStrength = "convenience"
	StrengthWeak        SensorStrength = "weak"
	StrengthStrong      SensorStrength = "strong"
)

// IsValid checks if the SensorStrength is a known security class.
func (s SensorStrength) IsValid() bool {
	switch s {
	case StrengthConvenience, StrengthWeak, StrengthStrong:
		return true
	default:
		return false
	}
}

// SensorType describes the physical kind of sensor. Pointer gesture hooks
// only apply to the under-display kinds; all other kinds treat them as
// no-ops.
type SensorType string

const (
	SensorTypeUnknown                SensorType = "unknown"
	SensorTypeRearCapacitive         SensorType = "rear-capacitive"
	SensorTypeUnderDisplayOptical    SensorType = "under-display-optical"
	SensorTypeUnderDisplayUltrasonic SensorType = "under-display-ultrasonic"
	SensorTypePowerButton            SensorType = "power-button"
)

// IsValid checks if the SensorType is a known sensor kind.
func (t SensorType) IsValid() bool {
	switch t {
	case SensorTypeUnknown,
		SensorTypeRearCapacitive,
		SensorTypeUnderDisplayOptical,
		SensorTypeUnderDisplayUltrasonic,
		SensorTypePowerButton:
		return true
	default:
		return false
	}
}

// IsUnderDisplay reports whether the sensor sits under the display and
// therefore consumes pointer gesture events.
func (t SensorType) IsUnderDisplay() bool {
	return t == SensorTypeUnderDisplayOptical || t == SensorTypeUnderDisplayUltrasonic
}
