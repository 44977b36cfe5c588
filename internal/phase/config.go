package phase

// Config holds the thresholds and actuation limits of the phase machine.
// The defaults are the tuned values of the reference vehicle.
type Config struct {
	LowThrottle           float64 `json:"lowThrottle"`
	BrakingThrottle       float64 `json:"brakingThrottle"`
	FreefallVerticalSpeed float64 `json:"freefallVerticalSpeed"`
	GimbalAltitude        float64 `json:"gimbalAltitude"`
	GimbalLimit           float64 `json:"gimbalLimit"`
	UprightAltitude       float64 `json:"uprightAltitude"`
	TouchdownAltitude     float64 `json:"touchdownAltitude"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		LowThrottle:           0.07,
		BrakingThrottle:       1.0,
		FreefallVerticalSpeed: -1,
		GimbalAltitude:        1425,
		GimbalLimit:           0.2,
		UprightAltitude:       40,
		TouchdownAltitude:     1,
	}
}
