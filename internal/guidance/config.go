package guidance

import (
	"time"

	"github.com/descentctl/lander/internal/actuation"
	"github.com/descentctl/lander/internal/phase"
	"github.com/descentctl/lander/internal/steering"
	"github.com/descentctl/lander/pkg/core"
)

// Config is the full tuning of one descent.
type Config struct {
	Frame           core.Frame   `json:"frame"`
	LeadCoefficient float64      `json:"leadCoefficient"`
	ImpactSpeed     float64      `json:"impactSpeed"`
	Phase           phase.Config `json:"phase"`

	IgnitionDelay  time.Duration `json:"ignitionDelay"`
	PollInterval   time.Duration `json:"pollInterval"`
	TickInterval   time.Duration `json:"tickInterval"`
	SASSettleDelay time.Duration `json:"sasSettleDelay"`
	StaleTicks     int           `json:"staleTicks"`

	// per waiting phase; zero means wait forever
	IgnitionTimeout time.Duration `json:"ignitionTimeout"`
	AscentTimeout   time.Duration `json:"ascentTimeout"`
	FreefallTimeout time.Duration `json:"freefallTimeout"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Frame:           core.FrameBody,
		LeadCoefficient: steering.DefaultLeadCoefficient,
		ImpactSpeed:     core.DefaultTargetImpactSpeed,
		Phase:           phase.DefaultConfig(),
		IgnitionDelay:   time.Second,
		PollInterval:    100 * time.Millisecond,
		TickInterval:    20 * time.Millisecond,
		SASSettleDelay:  actuation.DefaultSASSettleDelay,
		StaleTicks:      50,
		IgnitionTimeout: 10 * time.Second,
		AscentTimeout:   5 * time.Minute,
		FreefallTimeout: 10 * time.Minute,
	}
}

func (c Config) timeout(p core.Phase) time.Duration {
	switch p {
	case core.PhaseStaging:
		return c.IgnitionTimeout
	case core.PhaseAscentWait:
		return c.AscentTimeout
	case core.PhaseFreefallWait:
		return c.FreefallTimeout
	}
	return 0
}

// Tuning flattens the config for the flight log.
func (c Config) Tuning() map[string]any {
	return map[string]any{
		"leadCoefficient":       c.LeadCoefficient,
		"impactSpeed":           c.ImpactSpeed,
		"lowThrottle":           c.Phase.LowThrottle,
		"brakingThrottle":       c.Phase.BrakingThrottle,
		"freefallVerticalSpeed": c.Phase.FreefallVerticalSpeed,
		"gimbalAltitude":        c.Phase.GimbalAltitude,
		"gimbalLimit":           c.Phase.GimbalLimit,
		"uprightAltitude":       c.Phase.UprightAltitude,
		"touchdownAltitude":     c.Phase.TouchdownAltitude,
		"tickInterval":          c.TickInterval.String(),
		"pollInterval":          c.PollInterval.String(),
	}
}
