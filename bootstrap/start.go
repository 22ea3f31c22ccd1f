package bootstrap

import (
	"errors"
	"log"
	"os"

	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/instrumentation"
)

// Start builds an Instrument that prints the calls of the configured targets
// to standard error. Targets that are not loaded yet are wrapped once the
// program calls Instrument.Load. The wildcard also enables the global
// adapter.
func Start(cfg *Config) (*instrumentation.Instrument, error) {
	inst, err := cfg.Builder().Build()
	if err != nil {
		return nil, err
	}

	logger := NewEventLogger(log.New(os.Stderr, "", 0))
	if _, err := inst.Observe("", logger); err != nil {
		inst.Close()
		return nil, err
	}

	if err := AddTargets(inst, cfg.Targets); err != nil {
		inst.Close()
		return nil, err
	}

	return inst, nil
}

// AddTargets wraps the targets by name.
func AddTargets(inst *instrumentation.Instrument, targets []string) error {
	var errs []error

	for _, t := range targets {
		if _, err := inst.WrapByName(t); err != nil {
			errs = append(errs, err)
		}
	}

	for _, t := range targets {
		if t == event.Wildcard {
			inst.Enable()
			break
		}
	}

	return errors.Join(errs...)
}
