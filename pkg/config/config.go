// Package config loads the robot's tunables from YAML.  Anything missing from
// the file keeps its default, and the merged result is written back out so
// that what actually ran is on record.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tigerbot-team/avoidbot/pkg/avoidmode"
	"github.com/tigerbot-team/avoidbot/pkg/hardware"
	"github.com/tigerbot-team/avoidbot/pkg/motion"
	"github.com/tigerbot-team/avoidbot/pkg/policy"
)

const DefaultPath = "/cfg/avoidbot.yaml"

type Config struct {
	Hardware hardware.Config  `yaml:"hardware"`
	Motion   motion.Config    `yaml:"motion"`
	Policy   policy.Config    `yaml:"policy"`
	Loop     avoidmode.Config `yaml:"loop"`
}

func Default() Config {
	return Config{
		Hardware: hardware.DefaultConfig(),
		Motion:   motion.DefaultConfig(),
		Policy:   policy.DefaultConfig(),
		Loop:     avoidmode.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if err := c.Hardware.Validate(); err != nil {
		return errors.Wrap(err, "hardware")
	}
	if err := c.Motion.Validate(); err != nil {
		return errors.Wrap(err, "motion")
	}
	if err := c.Policy.Validate(); err != nil {
		return errors.Wrap(err, "policy")
	}
	if err := c.Loop.Validate(); err != nil {
		return errors.Wrap(err, "loop")
	}
	return nil
}

// Parse overlays the YAML in data onto the defaults.  Unknown keys are an
// error so that typos don't silently fall back to defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load reads path.  A missing file is not an error: the defaults are used.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		fmt.Println("Config: no", path, "using defaults")
		return Default(), nil
	} else if err != nil {
		return Config{}, errors.Wrapf(err, "reading %s", path)
	}
	cfg, err := Parse(data)
	return cfg, errors.Wrapf(err, "loading %s", path)
}

// InUsePath is where the merged config is recorded, e.g.
// /cfg/avoidbot-in-use.yaml.
func InUsePath(path string) string {
	if strings.HasSuffix(path, ".yaml") {
		return strings.TrimSuffix(path, ".yaml") + "-in-use.yaml"
	}
	return path + "-in-use"
}

func (c Config) WriteInUse(path string) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0666), "writing %s", path)
}
