package security

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// limitsFile is the on-disk shape of a xeno.toml limits file. Zero fields
// leave the corresponding config value untouched.
type limitsFile struct {
	Limits struct {
		MaxStringLength       int `toml:"max-string-length"`
		MaxVariableNameLength int `toml:"max-variable-name-length"`
		MaxExpressionDepth    int `toml:"max-expression-depth"`
		MaxLoopDepth          int `toml:"max-loop-depth"`
		MaxIfDepth            int `toml:"max-if-depth"`
		MaxStackSize          int `toml:"max-stack-size"`
		MaxInstructions       int `toml:"max-instructions"`
	} `toml:"limits"`
	AllowedPins []int `toml:"allowed-pins"`
}

// LoadFile reads a TOML limits file and applies it to cfg through the
// validating setters, so an out-of-range file value fails the same way a bad
// setter call does and leaves cfg unchanged for that field.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	var f limitsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse error in %s: %w", path, err)
	}

	apply := []struct {
		value int
		set   func(int) error
	}{
		{f.Limits.MaxStringLength, cfg.SetMaxStringLength},
		{f.Limits.MaxVariableNameLength, cfg.SetMaxVariableNameLength},
		{f.Limits.MaxExpressionDepth, cfg.SetMaxExpressionDepth},
		{f.Limits.MaxLoopDepth, cfg.SetMaxLoopDepth},
		{f.Limits.MaxIfDepth, cfg.SetMaxIfDepth},
		{f.Limits.MaxStackSize, cfg.SetMaxStackSize},
		{f.Limits.MaxInstructions, cfg.SetMaxInstructions},
	}
	for _, a := range apply {
		if a.value == 0 {
			continue
		}
		if err := a.set(a.value); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	if f.AllowedPins != nil {
		if err := cfg.SetAllowedPins(f.AllowedPins); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
