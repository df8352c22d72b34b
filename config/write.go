package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Write encodes cfg as YAML.
func Write(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// WriteFile writes cfg to path, refusing to replace an existing file
// unless overwrite is set.
func WriteFile(path string, cfg Config, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := Write(f, cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
