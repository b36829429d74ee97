package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if c.PolicyDir == "" {
		v.Add("policyDir is required")
	} else if err := requireDir(c.PolicyDir); err != nil {
		v.Add("policyDir invalid: %v", err)
	}

	if c.IncludeDir != "" {
		if err := requireDir(c.IncludeDir); err != nil {
			v.Add("includeDir invalid: %v", err)
		}
	}

	if c.Server.Listen != "" {
		if err := validateListen(c.Server.Listen); err != nil {
			v.Add("server.listen invalid: %v", err)
		}
	}

	if c.Metrics.Enabled && c.Server.Listen == "" {
		v.Add("metrics.enabled requires server.listen")
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
