// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package tyval

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// Config is the ambient, file-loadable configuration for a conversion
// session: the default policy, the parser mode, and the printer's length
// budget. It is YAML on disk (sigs.k8s.io/yaml round-trips through
// encoding/json so the same struct tags work for either), matching the
// teacher's own config idiom of a typed struct plus yaml.Unmarshal.
type Config struct {
	Policy          []string `json:"policy,omitempty"`
	ParseMode       string   `json:"parseMode,omitempty"`
	PrintMaxLen     int      `json:"printMaxLen,omitempty"`
	PrintJSONByDefault bool  `json:"printJSONByDefault,omitempty"`
}

// DefaultConfig returns the zero-policy, Normal-mode, unbounded-print
// configuration.
func DefaultConfig() Config {
	return Config{ParseMode: "normal"}
}

// LoadConfig parses raw as YAML (or JSON, which is a YAML subset) into a
// Config.
func LoadConfig(raw []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, apiErr("config: " + err.Error())
	}
	return c, nil
}

// Marshal renders c back to YAML, for round-tripping a session's
// effective configuration into a log or debug bundle.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// ResolvePolicy translates the config's string policy names into a
// Policy bitmask, rejecting any name that isn't one of the flags in
// policyNames.
func (c Config) ResolvePolicy() (Policy, error) {
	var p Policy
	for _, name := range c.Policy {
		if name == "converting_all" {
			p |= ConvertingAll
			continue
		}
		found := false
		for _, n := range policyNames {
			if n.name == name {
				p |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, apiErr(fmt.Sprintf("config: unknown policy flag %q", name))
		}
	}
	return p, nil
}

// ResolveParseMode translates the config's string mode into a ParseMode.
func (c Config) ResolveParseMode() (ParseMode, error) {
	switch c.ParseMode {
	case "", "normal":
		return Normal, nil
	case "liberal":
		return Liberal, nil
	case "json":
		return JSON, nil
	}
	return Normal, apiErr(fmt.Sprintf("config: unknown parse mode %q", c.ParseMode))
}
