package framework

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
	"gopkg.in/yaml.v3"

	"github.com/launchdarkly/test-report-aggregator/interpreter"
)

// DefaultDelimiter separates the records of a report.
const DefaultDelimiter = "\n"

// Config is the explicit configuration of a report run. Exactly one of PipeName, OutputPath
// and OutputDir may be set; if none is, the report is written to standard output.
type Config struct {
	// PipeName is the path of an existing named pipe that a report reader is listening on.
	PipeName string
	// OutputPath is a report file that is overwritten.
	OutputPath string
	// OutputDir receives a report file with a unique name.
	OutputDir string

	APIVersion            ldvalue.OptionalString
	TrafficLoggingEnabled bool
	// TrafficDir receives one HAR file per test when traffic logging is enabled.
	TrafficDir string

	Strategy    Strategy
	Delimiter   string
	MetricsFile string
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Strategy:  StrategyUnit,
		Delimiter: DefaultDelimiter,
	}
}

func (c Config) Validate() error {
	outputs := 0
	for _, o := range []string{c.PipeName, c.OutputPath, c.OutputDir} {
		if o != "" {
			outputs++
		}
	}
	if outputs > 1 {
		return errors.New("only one of pipe name, output path and output directory may be set")
	}
	if c.Strategy != StrategyUnit && c.Strategy != StrategyBehavior {
		return fmt.Errorf("unknown report strategy %q", c.Strategy)
	}
	if err := interpreter.ValidateDelimiter(c.Delimiter); err != nil {
		return err
	}
	if c.TrafficLoggingEnabled && c.TrafficDir == "" {
		return errors.New("traffic logging requires a traffic directory")
	}
	return nil
}

// fileConfig is the YAML form of Config. Pointers distinguish omitted keys from empty values.
type fileConfig struct {
	PipeName              *string `yaml:"pipeName"`
	OutputPath            *string `yaml:"outputPath"`
	OutputDir             *string `yaml:"outputDir"`
	APIVersion            *string `yaml:"apiVersion"`
	TrafficLoggingEnabled *bool   `yaml:"trafficLoggingEnabled"`
	TrafficDir            *string `yaml:"trafficDir"`
	Strategy              *string `yaml:"strategy"`
	Delimiter             *string `yaml:"delimiter"`
	MetricsFile           *string `yaml:"metricsFile"`
}

// LoadConfigFile reads a YAML configuration file and applies the keys it contains on top of
// base.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, pkgerrors.Wrapf(err, "failed to read config file %s", path)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, pkgerrors.Wrapf(err, "malformed config file %s", path)
	}

	c := base
	setString(&c.PipeName, fc.PipeName)
	setString(&c.OutputPath, fc.OutputPath)
	setString(&c.OutputDir, fc.OutputDir)
	setString(&c.TrafficDir, fc.TrafficDir)
	setString(&c.Delimiter, fc.Delimiter)
	setString(&c.MetricsFile, fc.MetricsFile)
	if fc.APIVersion != nil {
		c.APIVersion = ldvalue.NewOptionalString(*fc.APIVersion)
	}
	if fc.TrafficLoggingEnabled != nil {
		c.TrafficLoggingEnabled = *fc.TrafficLoggingEnabled
	}
	if fc.Strategy != nil {
		c.Strategy = Strategy(*fc.Strategy)
	}
	return c, nil
}

func setString(target *string, value *string) {
	if value != nil {
		*target = *value
	}
}
