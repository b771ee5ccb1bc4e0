package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/test-report-aggregator/framework"
)

const envVarPrefix = "REPORT"

func prefixEnvVar(name string) []string {
	return []string{envVarPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		EnvVars: prefixEnvVar("config"),
		Usage:   "YAML configuration file; flags override its settings",
	}
	inputFlag = &cli.StringFlag{
		Name:    "input",
		EnvVars: prefixEnvVar("input"),
		Usage:   "file of newline-delimited JSON events, or - for standard input",
	}
	listenFlag = &cli.StringFlag{
		Name:    "listen",
		EnvVars: prefixEnvVar("listen"),
		Usage:   "address on which to accept events posted to /events/{counter}",
	}
	pipeFlag = &cli.StringFlag{
		Name:    "pipe",
		EnvVars: prefixEnvVar("pipe"),
		Usage:   "named pipe to write the report to",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		EnvVars: prefixEnvVar("output"),
		Usage:   "file to write the report to",
	}
	outputDirFlag = &cli.StringFlag{
		Name:    "output-dir",
		EnvVars: prefixEnvVar("output-dir"),
		Usage:   "directory in which to write the report under a unique name",
	}
	apiVersionFlag = &cli.StringFlag{
		Name:    "api-version",
		EnvVars: prefixEnvVar("api-version"),
		Usage:   "API version recorded on every top-level suite",
	}
	trafficFlag = &cli.BoolFlag{
		Name:    "traffic",
		EnvVars: prefixEnvVar("traffic"),
		Usage:   "write the HTTP traffic of each test to a HAR file",
	}
	trafficDirFlag = &cli.StringFlag{
		Name:    "traffic-dir",
		EnvVars: prefixEnvVar("traffic-dir"),
		Usage:   "directory for HAR files",
	}
	proxyListenFlag = &cli.StringFlag{
		Name:    "proxy-listen",
		EnvVars: prefixEnvVar("proxy-listen"),
		Usage:   "address of a forwarding HTTP proxy that records test traffic",
	}
	strategyFlag = &cli.StringFlag{
		Name:    "strategy",
		EnvVars: prefixEnvVar("strategy"),
		Usage:   fmt.Sprintf("kind of engine events: %s or %s", framework.StrategyUnit, framework.StrategyBehavior),
	}
	delimiterFlag = &cli.StringFlag{
		Name:    "delimiter",
		EnvVars: prefixEnvVar("delimiter"),
		Usage:   "separator between report records (default newline)",
	}
	metricsFileFlag = &cli.StringFlag{
		Name:    "metrics-file",
		EnvVars: prefixEnvVar("metrics-file"),
		Usage:   "file to write Prometheus metrics to at the end of the run",
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVar("log-level"),
		Usage:   "minimum level of log messages",
	}
	logFormatFlag = &cli.StringFlag{
		Name:    "log-format",
		Value:   "text",
		EnvVars: prefixEnvVar("log-format"),
		Usage:   "log format: text or json",
	}
	failOnTestFailureFlag = &cli.BoolFlag{
		Name:    "fail-on-test-failure",
		EnvVars: prefixEnvVar("fail-on-test-failure"),
		Usage:   "exit with status 1 if any test failed",
	}
	curlFlag = &cli.BoolFlag{
		Name:    "curl",
		EnvVars: prefixEnvVar("curl"),
		Usage:   "print curl commands replaying the requests of failed tests",
	}
	quietFlag = &cli.BoolFlag{
		Name:    "quiet",
		EnvVars: prefixEnvVar("quiet"),
		Usage:   "do not print test progress",
	}
)

var runFlags = []cli.Flag{
	configFlag, inputFlag, listenFlag,
	pipeFlag, outputFlag, outputDirFlag,
	apiVersionFlag, trafficFlag, trafficDirFlag, proxyListenFlag,
	strategyFlag, delimiterFlag, metricsFileFlag,
	logLevelFlag, logFormatFlag, failOnTestFailureFlag, curlFlag, quietFlag,
}

var (
	summarizeDelimiterFlag = &cli.StringFlag{
		Name:  "delimiter",
		Usage: "separator between report records (default newline)",
	}
	runPatternFlag = &cli.StringSliceFlag{
		Name:  "run",
		Usage: "regex pattern(s) selecting the tests to list",
	}
	skipPatternFlag = &cli.StringSliceFlag{
		Name:  "skip",
		Usage: "regex pattern(s) selecting tests not to list",
	}
)

var summarizeFlags = []cli.Flag{summarizeDelimiterFlag, runPatternFlag, skipPatternFlag}

type commandParams struct {
	config            framework.Config
	input             string
	listenAddr        string
	proxyAddr         string
	logLevel          string
	logFormat         string
	failOnTestFailure bool
	curl              bool
	quiet             bool
}

// readParams builds the run configuration from the defaults, then the config file if there is
// one, then any flags or environment variables that were set.
func readParams(c *cli.Context) (commandParams, error) {
	p := commandParams{
		config:            framework.DefaultConfig(),
		input:             c.String(inputFlag.Name),
		listenAddr:        c.String(listenFlag.Name),
		proxyAddr:         c.String(proxyListenFlag.Name),
		logLevel:          c.String(logLevelFlag.Name),
		logFormat:         c.String(logFormatFlag.Name),
		failOnTestFailure: c.Bool(failOnTestFailureFlag.Name),
		curl:              c.Bool(curlFlag.Name),
		quiet:             c.Bool(quietFlag.Name),
	}
	if path := c.String(configFlag.Name); path != "" {
		config, err := framework.LoadConfigFile(path, p.config)
		if err != nil {
			return p, err
		}
		p.config = config
	}

	setIfPresent(c, pipeFlag, &p.config.PipeName)
	setIfPresent(c, outputFlag, &p.config.OutputPath)
	setIfPresent(c, outputDirFlag, &p.config.OutputDir)
	setIfPresent(c, trafficDirFlag, &p.config.TrafficDir)
	setIfPresent(c, delimiterFlag, &p.config.Delimiter)
	setIfPresent(c, metricsFileFlag, &p.config.MetricsFile)
	if c.IsSet(apiVersionFlag.Name) {
		p.config.APIVersion = ldvalue.NewOptionalString(c.String(apiVersionFlag.Name))
	}
	if c.IsSet(strategyFlag.Name) {
		p.config.Strategy = framework.Strategy(c.String(strategyFlag.Name))
	}
	if c.IsSet(trafficFlag.Name) {
		p.config.TrafficLoggingEnabled = c.Bool(trafficFlag.Name)
	}

	if p.input == "" && p.listenAddr == "" {
		p.input = "-"
	}
	return p, p.config.Validate()
}

func setIfPresent(c *cli.Context, flag *cli.StringFlag, target *string) {
	if c.IsSet(flag.Name) {
		*target = c.String(flag.Name)
	}
}
