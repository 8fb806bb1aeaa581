/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger provides JSON structured logging using zerolog
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Outputs and formats accepted in Config.
const (
	OutputStdout  = "stdout"
	OutputStderr  = "stderr"
	FormatJSON    = "json"
	FormatConsole = "console"
)

var (
	errUnknownOutput = errors.New("unknown log output")
	errUnknownFormat = errors.New("unknown log format")
)

var globalLogger zerolog.Logger

// Config selects level, destination and encoding of log lines.
type Config struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	Format     string `json:"format"`
	TimeFormat string `json:"time_format"`
}

func init() {
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Validate rejects outputs, formats and levels zerolog cannot honour.
func (c *Config) Validate() error {
	switch c.Output {
	case "", OutputStdout, OutputStderr:
	default:
		return fmt.Errorf("%w: %q", errUnknownOutput, c.Output)
	}

	switch c.Format {
	case "", FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, c.Format)
	}

	_, err := c.ParsedLevel()

	return err
}

// Writer returns the destination selected by Output, wrapped in a console
// writer when Format asks for human readable lines.
func (c *Config) Writer() io.Writer {
	var out io.Writer = os.Stdout
	if c.Output == OutputStderr {
		out = os.Stderr
	}

	if c.Format == FormatConsole {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return out
}

// ParsedLevel resolves the effective level; Debug wins over Level.
func (c *Config) ParsedLevel() (zerolog.Level, error) {
	if c.Debug {
		return zerolog.DebugLevel, nil
	}

	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(c.Level)
}

func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return err
	}

	level, _ := config.ParsedLevel()

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	globalLogger = zerolog.New(config.Writer()).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = globalLogger

	return nil
}

func SetLevel(level zerolog.Level) {
	globalLogger = globalLogger.Level(level)
	log.Logger = globalLogger
}

func SetDebug(debug bool) {
	if debug {
		SetLevel(zerolog.DebugLevel)
	} else {
		SetLevel(zerolog.InfoLevel)
	}
}

func GetLogger() zerolog.Logger {
	return globalLogger
}

func Debug() *zerolog.Event {
	return globalLogger.Debug()
}

func Info() *zerolog.Event {
	return globalLogger.Info()
}

func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

func Error() *zerolog.Event {
	return globalLogger.Error()
}

func Fatal() *zerolog.Event {
	return globalLogger.Fatal()
}

func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}
