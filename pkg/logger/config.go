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

package logger

import (
	"os"
	"strings"
)

// envPrefix marks orbit specific overrides of the generic logging variables.
const envPrefix = "ORBIT_"

// DefaultConfig reads LOG_LEVEL, DEBUG, LOG_OUTPUT, LOG_FORMAT and
// LOG_TIME_FORMAT. ORBIT_LOG_LEVEL and friends take precedence so a node
// can be tuned without touching other services on the host.
func DefaultConfig() *Config {
	return &Config{
		Level:      envOrDefault("LOG_LEVEL", "info"),
		Debug:      envBoolOrDefault("DEBUG", false),
		Output:     envOrDefault("LOG_OUTPUT", OutputStdout),
		Format:     envOrDefault("LOG_FORMAT", FormatJSON),
		TimeFormat: envOrDefault("LOG_TIME_FORMAT", ""),
	}
}

func lookupEnv(key string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}

	return os.Getenv(key)
}

func envOrDefault(key, defaultValue string) string {
	if value := lookupEnv(key); value != "" {
		return value
	}

	return defaultValue
}

func envBoolOrDefault(key string, defaultValue bool) bool {
	value := lookupEnv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// InitWithDefaults initializes the global logger from the environment.
func InitWithDefaults() error {
	return Init(DefaultConfig())
}
