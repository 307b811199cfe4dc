// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration.
//
// Precedence is ENV > YAML file > defaults. The YAML file is decoded
// strictly: unknown keys are errors. A .env file next to the working
// directory is loaded first and never overrides variables already set.
// Holder watches the file and pushes validated reloads to listeners.
package config
