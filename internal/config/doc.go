// Package config provides centralized configuration management for the SBS
// panel pipeline. It loads configuration from environment variables and an
// optional YAML file, validates it, and resolves every input and output path
// of a run.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. Configuration file (config.yaml)
//  3. Default values from struct tags (lowest priority)
//
// # Environment Variables
//
// All environment variables are namespaced with SBS_:
//
//	SBS_PIPELINE_WORKERS=8
//	SBS_PIPELINE_LAG_MODE=calendar
//	SBS_PIPELINE_STRUCTURAL_POLICY=abort
//	SBS_PATHS_OUTPUT_DIR=/var/lib/sbs
//	SBS_LOGGING_LEVEL=debug
//
// # Policies
//
// Structural and data-quality findings are warnings by default. Setting the
// corresponding policy to "abort" turns them into fatal run errors.
package config
