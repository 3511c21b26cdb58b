// Package config provides configuration loading for colreplace.
//
// Runtime settings (logging, observability, object storage and output
// encoding) live in Config. They are layered by Viper: defaults from
// NewConfig, then an optional YAML file, then COLREPLACE_* environment
// variables, then command-line flags bound by the CLI.
//
// # Usage
//
//	v, err := config.NewViper("colreplace.yaml")
//	if err != nil {
//		return err
//	}
//	cfg, err := config.FromViper(v)
//
// Plain YAML documents, such as replace parameter files, are read with
// Load, which expands ${VAR_NAME} references from the environment before
// parsing:
//
//	var raw map[string]interface{}
//	err := config.Load("params.yaml", &raw)
package config
