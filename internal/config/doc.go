// Package config provides configuration types and loading for the function
// host.
//
// Configuration is a single YAML document decoded over DefaultConfig. Before
// decoding, ${VAR} and ${VAR:-default} are replaced with environment values
// and $$ yields a literal dollar sign. The result is validated as a whole and
// every problem is reported in one ValidationErrors value.
//
// # Usage
//
//	cfg, err := config.LoadConfig("configs/funchost.yaml")
//	if err != nil {
//		return err
//	}
package config
