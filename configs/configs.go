// Package configs contains the logic to obtain app configuration from a file or the environment
package configs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "embed" // used to embed the default application config file.

	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

//go:embed internhub.toml
var defaultConfigFile []byte

// InitConfig initializes the app config with Viper from the environment, a specified file, or a default file.
func InitConfig(file string) {
	if file == "" {
		panic("dev error, InitConfig should always be passed a valid config filepath")
	}
	viper.SetConfigName("internhub")
	viper.SetConfigType("toml")

	// allow env vars to override config file
	viper.SetEnvPrefix("internhub")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	viper.SetConfigFile(file)

	// if config file does not exist, create it with the embedded default config
	if _, err := os.Stat(file); err != nil {
		log.Info().Str("path", file).Msg("config file not found, writing default")
		if err := viper.ReadConfig(bytes.NewBuffer(defaultConfigFile)); err != nil {
			log.Fatal().Err(err).Msg("error reading default embedded config file")
		}
		if err := os.WriteFile(file, defaultConfigFile, 0o600); err != nil {
			log.Fatal().Err(err).Msg("error writing default config")
		}
		return
	}

	if err := viper.ReadInConfig(); err != nil {
		log.Fatal().Err(fmt.Errorf("error reading config file: %w", err)).Send()
	}
}

// GetConfigDir obtains the configuration directory in a cross-platform manner,
// always respecting the XDG_CONFIG_HOME env var, using standard defaults on all OS's,
// but overriding to ~/.config on macOS
func GetConfigDir() string {
	var xdgConfigHome string
	if runtime.GOOS == "darwin" && os.Getenv("XDG_CONFIG_HOME") == "" {
		home, _ := os.UserHomeDir()
		xdgConfigHome = filepath.Join(home, ".config") // override for mac
	} else {
		xdgConfigHome = xdg.ConfigHome
	}

	appConfigDir := filepath.Join(xdgConfigHome, "internhub")
	if err := os.MkdirAll(appConfigDir, 0o750); err != nil {
		log.Fatal().Err(err).Str("path", appConfigDir).Msg("error creating application config directory")
	}
	return appConfigDir
}
