// Package config initializes the process-wide Viper instance used by the CLI.
// Values come from a config file, PDFCHUNKER_* environment variables and bound
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	internalconfig "github.com/JakeFAU/pdfchunker/internal/config"
)

// InitConfig prepares the global Viper instance. When cfgFile is empty the
// usual search paths are tried and a missing file is not an error. It returns
// the config file in use, if any.
func InitConfig(cfgFile string) (string, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/pdfchunker/")
		viper.AddConfigPath("$HOME/.pdfchunker")
	}

	internalconfig.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix(internalconfig.EnvPrefix) // e.g. PDFCHUNKER_RENDER_CHUNK_SIZE=20
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return viper.ConfigFileUsed(), nil
}
