package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"autoytdlp/internal/dirs"
)

// Init wires Viper with config paths, env, and flag bindings.
// It is non-fatal: any errors are returned for optional handling by caller.
func Init(root *cobra.Command) error {
	// Ensure base directories exist
	_ = dirs.EnsureAll()

	// Setup config search path
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		_ = dirs.Ensure(cfgDir)
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: AUTOYTDLP_*
	viper.SetEnvPrefix("AUTOYTDLP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Bind root persistent flags to Viper keys
	_ = viper.BindPFlag("links_file", root.PersistentFlags().Lookup("links-file"))
	_ = viper.BindPFlag("download_dir", root.PersistentFlags().Lookup("download-dir"))
	_ = viper.BindPFlag("archive_file", root.PersistentFlags().Lookup("archive-file"))
	_ = viper.BindPFlag("concurrent", root.PersistentFlags().Lookup("concurrent"))
	_ = viper.BindPFlag("dl_binary", root.PersistentFlags().Lookup("dl-binary"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	// Read config file if present (ignore not found)
	_ = viper.ReadInConfig()

	return nil
}
