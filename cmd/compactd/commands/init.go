package commands

import (
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	"github.com/compactchain/compactd/config"
	"github.com/compactchain/compactd/libs/log"
)

// MakeInitCommand returns the command writing a config file to the home
// directory. An existing config file is kept.
func MakeInitCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the compactd home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := conf.ConfigFile()
			if tmos.FileExists(cfgFile) {
				logger.Info("Found config file", "path", cfgFile)
				return nil
			}
			if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
				return err
			}
			logger.Info("Generated config file", "path", cfgFile)
			return nil
		},
	}
}
