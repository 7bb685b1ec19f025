package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/compactchain/compactd/config"
	"github.com/compactchain/compactd/internal/store"
	"github.com/compactchain/compactd/libs/log"
)

// MakeShowHeightCommand returns the command printing the last committed
// height of the state store.
func MakeShowHeightCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "show-height",
		Short: "Show the last committed height",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := conf.OpenStateDB()
			if err != nil {
				return err
			}
			s, err := store.NewStore(db, logger)
			if err != nil {
				db.Close()
				return err
			}
			defer s.Close()

			fmt.Fprintln(cmd.OutOrStdout(), heightString(s.LatestVersion()))
			return nil
		},
	}
}

func heightString(version uint64) string {
	if version == store.UninitializedVersion {
		return "uninitialized"
	}
	return strconv.FormatUint(version, 10)
}
