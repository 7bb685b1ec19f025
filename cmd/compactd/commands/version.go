package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compactchain/compactd/version"
)

var verbose bool

// VersionCmd prints the software version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
			return nil
		}
		values, err := json.MarshalIndent(struct {
			Compactd    string `json:"compactd"`
			AppProtocol uint64 `json:"app_protocol"`
			GitCommit   string `json:"git_commit,omitempty"`
		}{
			Compactd:    version.Version,
			AppProtocol: version.AppProtocol,
			GitCommit:   version.GitCommit,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(values))
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show protocol versions")
}
