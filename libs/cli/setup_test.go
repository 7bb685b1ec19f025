package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithArgs(t *testing.T, cmd *cobra.Command, args ...string) {
	t.Helper()
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
}

func TestBindFlagsLoadViperReadsConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0700))
	require.NoError(t, os.WriteFile(
		filepath.Join(home, "config", "config.toml"),
		[]byte("log_level = \"debug\"\n[grpc]\nmax_open_connections = 7\n"),
		0600,
	))

	var level string
	var conns int
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			level = viper.GetString("log_level")
			conns = viper.GetInt("grpc.max_open_connections")
			return nil
		},
	}
	runWithArgs(t, PrepareBaseCmd(cmd, "CDTEST", "/nonexistent"), "--home", home)

	assert.Equal(t, "debug", level)
	assert.Equal(t, 7, conns)
	assert.Equal(t, home, viper.GetString(HomeFlag))
}

func TestBindFlagsLoadViperWithoutConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	runWithArgs(t, PrepareBaseCmd(cmd, "CDTEST", t.TempDir()))
}

func TestInitEnvCopiesUnprefixedVariables(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("CDTESTHOME", "/from/env")
	t.Cleanup(func() { os.Unsetenv("CDTEST_HOME") })

	InitEnv("CDTEST")
	assert.Equal(t, "/from/env", os.Getenv("CDTEST_HOME"))
	assert.Equal(t, "/from/env", viper.GetString("home"))
}

func TestConcatCobraCmdFuncsStopsAtFirstError(t *testing.T) {
	var calls []int
	f := func(i int, err error) cobraCmdFunc {
		return func(*cobra.Command, []string) error {
			calls = append(calls, i)
			return err
		}
	}
	err := concatCobraCmdFuncs(f(1, nil), nil, f(2, assert.AnError), f(3, nil))(nil, nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int{1, 2}, calls)
}
