// Command edbtool operates on edb database files directly, without a
// running server — stats/copy/erase/rebuild-index, in the style of
// the pack's dKV CLI commands (cmd/root.go, cmd/kv/root.go).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "edbtool",
	Short: "inspect and maintain edb database files",
	Long: `edbtool operates directly on edb database files: reporting
statistics, copying (optionally compacting), erasing, and dropping
secondary-index collections so they rebuild on their next open.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("db", "", "path to the database file")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging (accepted, but not read by any subcommand)")
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(rebuildIndexCmd)
}

func initConfig() {
	viper.SetEnvPrefix("EDBTOOL")
	viper.AutomaticEnv()
}

func dbPath() (string, error) {
	path := viper.GetString("db")
	if path == "" {
		return "", fmt.Errorf("edbtool: --db is required")
	}
	return path, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
