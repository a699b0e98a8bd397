package main

import (
	"fmt"

	"github.com/edbstore/edb"
	"github.com/spf13/cobra"
)

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "delete a database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := dbPath()
		if err != nil {
			return err
		}
		modeFlag, _ := cmd.Flags().GetString("mode")
		mode, err := parseEraseMode(modeFlag)
		if err != nil {
			return err
		}
		if err := edb.Erase(path, mode); err != nil {
			return err
		}
		fmt.Printf("erased %s (mode=%s)\n", path, modeFlag)
		return nil
	},
}

func init() {
	eraseCmd.Flags().String("mode", "force", "one of: force, require-unused, wait-for-unused")
}

func parseEraseMode(s string) (edb.EraseMode, error) {
	switch s {
	case "force":
		return edb.EraseForce, nil
	case "require-unused":
		return edb.EraseRequireUnused, nil
	case "wait-for-unused":
		return edb.EraseWaitForUnused, nil
	default:
		return 0, fmt.Errorf("edbtool: unknown erase mode %q", s)
	}
}
