package main

import (
	"fmt"

	"github.com/edbstore/edb"
	"github.com/spf13/cobra"
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "copy the database to a new file, optionally compacting it",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := dbPath()
		if err != nil {
			return err
		}
		to, _ := cmd.Flags().GetString("to")
		if to == "" {
			return fmt.Errorf("edbtool: --to is required")
		}
		compact, _ := cmd.Flags().GetBool("compact")

		db, err := edb.Open(path, edb.Options{ReadOnly: true})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.CopyTo(to, compact); err != nil {
			return err
		}
		fmt.Printf("copied %s -> %s (compact=%v)\n", path, to, compact)
		return nil
	},
}

func init() {
	copyCmd.Flags().String("to", "", "destination path")
	copyCmd.Flags().Bool("compact", false, "rewrite the copy bucket-by-bucket to reclaim free pages")
}
