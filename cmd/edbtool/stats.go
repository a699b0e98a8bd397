package main

import (
	"fmt"

	"github.com/edbstore/edb"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := dbPath()
		if err != nil {
			return err
		}
		db, err := edb.Open(path, edb.Options{ReadOnly: true})
		if err != nil {
			return err
		}
		defer db.Close()

		s := db.Stats()
		fmt.Printf("path:             %s\n", db.Path())
		fmt.Printf("size:             %d bytes\n", s.Size)
		fmt.Printf("page size:        %d bytes\n", s.PageSize)
		fmt.Printf("free pages:       %d\n", s.FreePages)
		fmt.Printf("pending pages:    %d\n", s.PendingPages)
		fmt.Printf("transactions:     %d\n", s.TxnCount)
		fmt.Printf("open collections: %d\n", s.OpenCollections)
		return nil
	},
}
