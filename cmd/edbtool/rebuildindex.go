package main

import (
	"fmt"

	"github.com/edbstore/edb"
	"github.com/spf13/cobra"
)

// rebuildIndexCmd drops an index's backing collection so the owning
// application rebuilds it the next time it calls OpenIndex — edbtool has
// no way to know an application's IndexKeyFunc, so it can only force the
// rebuild-on-next-open path rather than recompute entries itself.
var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "drop an index's backing collection, forcing a rebuild on next open",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := dbPath()
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")
		name, _ := cmd.Flags().GetString("name")
		if source == "" || name == "" {
			return fmt.Errorf("edbtool: --source and --name are required")
		}

		db, err := edb.Open(path, edb.Options{})
		if err != nil {
			return err
		}
		defer db.Close()

		tx, err := edb.BeginTransaction(db)
		if err != nil {
			return err
		}
		defer tx.Abort()

		backingName := "index::" + source + "::" + name
		backing, err := edb.OpenCollection(tx, backingName, edb.KeyLexForward, edb.ValueOpaque, edb.CollectionFlags{})
		if err != nil {
			return err
		}
		if err := edb.WithTx(backing, tx).DeleteCollection(); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		fmt.Printf("dropped backing collection %q; it will rebuild on next OpenIndex\n", backingName)
		return nil
	},
}

func init() {
	rebuildIndexCmd.Flags().String("source", "", "source collection name")
	rebuildIndexCmd.Flags().String("name", "", "index name")
}
