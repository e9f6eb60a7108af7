package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the rendered schema of each database as the generator sees it",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		dbIDs, err := e.dbIDs()
		if err != nil {
			return err
		}

		intro := e.introspector()
		for i, dbID := range dbIDs {
			schema, err := intro.Describe(cmd.Context(), dbID)
			if err != nil {
				return err
			}
			if i > 0 {
				fmt.Println()
			}
			if len(dbIDs) > 1 {
				fmt.Printf("# %s\n", dbID)
			}
			fmt.Println(schema.Render())
		}
		return nil
	},
}
