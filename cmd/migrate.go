package cmd

import (
	"github.com/spf13/cobra"

	dbconfig "cogniview/internal/database"
	logging "cogniview/pkg/logger/pkg"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Logger(cmd.Context())
		defer logger.Sync()

		db, err := dbconfig.Connect(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer db.Close()

		return dbconfig.Migrate(cmd.Context(), db, logger)
	},
}
