// Package schedulecmd manages reminder schedules from the command line,
// against the same store the slash command writes to.
package schedulecmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/cw35/slackminder/db"
	"github.com/cw35/slackminder/db/models"
	"github.com/cw35/slackminder/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage reminder schedules",
	}
	cmd.AddCommand(newListCmd(), newSetCmd(), newDeleteCmd())
	return cmd
}

func openStore() (*store.Store, error) {
	dbCfg := db.DefaultConfig()
	dbCfg.DSN = viper.GetString("db.dsn")
	gdb, err := db.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	return store.New(gdb)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all reminder schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			schedules, err := st.ListSchedules(cmd.Context())
			if err != nil {
				return err
			}
			if len(schedules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no schedules")
				return nil
			}
			for _, s := range schedules {
				next := "-"
				if s.NextRunAt != nil {
					next = time.Unix(*s.NextRunAt, 0).UTC().Format(time.RFC3339)
				}
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tnext=%s\n", s.UserID, s.Cadence, state, next)
			}
			return nil
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <user-id> <hourly|daily|weekly>",
		Short: "Create or replace a user's reminder schedule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])
			cadence := strings.ToLower(strings.TrimSpace(args[1]))
			if !models.ValidCadence(cadence) {
				return fmt.Errorf("invalid cadence %q (want hourly, daily or weekly)", cadence)
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			if _, err := st.UpsertSchedule(cmd.Context(), userID, cadence); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schedule set: %s %s\n", userID, cadence)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user's reminder schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			if err := st.DeleteSchedule(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schedule deleted: %s\n", args[0])
			return nil
		},
	}
}
