package main

import (
	"fmt"
	"slices"

	"github.com/careloop/careloop-api/internal/platform/postgres"
	"github.com/careloop/careloop-api/internal/service/auth"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var hashCost int

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one batch of due registration tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(rt *runtime) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			summary, err := rt.components.Processor.ProcessBatch(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d succeeded=%d failed=%d rescheduled=%d skipped=%d\n",
				summary.Processed, summary.Succeeded, summary.Failed, summary.Rescheduled, summary.Skipped)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <patient-id>",
	Short: "Reset a patient's failed tasks and process the next batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patientID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return withPipeline(cmd, func(rt *runtime) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			reset, summary, err := rt.components.Repairer.ResetAndProcess(ctx, patientID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset=%d processed=%d succeeded=%d failed=%d\n",
				reset, summary.Processed, summary.Succeeded, summary.Failed)
			return nil
		})
	},
}

var retriggerCmd = &cobra.Command{
	Use:   "retrigger <patient-id>",
	Short: "Reset, re-produce and process a patient's registration tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patientID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return withPipeline(cmd, func(rt *runtime) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			res, err := rt.components.Repairer.Retrigger(ctx, patientID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset=%d created=%d existing=%d processed=%d succeeded=%d\n",
				res.ResetTasks, res.Produced.TasksCreated, res.Produced.TasksExisting,
				res.Summary.Processed, res.Summary.Succeeded)
			return nil
		})
	},
}

var fixUsersCmd = &cobra.Command{
	Use:   "fix-existing-users",
	Short: "Produce missing tasks for paid patients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(rt *runtime) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			res, err := rt.components.Repairer.FixExistingPatients(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d fixed=%d tasks_created=%d errors=%d\n",
				res.UsersScanned, res.UsersFixed, res.TasksCreated, res.Errors)
			return nil
		})
	},
}

var fixDoctorsCmd = &cobra.Command{
	Use:   "fix-existing-doctors",
	Short: "Mark providers stuck before fully_registered as registered",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(rt *runtime) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			res, err := rt.components.Repairer.FixExistingProviders(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d fixed=%d errors=%d\n",
				res.UsersScanned, res.UsersFixed, res.Errors)
			return nil
		})
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks <user-id>",
	Short: "List a user's registration tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return withPipeline(cmd, func(rt *runtime) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			tasks, err := rt.components.Stores.Tasks.ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, tasks)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts by status and type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(rt *runtime) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			stats, err := rt.components.Stores.Tasks.Stats(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), output, stats)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|reset|status|version]",
	Short:     "Run database migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: postgres.MigrationCommands,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := "up"
		if len(args) == 1 {
			command = args[0]
		}
		if !slices.Contains(postgres.MigrationCommands, command) {
			return fmt.Errorf("unknown migration command %q (expected one of %v)", command, postgres.MigrationCommands)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		rt, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		return postgres.Migrate(ctx, rt.db, command, rt.logger)
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <trigger-key>",
	Short: "Print the bcrypt hash to configure as auth.trigger_key_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashTriggerKey(args[0], hashCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func withPipeline(cmd *cobra.Command, fn func(rt *runtime) error) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	rt, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func parseUserID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return id, nil
}
