package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/curator-desk/internal/lifecycle"
	"github.com/spec-kit/curator-desk/internal/service"
)

var replayCmd = &cobra.Command{
	Use:   "replay <ticket-id>",
	Short: "Print a ticket's action log and the state derived from it",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	directory := service.NewDirectoryService(service.DirectoryDependencies{
		CuratorRepo: env.store.Curators,
		Logger:      env.logger,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		Store:     env.store,
		Directory: directory,
		Logger:    env.logger,
	})
	view, err := assignments.Inspect(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tAT\tACTION\tCURATOR\tTARGET")
	for _, e := range view.History {
		target := ""
		if e.TargetCuratorID != nil {
			target = *e.TargetCuratorID
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.Seq, e.CreatedAt.UTC().Format(time.RFC3339), e.Action, e.Actor(), target)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	owner := view.State.Owner()
	if owner == "" {
		owner = "-"
	}
	fmt.Fprintf(out, "\nticket %s: %s, owner %s, %d entries\n",
		view.Ticket.ID, lifecycle.StatusLabel(view.State.Status), owner, view.State.Seq)
	if view.Conflict != nil {
		fmt.Fprintf(out, "warning: %v\n", view.Conflict)
	}
	return nil
}
