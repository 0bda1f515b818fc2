package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/curator-desk/internal/service"
)

var (
	curatorName     string
	curatorInactive bool
	listAll         bool
)

var curatorCmd = &cobra.Command{
	Use:   "curator",
	Short: "Manage the curator directory",
}

var curatorAddCmd = &cobra.Command{
	Use:   "add <telegram-user-id>",
	Short: "Add or update a curator",
	Args:  cobra.ExactArgs(1),
	RunE:  runCuratorAdd,
}

var curatorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List curators",
	Args:  cobra.NoArgs,
	RunE:  runCuratorList,
}

func init() {
	curatorAddCmd.Flags().StringVar(&curatorName, "name", "", "Display name (required)")
	curatorAddCmd.Flags().BoolVar(&curatorInactive, "inactive", false, "Register the curator as deactivated")
	_ = curatorAddCmd.MarkFlagRequired("name")
	curatorListCmd.Flags().BoolVar(&listAll, "all", false, "Include deactivated curators")
	curatorCmd.AddCommand(curatorAddCmd, curatorListCmd)
	rootCmd.AddCommand(curatorCmd)
}

func runCuratorAdd(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	directory := service.NewDirectoryService(service.DirectoryDependencies{
		CuratorRepo: env.store.Curators,
		Logger:      env.logger,
	})
	curator, err := directory.Register(cmd.Context(), args[0], curatorName, !curatorInactive)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "curator %s (%s) saved, active=%t\n", curator.ID, curator.DisplayName, curator.Active)
	return nil
}

func runCuratorList(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	directory := service.NewDirectoryService(service.DirectoryDependencies{
		CuratorRepo: env.store.Curators,
		Logger:      env.logger,
	})
	list := directory.List
	if listAll {
		list = directory.ListAll
	}
	curators, err := list(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE")
	for _, c := range curators {
		fmt.Fprintf(w, "%s\t%s\t%t\n", c.ID, c.DisplayName, c.Active)
	}
	return w.Flush()
}
