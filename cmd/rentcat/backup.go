package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rentcat/internal/app"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List, fetch and restore catalog snapshots",
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: run("ListBackups", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		out := cmd.OutOrStdout()

		if mirror, _ := cmd.Flags().GetBool("mirror"); mirror {
			names, err := a.ListMirrored()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "No mirrored backups.")
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		}

		infos, err := a.ListBackups()
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(out, "No backups.")
			return nil
		}
		for _, i := range infos {
			fmt.Fprintf(out, "%-40s  %8s  %s\n",
				i.Name,
				humanize.Bytes(uint64(i.Size)),
				humanize.Time(i.ModTime),
			)
		}
		return nil
	}),
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore NAME",
	Short: "Replace the catalog with a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: run("RestoreBackup", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		ok, err := confirm(cmd, fmt.Sprintf("Replace the catalog with %s?", args[0]))
		if err != nil || !ok {
			return err
		}
		res, err := a.Service().RestoreBackup(cmd.Context(), args[0])
		printMutation(cmd.OutOrStdout(), "Backup restored", res)
		return err
	}),
}

var backupFetchCmd = &cobra.Command{
	Use:   "fetch NAME",
	Short: "Copy a mirrored snapshot into the local backup directory",
	Args:  cobra.ExactArgs(1),
	RunE: run("FetchBackup", func(cmd *cobra.Command, a *app.RentcatApp, args []string) error {
		var passphrase string
		if app.IsEncrypted(args[0]) {
			var err error
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}
		local, err := a.FetchFromMirror(args[0], passphrase)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s; restore it with: rentcat backup restore %s\n", local, local)
		return nil
	}),
}

func addBackupCommands() {
	backupCmd.AddCommand(backupListCmd)
	backupListCmd.Flags().Bool("mirror", false, "List the configured mirror instead of local snapshots")
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupFetchCmd)
	rootCmd.AddCommand(backupCmd)
}
