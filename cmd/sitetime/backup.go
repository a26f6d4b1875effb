package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage backups of the store",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Back up the live store",
	Args:  cobra.NoArgs,
	RunE:  runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained backups, newest first",
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Replace the live store with a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

func init() {
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.backups.Create(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(info.ID)
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	backups, err := a.backups.List(cmd.Context())
	if err != nil {
		return err
	}
	printBackups(backups, a.backups.Retention())
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.backups.Restore(cmd.Context(), args[0]); err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)
	_, _ = green.Printf("Restored %s\n", args[0])
	return nil
}

func printBackups(backups []usage.BackupInfo, retention int) {
	cyan := color.New(color.FgCyan, color.Bold)

	if len(backups) == 0 {
		fmt.Println("No backups")
		return
	}

	_, _ = cyan.Printf("%d backup(s), keeping %d\n", len(backups), retention)
	for _, b := range backups {
		fmt.Printf("  %s  %s\n", b.ID, b.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}
