package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all tracked time",
	Long:  `Delete every domain record. Backups are kept and can be restored.`,
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not prompt for confirmation")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var confirm usage.Confirmation = promptConfirmation{in: os.Stdin, out: os.Stdout}
	if clearYes {
		confirm = usage.Confirmed
	}

	err = a.tracker.ClearAll(cmd.Context(), confirm)
	if errors.Is(err, usage.ErrCancelled) {
		fmt.Println("Cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Println("All tracked time cleared")
	return nil
}

// promptConfirmation asks on out and accepts y or yes on in.
type promptConfirmation struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmation) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprintf(p.out, "%s [y/N] ", prompt)

	answer, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
