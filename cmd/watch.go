package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/WMahoney09/klauss/cmd/watchtui"
	"github.com/WMahoney09/klauss/internal/localstate"
)

func newWatchCmd() *cobra.Command {
	var (
		dbFlag       string
		jobFlag      string
		intervalFlag float64
		onceFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch worker and task progress live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := resolveDBPath(dbFlag, "")
			if err != nil {
				return err
			}
			q, store, err := openQueue(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			jobID := jobFlag
			if jobID == "" {
				jobID, _ = localstate.GetActiveJob()
			}

			if onceFlag {
				out, err := watchtui.RenderOnce(q, jobID)
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			}

			interval := time.Duration(intervalFlag * float64(time.Second))
			m := watchtui.New(q, jobID, interval)
			p := tea.NewProgram(m)
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&dbFlag, "db", "", "Path to task database")
	cmd.Flags().StringVar(&jobFlag, "job", "", "Show progress for a specific job (defaults to the active job)")
	cmd.Flags().Float64Var(&intervalFlag, "interval", 2.0, "Refresh interval in seconds")
	cmd.Flags().BoolVar(&onceFlag, "once", false, "Show status once and exit")
	return cmd
}
