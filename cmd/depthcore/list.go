package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nerrad567/depthcore/internal/infrastructure/config"
	"github.com/nerrad567/depthcore/internal/infrastructure/logging"
	"github.com/nerrad567/depthcore/internal/structure"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List detected sensors",
		Long:  `Initialise the capture layer, wait for discovery and print the serial of every detected sensor.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Path(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			layer, err := openLayer(cfg.Capture)
			if err != nil {
				return err
			}

			log := logging.New(cfg.Logging, version)
			serials, err := structure.ListDevices(cmd.Context(), layer, log,
				structure.WithDiscoveryTimeout(cfg.Capture.DiscoveryTimeout))
			if err != nil {
				return fmt.Errorf("listing sensors: %w", err)
			}
			renderSensorTable(cmd.OutOrStdout(), cfg.Capture.Driver, serials)
			return nil
		},
	}
}

// renderSensorTable prints the detected serials as a bordered table.
func renderSensorTable(w io.Writer, driver string, serials []string) {
	if len(serials) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no sensors detected (driver "+driver+")"))
		return
	}

	rows := make([][]string, 0, len(serials))
	for i, s := range serials {
		rows = append(rows, []string{strconv.Itoa(i), s})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("INDEX", "SERIAL").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d sensor(s), driver %s", len(serials), driver)))
}
