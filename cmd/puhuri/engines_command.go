package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"puhuri/internal/logging"
	"puhuri/internal/tts"
)

const voiceDisplayLimit = 4

func newEnginesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List configured TTS engines in attempt order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			manager := tts.NewManager(cfg, logging.NewNop())
			statuses := manager.Statuses(cmd.Context())

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				rows = append(rows, []string{
					status.Name,
					status.Role,
					yesNo(status.Available),
					formatVoiceList(status),
					status.Detail,
				})
			}

			table := renderTable(
				[]string{"Engine", "Role", "Ready", "Voices", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func formatVoiceList(status tts.EngineStatus) string {
	if len(status.Voices) == 0 {
		return "-"
	}
	names := make([]string, 0, len(status.Voices))
	for _, voice := range status.Voices {
		label := voice.ID
		if voice.Language != "" {
			label = fmt.Sprintf("%s (%s)", voice.ID, voice.Language)
		}
		names = append(names, label)
	}
	if len(names) > voiceDisplayLimit {
		shown := names[:voiceDisplayLimit]
		return fmt.Sprintf("%s, +%d more", strings.Join(shown, ", "), len(names)-voiceDisplayLimit)
	}
	return strings.Join(names, ", ")
}
