package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jvs-project/warden/pkg/model"
)

func newNoteCmd(a *app) *cobra.Command {
	var actorFlag string
	cmd := &cobra.Command{
		Use:   "note <text...>",
		Short: "Record a private note",
		Long: `Record a private note in the owner-only ledger channel.

The public ledger receives only a stub saying that a private entry was
recorded, never the note itself.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("note text is empty")
			}
			g, err := a.open()
			if err != nil {
				return err
			}
			actor := a.actor(actorFlag)
			entry := model.LedgerEntry{
				Time:    g.Now(),
				Kind:    model.EntryPrivate,
				ActorID: actor,
				Fields:  map[string]string{"note": text},
			}
			if err := g.Ledger.Append(cmd.Context(), entry); err != nil {
				return err
			}
			if a.jsonOutput {
				return a.outputJSON(map[string]any{"actor_id": actor, "recorded": true})
			}
			a.println(a.paint.Success("Private note recorded."))
			return nil
		},
	}
	cmd.Flags().StringVar(&actorFlag, "actor", "", "note author (default: ACTOR_ID or $USER)")
	return cmd
}
