package main

import (
	"fmt"
	"strings"

	"agentctl/internal/api"
	"agentctl/internal/domain"

	"github.com/spf13/cobra"
)

const noAnswer = "no answer"

func chatCmd() *cobra.Command {
	var (
		stream     bool
		noData     bool
		edaContext string
	)
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask the agent a question about the loaded dataset and documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			app, closeState, err := openState(ctx)
			if err != nil {
				return err
			}
			defer closeState()

			if err := app.AppendMessage(ctx, domain.NewChatMessage(domain.RoleUser, query)); err != nil {
				return err
			}

			client := newClient()
			out := cmd.OutOrStdout()
			var answer string
			if stream {
				printed := false
				var onEvent func(string)
				if !cfg.Stream.CloseOnFirstEvent {
					onEvent = func(data string) {
						printed = true
						fmt.Fprint(out, data)
					}
				}
				answer, err = client.StreamChatFunc(ctx, query, onEvent)
				if err != nil {
					logger.Warn("stream chat failed", "err", err)
					answer = ""
				}
				if answer == "" {
					answer = noAnswer
				}
				if printed {
					fmt.Fprintln(out)
				}
				if !printed || err != nil {
					fmt.Fprintln(out, answer)
				}
			} else {
				indexDir := app.IndexDir()
				opts := api.ChatOptions{
					IndexDir:       indexDir,
					RAGIndexExists: api.Bool(indexDir != ""),
					EDAContext:     edaContext,
				}
				if !noData {
					opts.Dataset = app.Dataset()
				}
				resp, err := client.Chat(ctx, query, opts)
				switch {
				case err != nil:
					answer = "error: " + err.Error()
				case resp.Answer == "":
					answer = noAnswer
				default:
					answer = resp.Answer
				}
				fmt.Fprintln(out, answer)
			}

			return app.AppendMessage(ctx, domain.NewChatMessage(domain.RoleAI, answer))
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "use the event-stream endpoint")
	cmd.Flags().BoolVar(&noData, "no-data", false, "do not attach the loaded dataset")
	cmd.Flags().StringVar(&edaContext, "eda-context", "", "extra EDA context passed to the agent")
	return cmd
}
