package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/shopagent/assistant"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		threadID string
		userID   string
		cartID   string
		resume   bool
		asJSON   bool
		usage    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the progress and the answer",
		Example: `  shopagent ask "Is there a waterproof jacket under 100 dollars?"
  shopagent ask --thread t-42 "Add it to my cart" --user u-1 --cart c-1
  shopagent ask --thread t-42 --resume`,
		Args: func(cmd *cobra.Command, args []string) error {
			if resume {
				if threadID == "" {
					return fmt.Errorf("--resume requires --thread")
				}
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rt, err := a.build(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					a.logger.Warn("shutdown", zap.Error(err))
				}
			}()

			if threadID == "" {
				threadID = uuid.NewString()
			}

			var notes <-chan assistant.Notification
			if resume {
				notes = rt.assistant.Resume(ctx, threadID)
			} else {
				notes, err = rt.assistant.Run(ctx, assistant.Request{
					ThreadID: threadID,
					Message:  strings.Join(args, " "),
					UserID:   userID,
					CartID:   cartID,
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			var runErr error
			for n := range notes {
				switch n.Kind {
				case assistant.KindProgress:
					fmt.Fprintf(errOut, "… %s\n", n.Progress)
				case assistant.KindResult:
					if asJSON {
						enc := json.NewEncoder(out)
						enc.SetIndent("", "  ")
						if err := enc.Encode(n.Result); err != nil {
							return err
						}
						continue
					}
					printResult(out, threadID, n.Result)
				case assistant.KindError:
					runErr = n.Err
				}
			}
			if usage {
				in, outTokens := rt.costs.TokenUsage()
				fmt.Fprintf(errOut, "tokens: %d in / %d out, cost $%.4f\n", in, outTokens, rt.costs.ThreadCost(threadID))
				byModel := rt.costs.CostByModel()
				models := make([]string, 0, len(byModel))
				for m := range byModel {
					models = append(models, m)
				}
				sort.Strings(models)
				for _, m := range models {
					fmt.Fprintf(errOut, "  %s $%.4f\n", m, byModel[m])
				}
			}
			if runErr == nil && ctx.Err() != nil {
				return fmt.Errorf("interrupted; continue with: shopagent ask --thread %s --resume", threadID)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "thread id (a new thread when empty)")
	cmd.Flags().StringVar(&userID, "user", "", "user id passed to the cart agent")
	cmd.Flags().StringVar(&cartID, "cart", "", "cart id passed to the cart agent")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue an interrupted run on --thread")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the final payload as JSON")
	cmd.Flags().BoolVar(&usage, "usage", false, "print token usage and cost")
	return cmd
}

func printResult(w io.Writer, threadID string, r *assistant.Result) {
	fmt.Fprintln(w, r.Answer)
	for _, item := range r.UsedContext {
		price := "n/a"
		if item.Price != nil {
			price = fmt.Sprintf("$%.2f", *item.Price)
		}
		fmt.Fprintf(w, "  • %s (%s) %s\n", item.Description, price, item.ImageURL)
	}
	fmt.Fprintf(w, "\nthread %s, trace %s\n", threadID, r.TraceID)
}
