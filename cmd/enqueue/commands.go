package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/blogapp/summarizer/internal/domain"
	"github.com/spf13/cobra"
)

// defaultPendingLimit caps a single "pending" run.
const defaultPendingLimit = 100

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "enqueue",
		Short:        "Queue blog post summaries for the summarization worker",
		SilenceUsage: true,
	}

	root.AddCommand(
		newPostCmd(open),
		newPendingCmd(open),
		newStatusCmd(open),
	)
	return root
}

// withPipeline opens a pipeline for the duration of fn.
func withPipeline(cmd *cobra.Command, open opener, fn func(p *pipeline) error) error {
	p, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer p.close()
	return fn(p)
}

func newPostCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "post <id>",
		Short: "Mark a post PENDING and queue a new summary for it",
		Example: `  # Re-summarize post 42
  enqueue post 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid post id %q", args[0])
			}

			return withPipeline(cmd, open, func(p *pipeline) error {
				post, err := p.service.ResummarizePost(cmd.Context(), id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "queued summary for post %d (%s)\n", post.ID, post.SummaryStatus)
				return err
			})
		},
	}
}

func newPendingCmd(open opener) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Queue a summary for every post still PENDING",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			return withPipeline(cmd, open, func(p *pipeline) error {
				n, err := p.service.ResummarizePending(cmd.Context(), limit)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "queued %d pending posts\n", n)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultPendingLimit, "maximum number of posts to queue")
	return cmd
}

func newStatusCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "Show queue depth and post counts per summary status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd, open, func(p *pipeline) error {
				depth, err := p.queue.Len(cmd.Context())
				if err != nil {
					return err
				}
				counts, err := p.posts.CountByStatus(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "QUEUE\t%s\t%d\n", p.queueKey, depth)
				for _, status := range []domain.SummaryStatus{
					domain.SummaryStatusPending,
					domain.SummaryStatusCompleted,
				} {
					fmt.Fprintf(w, "POSTS\t%s\t%d\n", status, counts[status])
				}
				return w.Flush()
			})
		},
	}
}
