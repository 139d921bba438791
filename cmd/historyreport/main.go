package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/adapters/repository"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
	"github.com/vncsmyrnk/livepoll/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	log := logger.New(cfg.LogLevel)
	if !cfg.EnvFileLoaded {
		log.Debug("No .env file found")
	}

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stores, err := repository.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open archive store")
	}
	defer stores.Close()

	history := services.NewHistoryService(stores.Polls, stores.Messages)

	log.Info("Building poll history report...")

	polls, err := history.ListEndedPolls(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to load poll history")
	}

	writeReport(os.Stdout, polls)
	log.Info("Poll history report completed successfully.")
}

func writeReport(out io.Writer, polls []*domain.ArchivedPoll) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, p := range polls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d votes\n", p.EndedAt.Format(time.RFC3339), p.Reason, p.Question, p.TotalVotes)
		for i, opt := range p.Options {
			marker := " "
			if p.CorrectOptionIndex != nil && *p.CorrectOptionIndex == i {
				marker = "*"
			}
			fmt.Fprintf(tw, "\t%s %s\t%d\t%d%%\n", marker, opt.Text, opt.Votes, opt.Percentage)
		}
	}

	summary := services.Summarize(polls)
	fmt.Fprintf(tw, "\npolls\t%d\n", summary.Polls)
	fmt.Fprintf(tw, "votes\t%d\n", summary.TotalVotes)
	if summary.Graded > 0 {
		fmt.Fprintf(tw, "correct\t%d/%d\n", summary.Correct, summary.Graded)
	}

	reasons := make([]string, 0, len(summary.ByReason))
	for r, n := range summary.ByReason {
		reasons = append(reasons, fmt.Sprintf("%s=%d", r, n))
	}
	sort.Strings(reasons)
	if len(reasons) > 0 {
		fmt.Fprintf(tw, "closed\t%s\n", strings.Join(reasons, " "))
	}
}
