package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/blakestevenson/nimbus-acquire/internal/app"
	"github.com/blakestevenson/nimbus-acquire/internal/downloader"
	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/spf13/cobra"
)

type opener func(ctx context.Context) (*app.App, error)

func RunSearchCommand(open opener) *cobra.Command {
	var (
		movieID   int64
		seriesID  int64
		season    int
		episode   int
		automatic bool
		grab      bool
	)

	command := &cobra.Command{
		Use:   "search",
		Short: "Search indexers for a movie or an episode",
		Example: `  nimbusctl search --movie 42
  nimbusctl search --series 7 --season 1 --episode 3 --grab`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target media.Target
			switch {
			case movieID > 0 && seriesID > 0:
				return fmt.Errorf("--movie and --series are exclusive")
			case movieID > 0:
				target = media.MovieTarget(movieID)
			case seriesID > 0:
				target = media.EpisodeTarget(seriesID, season, episode)
			default:
				return fmt.Errorf("one of --movie or --series is required")
			}

			searchType := indexer.SearchTypeInteractive
			if automatic {
				searchType = indexer.SearchTypeAutomatic
			}

			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Downloads.FindReleases(ctx, target, searchType)
			if err != nil {
				return err
			}

			cmd.Printf("%s: %d of %d releases match\n", result.Target.Title, len(result.Releases), result.Found)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tTITLE\tSIZE\tSEEDERS\tINDEXER\tPROTOCOL")
			for i, r := range result.Releases {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", i+1, r.Title, humanSize(r.Size), r.Seeders, r.IndexerName, r.Protocol)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !grab || len(result.Releases) == 0 {
				return nil
			}
			d, err := a.Downloads.Grab(ctx, downloader.GrabRequest{Target: target, Release: result.Releases[0]})
			if err != nil {
				return err
			}
			cmd.Printf("grabbed %s as download %s\n", d.Title, d.ID)
			return nil
		},
	}

	command.Flags().Int64Var(&movieID, "movie", 0, "movie id")
	command.Flags().Int64Var(&seriesID, "series", 0, "series id")
	command.Flags().IntVar(&season, "season", 0, "season number")
	command.Flags().IntVar(&episode, "episode", 0, "episode number")
	command.Flags().BoolVar(&automatic, "automatic", false, "use the indexers enabled for automatic search")
	command.Flags().BoolVar(&grab, "grab", false, "grab the best release")

	return command
}

func RunPollCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one reconciliation cycle and show the active downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Downloads.Poll(ctx); err != nil {
				return err
			}

			active, err := a.Downloads.List(ctx, downloader.ActiveStatuses...)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTARGET\tSTATUS\tPROGRESS\tTITLE")
			for _, d := range active {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\n", d.ID, d.Target, d.Status, d.Progress, d.Title)
			}
			return w.Flush()
		},
	}
}

func RunClientsCommand(open opener) *cobra.Command {
	command := &cobra.Command{
		Use:   "clients",
		Short: "Download client operations",
	}

	command.AddCommand(&cobra.Command{
		Use:   "test <id>",
		Short: "Test the connection to a stored download client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid client id %q", args[0])
			}

			ctx := cmd.Context()
			a, err := open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			_, cfg, err := a.Clients.Get(ctx, id)
			if err != nil {
				return err
			}
			result, err := a.Clients.TestConnection(ctx, *cfg)
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("%s: %s", cfg.Name, result.Message)
			}
			cmd.Printf("%s (%s) ok, version %s\n", cfg.Name, cfg.Type, result.Version)
			return nil
		},
	})

	return command
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
