package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sermonarc/sermonarc/internal/auth"
	"github.com/sermonarc/sermonarc/internal/catalog"
)

func newSearchCommand(cmdCtx *commandContext) *cobra.Command {
	var newest bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog for speakers, broadcasters, series and sermons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, tel, err := cmdCtx.bootstrap(cmd.Context())
			if err != nil {
				return err
			}

			creds := auth.NewManager(
				&auth.WebKeySource{WebURL: cfg.WebBaseURL, HTTP: httpClient(cfg.HTTPTimeout.Duration)},
				&auth.FileStore{Path: cfg.CredentialPath},
				tel,
			)

			client := catalog.New(cfg.APIBaseURL, cfg.WebBaseURL, creds, httpClient(cfg.HTTPTimeout.Duration), tel)

			var sort string
			if newest {
				sort = catalog.SortNewest
			}

			results, err := client.Search(ctx, args[0], sort)
			if err != nil {
				return err
			}

			if newest {
				results = sermonsOnly(results)
			}

			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches")

				return nil
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Kind, r.ID, r.Name, r.Detail})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Kind", "ID", "Name", "Detail"}, rows, nil))

			return nil
		},
	}

	cmd.Flags().BoolVar(&newest, "newest", false, "sort sermon hits by publish date and show only sermons")

	return cmd
}

// sermonsOnly drops the grouped speaker/broadcaster/series hits; a recency
// sort only means something for sermons.
func sermonsOnly(results []catalog.SearchResult) []catalog.SearchResult {
	sermons := results[:0]

	for _, r := range results {
		if r.Kind == "sermon" {
			sermons = append(sermons, r)
		}
	}

	return sermons
}
