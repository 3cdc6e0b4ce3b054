package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/scrapetoapi/scrapetoapi/pkg/service"
	"github.com/scrapetoapi/scrapetoapi/pkg/wire"
)

type theme struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Faint lipgloss.Style
	Card  lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Label: lipgloss.NewStyle().Faint(true).Width(12),
		Value: lipgloss.NewStyle().Bold(true),
		Faint: lipgloss.NewStyle().Faint(true),
		Card: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")),
	}
}

func newScrapeCmd(f *flags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape one page and print a summary",
		Long: `The scrape command fetches and indexes a page in-process using the configured result store.
With a persistent store the result stays available to a server sharing it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") {
				cfg.LogLevel = "warn"
			}

			ctx := cmd.Context()
			app, cleanup, err := wire.InitializeApp(ctx, cfg, buildInfo())
			if err != nil {
				return fmt.Errorf("error initializing scraper: %w", err)
			}
			defer cleanup()

			var s *spinner.Spinner
			if !asJSON {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = " Scraping " + args[0]
				s.Start()
			}
			result, err := app.Service.Scrape(ctx, args[0])
			if s != nil {
				s.Stop()
			}
			if err != nil {
				return err
			}

			if asJSON {
				out, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("error encoding result: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return err
			}
			return printSummary(cmd.OutOrStdout(), defaultTheme(), args[0], result)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw scrape response as JSON")
	return cmd
}

func printSummary(w io.Writer, th theme, target string, result *service.ScrapeResult) error {
	row := func(label, value string) string {
		return th.Label.Render(label) + th.Value.Render(value)
	}

	title := result.Preview.Title
	if title == "" {
		title = "(untitled)"
	}
	elapsed := "cached"
	if result.ScrapeTime != nil {
		elapsed = fmt.Sprintf("%.2fs", *result.ScrapeTime)
	}

	tags := strings.Join(result.Preview.AvailableTags, " ")
	lines := []string{
		th.Title.Render(result.Message),
		"",
		row("URL", target),
		row("Title", title),
		row("Slug", result.Slug),
		row("Endpoint", result.APIEndpoint),
		row("Time", elapsed),
		row("Elements", fmt.Sprint(result.Preview.TotalElements)),
		row("Links", fmt.Sprint(result.Preview.LinksCount)),
		row("Images", fmt.Sprint(result.Preview.ImagesCount)),
		row("Headings", fmt.Sprint(result.Preview.HeadingsCount)),
		th.Label.Render("Tags") + th.Faint.Render(tags),
	}

	_, err := fmt.Fprintln(w, th.Card.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	return err
}
