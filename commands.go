package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"melhor-casa/api"
	"melhor-casa/geocode"
	"melhor-casa/models"
	"melhor-casa/scraper"
	"melhor-casa/scraper/quintoandar"
	"melhor-casa/services"
	"melhor-casa/state"
	"melhor-casa/storage"
	"melhor-casa/utils"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func createSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the spreadsheet layouts that can be imported",
		Run: func(cmd *cobra.Command, args []string) {
			for _, site := range services.Sites() {
				fmt.Fprintln(cmd.OutOrStdout(), site)
			}
		},
	}
}

func createImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [site] [file.xlsx]",
		Short: "Import a spreadsheet exported from a listing site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, path := args[0], args[1]

			rows, err := storage.ReadWorkbookFile(path)
			if err != nil {
				return err
			}
			s, err := openSession()
			if err != nil {
				return err
			}
			added, keys, err := s.app.ImportRows(site, rows)
			if err != nil {
				if errors.Is(err, services.ErrUnsupportedSite) {
					return fmt.Errorf("%w (supported: %s)", err, strings.Join(services.Sites(), ", "))
				}
				return err
			}
			if err := s.save(cmd.Context(), keys); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d imóveis importados de %s (%d linhas)\n", added, site, len(rows))
			return nil
		},
	}
}

func createListCmd() *cobra.Command {
	var (
		status             string
		priceMin, priceMax string
		areaMin, areaMax   int64
		rooms, parking     string
		distanceMax        float64
		tags               []string
		showAll            bool
		sortField, sortDir string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the filtered working set or a triaged partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}

			opt := models.SortOption{Field: models.SortField(sortField), Direction: models.SortDirection(sortDir)}
			if err := s.app.SetSort(opt); err != nil {
				return err
			}

			var props []models.Property
			switch models.Status(status) {
			case models.StatusUnseen:
				f := models.DefaultFilters()
				flags := cmd.Flags()
				if flags.Changed("min") {
					f.PriceMin = priceMin
				}
				if flags.Changed("max") {
					f.PriceMax = priceMax
				}
				if flags.Changed("area-min") {
					f.AreaMin = areaMin
				}
				if flags.Changed("area-max") {
					f.AreaMax = areaMax
				}
				if flags.Changed("rooms") {
					f.Rooms = rooms
				}
				if flags.Changed("parking") {
					f.Parking = parking
				}
				if flags.Changed("distance") {
					f.DistanceMax = distanceMax
				}
				f.Tags = tags
				s.app.SetFilters(f)
				s.app.SetShowAll(showAll)
				props = s.app.Visible()
			case models.StatusLiked, models.StatusDisliked:
				props = services.SortProperties(s.app.TaggedView(models.Status(status), tags), s.app.Sort)
			default:
				return fmt.Errorf("unknown status %q", status)
			}

			printProperties(cmd.OutOrStdout(), props)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&status, "status", string(models.StatusUnseen), "unseen, liked or disliked")
	flags.StringVar(&priceMin, "min", "", "minimum price")
	flags.StringVar(&priceMax, "max", "", "maximum price")
	flags.Int64Var(&areaMin, "area-min", 0, "minimum area in m²")
	flags.Int64Var(&areaMax, "area-max", 2000, "maximum area in m²")
	flags.StringVar(&rooms, "rooms", models.AnyCount, "exact number of rooms")
	flags.StringVar(&parking, "parking", models.AnyCount, "exact number of parking spots")
	flags.Float64Var(&distanceMax, "distance", 100, "maximum distance in km")
	flags.StringSliceVar(&tags, "tag", nil, "keep records with any of these tags")
	flags.BoolVar(&showAll, "all", false, "ignore filters")
	flags.StringVar(&sortField, "sort", string(models.SortByPrice), "price, distance or area")
	flags.StringVar(&sortDir, "dir", string(models.Descending), "asc or desc")
	return cmd
}

func printProperties(w io.Writer, props []models.Property) {
	fmt.Fprintf(w, "%-4s %-40s %16s %8s %3s %3s %9s  %s\n", "#", "NOME", "VALOR", "M²", "Q", "V", "DIST", "ID")
	for i, p := range props {
		dist := "-"
		if p.Distance != nil {
			dist = fmt.Sprintf("%.1f km", *p.Distance)
		}
		fmt.Fprintf(w, "%-4d %-40s %16s %8s %3s %3s %9s  %s\n",
			i+1, truncate(p.Name, 40), p.Price, strings.TrimSuffix(p.Area, " m²"), p.Rooms, p.Parking, dist, p.ID)
	}
	fmt.Fprintf(w, "%d imóveis\n", len(props))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func createMarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "mark [like|dislike|to-liked|to-disliked|remove|clear-disliked] [id]",
		Short:     "Move a property between partitions",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"like", "dislike", "to-liked", "to-disliked", "remove", "clear-disliked"},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}

			action := args[0]
			if action == "clear-disliked" {
				return s.save(cmd.Context(), s.app.ClearDisliked())
			}
			if len(args) != 2 {
				return fmt.Errorf("%s needs a property id", action)
			}

			transitions := map[string]func(string) ([]state.Key, error){
				"like":        s.app.Like,
				"dislike":     s.app.Dislike,
				"to-liked":    s.app.MoveToLiked,
				"to-disliked": s.app.MoveToDisliked,
				"remove":      s.app.Remove,
			}
			transition, ok := transitions[action]
			if !ok {
				return fmt.Errorf("unknown action %q", action)
			}
			keys, err := transition(args[1])
			if err != nil {
				return err
			}
			return s.save(cmd.Context(), keys)
		},
	}
}

func createTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag [id] [tag]",
		Short: "Attach a tag to a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			keys, err := s.app.AddTag(args[0], args[1])
			if err != nil {
				return err
			}
			return s.save(cmd.Context(), keys)
		},
	}
}

func createExportCmd() *cobra.Command {
	var status, format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the working set, a partition or everything to a workbook or CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			props, err := exportSet(s.app, status)
			if err != nil {
				return err
			}

			if out == "" {
				out = storage.ExportFilename(time.Now())
				if format == "csv" {
					out = strings.TrimSuffix(out, filepath.Ext(out)) + ".csv"
				}
			}

			var w storage.PropertyWriter
			switch format {
			case "xlsx":
				w = storage.NewWorkbookWriter(out)
			case "csv":
				cw, err := storage.NewCSVWriter(out)
				if err != nil {
					return err
				}
				w = cw
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			if err := w.Write(props); err != nil {
				_ = w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d imóveis exportados para %s\n", len(props), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(models.StatusUnseen), "partition to export: unseen, liked, disliked or all")
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default imoveis_quintoandar_<date>)")
	return cmd
}

// exportAll selects every record regardless of status.
const exportAll = "all"

func exportSet(app *state.App, scope string) ([]models.Property, error) {
	switch st := models.Status(scope); st {
	case models.StatusUnseen, models.StatusLiked, models.StatusDisliked:
		return app.Partition(st), nil
	}
	if scope == exportAll {
		return app.All(), nil
	}
	return nil, fmt.Errorf("unknown status %q (unseen, liked, disliked or %s)", scope, exportAll)
}

func createInsightsCmd() *cobra.Command {
	var fromDB bool

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Print a summary of the collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			var props []models.Property
			if fromDB {
				pg, err := storage.NewPostgresStore(cmd.Context(), cfg.DSN())
				if err != nil {
					return err
				}
				defer pg.Close()
				if props, err = pg.FetchAll(cmd.Context()); err != nil {
					return err
				}
			} else {
				s, err := openSession()
				if err != nil {
					return err
				}
				props = s.app.All()
			}

			insights := services.NewInsightService(logger, services.NewParser(logger))
			insights.Print(cmd.OutOrStdout(), insights.Generate(props))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromDB, "from-db", false, "read properties from PostgreSQL instead of the profile")
	return cmd
}

func newGeocoder() *geocode.Client {
	return geocode.NewClient(geocode.Options{
		BaseURL:    cfg.GeocoderURL,
		UserAgent:  cfg.GeocoderUserAgent,
		RatePerSec: cfg.GeocoderRatePerSec,
	}, logger)
}

func createLocateCmd() *cobra.Command {
	var properties bool

	cmd := &cobra.Command{
		Use:   "locate [address]",
		Short: "Set your reference address and optionally geocode properties",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !properties {
				return errors.New("give an address, --properties, or both")
			}

			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}
			geocoder := newGeocoder()
			var keys []state.Key

			if len(args) == 1 {
				loc, err := geocoder.LocateUser(ctx, args[0])
				if err != nil {
					return err
				}
				keys = append(keys, s.app.SetLocation(loc)...)
				fmt.Fprintf(cmd.OutOrStdout(), "Localização: %s (%.5f, %.5f)\n", loc.Address, loc.Latitude, loc.Longitude)
			}

			if properties {
				all := s.app.All()
				located, n := geocoder.LocateAll(ctx, all, utils.NewWorkerPool(cfg.MaxConcurrency, nil))
				for i := range located {
					if all[i].HasCoordinates() || !located[i].HasCoordinates() {
						continue
					}
					k, err := s.app.SetCoordinates(located[i].ID, *located[i].Latitude, *located[i].Longitude)
					if err != nil {
						return err
					}
					keys = append(keys, k...)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d imóveis geolocalizados\n", n)
			}

			return s.save(ctx, keys)
		},
	}

	cmd.Flags().BoolVar(&properties, "properties", false, "geocode properties that have no coordinates")
	return cmd
}

func createSavingsCmd() *cobra.Command {
	savingsCmd := &cobra.Command{
		Use:   "savings",
		Short: "Track the piggy bank and down-payment goals",
	}

	savingsCmd.AddCommand(&cobra.Command{
		Use:   "add [amount]",
		Short: "Deposit an amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			keys, err := s.app.AddMoney(args[0])
			if err != nil {
				return err
			}
			if err := s.save(cmd.Context(), keys); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total guardado: R$ %.2f\n", s.app.TotalSavings)
			return nil
		},
	})

	savingsCmd.AddCommand(&cobra.Command{
		Use:   "goal [id] [YYYY-MM-DD]",
		Short: "Set the target purchase date for a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			keys, err := s.app.SetTargetDate(args[0], args[1])
			if err != nil {
				return err
			}
			return s.save(cmd.Context(), keys)
		},
	})

	savingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show progress towards each liked property's down payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			now := time.Now()
			fmt.Fprintf(w, "Total guardado: R$ %.2f\n\n", s.app.TotalSavings)
			for _, p := range s.app.Partition(models.StatusLiked) {
				fmt.Fprintf(w, "%s\n  entrada (30%%): R$ %s  progresso: %.1f%%\n",
					truncate(p.Name, 60), services.DownPayment(p.Price).StringFixed(2), services.Progress(p.Price, s.app.TotalSavings))
				if goal := services.FindGoal(s.app.Goals, p.ID); goal != nil {
					fmt.Fprintf(w, "  meta %s: R$ %.2f por mês\n",
						goal.TargetDate, services.MonthlyNeeded(goal, p.Price, s.app.TotalSavings, now))
				}
			}
			return nil
		},
	})

	return savingsCmd
}

func newRunner() *scraper.Runner {
	return scraper.NewRunner(scraper.Options{
		Command: cfg.ScraperCommand,
		Dir:     cfg.ScraperDir,
		Output:  cfg.ScraperOutput,
	}, services.NewMapper(logger), logger)
}

func createScrapeCmd() *cobra.Command {
	var (
		external bool
		city     string
		maxPrice int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect new listings into the working set",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession()
			if err != nil {
				return err
			}

			var props []models.Property
			if external {
				props, err = runExternal(ctx)
			} else {
				props, err = runFeed(ctx, s, city, maxPrice)
			}
			if err != nil {
				return err
			}

			added, keys := s.app.AddScraped(props)
			if err := s.save(ctx, keys); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d imóveis novos (%d coletados)\n", added, len(props))
			return nil
		},
	}

	cmd.Flags().BoolVar(&external, "external", false, "run the configured scraper command instead of the built-in feed")
	cmd.Flags().StringVar(&city, "city", quintoandar.DefaultCity, "QuintoAndar city slug")
	cmd.Flags().IntVar(&maxPrice, "max-price", quintoandar.DefaultMaxPrice, "maximum price")
	return cmd
}

func runFeed(ctx context.Context, s *session, city string, maxPrice int) ([]models.Property, error) {
	searchURL := cfg.QuintoAndarURL
	if searchURL == "" {
		searchURL = quintoandar.SearchURL(city, maxPrice)
	}

	known := make([]string, 0, s.app.Len())
	for _, p := range s.app.All() {
		known = append(known, p.Link)
	}

	feed := quintoandar.New(quintoandar.Options{
		ChromeBin:      cfg.ChromeBin,
		MaxConcurrency: cfg.MaxConcurrency,
		RateLimitMs:    cfg.RateLimitMs,
		MaxRetries:     cfg.MaxRetries,
	}, logger, known...)

	rows, err := feed.Scrape(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	return services.NewMapper(logger).MapRows(services.SiteScraper, rows)
}

func runExternal(ctx context.Context) ([]models.Property, error) {
	runner := newRunner()
	if _, err := runner.Start(); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-runner.Done():
			st := runner.Status()
			logger.Info("%s", st.Progress)
			// A failed run leaves the previous workbook behind.
			if err := runner.Err(); err != nil {
				return nil, err
			}
			return runner.Import()
		case <-ctx.Done():
			if _, err := runner.Stop(); err != nil {
				logger.Warn("Stop scraper: %v", err)
			}
			<-runner.Done()
			return nil, ctx.Err()
		case <-ticker.C:
			logger.Info("%s", runner.Status().Progress)
		}
	}
}

func createServeCmd() *cobra.Command {
	var origins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			users, err := storage.NewUserStore(cfg.DataDir, logger)
			if err != nil {
				return err
			}
			handler := api.NewHandler(newRunner(), users, logger)
			srv := api.NewServer(cfg.HTTPAddr, api.NewRouter(handler, logger, origins), logger)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringSliceVar(&origins, "origins", []string{"http://localhost:5173", "http://localhost:8080"}, "allowed CORS origins")
	return cmd
}
