package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/shopledger/payoutrecon/internal/config"
	"github.com/shopledger/payoutrecon/internal/domain"
	"github.com/shopledger/payoutrecon/internal/ingestion"
	"github.com/shopledger/payoutrecon/internal/logging"
	"github.com/shopledger/payoutrecon/internal/reconciliation"
	"github.com/shopledger/payoutrecon/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	app := newApp(cfg, log, os.Stdout)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(cfg *config.Config, log *logrus.Logger, out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "reconcile"
	app.Usage = "attribute orders to payouts and report currency conversion"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "db", Value: cfg.DBPath, Usage: "SQLite database path"},
		cli.StringFlag{Name: "strategy", Value: string(cfg.Recon.Strategy), Usage: "heuristic or exact"},
		cli.BoolFlag{Name: "exclusive", Usage: "attribute each order to at most one payout"},
	}

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "reconcile export files without touching the database",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "payouts", Usage: "payout export file"},
				cli.StringFlag{Name: "payouts-format", Value: ingestion.FormatPayoutsCSV},
				cli.StringFlag{Name: "orders", Usage: "order export file"},
				cli.StringFlag{Name: "orders-format", Value: ingestion.FormatOrdersGraphQL},
				cli.StringFlag{Name: "output", Value: "table", Usage: "table or json"},
			},
			Action: func(c *cli.Context) error {
				reconCfg, err := engineConfig(c, cfg)
				if err != nil {
					return err
				}
				res, err := runOffline(c, reconciliation.NewEngine(reconCfg, log), log)
				if err != nil {
					return err
				}
				if c.String("output") == "json" {
					return writeJSON(out, res)
				}
				return writeReport(out, res.Summary, res.Metrics, res.Payouts)
			},
		},
		{
			Name:  "import",
			Usage: "ingest a payout or order export into the database",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "kind", Value: "payouts", Usage: "payouts or orders"},
				cli.StringFlag{Name: "format", Usage: "export format"},
				cli.StringFlag{Name: "file", Usage: "export file"},
			},
			Action: func(c *cli.Context) error {
				data, err := os.ReadFile(c.String("file"))
				if err != nil {
					return fmt.Errorf("read file: %w", err)
				}
				return withServices(c, cfg, log, func(s *services) error {
					var res *ingestion.IngestResult
					switch c.String("kind") {
					case "payouts":
						format := c.String("format")
						if format == "" {
							format = ingestion.FormatPayoutsCSV
						}
						res, err = s.ingestion.IngestPayouts(context.Background(), data, format)
					case "orders":
						format := c.String("format")
						if format == "" {
							format = ingestion.FormatOrdersGraphQL
						}
						res, err = s.ingestion.IngestOrders(context.Background(), data, format)
					default:
						return fmt.Errorf("unknown kind %q", c.String("kind"))
					}
					if err != nil {
						return err
					}
					return writeJSON(out, res)
				})
			},
		},
		{
			Name:  "sync",
			Usage: "reconcile stored payouts settled between --from and --to",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "from", Usage: "first settlement day (YYYY-MM-DD)"},
				cli.StringFlag{Name: "to", Usage: "last settlement day (YYYY-MM-DD), defaults to --from"},
			},
			Action: func(c *cli.Context) error {
				from, err := time.Parse(domain.DateLayout, c.String("from"))
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				to := from
				if c.String("to") != "" {
					if to, err = time.Parse(domain.DateLayout, c.String("to")); err != nil {
						return fmt.Errorf("--to: %w", err)
					}
				}
				return withServices(c, cfg, log, func(s *services) error {
					run, res, err := s.recon.Run(context.Background(), from, to)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "run %s\n\n", run.ID)
					return writeReport(out, res.Summary, res.Metrics, res.Payouts)
				})
			},
		},
		{
			Name:  "migrate",
			Usage: "apply database migrations",
			Action: func(c *cli.Context) error {
				db, err := repository.InitDB(c.GlobalString("db"))
				if err != nil {
					return err
				}
				defer db.Close()
				fmt.Fprintln(out, "Database migrated successfully.")
				return nil
			},
		},
	}

	return app
}

// engineConfig applies the global command line overrides to the loaded
// reconciliation settings.
func engineConfig(c *cli.Context, cfg *config.Config) (reconciliation.Config, error) {
	reconCfg := cfg.Recon
	strategy, err := reconciliation.ParseStrategy(c.GlobalString("strategy"))
	if err != nil {
		return reconCfg, err
	}
	reconCfg.Strategy = strategy
	if c.GlobalBool("exclusive") {
		reconCfg.Exclusive = true
	}
	return reconCfg, nil
}

func runOffline(c *cli.Context, engine *reconciliation.Engine, log logrus.FieldLogger) (*reconciliation.Result, error) {
	payoutData, err := os.ReadFile(c.String("payouts"))
	if err != nil {
		return nil, fmt.Errorf("read payouts: %w", err)
	}
	orderData, err := os.ReadFile(c.String("orders"))
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	payouts, skippedPayouts, err := ingestion.ParsePayouts(c.String("payouts-format"), payoutData)
	if err != nil {
		return nil, err
	}
	orders, skippedOrders, err := ingestion.ParseOrders(c.String("orders-format"), orderData)
	if err != nil {
		return nil, err
	}
	for _, rerr := range append(skippedPayouts, skippedOrders...) {
		log.Warnf("skipping malformed record: %v", rerr)
	}

	return engine.Reconcile(reconciliation.Batch{Payouts: payouts, Orders: orders}), nil
}

type services struct {
	recon     *reconciliation.Service
	ingestion *ingestion.Service
}

func withServices(c *cli.Context, cfg *config.Config, log *logrus.Logger, fn func(*services) error) error {
	reconCfg, err := engineConfig(c, cfg)
	if err != nil {
		return err
	}

	db, err := repository.InitDB(c.GlobalString("db"))
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer db.Close()

	return fn(buildServices(db, reconCfg, log))
}

func buildServices(db *sql.DB, reconCfg reconciliation.Config, log *logrus.Logger) *services {
	payoutRepo := repository.NewPayoutRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	recon := reconciliation.NewService(
		reconciliation.NewEngine(reconCfg, log),
		payoutRepo, orderRepo, repository.NewRunRepo(db), repository.NewDiscrepancyRepo(db), log,
	)
	return &services{
		recon:     recon,
		ingestion: ingestion.NewService(repository.NewImportRepo(db), payoutRepo, orderRepo, recon, log),
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(out io.Writer, s domain.Summary, m domain.CurrencyMetrics, payouts []domain.PayoutReconciliation) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "PAYOUT\tDATE\tGROSS\tORDERS\tSHOP TOTAL\tDIFF\tRATE\tMATCH\n")
	for _, p := range payouts {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%d/%d\t%s\t%s\t%s\t%v\n",
			p.PayoutID, p.SettlementDate.Format(domain.DateLayout),
			p.GrossAmount.StringFixed(2), p.Currency,
			p.MappedOrderCount, p.CandidateCount,
			p.ShopTotal.StringFixed(2), p.ShopDifference.StringFixed(2),
			p.AverageExchangeRate.StringFixed(4), p.CurrencyMatch,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRange:     %s\n", s.DateRange)
	fmt.Fprintf(out, "Payouts:   %d (%d matched, %d without candidates)\n",
		s.TotalPayouts, s.MatchedPayouts, s.PayoutsWithoutCandidates)
	fmt.Fprintf(out, "Orders:    %d mapped, %d records skipped\n", s.TotalOrders, s.SkippedRecords)
	fmt.Fprintf(out, "Customer:  %s\n", s.TotalCustomerAmount.StringFixed(2))
	fmt.Fprintf(out, "Shop:      %s from orders, %s from payouts\n",
		s.TotalShopAmountFromOrders.StringFixed(2), s.TotalShopAmountFromPayouts.StringFixed(2))
	fmt.Fprintf(out, "Rates:     avg %s, min %s, max %s over %d orders\n",
		m.AverageExchangeRate.StringFixed(4), m.MinExchangeRate.StringFixed(4),
		m.MaxExchangeRate.StringFixed(4), m.RatedOrderCount)
	fmt.Fprintf(out, "Accuracy:  %s%% (difference %s)\n",
		m.ConversionAccuracyPercent.StringFixed(2), m.ConversionDifference.StringFixed(2))
	return nil
}
