// payrollctl drives the payroll ledger from the command line. Every command
// runs against the same database as the daemon; the acting account is passed
// with --caller and checked by the services, not trusted from the shell user.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quantapay/payrolld/internal/config"
	"github.com/quantapay/payrolld/internal/feed"
	"github.com/quantapay/payrolld/internal/guard"
	"github.com/quantapay/payrolld/internal/metrics"
	"github.com/quantapay/payrolld/internal/repository"
	"github.com/quantapay/payrolld/internal/services/payroll"
	"github.com/quantapay/payrolld/internal/services/rates"
	"github.com/quantapay/payrolld/internal/services/registry"
	"github.com/quantapay/payrolld/internal/services/treasury"
	"github.com/quantapay/payrolld/internal/settlement"

	"github.com/prometheus/client_golang/prometheus"
)

var rootCmd = &cobra.Command{
	Use:   "payrollctl",
	Short: "Payroll ledger CLI",
	Long: `payrollctl manages the self-custodial payroll ledger: the employee
roster, the pooled treasury, exchange rates and payouts. The acting account
is given with --caller; administrator and oracle rights are enforced per
operation.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PAYROLL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("caller", "", "account performing the operation")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("caller", rootCmd.PersistentFlags().Lookup("caller"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(employeeCmd())
	rootCmd.AddCommand(treasuryCmd())
	rootCmd.AddCommand(allocationCmd())
	rootCmd.AddCommand(paydayCmd())
	rootCmd.AddCommand(payoutHistoryCmd())
	rootCmd.AddCommand(rateCmd())
}

// services bundles everything a command may need.
type services struct {
	registry *registry.Service
	treasury *treasury.Service
	payroll  *payroll.Service
	rates    *rates.Service
}

func withServices(ctx context.Context, fn func(ctx context.Context, s *services) error) error {
	cfg := config.MustLoad()

	dbpool, err := repository.NewDatabase(
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Dbname)
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer dbpool.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appMetrics := metrics.NewMetrics(prometheus.NewRegistry())

	employeeRepo := repository.NewEmployeeRepository(dbpool, appMetrics)
	allocationRepo := repository.NewAllocationRepository(dbpool, appMetrics)
	treasuryRepo := repository.NewTreasuryRepository(dbpool, appMetrics)
	rateRepo := repository.NewRateRepository(dbpool, appMetrics)
	settingsRepo := repository.NewSettingsRepository(dbpool, appMetrics)

	grd := guard.New(cfg.Payroll.Admin, settingsRepo)
	transferor := settlement.NewClient(logger, cfg.Settlement.BaseURL)
	scraper := feed.NewScraper(cfg.Feed.URL)

	s := &services{
		registry: registry.NewService(logger, employeeRepo, grd, appMetrics),
		treasury: treasury.NewService(logger, treasuryRepo, employeeRepo, rateRepo, settingsRepo,
			grd, transferor, appMetrics, cfg.Payroll.NativeAsset),
		payroll: payroll.NewService(logger, employeeRepo, allocationRepo, treasuryRepo, rateRepo,
			grd, transferor, appMetrics),
		rates: rates.NewService(logger, rateRepo, settingsRepo, grd, scraper, appMetrics, cfg.Feed.Interval),
	}

	return fn(ctx, s)
}

func caller() string {
	return viper.GetString("caller")
}

func employeeCmd() *cobra.Command {
	emp := &cobra.Command{Use: "employee", Short: "Manage the roster"}
	emp.AddCommand(employeeAddCmd())
	emp.AddCommand(employeeListCmd())
	emp.AddCommand(employeeShowCmd())
	emp.AddCommand(employeeSetSalaryCmd())
	emp.AddCommand(employeeRemoveCmd())
	emp.AddCommand(employeeSetAssetCmd())
	return emp
}

func employeeAddCmd() *cobra.Command {
	var (
		account string
		name    string
		email   string
		assets  []string
		salary  int64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an active employee",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				id, err := s.registry.AddEmployee(ctx, caller(), account, name, email, assets, salary)
				if err != nil {
					return err
				}
				fmt.Println("employee id:", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "payout account")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringSliceVar(&assets, "assets", nil, "allowed assets")
	cmd.Flags().Int64Var(&salary, "salary", 0, "yearly USD salary")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("salary")
	return cmd
}

func employeeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				employees, err := s.registry.List(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(employees)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Account", "Name", "Salary", "Active", "Last payout"})
				for _, e := range employees {
					tw.AppendRow(table.Row{
						e.ID, e.Account, e.FullName, e.YearlySalary, e.Active,
						e.LastPayoutAt.Format(time.RFC3339),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func employeeShowCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one employee",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				employee, err := s.registry.Employee(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(employee)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "employee id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func employeeSetSalaryCmd() *cobra.Command {
	var (
		id     int64
		salary int64
	)
	cmd := &cobra.Command{
		Use:   "set-salary",
		Short: "Update a yearly salary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.registry.SetSalary(ctx, caller(), id, salary)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "employee id")
	cmd.Flags().Int64Var(&salary, "salary", 0, "yearly USD salary")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("salary")
	return cmd
}

func employeeRemoveCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Terminate an employee",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.registry.RemoveEmployee(ctx, caller(), id)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "employee id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func employeeSetAssetCmd() *cobra.Command {
	var (
		id      int64
		asset   string
		allowed bool
	)
	cmd := &cobra.Command{
		Use:   "set-asset",
		Short: "Allow or forbid an allocation asset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.registry.SetAllowedAsset(ctx, caller(), id, asset, allowed)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "employee id")
	cmd.Flags().StringVar(&asset, "asset", "", "asset symbol")
	cmd.Flags().BoolVar(&allowed, "allowed", true, "whether the asset is allowed")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("asset")
	return cmd
}

func treasuryCmd() *cobra.Command {
	trs := &cobra.Command{Use: "treasury", Short: "Manage the pooled treasury"}
	trs.AddCommand(treasuryDepositCmd())
	trs.AddCommand(treasuryBalancesCmd())
	trs.AddCommand(treasuryBurnRateCmd())
	trs.AddCommand(treasuryRunwayCmd())
	trs.AddCommand(treasurySetLimitCmd())
	trs.AddCommand(treasuryLimitCmd())
	trs.AddCommand(treasurySuspendCmd())
	trs.AddCommand(treasuryResumeCmd())
	trs.AddCommand(treasurySweepCmd())
	return trs
}

func treasuryDepositCmd() *cobra.Command {
	var (
		asset  string
		amount int64
	)
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Credit funds to the treasury",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				if asset == "" {
					return s.treasury.DepositNative(ctx, caller(), amount)
				}
				return s.treasury.DepositAsset(ctx, caller(), asset, amount)
			})
		},
	}
	cmd.Flags().StringVar(&asset, "asset", "", "asset symbol (native asset when omitted)")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in asset units")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func treasuryBalancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "List treasury balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				balances, err := s.treasury.Balances(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(balances)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Asset", "Balance"})
				for _, b := range balances {
					tw.AppendRow(table.Row{b.Asset, b.Amount})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func treasuryBurnRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "burnrate",
		Short: "Show USD burned per 28-day period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				burn, err := s.treasury.BurnRate(ctx, caller())
				if err != nil {
					return err
				}
				fmt.Println("burn rate (USD / 28 days):", burn)
				return nil
			})
		},
	}
}

func treasuryRunwayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runway",
		Short: "Show days of treasury cover",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				days, err := s.treasury.Runway(ctx, caller())
				if err != nil {
					return err
				}
				if days == treasury.RunwayForever {
					fmt.Println("runway: unlimited (no employees)")
					return nil
				}
				fmt.Println("runway (days):", days)
				return nil
			})
		},
	}
}

func treasurySetLimitCmd() *cobra.Command {
	var days int64
	cmd := &cobra.Command{
		Use:   "set-limit",
		Short: "Set the runway deposit limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.treasury.SetRunwayLimit(ctx, caller(), days)
			})
		},
	}
	cmd.Flags().Int64Var(&days, "days", 0, "maximum runway in days")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func treasuryLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limit",
		Short: "Show the runway deposit limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				days, err := s.treasury.RunwayLimit(ctx)
				if err != nil {
					return err
				}
				fmt.Println("runway limit (days):", days)
				return nil
			})
		},
	}
}

func treasurySuspendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suspend",
		Short: "Suspend all mutating operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.treasury.Suspend(ctx, caller())
			})
		},
	}
}

func treasuryResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Lift a suspension",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.treasury.Resume(ctx, caller())
			})
		},
	}
}

func treasurySweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Drain all balances to the administrator (requires suspension)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.treasury.Sweep(ctx, caller())
			})
		},
	}
}

func allocationCmd() *cobra.Command {
	alc := &cobra.Command{Use: "allocation", Short: "Manage a salary split"}
	alc.AddCommand(allocationSetCmd())
	alc.AddCommand(allocationShowCmd())
	return alc
}

func allocationSetCmd() *cobra.Command {
	var (
		assets   []string
		percents []int64
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the caller's salary split",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.payroll.DetermineAllocation(ctx, caller(), assets, percents)
			})
		},
	}
	cmd.Flags().StringSliceVar(&assets, "assets", nil, "assets, in order")
	cmd.Flags().Int64SliceVar(&percents, "percents", nil, "percents, summing to 100")
	return cmd
}

func allocationShowCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective salary split",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				lines, err := s.payroll.Allocation(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(lines)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Asset", "Percent"})
				for _, line := range lines {
					tw.AppendRow(table.Row{line.Asset, line.Percent})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "employee id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func paydayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payday",
		Short: "Claim everything accrued since the last payout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				lines, err := s.payroll.Payday(ctx, caller())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(lines)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Asset", "Amount", "USD value"})
				for _, line := range lines {
					tw.AppendRow(table.Row{line.Asset, line.Amount, line.UsdAmount})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func payoutHistoryCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "payout-history",
		Short: "List an employee's past payouts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				payouts, err := s.payroll.History(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(payouts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Reference", "Asset", "Amount", "USD value", "Paid at"})
				for _, payout := range payouts {
					tw.AppendRow(table.Row{
						payout.Reference.String(), payout.Asset,
						payout.Amount, payout.UsdAmount,
						payout.PaidAt.Format(time.RFC3339),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "employee id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func rateCmd() *cobra.Command {
	rts := &cobra.Command{Use: "rate", Short: "Manage the exchange-rate cache"}
	rts.AddCommand(rateSetCmd())
	rts.AddCommand(rateListCmd())
	rts.AddCommand(rateSetOracleCmd())
	rts.AddCommand(rateRefreshCmd())
	return rts
}

func rateSetCmd() *cobra.Command {
	var (
		asset string
		rate  int64
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Publish a rate (oracle only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.rates.SetExchangeRate(ctx, caller(), asset, rate)
			})
		},
	}
	cmd.Flags().StringVar(&asset, "asset", "", "asset symbol")
	cmd.Flags().Int64Var(&rate, "rate", 0, "asset units per USD")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}

func rateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached rates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				cached, err := s.rates.Rates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cached)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Asset", "Units per USD", "Updated"})
				for _, r := range cached {
					tw.AppendRow(table.Row{r.Asset, r.UsdRate, r.UpdatedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func rateSetOracleCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "set-oracle",
		Short: "Rotate the oracle account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.rates.SetOracle(ctx, caller(), account)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "new oracle account")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func rateRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one feed scrape now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd.Context(), func(ctx context.Context, s *services) error {
				return s.rates.Refresh(ctx)
			})
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
