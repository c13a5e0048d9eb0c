package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/tariff/domain"
	"github.com/smallbiznis/covera/internal/tariff/ratetable"
	tariffservice "github.com/smallbiznis/covera/internal/tariff/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newQuoteCommand resolves premiums offline against the rate book, the
// embedded one or RATE_TABLES_DIR/tariffs.yml.
func newQuoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Resolve a premium against the rate book without a database",
	}
	cmd.AddCommand(quoteAutoCommand(), quoteTravelCommand(), quoteAccidentCommand(), quoteHomeCommand())
	return cmd
}

func newTariffs(cmd *cobra.Command) (domain.Service, error) {
	if dir, _ := cmd.Flags().GetString("rate-tables"); dir != "" {
		holder, err := ratetable.NewHolder(config.Config{RateTablesDir: dir}, zap.NewNop())
		if err != nil {
			return nil, err
		}
		return tariffservice.New(tariffservice.Params{Log: zap.NewNop(), Book: holder}), nil
	}
	book, err := ratetable.Default()
	if err != nil {
		return nil, err
	}
	return tariffservice.New(tariffservice.Params{Log: zap.NewNop(), Book: ratetable.NewStaticHolder(book)}), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func quoteAutoCommand() *cobra.Command {
	var (
		power, seats                     int
		energy, model, usage, tariffType string
	)
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Quote the 3, 6 and 12 month auto offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			tariffs, err := newTariffs(cmd)
			if err != nil {
				return err
			}
			if usage == "" {
				if m, err := domain.ParseModelClass(model); err == nil && !m.PublicTransport() {
					usage = string(domain.UsagePrivate)
				}
			}
			req, err := domain.ParseAutoRequest(power, seats, energy, model, usage, tariffType)
			if err != nil {
				return err
			}
			quote, err := tariffs.QuoteAuto(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), quote)
		},
	}
	f := cmd.Flags()
	f.IntVar(&power, "power", 0, "fiscal power in CV")
	f.IntVar(&seats, "seats", 5, "number of seats")
	f.StringVar(&energy, "energy", string(domain.EnergyEssence), "ESSENCE or DIESEL")
	f.StringVar(&model, "model", string(domain.ModelVoiture), "vehicle model class")
	f.StringVar(&usage, "usage", "", "vehicle usage, derived from the model when empty")
	f.StringVar(&tariffType, "tariff-type", domain.TariffNormal, "tariff type")
	f.String("rate-tables", "", "directory holding an override tariffs.yml")
	_ = cmd.MarkFlagRequired("power")
	return cmd
}

func quoteTravelCommand() *cobra.Command {
	var (
		req     domain.TravelRequest
		catalog bool
	)
	cmd := &cobra.Command{
		Use:   "travel",
		Short: "Quote a travel product, or list the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			tariffs, err := newTariffs(cmd)
			if err != nil {
				return err
			}
			if catalog {
				return printJSON(cmd.OutOrStdout(), tariffs.TravelCatalog())
			}
			quote, err := tariffs.QuoteTravel(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), quote)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Category, "category", "", "PARTICULIER, ETUDIANT or PELERIN")
	f.StringVar(&req.Zone, "zone", "", "destination zone")
	f.StringVar(&req.Product, "product", "", "travel product of the zone")
	f.IntVar(&req.Days, "days", 0, "trip length in days")
	f.BoolVar(&catalog, "catalog", false, "print the category, zone and product tree")
	f.String("rate-tables", "", "directory holding an override tariffs.yml")
	return cmd
}

func quoteAccidentCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "accident",
		Short: "Print the individual accident premium",
		RunE: func(cmd *cobra.Command, args []string) error {
			tariffs, err := newTariffs(cmd)
			if err != nil {
				return err
			}
			quote, err := tariffs.QuoteAccident(cmd.Context(), status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), quote)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "professional status")
	cmd.Flags().String("rate-tables", "", "directory holding an override tariffs.yml")
	return cmd
}

func quoteHomeCommand() *cobra.Command {
	var tier string
	cmd := &cobra.Command{
		Use:   "home",
		Short: "Print the home insurance tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			tariffs, err := newTariffs(cmd)
			if err != nil {
				return err
			}
			quote, err := tariffs.QuoteHome(cmd.Context(), tier)
			if err != nil {
				return err
			}
			if quote.Tier == nil {
				return printJSON(cmd.OutOrStdout(), quote)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d FCFA/an, plafond %d FCFA\n",
				quote.Tier.Name, quote.Tier.AnnualPremium, quote.Tier.Coverage)
			return err
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "", "tier code")
	cmd.Flags().String("rate-tables", "", "directory holding an override tariffs.yml")
	return cmd
}
