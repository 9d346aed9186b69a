package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/realty-ai/internal/model"
)

const defaultTenant = "cli"

var (
	valuateFile      string
	valuateTenant    string
	valuateOutput    string
	valuateLocation  string
	valuateArea      float64
	valuateType      string
	valuateBedrooms  int
	valuateBathrooms int
	valuateYearBuilt int
	valuateAmenities []string
	valuateMarket    string
	valuateCurrency  string
)

var valuateCmd = &cobra.Command{
	Use:   "valuate",
	Short: "Estimate the market value of a single property",
	Example: `  realty-ai valuate --location "Miami Beach, Florida" --area 1450 --type apartment \
    --bedrooms 3 --bathrooms 2 --market miami
  realty-ai valuate --file property.yaml --output yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := valuationRequest(cmd)
		if err != nil {
			return err
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Engine.Valuate(cmd.Context(), valuateTenant, req)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), valuateOutput, res)
	},
}

// valuationRequest builds the request from --file, with any explicitly set
// flags applied on top.
func valuationRequest(cmd *cobra.Command) (model.ValuationRequest, error) {
	req := model.ValuationRequest{Currency: valuateCurrency}
	if valuateFile != "" {
		if err := readRequestFile(valuateFile, &req); err != nil {
			return req, err
		}
		if req.Currency == "" {
			req.Currency = valuateCurrency
		}
	}

	flags := cmd.Flags()
	if flags.Changed("location") {
		req.Location = valuateLocation
	}
	if flags.Changed("area") {
		req.AreaSqFt = valuateArea
	}
	if flags.Changed("type") {
		req.PropertyType = valuateType
	}
	if flags.Changed("bedrooms") {
		req.Bedrooms = &valuateBedrooms
	}
	if flags.Changed("bathrooms") {
		req.Bathrooms = &valuateBathrooms
	}
	if flags.Changed("year-built") {
		req.YearBuilt = &valuateYearBuilt
	}
	if flags.Changed("amenities") {
		req.Amenities = valuateAmenities
	}
	if flags.Changed("market") {
		req.Market = valuateMarket
	}
	if flags.Changed("currency") {
		req.Currency = valuateCurrency
	}
	return req, nil
}

func init() {
	f := valuateCmd.Flags()
	f.StringVar(&valuateFile, "file", "", "JSON or YAML file holding the valuation request")
	f.StringVar(&valuateTenant, "tenant", defaultTenant, "tenant whose provider settings to use")
	f.StringVarP(&valuateOutput, "output", "o", "json", "output format: json or yaml")
	f.StringVar(&valuateLocation, "location", "", "property location")
	f.Float64Var(&valuateArea, "area", 0, "living area in square feet")
	f.StringVar(&valuateType, "type", "", "property type (apartment, house, ...)")
	f.IntVar(&valuateBedrooms, "bedrooms", 0, "number of bedrooms")
	f.IntVar(&valuateBathrooms, "bathrooms", 0, "number of bathrooms")
	f.IntVar(&valuateYearBuilt, "year-built", 0, "construction year")
	f.StringSliceVar(&valuateAmenities, "amenities", nil, "comma-separated amenities")
	f.StringVar(&valuateMarket, "market", "", "market identifier")
	f.StringVar(&valuateCurrency, "currency", "USD", "ISO-4217 currency code")
	rootCmd.AddCommand(valuateCmd)
}
