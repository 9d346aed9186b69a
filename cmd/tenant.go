package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/realty-ai/internal/model"
)

var (
	tenantID       string
	tenantProvider string
	tenantAPIKey   string
	tenantModel    string
	tenantEndpoint string
	tenantOutput   string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage per-tenant provider settings",
}

var tenantSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save a tenant's provider settings",
	Example: `  realty-ai tenant set --tenant acme --provider anthropic --api-key "$ANTHROPIC_API_KEY"
  realty-ai tenant set --tenant lab --provider custom --api-key none --endpoint http://localhost:11434/v1 --model llama3.1:8b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		settings := &model.TenantSettings{
			TenantID: tenantID,
			Provider: model.ProviderKind(tenantProvider),
			APIKey:   tenantAPIKey,
			Model:    tenantModel,
			Endpoint: tenantEndpoint,
		}
		if err := env.Engine.SaveSettings(cmd.Context(), settings); err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), tenantOutput, settings.Redacted())
	},
}

var tenantGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a tenant's provider settings with the key redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		settings, err := env.Engine.Settings(cmd.Context(), tenantID)
		if err != nil {
			return err
		}
		if settings == nil {
			return eris.Errorf("no provider settings for tenant %q", tenantID)
		}
		return writeOutput(cmd.OutOrStdout(), tenantOutput, settings.Redacted())
	},
}

func init() {
	for _, c := range []*cobra.Command{tenantSetCmd, tenantGetCmd} {
		c.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
		c.Flags().StringVarP(&tenantOutput, "output", "o", "yaml", "output format: json or yaml")
		_ = c.MarkFlagRequired("tenant")
	}
	tenantSetCmd.Flags().StringVar(&tenantProvider, "provider", "", "openai, anthropic, google or custom")
	tenantSetCmd.Flags().StringVar(&tenantAPIKey, "api-key", "", "provider API key")
	tenantSetCmd.Flags().StringVar(&tenantModel, "model", "", "model override")
	tenantSetCmd.Flags().StringVar(&tenantEndpoint, "endpoint", "", "base URL, required for custom")
	_ = tenantSetCmd.MarkFlagRequired("provider")

	tenantCmd.AddCommand(tenantSetCmd, tenantGetCmd)
	rootCmd.AddCommand(tenantCmd)
}
