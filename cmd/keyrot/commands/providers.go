package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/keyrot/internal/config"
	"github.com/systmms/keyrot/internal/identity"
	"github.com/systmms/keyrot/internal/secretstores"
)

func NewProvidersCommand(cfg *config.Config) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List identity providers and secret stores",
		Long: `Display the built-in identity provider and secret store types, plus the
instances configured in keyrot.yaml.

With --check, each configured instance is validated against its backend
(credentials present, API reachable).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cfg.Logger
			identityRegistry := identity.NewRegistry(logger)
			storeRegistry := secretstores.NewRegistry(logger)

			fmt.Println("Identity Provider Types:")
			fmt.Println("=======================")
			printTypes(identityRegistry.Types(), identityProviderDescription)

			fmt.Println("\nSecret Store Types:")
			fmt.Println("==================")
			printTypes(storeRegistry.Types(), secretStoreDescription)

			// Show configured instances if config is available
			if err := cfg.Load(); err != nil || cfg.Definition == nil {
				return nil
			}

			ctx := context.Background()
			if check {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
			}

			fmt.Println("\nConfigured Identity Providers:")
			fmt.Println("=============================")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tTYPE\tSTATUS\n")
			_, _ = fmt.Fprintf(w, "----\t----\t------\n")
			for _, name := range sortedKeys(cfg.Definition.IdentityProviders) {
				providerCfg := cfg.Definition.IdentityProviders[name]
				status := "configured"
				if check {
					instance, err := identityRegistry.Create(name, providerCfg.Type, providerCfg.Config)
					if err == nil {
						err = instance.Validate(ctx)
					}
					status = checkStatus(err)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, providerCfg.Type, status)
			}
			_ = w.Flush()

			fmt.Println("\nConfigured Secret Stores:")
			fmt.Println("========================")
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tTYPE\tSTATUS\n")
			_, _ = fmt.Fprintf(w, "----\t----\t------\n")
			for _, name := range sortedKeys(cfg.Definition.SecretStores) {
				storeCfg := cfg.Definition.SecretStores[name]
				status := "configured"
				if check {
					instance, err := storeRegistry.Create(name, storeCfg.Type, storeCfg.Config)
					if err == nil {
						err = instance.Validate(ctx)
					}
					status = checkStatus(err)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", name, storeCfg.Type, status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Validate configured instances against their backends")

	return cmd
}

func printTypes(types []string, describe func(string) string) {
	sort.Strings(types)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "TYPE\tDESCRIPTION\n")
	_, _ = fmt.Fprintf(w, "----\t-----------\n")
	for _, t := range types {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", t, describe(t))
	}
	_ = w.Flush()
}

func checkStatus(err error) string {
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// identityProviderDescription returns a description for an identity provider type
func identityProviderDescription(providerType string) string {
	descriptions := map[string]string{
		"aws.iam": "AWS IAM user access keys via SDK",
		"static":  "In-memory credentials for testing and development",
	}
	if desc, exists := descriptions[providerType]; exists {
		return desc
	}
	return "No description available"
}

// secretStoreDescription returns a description for a secret store type
func secretStoreDescription(storeType string) string {
	descriptions := map[string]string{
		"aws.secretsmanager": "AWS Secrets Manager via SDK",
		"aws.ssm":            "AWS Systems Manager Parameter Store (SecureString)",
		"gcp.secretmanager":  "Google Cloud Secret Manager",
		"azure.keyvault":     "Azure Key Vault",
		"vault":              "HashiCorp Vault KV v2",
		"keyring":            "OS native keychain (macOS Keychain, Linux Secret Service)",
	}
	if desc, exists := descriptions[storeType]; exists {
		return desc
	}
	return "No description available"
}
