package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rahul4469/seemenu/internal/config"
	"github.com/rahul4469/seemenu/internal/services"
	"github.com/spf13/cobra"
)

// errNotAnalyzed is returned when the backend answered success=false or
// could not be reached. The message has already been printed.
var errNotAnalyzed = errors.New("menu was not analyzed")

type rootOptions struct {
	apiURL  string
	timeout time.Duration
}

func (o *rootOptions) analyzer() *services.MenuAnalyzer {
	return services.NewMenuAnalyzer(strings.TrimRight(o.apiURL, "/"), o.timeout)
}

func main() {
	// .env is optional here too
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errNotAnalyzed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "seemenu",
		Short: "Analyze restaurant menu photos from the command line",
		Long: `seemenu sends a menu photo to the SeeMenu analysis backend and prints
the dishes it found, with prices, ingredients, allergens and dietary info.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = config.DefaultAPIURL
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", apiURL, "Base URL of the menu analysis backend")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "Request timeout")

	rootCmd.AddCommand(
		analyzeCmd(opts),
		healthCmd(opts),
	)

	return rootCmd
}
