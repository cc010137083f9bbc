package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rahul4469/seemenu/internal/models"
	"github.com/rahul4469/seemenu/internal/services"
	"github.com/spf13/cobra"
)

func analyzeCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Upload a menu photo and print the dishes found",
		Long: `Upload a menu photo to the analysis backend and print the result.

Exits with status 1 when the backend could not analyze the menu.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			result, err := opts.analyzer().Upload(cmd.Context(), services.MenuUpload{
				Filename:    filepath.Base(path),
				ContentType: detectContentType(path, data),
				Data:        data,
			})
			if err != nil || result == nil {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "upload failed: %v\n", err)
				}
				result = models.FailureResult()
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), result)
			}

			if !result.Success {
				return errNotAnalyzed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw analysis result as JSON")

	return cmd
}

// detectContentType prefers the file extension and falls back to sniffing.
func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func printResult(w io.Writer, result *models.AnalysisResult) {
	if !result.Success {
		fmt.Fprintf(w, "Error: %s\n", result.Message)
		return
	}

	fmt.Fprintf(w, "Analysis Complete: %s\n", result.Message)
	if !result.HasDishes() {
		return
	}

	fmt.Fprintln(w, "\nDishes Found:")
	for _, d := range result.Dishes {
		fmt.Fprintf(w, "\n  %s\n", d.Name)
		if d.Description != "" {
			fmt.Fprintf(w, "    %s\n", d.Description)
		}
		if d.Price != "" {
			fmt.Fprintf(w, "    Price: %s\n", d.Price)
		}
		if len(d.Ingredients) > 0 {
			fmt.Fprintf(w, "    Ingredients: %s\n", strings.Join(d.Ingredients, ", "))
		}
		if len(d.Allergens) > 0 {
			fmt.Fprintf(w, "    Allergens: %s\n", strings.Join(d.Allergens, ", "))
		}
		if len(d.DietaryInfo) > 0 {
			fmt.Fprintf(w, "    Dietary Info: %s\n", strings.Join(d.DietaryInfo, ", "))
		}
	}
}
