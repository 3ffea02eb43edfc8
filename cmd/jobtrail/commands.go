package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/jobtrail/internal/config"
	"github.com/kalambet/jobtrail/internal/profile"
	"github.com/kalambet/jobtrail/internal/storage"
)

// --- parse ---

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse a job posting without creating a job",
	Long: `Parse a job posting without creating a job.

Examples:
  jobtrail parse --url https://example.com/careers/42
  jobtrail parse --text "$(pbpaste)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		text, _ := cmd.Flags().GetString("text")

		if (url == "") == (text == "") {
			return fmt.Errorf("exactly one of --url or --text is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{}
		if url != "" {
			req["url"] = url
		} else {
			req["text"] = text
		}

		resp, err := client.post(cmd.Context(), "/api/parse-job", req)
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	parseCmd.Flags().String("url", "", "job posting URL to fetch and parse")
	parseCmd.Flags().String("text", "", "pasted job posting text")
}

// --- jobs ---

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage tracked job applications",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/jobs")
		if err != nil {
			return err
		}

		var jobs []struct {
			ID              string `json:"id"`
			CompanyName     string `json:"company_name"`
			PositionTitle   string `json:"position_title"`
			Status          string `json:"status"`
			MatchPercentage int    `json:"match_percentage"`
		}
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No jobs tracked yet.")
			return nil
		}

		for _, j := range jobs {
			company := j.CompanyName
			if company == "" {
				company = "(extracting...)"
			}
			fmt.Printf("%s  %-16s %3d%%  %s - %s\n",
				colorize(colorCyan, j.ID[:8]),
				j.Status,
				j.MatchPercentage,
				company,
				j.PositionTitle,
			)
		}
		return nil
	},
}

var jobsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a job and queue its document pipeline",
	Long: `Add a job and queue its document pipeline.

Examples:
  jobtrail jobs add --url https://example.com/careers/42
  jobtrail jobs add --text "$(pbpaste)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		text, _ := cmd.Flags().GetString("text")

		if (url == "") == (text == "") {
			return fmt.Errorf("exactly one of --url or --text is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{}
		if url != "" {
			req["url"] = url
		} else {
			req["text"] = text
		}

		resp, err := client.post(cmd.Context(), "/api/jobs", req)
		if err != nil {
			return err
		}

		var job struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		printSuccess("Created job %s; pipeline queued", job.ID)
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single job as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/jobs/"+args[0])
		if err != nil {
			return err
		}

		var job any
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var jobsRegenerateCmd = &cobra.Command{
	Use:   "regenerate <id>",
	Short: "Queue a document regeneration with feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, _ := cmd.Flags().GetString("type")
		feedback, _ := cmd.Flags().GetString("feedback")

		if docType != "cv" && docType != "cover_letter" {
			return fmt.Errorf("--type must be cv or cover_letter")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]string{
			"document_type": docType,
			"feedback":      feedback,
		}
		resp, err := client.post(cmd.Context(), "/api/jobs/"+args[0]+"/regenerate", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Regeneration queued (task %s)", result["task_id"])
		return nil
	},
}

func init() {
	jobsAddCmd.Flags().String("url", "", "job posting URL")
	jobsAddCmd.Flags().String("text", "", "pasted job posting text")
	jobsRegenerateCmd.Flags().String("type", "cv", "document type: cv or cover_letter")
	jobsRegenerateCmd.Flags().String("feedback", "", "feedback to steer the rewrite")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsRegenerateCmd)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the candidate profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/profile")
		if err != nil {
			return err
		}

		var prof any
		if err := decodeJSON(resp, &prof); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(prof)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field",
	Long: `Set a profile field by dot-notation key.

Examples:
  jobtrail profile set identity.name "Jane Doe"
  jobtrail profile set summary "Backend engineer, 10 years of Go"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		version, err := currentProfileVersion(cmd, client)
		if err != nil {
			return err
		}

		body := map[string]any{
			"expected_version": version,
			"updates":          map[string]string{key: value},
		}
		resp, err := client.patch(cmd.Context(), "/api/profile", body)
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var profileImportCmd = &cobra.Command{
	Use:   "import <resume.pdf>",
	Short: "Import resume text from a PDF into the profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Imports write to the store directly so they work while the
		// server is down.
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		mgr := profile.NewManager(store)
		version, err := store.ProfileVersion()
		if err != nil {
			return err
		}

		next, err := mgr.ImportResume(args[0], version)
		if err != nil {
			return err
		}

		printSuccess("Resume imported (profile version %d)", next)
		return nil
	},
}

func currentProfileVersion(cmd *cobra.Command, client *apiClient) (int, error) {
	resp, err := client.get(cmd.Context(), "/api/profile")
	if err != nil {
		return 0, err
	}
	var prof struct {
		Version int `json:"version"`
	}
	if err := decodeJSON(resp, &prof); err != nil {
		return 0, err
	}
	return prof.Version, nil
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileImportCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			if strings.Contains(err.Error(), "unknown config key") {
				printWarning("Valid keys: %s", strings.Join(config.ValidKeys(), ", "))
			}
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
