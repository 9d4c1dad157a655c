package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *client) request(method, path string, body any) (int, []byte, error) {
	var buf *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.baseURL+path, buf)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

type profile struct {
	BaseURL  string `yaml:"baseUrl"`
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	Model    string `yaml:"model"`
	Provider string `yaml:"provider"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".geoscope", "config.yaml"), nil
}

func loadConfig() (cliConfig, string, error) {
	var cfg cliConfig
	path, err := configPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, path, nil
		}
		return cfg, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfile(name string, cfg cliConfig) (string, profile) {
	if name == "" {
		name = cfg.CurrentProfile
	}
	if name == "" {
		name = "default"
	}
	return name, cfg.Profiles[name]
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func maskToken(t string) string {
	if t == "" {
		return "<unset>"
	}
	if len(t) <= 8 {
		return "****"
	}
	return t[:4] + "..." + t[len(t)-4:]
}

func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		return strings.TrimSpace(string(b)), err
	}
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPrompts loads prompts from a file: CSV files use the first column
// (skipping a "prompt" header row), anything else is one prompt per line.
func readPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		rd := csv.NewReader(f)
		rd.FieldsPerRecord = -1
		rows, err := rd.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		var prompts []string
		for i, row := range rows {
			if len(row) == 0 {
				continue
			}
			cell := strings.TrimSpace(row[0])
			if cell == "" {
				continue
			}
			if i == 0 && strings.EqualFold(cell, "prompt") {
				continue
			}
			prompts = append(prompts, cell)
		}
		return prompts, nil
	}

	var prompts []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	return prompts, sc.Err()
}

type launchedResp struct {
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	TotalPrompts int    `json:"totalPrompts"`
}

type progressResp struct {
	Status         string  `json:"status"`
	ProcessedCount int     `json:"processedCount"`
	TotalCount     int     `json:"totalCount"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

func main() {
	baseURL := getenv("GEOSCOPE_BASE_URL", "http://localhost:8080")
	token := getenv("GEOSCOPE_TOKEN", "")
	profileName := getenv("GEOSCOPE_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "geoscope",
		Short: "geoscope CLI",
		Long:  "geoscope CLI for launching brand visibility analyses and fetching reports.",
	}
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&baseURL, "base-url", baseURL, "Base URL for the geoscope API")
	root.PersistentFlags().StringVar(&token, "token", token, "API bearer token")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg, _, _ := loadConfig()
		_, prof := resolveProfile(profileName, cfg)
		flags := cmd.Flags()
		if !flags.Changed("base-url") && os.Getenv("GEOSCOPE_BASE_URL") == "" && prof.BaseURL != "" {
			baseURL = prof.BaseURL
		}
		if !flags.Changed("token") && os.Getenv("GEOSCOPE_TOKEN") == "" && prof.Token != "" {
			token = prof.Token
		}
	}

	root.AddCommand(
		initCmd(&baseURL, &profileName, ui),
		runCmd(&baseURL, &token, &profileName, ui),
		statusCmd(&baseURL, &token, ui),
		reportCmd(&baseURL, &token, ui),
		exportCmd(&baseURL, &token, ui),
		cancelCmd(&baseURL, &token, ui),
		listCmd(&baseURL, &token, ui),
		testCmd(&baseURL, &token, &profileName, ui),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.err("[ERROR]"), err)
		os.Exit(1)
	}
}

func initCmd(baseURL, profileName *string, ui *ui) *cobra.Command {
	var endpoint, model, providerKind string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or update a profile in ~/.geoscope/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			name, prof := resolveProfile(*profileName, cfg)

			prof.BaseURL = *baseURL
			if endpoint != "" {
				prof.Endpoint = endpoint
			}
			if model != "" {
				prof.Model = model
			}
			if providerKind != "" {
				prof.Provider = providerKind
			}

			tok, err := readSecret("API token (server bearer token): ")
			if err != nil {
				return err
			}
			if tok != "" {
				prof.Token = tok
			}
			key, err := readSecret("Provider API key (stored locally, sent per request): ")
			if err != nil {
				return err
			}
			if key != "" {
				prof.APIKey = key
			}

			if cfg.Profiles == nil {
				cfg.Profiles = map[string]profile{}
			}
			cfg.Profiles[name] = prof
			cfg.CurrentProfile = name
			if err := saveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Printf("%s Profile '%s' saved to %s\n", ui.ok("[OK]"), name, path)
			fmt.Printf("%s Token: %s  API key: %s\n", ui.dim("•"), maskToken(prof.Token), maskToken(prof.APIKey))
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Default provider endpoint URL")
	cmd.Flags().StringVar(&model, "model", "", "Default model")
	cmd.Flags().StringVar(&providerKind, "provider", "", "Provider kind: openai|anthropic|xedu|generic")
	return cmd
}

func runCmd(baseURL, token, profileName *string, ui *ui) *cobra.Command {
	var (
		name         string
		promptsFile  string
		prompts      []string
		brands       []string
		domains      []string
		endpoint     string
		apiKey       string
		model        string
		providerKind string
		concurrency  int
		delayMs      int
		webhook      string
		watch        bool
		strict       bool
	)

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Launch a batch analysis",
		Example: `  geoscope run --prompts-file prompts.csv --brand Acme --domain acme.com --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _ := loadConfig()
			_, prof := resolveProfile(*profileName, cfg)

			if promptsFile != "" {
				fromFile, err := readPrompts(promptsFile)
				if err != nil {
					return err
				}
				prompts = append(prompts, fromFile...)
			}
			if len(prompts) == 0 {
				return errors.New("no prompts (use --prompt or --prompts-file)")
			}
			if len(brands) == 0 && len(domains) == 0 {
				return errors.New("at least one --brand or --domain is required")
			}

			if endpoint == "" {
				endpoint = prof.Endpoint
			}
			if endpoint == "" {
				return errors.New("endpoint is required (flag --endpoint or `geoscope init`)")
			}
			if apiKey == "" {
				apiKey = prof.APIKey
			}
			if model == "" {
				model = prof.Model
			}
			if providerKind == "" {
				providerKind = prof.Provider
			}

			body := map[string]any{
				"name":     name,
				"prompts":  prompts,
				"brands":   brands,
				"domains":  domains,
				"endpoint": endpoint,
				"apiKey":   apiKey,
			}
			if model != "" {
				body["model"] = model
			}
			if providerKind != "" {
				body["providerKind"] = providerKind
			}
			if strict {
				body["strictExtract"] = true
			}
			if concurrency > 0 {
				body["concurrency"] = concurrency
			}
			if cmd.Flags().Changed("delay-ms") {
				body["requestDelayMs"] = delayMs
			}
			if webhook != "" {
				body["webhook"] = webhook
			}

			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = fmt.Sprintf(" Launching analysis (%d prompts)...", len(prompts))
			spin.Start()
			status, resp, err := c.request("POST", "/v1/geoscope/analyses", body)
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out launchedResp
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			fmt.Printf("%s Analysis launched: %s (%d prompts)\n", ui.ok("[OK]"), out.TaskID, out.TotalPrompts)

			if !watch {
				fmt.Printf("%s Poll with: geoscope status %s\n", ui.dim("•"), out.TaskID)
				return nil
			}
			return watchProgress(c, out.TaskID, ui)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Analysis name")
	cmd.Flags().StringVar(&promptsFile, "prompts-file", "", "Prompts file (.csv first column, else one per line)")
	cmd.Flags().StringArrayVar(&prompts, "prompt", nil, "Prompt (repeatable)")
	cmd.Flags().StringArrayVar(&brands, "brand", nil, "Brand name to track (repeatable)")
	cmd.Flags().StringArrayVar(&domains, "domain", nil, "Domain to track (repeatable)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Provider endpoint URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Provider API key")
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringVar(&providerKind, "provider", "", "Provider kind: openai|anthropic|xedu|generic")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent requests (server default if 0)")
	cmd.Flags().IntVar(&delayMs, "delay-ms", 0, "Delay between requests per slot, in ms")
	cmd.Flags().StringVar(&webhook, "webhook", "", "Completion webhook URL")
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch progress until the analysis finishes")
	cmd.Flags().BoolVar(&strict, "strict-extract", false, "Fail items whose response shape is unrecognized")
	return cmd
}

func watchProgress(c *client, taskID string, ui *ui) error {
	var bar *progressbar.ProgressBar
	for {
		status, resp, err := c.request("GET", "/v1/geoscope/analyses/"+url.PathEscape(taskID)+"/progress", nil)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("error (%d): %s", status, string(resp))
		}
		var p progressResp
		if err := json.Unmarshal(resp, &p); err != nil {
			return err
		}
		if bar == nil && p.TotalCount > 0 {
			bar = progressbar.NewOptions(p.TotalCount,
				progressbar.OptionSetDescription("Analyzing"),
				progressbar.OptionSetWidth(24),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		if bar != nil {
			_ = bar.Set(p.ProcessedCount)
		}
		switch p.Status {
		case "COMPLETED":
			fmt.Printf("%s Completed in %.1fs. Fetch with: geoscope report %s\n", ui.ok("[OK]"), p.ElapsedSeconds, taskID)
			return nil
		case "FAILED", "CANCELED":
			fmt.Printf("%s Finished with status %s\n", ui.warn("[WARN]"), p.Status)
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func statusCmd(baseURL, token *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show progress for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching progress..."
			spin.Start()
			status, resp, err := c.request("GET", "/v1/geoscope/analyses/"+url.PathEscape(args[0])+"/progress", nil)
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var p progressResp
			if err := json.Unmarshal(resp, &p); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			fmt.Printf("%s %s  %d/%d  %.1fs elapsed\n", ui.info("•"), p.Status, p.ProcessedCount, p.TotalCount, p.ElapsedSeconds)
			return nil
		},
	}
}

func reportCmd(baseURL, token *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "report <id>",
		Short: "Fetch the JSON report for a finished analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching report..."
			spin.Start()
			status, resp, err := c.request("GET", "/v1/geoscope/analyses/"+url.PathEscape(args[0])+"/report", nil)
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, resp, "", "  "); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			fmt.Println(pretty.String())
			return nil
		},
	}
}

func exportCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download the CSV export for a finished analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			status, resp, err := c.request("GET", "/v1/geoscope/analyses/"+url.PathEscape(args[0])+"/export", nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			if outPath == "" || outPath == "-" {
				_, err = os.Stdout.Write(resp)
				return err
			}
			if err := os.WriteFile(outPath, resp, 0o644); err != nil {
				return err
			}
			fmt.Printf("%s Export written to %s\n", ui.ok("[OK]"), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func cancelCmd(baseURL, token *string, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			status, resp, err := c.request("POST", "/v1/geoscope/analyses/"+url.PathEscape(args[0])+"/cancel", nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			fmt.Printf("%s Analysis canceled. The partial report stays available.\n", ui.ok("[OK]"))
			return nil
		},
	}
}

func listCmd(baseURL, token *string, ui *ui) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			status, resp, err := c.request("GET", fmt.Sprintf("/v1/geoscope/analyses?limit=%d", limit), nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("error (%d): %s", status, string(resp))
			}
			var out struct {
				Analyses []struct {
					ID           string `json:"id"`
					Name         string `json:"name"`
					Status       string `json:"status"`
					TotalPrompts int    `json:"totalPrompts"`
					CreatedAt    string `json:"createdAt"`
				} `json:"analyses"`
			}
			if err := json.Unmarshal(resp, &out); err != nil {
				fmt.Println(string(resp))
				return nil
			}
			if len(out.Analyses) == 0 {
				fmt.Printf("%s No analyses yet.\n", ui.dim("•"))
				return nil
			}
			fmt.Println(ui.title(fmt.Sprintf("Analyses (%d)", len(out.Analyses))))
			for _, a := range out.Analyses {
				name := a.Name
				if name == "" {
					name = ui.dim("<unnamed>")
				}
				fmt.Printf("%s %s  %-9s  %3d prompts  %s  %s\n", ui.info("•"), a.ID, a.Status, a.TotalPrompts, a.CreatedAt, name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of analyses to list")
	return cmd
}

func testCmd(baseURL, token, profileName *string, ui *ui) *cobra.Command {
	var endpoint, apiKey, model, providerKind string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test provider connectivity and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _ := loadConfig()
			_, prof := resolveProfile(*profileName, cfg)
			if endpoint == "" {
				endpoint = prof.Endpoint
			}
			if apiKey == "" {
				apiKey = prof.APIKey
			}
			if model == "" {
				model = prof.Model
			}
			if providerKind == "" {
				providerKind = prof.Provider
			}
			if endpoint == "" {
				return errors.New("endpoint is required")
			}
			if apiKey == "" {
				var err error
				apiKey, err = readSecret("Provider API key: ")
				if err != nil {
					return err
				}
			}

			c := newClient(*baseURL, *token)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Testing provider..."
			spin.Start()
			status, resp, err := c.request("POST", "/v1/geoscope/providers/test", map[string]any{
				"endpoint":     endpoint,
				"apiKey":       apiKey,
				"model":        model,
				"providerKind": providerKind,
			})
			spin.Stop()
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("provider test failed (%d): %s", status, string(resp))
			}
			var out struct {
				Sample string `json:"sample"`
			}
			_ = json.Unmarshal(resp, &out)
			fmt.Printf("%s Provider reachable. Sample: %s\n", ui.ok("[OK]"), ui.dim(out.Sample))
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Provider endpoint URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Provider API key")
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringVar(&providerKind, "provider", "", "Provider kind: openai|anthropic|xedu|generic")
	return cmd
}
