package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "issuetracker"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage issuetracker configuration.

Running bare 'issuetracker config' is the same as 'issuetracker config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# issuetracker configuration
# See: issuetracker config show (for effective values and sources)

# Directory for the server PID and log files (default: ~/.config/issuetracker)
# state_dir: {{ .StateDir }}

# Port for 'issuetracker serve'
port: {{ .Port }}

# Server used by the issue and mcp commands
api_url: "{{ .APIURL }}"

log:
  # debug, info, warn, error
  level: "{{ .LogLevel }}"
  # console (colored, human) or json
  format: "{{ .LogFormat }}"

cors:
  # "*" allows any origin; an empty list disables CORS headers
  allowed_origins:
{{- range .AllowedOrigins }}
    - "{{ . }}"
{{- end }}

# Per-client request limit, e.g. "100-M" or "10-S"; empty disables
rate_limit: "{{ .RateLimit }}"

# Key the rate limit on X-Forwarded-For / X-Real-IP; only behind a trusted proxy
trust_proxy: {{ .TrustProxy }}

metrics:
  # Expose Prometheus metrics at /metrics
  enabled: {{ .MetricsEnabled }}
`

type configTemplateData struct {
	StateDir       string
	Port           int
	APIURL         string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	RateLimit      string
	TrustProxy     bool
	MetricsEnabled bool
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data := configTemplateData{
		StateDir:       viper.GetString("state_dir"),
		Port:           viper.GetInt("port"),
		APIURL:         viper.GetString("api_url"),
		LogLevel:       viper.GetString("log.level"),
		LogFormat:      viper.GetString("log.format"),
		AllowedOrigins: viper.GetStringSlice("cors.allowed_origins"),
		RateLimit:      viper.GetString("rate_limit"),
		TrustProxy:     viper.GetBool("trust_proxy"),
		MetricsEnabled: viper.GetBool("metrics.enabled"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys lists the keys shown by 'config show', in display order.
var configKeys = []string{
	"state_dir",
	"port",
	"api_url",
	"log.level",
	"log.format",
	"cors.allowed_origins",
	"rate_limit",
	"trust_proxy",
	"metrics.enabled",
}

// envVarFor returns the environment variable that overrides key.
func envVarFor(key string) string {
	return "ISSUETRACKER_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	inFile, err := fileKeys(cfgPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		ui.Info("Config file: (none)")
	case err != nil:
		ui.Warning("Config file %s is unreadable: %v", cfgPath, err)
	default:
		ui.Info("Config file: %s", cfgPath)
	}
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, key := range configKeys {
		if err := table.Append([]string{
			key,
			fmt.Sprint(viper.Get(key)),
			sourceOf(key, inFile),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// fileKeys returns the dotted keys set in the YAML file at path.
func fileKeys(path string) (map[string]bool, error) {
	keys := map[string]bool{}

	data, err := os.ReadFile(path)
	if err != nil {
		return keys, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return keys, err
	}
	if len(doc.Content) > 0 {
		collectKeys(doc.Content[0], "", keys)
	}
	return keys, nil
}

// collectKeys walks a mapping node, recording leaf keys as "a.b.c".
func collectKeys(node *yaml.Node, prefix string, into map[string]bool) {
	if node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		if value := node.Content[i+1]; value.Kind == yaml.MappingNode {
			collectKeys(value, key, into)
		} else {
			into[key] = true
		}
	}
}

// sourceOf reports whether key is set by the environment, the config file or
// a default. Environment wins, as it does in viper.
func sourceOf(key string, inFile map[string]bool) string {
	env := envVarFor(key)
	if _, ok := os.LookupEnv(env); ok {
		return "env " + env
	}
	if inFile[key] {
		return "file"
	}
	return "default"
}

// editorCommand returns the user's editor, preferring $VISUAL.
func editorCommand() (string, error) {
	for _, name := range []string{"VISUAL", "EDITOR"} {
		if editor := strings.TrimSpace(os.Getenv(name)); editor != "" {
			return editor, nil
		}
	}
	return "", errors.New("no editor configured: set $VISUAL or $EDITOR")
}

func configEditRun() error {
	editor, err := editorCommand()
	if err != nil {
		return err
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err != nil {
		return fmt.Errorf("no config file at %s; create one with 'issuetracker config init': %w", cfgPath, err)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %s", editor, cfgPath)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin, editCmd.Stdout, editCmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := editCmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", editor, err)
	}
	return nil
}
