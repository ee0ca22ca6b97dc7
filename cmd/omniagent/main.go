package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"

	"omniagent/pkg/agent"
	"omniagent/pkg/agent/middleware/metrics"
	"omniagent/pkg/config"
	"omniagent/pkg/dispatch"
	"omniagent/pkg/hub"
	"omniagent/pkg/logx"
	"omniagent/pkg/persistence"
	"omniagent/pkg/planner"
	"omniagent/pkg/version"
	"omniagent/pkg/video"
	"omniagent/pkg/webui"
)

// EnvPassword supplies the secrets-file password without a prompt.
const EnvPassword = "OMNIAGENT_PASSWORD"

func main() {
	var (
		projectDir  = flag.String("projectdir", ".", "Project directory")
		serve       = flag.Bool("serve", false, "Run the HTTP API instead of the interactive prompt")
		host        = flag.String("host", "", "HTTP listen host (default from config)")
		port        = flag.Int("port", 0, "HTTP listen port (default from config)")
		storeKey    = flag.String("store-key", "", "Prompt for a credential (e.g. GEMINI_API_KEY) and save it to the encrypted secrets file")
		tee         = flag.Bool("tee", false, "Output logs to both console and file (default: file only)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	logsDir := filepath.Join(*projectDir, config.ProjectConfigDir, "logs")
	if err := logx.SetOutputFile(logsDir, *tee); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize log file: %v\n", err)
		os.Exit(1)
	}

	exitCode := run(*projectDir, *serve, *host, *port, *storeKey)

	if closeErr := logx.CloseLogFile(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", closeErr)
	}
	os.Exit(exitCode)
}

// run contains the main application logic and returns an exit code, so that
// deferred cleanup runs before os.Exit.
func run(projectDir string, serve bool, host string, port int, storeKey string) int {
	if err := config.LoadConfig(projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if storeKey != "" {
		if err := storeCredential(projectDir, storeKey); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to store credential: %v\n", err)
			return 1
		}
		return 0
	}
	if err := handleSecretsDecryption(projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to handle secrets: %v\n", err)
		return 1
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get config: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, projectDir, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		return 1
	}
	defer app.close()

	if serve {
		if host == "" {
			host = cfg.Server.Host
		}
		if port == 0 {
			port = cfg.Server.Port
		}
		server := webui.NewServer(app.machine, app.runSource(), app.registry)
		if err := server.StartServer(ctx, host, port); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
			return 1
		}
		fmt.Printf("🌐 OmniAgent API listening on http://%s:%d\n", host, port)
		<-ctx.Done()
		return 0
	}

	r := newREPL(app.machine, os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app holds the wired components for one process lifetime.
type app struct {
	machine  *hub.Machine
	ledger   *persistence.Ledger
	registry *prometheus.Registry
	logger   *logx.Logger
}

func newApp(ctx context.Context, projectDir string, cfg *config.Config) (*app, error) {
	a := &app{
		registry: prometheus.NewRegistry(),
		logger:   logx.NewLogger("omniagent"),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var recorder metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(a.registry)
	}
	clients, err := agent.NewLLMClientFactory(*cfg, recorder).CreateClients()
	if err != nil {
		return nil, fmt.Errorf("failed to create model clients: %w", err)
	}

	resolver := dispatch.NewResolver(clients, video.NewFromConfig(cfg),
		dispatch.WithGenerationDefaults(cfg.LLM.MaxTokens, cfg.LLM.Temperature))
	plans := planner.New(clients.Reasoning, cfg.LLM.MaxTokens, cfg.LLM.Temperature)

	opts := []hub.Option{hub.WithRegisterer(a.registry)}
	if cfg.Ledger.Enabled {
		ledger, err := persistence.Open(cfg.LedgerPath(projectDir))
		if err != nil {
			return nil, err
		}
		a.ledger = ledger
		opts = append(opts, hub.WithLedger(ledger))
	}
	a.machine = hub.New(plans, resolver, opts...)

	if a.ledger != nil {
		snapshot, _ := json.Marshal(cfg)
		if err := a.ledger.StartSession(ctx, a.machine.SessionID(), string(snapshot)); err != nil {
			a.logger.Warn("Failed to start ledger session: %v", err)
		}
	}
	a.logger.Info("🚀 OmniAgent %s started (session %s)", version.Version, a.machine.SessionID())
	return a, nil
}

// runSource avoids handing webui a typed-nil ledger.
func (a *app) runSource() webui.RunSource {
	if a.ledger == nil {
		return nil
	}
	return a.ledger
}

func (a *app) close() {
	if a.ledger == nil {
		return
	}
	if err := a.ledger.EndSession(context.Background(), a.machine.SessionID(), persistence.SessionStatusShutdown); err != nil {
		a.logger.Warn("Failed to end ledger session: %v", err)
	}
	if err := a.ledger.Close(); err != nil {
		a.logger.Warn("%v", err)
	}
}

// handleSecretsDecryption loads the encrypted secrets file into memory when
// one exists, taking the password from the environment or a terminal prompt.
func handleSecretsDecryption(projectDir string) error {
	if !config.SecretsFileExists(projectDir) {
		return nil
	}
	password, err := readPassword("Enter the OmniAgent secrets password: ")
	if err != nil {
		return err
	}
	secrets, err := config.DecryptSecretsFile(projectDir, password)
	if err != nil {
		return err
	}
	config.SetDecryptedSecrets(secrets)
	logx.Infof("🔐 Loaded %d secret(s) from %s", len(secrets), config.ProjectConfigDir)
	return nil
}

// storeCredential prompts for one credential and merges it into the secrets file.
func storeCredential(projectDir, name string) error {
	name = strings.TrimSpace(name)
	password, err := readPassword("Enter the OmniAgent secrets password: ")
	if err != nil {
		return err
	}
	secrets := map[string]string{}
	if config.SecretsFileExists(projectDir) {
		if secrets, err = config.DecryptSecretsFile(projectDir, password); err != nil {
			return err
		}
	}
	value, err := readPassword(fmt.Sprintf("Value for %s: ", name))
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("empty value for %s", name)
	}
	secrets[name] = value
	if err := config.EncryptSecretsFile(projectDir, password, secrets); err != nil {
		return err
	}
	fmt.Printf("✅ %s saved to %s (file permissions: 0600)\n", name, filepath.Join(config.ProjectConfigDir, "secrets.json.enc"))
	return nil
}

func readPassword(prompt string) (string, error) {
	if pw := os.Getenv(EnvPassword); pw != "" {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for password prompt; set %s", EnvPassword)
	}
	fmt.Print(prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
