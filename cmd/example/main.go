// Example program driving a chat session with MCP tools.
//
// Usage:
//
//	# One prompt against the provider selected in ~/.yappr/settings.json
//	go run ./cmd/example/ -prompt "What is the weather in Oslo?"
//
//	# Interactive session; MCP config edits apply to the next prompt
//	go run ./cmd/example/
//
//	# Hosted provider, narrated output, tools from a custom config
//	go run ./cmd/example/ -provider openrouter -model "openai/gpt-4o-mini" -mcp-config ./mcp.yaml -narrate
//
//	# Remember a provider and model for later runs
//	go run ./cmd/example/ -provider anthropic -model claude-haiku-4-5 -save
//
//	# List local Ollama models
//	go run ./cmd/example/ -list-models
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/jg-phare/yappr/pkg/agent"
	"github.com/jg-phare/yappr/pkg/config"
	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/mcp"
	"github.com/jg-phare/yappr/pkg/types"
)

func main() {
	settingsPath := flag.String("settings", config.DefaultSettingsPath(), "Path to settings.json")
	mcpConfig := flag.String("mcp-config", "", "MCP server config (overrides settings)")
	providerName := flag.String("provider", "", "Chat provider: ollama, openrouter, anthropic (overrides settings)")
	model := flag.String("model", "", "Model ID (overrides settings)")
	prompt := flag.String("prompt", "", "Prompt to send (empty starts an interactive session)")
	system := flag.String("system", "You are a helpful voice assistant. Keep answers short.", "System prompt")
	noTools := flag.Bool("no-tools", false, "Run without MCP tools")
	exclude := flag.String("exclude-tools", "", "Comma-separated server/tool globs to hide, e.g. github/*")
	narrate := flag.Bool("narrate", false, "Print a speech-friendly narration after each answer")
	listModels := flag.Bool("list-models", false, "List local Ollama models and exit")
	maxTurns := flag.Int("max-turns", 0, "Maximum model turns per prompt (0 = unlimited)")
	save := flag.Bool("save", false, "Persist -provider, -model and -mcp-config to the settings file")
	verbose := flag.Bool("v", false, "Debug logging")
	envFile := flag.String("env", ".env", "Path to .env file (empty to skip)")
	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings, err := config.LoadSettings(ctx, *settingsPath)
	if err != nil {
		fatalf("load settings: %v", err)
	}
	applyFlags := func(s *config.Settings) {
		if *providerName != "" {
			s.ChatProvider = config.ChatProvider(*providerName)
		}
		if *mcpConfig != "" {
			s.MCPConfigPath = *mcpConfig
		}
		if *model != "" {
			switch s.ChatProvider {
			case config.ProviderOpenRouter:
				s.OpenRouterModel = *model
			case config.ProviderAnthropic:
				s.AnthropicModel = *model
			default:
				s.DefaultOllamaModel = *model
			}
		}
	}
	applyFlags(&settings)

	if *save {
		if err := config.SaveSettings(ctx, *settingsPath, applyFlags); err != nil {
			fatalf("save settings: %v", err)
		}
		fmt.Printf("Saved settings to %s\n", config.ExpandPath(*settingsPath))
	}

	if *listModels {
		ollama := llm.NewOllamaProvider(llm.ProviderConfig{BaseURL: settings.OllamaBaseURL, Logger: logger})
		names, err := ollama.ListModels(ctx)
		if err != nil {
			fatalf("list models: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	costs := llm.NewCostTracker()
	provider, err := newProvider(settings, settings.ChatProvider, costs, logger)
	if err != nil {
		fatalf("%v", err)
	}

	var mgrOpts []mcp.Option
	mgrOpts = append(mgrOpts, mcp.WithLogger(logger))
	if *exclude != "" {
		mgrOpts = append(mgrOpts, mcp.WithToolFilter(strings.Split(*exclude, ",")...))
	}
	source := agent.MCPSource(mcp.NewManager(mgrOpts...), settings.MCPConfigPath, printStatuses)

	orch := agent.New(provider,
		agent.WithLogger(logger),
		agent.WithToolSource(source),
		agent.WithMaxTurns(*maxTurns),
	)

	var narrator *agent.Narrator
	if *narrate || settings.UseNarrationForTTS {
		narrator = agent.NewNarrator(provider, settings.EffectiveNarrationModel(), logger)
	}

	fmt.Printf("Provider: %s\n", provider.Name())
	fmt.Printf("Model:    %s\n", settings.ChatModel())
	fmt.Printf("Tools:    %s\n", config.ExpandPath(settings.MCPConfigPath))
	fmt.Println(strings.Repeat("-", 60))

	s := &chatSession{
		orch:     orch,
		narrator: narrator,
		model:    settings.ChatModel(),
		system:   *system,
		tools:    !*noTools,
	}

	if *prompt != "" {
		promptCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		if err := s.ask(promptCtx, *prompt); err != nil {
			os.Exit(1)
		}
		printCost(costs)
		return
	}

	go func() {
		err := config.Watch(ctx, settings.MCPConfigPath, func() {
			logger.Info("mcp config changed, next prompt reconnects", "path", settings.MCPConfigPath)
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("not watching mcp config", "error", err)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		// A cancelled prompt only ends that prompt.
		promptCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		_ = s.ask(promptCtx, line)
		stop()
	}
	printCost(costs)
}

// chatSession keeps history across prompts.
type chatSession struct {
	orch     *agent.Orchestrator
	narrator *agent.Narrator
	model    string
	system   string
	tools    bool
	history  []types.ChatMessage
}

func (s *chatSession) ask(ctx context.Context, prompt string) error {
	out := &turnPrinter{w: os.Stdout}
	res, err := s.orch.Run(ctx, agent.RunRequest{
		Prompt:        prompt,
		PriorMessages: s.history,
		SystemPrompts: []string{s.system},
		Model:         s.model,
		ToolsEnabled:  s.tools,
		OnDelta:       out.delta,
		OnToolCall:    out.tool,
	})
	fmt.Println()

	switch agent.ClassifyFailure(err) {
	case agent.FailureNone:
	case agent.FailureCancelled:
		fmt.Println("(cancelled)")
		return err
	case agent.FailureModelNotFound:
		fmt.Printf("Error: %v\nCheck Settings: chat provider and model.\n", err)
		return err
	default:
		fmt.Printf("Error: %v\n", err)
		return err
	}

	s.history = res.Messages
	if res.ToolsDisabledByFallback {
		fmt.Println("(model does not support tools; answered without them)")
	}
	if !res.HasContent {
		fmt.Println("(no response)")
		return nil
	}

	if s.narrator != nil {
		narration, err := s.narrator.Narrate(ctx, res.Text)
		if err == nil {
			fmt.Printf("[narration] %s\n", narration)
		}
	}
	return nil
}

// turnPrinter echoes streamed text. OnDelta reports each turn's running
// total, so only the unseen suffix is written.
type turnPrinter struct {
	w       io.Writer
	printed int
}

func (p *turnPrinter) delta(text string) {
	if len(text) < p.printed {
		p.printed = 0
		fmt.Fprintln(p.w)
	}
	fmt.Fprint(p.w, text[p.printed:])
	p.printed = len(text)
}

func (p *turnPrinter) tool(name string, phase agent.ToolPhase) {
	if phase != agent.ToolPhaseStart {
		fmt.Fprintf(p.w, "\n[tool %s] %s\n", phase, name)
	}
	// The next turn's total starts from empty.
	if phase == agent.ToolPhaseResult {
		p.printed = 0
	}
}

func newProvider(s config.Settings, name config.ChatProvider, costs *llm.CostTracker, logger *slog.Logger) (llm.Provider, error) {
	switch name {
	case config.ProviderOllama:
		return llm.NewOllamaProvider(llm.ProviderConfig{
			BaseURL:     s.OllamaBaseURL,
			Model:       s.DefaultOllamaModel,
			CostTracker: costs,
			Logger:      logger,
		}), nil
	case config.ProviderOpenRouter:
		if s.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("openrouter: no API key (set openrouterApiKey or OPENROUTER_API_KEY)")
		}
		return llm.NewOpenAIProvider("openrouter", llm.ProviderConfig{
			BaseURL:     s.OpenRouterBaseURL,
			APIKey:      s.OpenRouterAPIKey,
			Model:       s.OpenRouterModel,
			CostTracker: costs,
			Logger:      logger,
		}), nil
	case config.ProviderAnthropic:
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic: no API key (set anthropicApiKey or ANTHROPIC_API_KEY)")
		}
		return llm.NewAnthropicProvider(llm.ProviderConfig{
			APIKey:      s.AnthropicAPIKey,
			Model:       s.AnthropicModel,
			CostTracker: costs,
			Logger:      logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (use: ollama, openrouter, anthropic)", name)
	}
}

func printStatuses(statuses []mcp.ServerStatus) {
	for _, st := range statuses {
		switch st.Outcome {
		case mcp.OutcomeConnected:
			fmt.Printf("[mcp] %s: %d tools via %s\n", st.ID, st.ToolCount, st.Transport)
		default:
			fmt.Printf("[mcp] %s: %s (%s)\n", st.ID, st.Outcome, st.Message)
		}
	}
	if len(statuses) > 0 {
		sum := mcp.Summarize(statuses)
		fmt.Printf("[mcp] %d connected, %d failed, %d skipped, %d tools\n",
			sum.Connected, sum.Failed, sum.Skipped, sum.TotalTools)
	}
}

func printCost(costs *llm.CostTracker) {
	usage := costs.ModelUsage()
	if len(usage) == 0 {
		return
	}
	fmt.Println(strings.Repeat("-", 60))
	for model, mu := range usage {
		fmt.Printf("%s: %d calls, %d input, %d output tokens, $%s\n",
			model, mu.Calls, mu.Usage.InputTokens, mu.Usage.OutputTokens, mu.Cost.StringFixed(6))
	}
	fmt.Printf("Total: $%s\n", costs.TotalCost().StringFixed(6))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// loadEnvFile reads a .env file and sets environment variables (won't overwrite existing).
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}
