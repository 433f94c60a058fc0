package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deskmate/deskmate/internal/cache"
	"github.com/deskmate/deskmate/internal/calendar"
	"github.com/deskmate/deskmate/internal/config"
	"github.com/deskmate/deskmate/internal/engine"
	"github.com/deskmate/deskmate/internal/metering"
	"github.com/deskmate/deskmate/internal/models"
	"github.com/deskmate/deskmate/internal/playbook"
	"github.com/deskmate/deskmate/internal/provider"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config YAML")
	profilePath := flag.String("profile", "", "path to agent profile YAML")
	flag.Parse()

	printBanner()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logger)

	profile, err := loadProfile(*profilePath)
	if err != nil {
		fmt.Printf("❌ Profile error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	store, err := openCache(cfg)
	if err != nil {
		fmt.Printf("❌ Cache error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	meter := metering.NewMeter(cfg.Metering.Capacity)

	var opts []engine.Option
	if cfg.Metering.AuditEnabled {
		journal, err := metering.NewJournal(cfg.Metering.AuditPath)
		if err != nil {
			fmt.Printf("❌ Audit journal error: %v\n", err)
			os.Exit(1)
		}
		defer journal.Close()
		opts = append(opts, engine.WithJournal(journal))
	}

	client := provider.NewClient(cfg.ProviderConfig(), logger)
	var chat provider.ChatClient = provider.NewBreaker(client, provider.DefaultBreakerConfig(), logger)
	chat = provider.NewRateLimited(chat, cfg.Provider.RequestsPerMinute)
	opts = append(opts, engine.WithAssistants(client))

	registry := engine.NewRegistry()
	if err := registerTools(registry, cfg, profile); err != nil {
		fmt.Printf("❌ Tool setup error: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(chat, store, meter, registry, cfg.EngineConfig(), logger, opts...)
	instructions := playbook.CompileAll(profile).String()

	fmt.Printf("✓ Profile loaded: %s (%s, %s)\n", profile.Name, profile.Role, profile.Sector)
	fmt.Printf("✓ Tools enabled: %s\n", enabledTools(registry, profile))
	fmt.Printf("✓ Cache backend: %s | Model: %s\n\n", cfg.Cache.Backend, cfg.Engine.DefaultModel)
	fmt.Println("Type a message, or /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	history := []models.Message{}

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			handleCommand(input, &history, eng, instructions)
			continue
		}

		fmt.Println()
		started := time.Now()

		result, err := eng.Converse(ctx, engine.ConverseRequest{
			Profile:      profile,
			Instructions: instructions,
			History:      history,
			UserMessage:  input,
		})
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			continue
		}
		history = append(history, result.Messages...)

		fmt.Printf("%s: %s\n", profile.Name, result.Reply)

		elapsed := time.Since(started)
		marker := ""
		if result.CacheHit {
			marker = " | ⚡ cached"
		}
		if len(result.ToolResults) > 0 {
			marker += fmt.Sprintf(" | 🔧 %d tool calls", len(result.ToolResults))
		}
		fmt.Printf("⏱ %.2fs | 📝 %d tokens%s\n\n", elapsed.Seconds(), result.Usage.TotalTokens, marker)
	}
}

func loadProfile(path string) (models.AgentProfile, error) {
	var profile models.AgentProfile
	if path == "" {
		return models.AgentProfile{}, fmt.Errorf("a profile is required (-profile path/to/profile.yaml)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return profile, err
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse profile: %w", err)
	}
	if profile.Name == "" {
		return profile, fmt.Errorf("profile is missing a name")
	}
	return profile, nil
}

func openCache(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "badger":
		return cache.NewBadgerStore(cfg.Cache.Path)
	case "redis":
		return cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	default:
		return cache.NewMemoryStore(time.Minute), nil
	}
}

func registerTools(registry *engine.Registry, cfg *config.Config, profile models.AgentProfile) error {
	loc := time.UTC
	if profile.Timezone != "" {
		parsed, err := time.LoadLocation(profile.Timezone)
		if err != nil {
			return fmt.Errorf("invalid profile timezone %q: %w", profile.Timezone, err)
		}
		loc = parsed
	}

	var backend calendar.Backend
	if cfg.Calendar.Backend == "rest" {
		backend = calendar.NewRESTBackend(cfg.Calendar.BaseURL, cfg.Calendar.Token, time.Duration(cfg.Calendar.Timeout))
	} else {
		backend = calendar.NewMemoryBackend()
	}

	handlers := []engine.Handler{
		calendar.NewAvailabilityHandler(backend, loc),
		calendar.NewCreateEventHandler(backend, loc),
		engine.NewFAQHandler(profile.FAQ),
		engine.NewLeadCaptureHandler(engine.NewMemoryLeadStore()),
	}
	if cfg.Search.BaseURL != "" {
		search := engine.NewRESTSearchBackend(cfg.Search.BaseURL, cfg.Search.APIKey, time.Duration(cfg.Search.Timeout))
		handlers = append(handlers, engine.NewWebSearchHandler(search))
	}

	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return err
		}
	}
	return nil
}

func enabledTools(registry *engine.Registry, profile models.AgentProfile) string {
	schemas := registry.SchemasFor(profile)
	if len(schemas) == 0 {
		return "none"
	}
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func handleCommand(cmd string, history *[]models.Message, eng *engine.Engine, instructions string) {
	switch strings.Fields(cmd)[0] {
	case "/help":
		fmt.Println("\nCommands: /help /playbook /history /stats /clear /exit")
		fmt.Println()
	case "/playbook":
		fmt.Println("\n=== Compiled Playbook ===")
		fmt.Println(instructions)
		fmt.Println()
	case "/history":
		if len(*history) == 0 {
			fmt.Println("\nNo history")
			fmt.Println()
			return
		}
		fmt.Println("\n=== History ===")
		for i, msg := range *history {
			fmt.Printf("%d. %s: %s\n", i+1, msg.Role, truncate(msg.Content, 60))
		}
		fmt.Println()
	case "/stats":
		stats := eng.Stats(time.Hour)
		fmt.Printf("\nRequests (last hour): %d\n", stats.TotalRequests)
		fmt.Printf("Tokens: %d | Cost: $%.4f\n", stats.TotalTokens, stats.TotalCostUSD)
		fmt.Printf("Cache hit rate: %.0f%%\n", stats.CacheHitRate*100)
		for model, ms := range stats.ByModel {
			fmt.Printf("  • %s: %d calls, %d tokens\n", model, ms.Requests, ms.Tokens)
		}
		fmt.Println()
	case "/clear", "/new":
		*history = []models.Message{}
		fmt.Println("✓ Conversation cleared")
		fmt.Println()
	case "/exit", "/quit":
		fmt.Println("Goodbye! 👋")
		os.Exit(0)
	default:
		fmt.Println("Unknown command. Try /help")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func printBanner() {
	fmt.Printf(`
╔═════════════════════════════════════════════════════════╗
║              DeskMate Digital Employee %s            ║
║         Playbook-driven assistants for business         ║
╚═════════════════════════════════════════════════════════╝

`, version)
}
