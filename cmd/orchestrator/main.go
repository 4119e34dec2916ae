// Command orchestrator wires the full concierge service together and
// exposes a minimal stdin-driven REPL for local manual testing. There
// is no bundled HTTP transport — the orchestrator's Handle method is
// the integration surface; a production deployment puts its own
// transport in front of it.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/concierge/orchestrator/internal/agent"
	"github.com/concierge/orchestrator/internal/agents/calendar"
	"github.com/concierge/orchestrator/internal/agents/email"
	"github.com/concierge/orchestrator/internal/agents/filesummarizer"
	"github.com/concierge/orchestrator/internal/agents/general"
	"github.com/concierge/orchestrator/internal/agents/notes"
	"github.com/concierge/orchestrator/internal/capability"
	"github.com/concierge/orchestrator/internal/clock"
	"github.com/concierge/orchestrator/internal/compiler"
	"github.com/concierge/orchestrator/internal/config"
	"github.com/concierge/orchestrator/internal/llmgateway"
	"github.com/concierge/orchestrator/internal/orchestrator"
	"github.com/concierge/orchestrator/internal/sessionstore"
	"github.com/concierge/orchestrator/internal/telemetry"
	"github.com/concierge/orchestrator/pkg/models"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("concierge orchestrator starting...")

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var shutdownTelemetry func(context.Context) error
	if cfg.Telemetry.Enabled {
		var err error
		shutdownTelemetry, err = telemetry.Init(cfg.Telemetry)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize telemetry")
		}
	}

	store, err := sessionstore.NewFileStore(cfg.SessionStoreRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}

	clk := clock.Real()
	gw := llmgateway.New(llmgateway.StrategyFallback, 8)
	gw.Register(llmgateway.NewMockDriver("offline"))

	mailClient := capability.NewMockMail(clk)
	calendarClient := capability.NewMockCalendar()
	docsClient := capability.NewMockDocs(clk)

	emailAgent := email.New(gw, mailClient, store, clk, cfg.Email)

	registry := agent.NewRegistry(map[models.AgentName]agent.Agent{
		models.AgentCalendar: calendar.New(gw, calendarClient, clk),
		models.AgentNotes:    notes.New(gw, docsClient),
		models.AgentFile:     filesummarizer.New(gw, cfg.FileSummarizer),
		models.AgentEmail:    emailAgent,
		models.AgentGeneral:  general.New(gw, clk),
	})

	comp := compiler.New(gw)
	orch := orchestrator.New(gw, registry, store, comp, cfg.Timeouts)

	janitor := email.NewJanitor(store, clk, 10*time.Minute, cfg.Email.ApprovalTimeout, cfg.Email.DraftRetentionDays, emailAgent.Locks())
	go janitor.Run(ctx)

	log.Info().Msg("concierge orchestrator ready — type a request, or Ctrl-D to exit")
	sessionID := uuid.NewString()
	runREPL(ctx, orch, sessionID)

	log.Info().Msg("shutting down...")
	if shutdownTelemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown error")
		}
	}
}

func runREPL(ctx context.Context, orch *orchestrator.Orchestrator, sessionID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		reqCtx, cancel := context.WithTimeout(ctx, 300*time.Second)
		resp, err := orch.Handle(reqCtx, orchestrator.Request{
			SessionID:       sessionID,
			UserRequest:     line,
			ThirdPartyToken: "local-dev-token",
		})
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(resp.Text)
		if resp.DraftCreated != nil {
			fmt.Printf("[draft created: %s]\n", resp.DraftCreated.ID)
		}
	}
}
