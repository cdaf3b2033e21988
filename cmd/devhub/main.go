package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	liblog "trpc.group/trpc-go/trpc-a2a-go/log"

	"github.com/tuannvm/devhub/internal/agents"
	"github.com/tuannvm/devhub/internal/chatsearch"
	"github.com/tuannvm/devhub/internal/common"
	"github.com/tuannvm/devhub/internal/config"
	"github.com/tuannvm/devhub/internal/confluence"
	"github.com/tuannvm/devhub/internal/dashboard"
	"github.com/tuannvm/devhub/internal/github"
	"github.com/tuannvm/devhub/internal/jira"
	"github.com/tuannvm/devhub/internal/knowledge"
	"github.com/tuannvm/devhub/internal/llm"
	"github.com/tuannvm/devhub/internal/logging"
	"github.com/tuannvm/devhub/internal/metrics"
	"github.com/tuannvm/devhub/internal/review"
	"github.com/tuannvm/devhub/internal/search"
	"github.com/tuannvm/devhub/internal/ticket"
	"github.com/tuannvm/devhub/internal/triage"
	"github.com/tuannvm/devhub/internal/websearch"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "devhub",
		Short:         "Developer productivity hub agent",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath, logLevel string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard A2A agent and the ops server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			logger, err := logging.New(cfg.Log.Level)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			logging.SetDefault(logger)
			// Route tRPC-A2A-Go internal logs through the app logger
			liblog.Default = logger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	issues, err := jira.NewClient(cfg.Atlassian, jira.WithLogger(logger))
	if err != nil {
		return err
	}
	wiki, err := confluence.NewClient(cfg.Atlassian, confluence.WithLogger(logger))
	if err != nil {
		return err
	}
	model, err := llm.NewClient(ctx, cfg.LLM, llm.WithLogger(logger))
	if err != nil {
		return err
	}

	deps := search.Deps{
		Wiki:       wiki,
		Issues:     issues,
		LLM:        model,
		SpaceKey:   cfg.Atlassian.SpaceKey,
		ProjectKey: cfg.Atlassian.ProjectKey,
		Log:        logger,
	}
	if web := websearch.NewClient(cfg.Serper, websearch.WithLogger(logger)); web.Enabled() {
		deps.Web = web
	} else {
		logger.Infof("Serper API key not set, web search disabled")
	}
	if chat := chatsearch.NewClient(cfg.Teams, chatsearch.WithLogger(logger)); chat.Enabled() {
		deps.Chat = chat
	} else {
		logger.Infof("Teams credentials not set, chat search disabled")
	}

	generator := ticket.NewGenerator(model,
		ticket.WithResources(&ticket.ResourceFinder{
			Wiki:       wiki,
			Issues:     issues,
			SpaceKey:   cfg.Atlassian.SpaceKey,
			ProjectKey: cfg.Atlassian.ProjectKey,
			Log:        logger,
		}),
		ticket.WithLogger(logger),
	)
	creator := ticket.NewCreator(issues,
		ticket.WithPages(wiki, cfg.Atlassian.SpaceID, cfg.Atlassian.ParentPageID),
		ticket.WithCreatorLogger(logger),
	)

	opts := []agents.Option{
		agents.WithTickets(generator, ticket.OptionsFromConfig(cfg.Ticket)),
		agents.WithCreator(creator, ticket.CreateOptions{
			ProjectKey:            cfg.Atlassian.ProjectKey,
			CreateConfluencePages: cfg.Atlassian.SpaceID != "",
		}),
		agents.WithSearchSources(search.DefaultSources(deps)),
		agents.WithKnowledge(&knowledge.Searcher{Wiki: wiki, Issues: issues, LLM: model, Log: logger}),
		agents.WithErrorSearch(&triage.Searcher{Wiki: wiki, Issues: issues, LLM: model, Log: logger}),
		agents.WithErrorAnalyzer(&triage.Analyzer{
			LLM:        model,
			Issues:     issues,
			ProjectKey: cfg.Atlassian.ProjectKey,
			Log:        logger,
		}),
		agents.WithLogger(logger),
	}
	if gh, err := github.NewClient(cfg.GitHub, github.WithLogger(logger)); err == nil {
		opts = append(opts, agents.WithReviewer(review.NewReviewer(gh, model, review.WithLogger(logger))))
	} else {
		logger.Infof("PR review disabled: %v", err)
	}

	srv, err := common.SetupServer(common.SetupServerOptions{
		AgentName:    cfg.Agent.Name,
		AgentVersion: cfg.Agent.Version,
		AgentURL:     cfg.Agent.URL,
		Description:  "Routes ticket drafting, knowledge search, PR review and error triage requests",
		Processor:    agents.NewDashboardAgent(opts...),
	})
	if err != nil {
		return err
	}

	ops := common.NewOpsRouter(reg, common.OpsRoute{
		Pattern: "/api/dashboard",
		Handler: dashboard.NewHandler(&dashboard.StatsService{
			Issues:     issues,
			ProjectKey: cfg.Atlassian.ProjectKey,
			Log:        logger,
		}),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return common.StartServer(ctx, srv, cfg.Server.Host, cfg.Server.Port)
	})
	g.Go(func() error {
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MetricsPort))
		return common.StartOpsServer(ctx, addr, ops)
	})
	return g.Wait()
}
