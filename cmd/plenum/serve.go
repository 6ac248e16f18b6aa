package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plenum-ai/plenum"
	"github.com/plenum-ai/plenum/internal/log"
	"github.com/plenum-ai/plenum/model/agent"
	sessiondao "github.com/plenum-ai/plenum/service/dao/session"
	"github.com/plenum-ai/plenum/service/provider/anthropic"
	"github.com/plenum-ai/plenum/tracing"
)

var (
	teamsDir    string
	sessionsDB  string
	traceOutput string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the streaming server",
	Long: `Start the WebSocket streaming server and the background worker pool.

Team rosters are loaded from YAML files in the teams directory; each file
defines one team. Requires ANTHROPIC_API_KEY. Sessions are held in memory
unless a SQLite path is given.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&teamsDir, "teams", "teams", "Directory of team roster YAML files")
	serveCmd.Flags().StringVar(&sessionsDB, "sessions", "", "SQLite database path for session persistence")
	serveCmd.Flags().StringVar(&traceOutput, "trace", "", "File to write trace spans to")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.GetLogger()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if traceOutput != "" {
		if err := tracing.Init("plenum", version, traceOutput); err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
	}

	llm, err := anthropic.New(anthropic.Config{})
	if err != nil {
		return err
	}
	teams, err := loadTeams(teamsDir)
	if err != nil {
		return err
	}

	options := []plenum.Option{
		plenum.WithConfig(cfg),
		plenum.WithProvider(llm),
		plenum.WithTeams(teams...),
	}
	if sessionsDB != "" {
		sessions, err := sessiondao.OpenSQLite(sessionsDB)
		if err != nil {
			return fmt.Errorf("open sessions db: %w", err)
		}
		defer sessions.Close()
		options = append(options, plenum.WithSessionDAO(sessions))
	}

	srv, err := plenum.New(options...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Shutdown()

	logger.WithField("addr", cfg.Server.Addr).Info("serving")
	return srv.Serve(ctx)
}

// loadTeams reads every YAML roster in dir.
func loadTeams(dir string) ([]*agent.Team, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading teams directory %s: %w", dir, err)
	}
	var teams []*agent.Team
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		team, err := agent.DecodeTeam(data)
		if err != nil {
			return nil, fmt.Errorf("team %s: %w", entry.Name(), err)
		}
		teams = append(teams, team)
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("no team rosters found in %s", dir)
	}
	return teams, nil
}
