package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"skirmish.ai/internal/bridge"
	"skirmish.ai/internal/config"
	"skirmish.ai/internal/persistence/infodb"
	"skirmish.ai/internal/protocol"
	"skirmish.ai/internal/replay"
	"skirmish.ai/internal/session"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/session.yaml", "session config path")
		exe        = flag.String("exe", "", "sim executable override")
		mode       = flag.String("mode", "", "game mode override")
		speed      = flag.Float64("speed", 0, "time scale override")
		draft      = flag.Bool("draft", false, "enable drafting")
		render     = flag.Bool("render", false, "run the sim with rendering (not dedicated)")
		dataDir    = flag.String("data", "", "runtime data directory override")
		bridgeAddr = flag.String("bridge", "", "bridge websocket listen address override")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[env] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load config: %v", err)
		}
		logger.Printf("config not found (%s); using defaults", *configPath)
	}
	if *exe != "" {
		cfg.Executable = *exe
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *speed > 0 {
		cfg.TimeScale = *speed
	}
	if *draft {
		cfg.Draft = true
	}
	if *render {
		cfg.Dedicated = false
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if strings.TrimSpace(*bridgeAddr) != "" {
		cfg.BridgeListen = strings.TrimSpace(*bridgeAddr)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	sessionID := uuid.NewString()

	var sink *infodb.SQLiteSink
	if cfg.InfoDBPath != "" {
		sink, err = infodb.OpenSQLite(cfg.InfoDBPath, sessionID)
		if err != nil {
			logger.Fatalf("open info db: %v", err)
		}
		defer sink.Close()
	}

	trace := replay.NewWriter(cfg.DataDir, sessionID)
	orc := session.New(cfg, sessionID, logger, session.Collaborators{Info: sink}, trace)

	if cfg.BridgeListen != "" {
		srv := newBridgeServer(cfg.BridgeListen, orc, logger)
		defer srv.Close()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Printf("signal received, stopping session")
		orc.RequestStop()
	}()

	if err := orc.Start(); err != nil {
		logger.Fatalf("start session: %v", err)
	}
	defer orc.Stop()

	orc.WaitEndSetup()
	orc.WaitEndDraft()
	logger.Printf("entering play loop (deadline %s)", orc.Deadline())

	// The decision layer lives outside this module; empty batches keep the
	// protocol cycle honest and let the sim's own scripts idle.
	steps := 0
	for {
		done, err := orc.Advance(protocol.NewBatch())
		if err != nil {
			logger.Printf("advance: %v", err)
		}
		if done {
			break
		}
		steps++
		if steps%100 == 0 {
			logger.Printf("step %d avg=%s perf=%+v", steps, orc.StepAverage(), orc.Performance())
		}
	}

	logger.Printf("session finished after %d steps, replay at %s",
		steps, filepath.Clean(trace.Path()))
}

func newBridgeServer(addr string, orc *session.Orchestrator, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/bridge", bridge.NewServer(orc.Bridge(), logger).Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Printf("bridge listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("bridge server: %v", err)
		}
	}()
	return srv
}
