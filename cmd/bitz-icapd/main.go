// Command bitz-icapd is the ICAP daemon's entry point. It re-execs itself
// to implement the pre-fork worker pool (see the manager package doc
// comment): the same binary runs as the manager when BITZ_ICAPD_WORKER is
// unset, and as a single worker — inheriting the bound listener on fd 3 —
// when a child sees it set. Flag/config wiring follows
// ppomes-TokenShield/cli/main.go's cobra+viper rootCmd shape.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitz-icapd/icapd/handler"
	"github.com/bitz-icapd/icapd/icap"
	"github.com/bitz-icapd/icapd/internal/buildinfo"
	"github.com/bitz-icapd/icapd/internal/config"
	"github.com/bitz-icapd/icapd/internal/daemon"
	"github.com/bitz-icapd/icapd/internal/logging"
	"github.com/bitz-icapd/icapd/internal/sockio"
	"github.com/bitz-icapd/icapd/manager"
	"github.com/bitz-icapd/icapd/modifier"
	"github.com/bitz-icapd/icapd/modifiers/audit"
	"github.com/bitz-icapd/icapd/modifiers/echo"
	"github.com/bitz-icapd/icapd/modifiers/stub"
	"github.com/bitz-icapd/icapd/worker"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "bitz-icapd",
	Short: "bitz-icapd is a pre-fork ICAP (RFC 3507) server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(buildinfo.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./bitz-icapd.yaml, /etc/bitz-icapd, or $HOME)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches to runWorker or runManager depending on whether this
// process was re-exec'd by a manager with the listener already bound.
func run() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	}
	logger := logging.New(os.Stderr, cfg.LogCategory, level)

	if os.Getenv(manager.WorkerSentinelEnv) == "1" {
		return runWorker(cfg, logger)
	}
	return runManager(cfg, logger)
}

// runWorker is what a re-exec'd child runs: it inherits the manager's
// bound listener on fd 3 and serves connections until MaxRequests is
// reached, then exits cleanly so the manager respawns it.
func runWorker(cfg config.Config, logger *logging.Logger) error {
	lf := os.NewFile(3, "listener")
	if lf == nil {
		return fmt.Errorf("worker: no inherited listener on fd 3")
	}
	ln, err := sockio.FromListenerFD(lf)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	h, err := buildHandler(cfg)
	if err != nil {
		return err
	}

	w := worker.New(ln, h, worker.Config{
		MaxRequests:    cfg.MaxRequests,
		ReadTimeout:    time.Duration(cfg.ReadTimeoutSec) * time.Second,
		MaxHeaderBytes: icap.DefaultMaxHeaderBytes,
		ISTag:          buildinfo.ISTag(),
		Logger:         logger.StdLogger(),
	})

	logger.Infof("worker pid=%d serving, max_requests=%d", os.Getpid(), cfg.MaxRequests)
	return w.Serve()
}

// runManager binds the listen socket, acquires the pid file, and hands
// both to a manager.Manager that keeps cfg.Children worker processes
// alive until a termination signal arrives.
func runManager(cfg config.Config, logger *logging.Logger) error {
	pf, err := daemon.AcquirePIDFile(cfg.PIDFile)
	if err != nil {
		return err
	}
	defer pf.Release()

	if err := daemon.Chdir(cfg.RunDir); err != nil {
		return fmt.Errorf("manager: chdir %s: %w", cfg.RunDir, err)
	}

	ln, err := sockio.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("manager: listen: %w", err)
	}
	defer ln.Close()

	fd, err := ln.File()
	if err != nil {
		return fmt.Errorf("manager: extracting listener fd: %w", err)
	}
	defer fd.Close()

	var extraArgs []string
	if cfgFile != "" {
		extraArgs = append(extraArgs, "--config", cfgFile)
	}
	if debug {
		extraArgs = append(extraArgs, "--debug")
	}

	m := manager.New(fd, extraArgs, manager.Config{
		Children: cfg.Children,
		Logger:   logger.StdLogger(),
	})

	logger.Infof("bitz-icapd %s listening on %s, children=%d", buildinfo.Version, ln.Addr(), cfg.Children)
	return m.Run()
}

// buildHandler wires the registry named by cfg.Handlers against the
// statically linked modifiers resolveModifiers knows about, and returns
// the Handler a worker serves connections through.
func buildHandler(cfg config.Config) (*handler.Handler, error) {
	reg := modifier.NewRegistry()

	reqmodMods, err := resolveModifiers(cfg.Handlers.Reqmod, cfg.Audit)
	if err != nil {
		return nil, err
	}
	for _, m := range reqmodMods {
		reg.Register(string(icap.MethodReqmod), "/reqmod", m)
	}

	respmodMods, err := resolveModifiers(cfg.Handlers.Respmod, cfg.Audit)
	if err != nil {
		return nil, err
	}
	for _, m := range respmodMods {
		reg.Register(string(icap.MethodRespmod), "/respmod", m)
	}

	return handler.New(reg, modifier.DefaultOptionsConfig(), buildinfo.ServerToken()), nil
}

// resolveModifiers maps a configured module name to the statically linked
// Modifier that implements it. "" registers nothing for that method.
// auditCfg is only consulted for the "audit" module, which needs a MySQL
// connection and Fernet key to construct.
func resolveModifiers(name string, auditCfg config.AuditConfig) ([]modifier.Modifier, error) {
	switch name {
	case "":
		return nil, nil
	case "echo":
		return []modifier.Modifier{echo.New("echo")}, nil
	case "stub":
		return []modifier.Modifier{stub.New("stub")}, nil
	case "audit":
		a, err := audit.New("audit", audit.Config{
			DBHost:        auditCfg.DBHost,
			DBUser:        auditCfg.DBUser,
			DBPass:        auditCfg.DBPass,
			DBName:        auditCfg.DBName,
			EncryptionKey: auditCfg.EncryptionKey,
			Table:         auditCfg.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("config: building audit modifier: %w", err)
		}
		return []modifier.Modifier{a}, nil
	default:
		return nil, fmt.Errorf("config: unknown handler module %q", name)
	}
}
