package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fentz26/taskman/internal/api"
	"github.com/fentz26/taskman/internal/config"
	"github.com/fentz26/taskman/internal/taskstore"
	"github.com/fentz26/taskman/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive TUI",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	client := api.NewClient(cfg.APIURL, cfg.Timeout)

	// 1. Make sure a server is reachable, starting a local one if needed
	if !isServerRunning(client) {
		listen, ok := localListenAddr(cfg.APIURL)
		if !ok {
			return fmt.Errorf("taskman server not reachable at %s", cfg.APIURL)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "⚡ taskman server not running. Starting background service...")
		if err := startServer(cmd, client, listen); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	// 2. Log to a file so output does not corrupt the alt screen
	tuiLog, closeLog, err := openTUILog()
	if err != nil {
		return err
	}
	defer closeLog()

	// 3. Launch TUI
	store := taskstore.New(client, taskstore.WithLogger(tuiLog))
	app := tui.New(store, tui.WithLogger(tuiLog), tui.WithEndpoint(client.BaseURL()))
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func openTUILog() (*slog.Logger, func(), error) {
	path := config.ExpandHome(filepath.Join("~", config.Dir, "tui.log"))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	l := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return l, func() { f.Close() }, nil
}

func isServerRunning(client *api.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := client.CheckHealth(ctx)
	return err == nil
}

// localListenAddr returns the listen address for apiURL when it points at
// this machine.
func localListenAddr(apiURL string) (string, bool) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			return "", false
		}
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(host, port), true
}

func startServer(cmd *cobra.Command, client *api.Client, listen string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	serverArgs := []string{"serve", "--listen", listen}
	if configPath != "" {
		serverArgs = append(serverArgs, "--config", configPath)
	}
	proc := exec.Command(exe, serverArgs...)
	// Detach process so it survives TUI exit
	configureServerProc(proc)
	proc.Stdin = nil
	proc.Stdout = nil
	proc.Stderr = nil

	if err := proc.Start(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, "   Waiting for server...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isServerRunning(client) {
			fmt.Fprintln(out, " Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Fprint(out, ".")
	}
	fmt.Fprintln(out, " Timeout!")
	return fmt.Errorf("server started but API not reachable at %s", client.BaseURL())
}
