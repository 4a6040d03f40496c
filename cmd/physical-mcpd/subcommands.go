package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/technosupport/physical-mcp/internal/auditstore"
	"github.com/technosupport/physical-mcp/internal/config"
	"github.com/technosupport/physical-mcp/internal/discover"
	"github.com/technosupport/physical-mcp/internal/friendlyerr"
	"github.com/technosupport/physical-mcp/internal/platform/paths"
	"github.com/technosupport/physical-mcp/internal/rules"
)

// lanIP returns this machine's LAN address via the UDP-connect trick:
// no packet is actually sent, it just forces the OS to pick a route.
func lanIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// printQRCode renders url as a terminal QR code, best-effort.
func printQRCode(url string) {
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return
	}
	fmt.Println(qr.ToString(false))
}

func autostartPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "LaunchAgents", "com.physical-mcp.daemon.plist")
	case "linux":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "systemd", "user", "physical-mcpd.service")
	default:
		return ""
	}
}

func isAutostartInstalled() bool {
	p := autostartPath()
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// installAutostart registers physical-mcpd as a user service that
// starts on login: a launchd agent on macOS, a systemd user unit on
// Linux. Other platforms are not supported.
func installAutostart() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	switch runtime.GOOS {
	case "darwin":
		plist := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key><string>com.physical-mcp.daemon</string>
	<key>ProgramArguments</key><array><string>%s</string></array>
	<key>RunAtLoad</key><true/>
	<key>KeepAlive</key><true/>
</dict>
</plist>
`, exe)
		path := autostartPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(plist), 0o644); err != nil {
			return err
		}
		return exec.Command("launchctl", "load", path).Run()

	case "linux":
		unit := fmt.Sprintf(`[Unit]
Description=physical-mcp ambient perception daemon

[Service]
ExecStart=%s
Restart=on-failure

[Install]
WantedBy=default.target
`, exe)
		path := autostartPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(unit), 0o644); err != nil {
			return err
		}
		_ = exec.Command("systemctl", "--user", "daemon-reload").Run()
		return exec.Command("systemctl", "--user", "enable", "--now", "physical-mcpd").Run()

	default:
		return fmt.Errorf("autostart is not supported on %s", runtime.GOOS)
	}
}

func uninstallAutostart() error {
	switch runtime.GOOS {
	case "darwin":
		path := autostartPath()
		_ = exec.Command("launchctl", "unload", path).Run()
		return os.Remove(path)
	case "linux":
		_ = exec.Command("systemctl", "--user", "disable", "--now", "physical-mcpd").Run()
		return os.Remove(autostartPath())
	default:
		return fmt.Errorf("autostart is not supported on %s", runtime.GOOS)
	}
}

// runSetup writes a minimal working config.yaml: USB camera 0, local
// notifications, stdio transport so a desktop MCP client can spawn the
// daemon directly. Provider/notification tuning is left to hand-editing
// the file or the dashboard's settings panel.
func runSetup(configPathOverride string) int {
	path := paths.ResolveConfigPath(configPathOverride)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		fmt.Println("Delete it first if you want to regenerate, or edit it directly.")
		return exitOK
	}

	cfg := config.Default()
	fmt.Println("physical-mcpd setup")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("Writing a starter configuration with one USB camera (index 0).")
	fmt.Println("Edit it afterward to add RTSP/MJPEG cameras, a vision provider,")
	fmt.Println("or push notifications.")

	if err := config.Save(cfg, path); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
		return exitGeneric
	}

	fmt.Printf("\nConfig saved to %s\n", path)
	fmt.Println("Run 'physical-mcpd' to start the daemon, or 'physical-mcpd install' to run it on login.")
	return exitOK
}

func runInstall() int {
	if err := installAutostart(); err != nil {
		fmt.Fprintf(os.Stderr, "could not install background service: %v\n", err)
		return exitGeneric
	}
	fmt.Println("physical-mcpd installed as a background service.")
	fmt.Println("It will start automatically on login.")
	if ip := lanIP(); ip != "" {
		url := fmt.Sprintf("http://%s:8400/mcp", ip)
		fmt.Printf("\nConnect your AI app to: %s\n\n", url)
		printQRCode(url)
	}
	return exitOK
}

func runUninstall() int {
	if err := uninstallAutostart(); err != nil {
		fmt.Fprintf(os.Stderr, "no background service found to remove: %v\n", err)
		return exitGeneric
	}
	fmt.Println("Background service removed.")
	return exitOK
}

var cloudflareURLPattern = regexp.MustCompile(`https://[a-zA-Z0-9.-]+trycloudflare\.com`)

// runTunnel exposes the VisionAPI over HTTPS for clients that can't
// reach a LAN address directly (ChatGPT GPT Actions, phones off-WiFi):
// it shells out to cloudflared if present, falling back to the ngrok
// CLI binary.
func runTunnel() int {
	const port = 8090

	if path, err := exec.LookPath("cloudflared"); err == nil {
		return runCloudflaredTunnel(path, port)
	}
	if path, err := exec.LookPath("ngrok"); err == nil {
		return runNgrokTunnel(path, port)
	}

	fmt.Println("Neither cloudflared nor ngrok were found on PATH.")
	fmt.Println("Install Cloudflare Tunnel: https://developers.cloudflare.com/cloudflare-one/connections/connect-networks/downloads/")
	fmt.Println("Or install ngrok: https://ngrok.com/download")
	return exitGeneric
}

func runCloudflaredTunnel(binPath string, port int) int {
	fmt.Printf("Starting Cloudflare tunnel to http://localhost:%d...\n", port)
	cmd := exec.Command(binPath, "tunnel", "--url", fmt.Sprintf("http://localhost:%d", port))
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start cloudflared: %v\n", err)
		return exitGeneric
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "could not start cloudflared: %v\n", err)
		return exitGeneric
	}

	scanner := bufio.NewScanner(stdout)
	deadline := time.Now().Add(20 * time.Second)
	var publicURL string
	for scanner.Scan() {
		if m := cloudflareURLPattern.FindString(scanner.Text()); m != "" {
			publicURL = m
			break
		}
		if time.Now().After(deadline) {
			break
		}
	}

	if publicURL == "" {
		fmt.Fprintln(os.Stderr, "could not detect Cloudflare public URL from tunnel output")
		_ = cmd.Process.Kill()
		return exitGeneric
	}

	fmt.Printf("\n  Public URL: %s\n", publicURL)
	fmt.Println("\nUse this as the GPT Action server URL.")
	fmt.Println("Press Ctrl+C to stop the tunnel.")
	printQRCode(publicURL)

	_ = cmd.Wait()
	return exitOK
}

func runNgrokTunnel(binPath string, port int) int {
	fmt.Printf("Starting ngrok HTTPS tunnel to localhost:%d...\n", port)
	cmd := exec.Command(binPath, "http", fmt.Sprintf("%d", port))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ngrok exited: %v\n", err)
		return exitGeneric
	}
	return exitOK
}

func runStatus(configPathOverride string) int {
	fmt.Println("physical-mcpd status")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	path := paths.ResolveConfigPath(configPathOverride)
	if _, err := os.Stat(path); err != nil {
		fmt.Println("Config:   not set up yet (run 'physical-mcpd setup')")
		return exitOK
	}
	fmt.Printf("Config:   %s\n", path)

	if isAutostartInstalled() {
		fmt.Println("Service:  installed (starts on login)")
	} else {
		fmt.Println("Service:  not installed (run 'physical-mcpd install' to start on login)")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not parse config: %v\n", err)
		return exitConfigError
	}

	if cfg.Server.Transport == "streamable-http" {
		fmt.Printf("\nLocal:    http://127.0.0.1:%d/mcp\n", cfg.Server.Port)
		if ip := lanIP(); ip != "" {
			phoneURL := fmt.Sprintf("http://%s:%d/mcp", ip, cfg.Server.Port)
			fmt.Printf("Phone:    %s\n", phoneURL)
			printQRCode(phoneURL)
		}
	} else {
		fmt.Println("\nMode:     stdio (spawned by a desktop MCP client)")
	}

	fmt.Printf("Cameras:  %d configured\n", len(cfg.Cameras))
	return exitOK
}

func runCameras(configPathOverride string) int {
	path := paths.ResolveConfigPath(configPathOverride)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		return exitConfigError
	}

	if len(cfg.Cameras) == 0 {
		fmt.Println("No cameras configured. Run 'physical-mcpd setup' or 'physical-mcpd discover'.")
		return exitOK
	}

	fmt.Printf("%d camera(s) configured:\n", len(cfg.Cameras))
	for _, c := range cfg.Cameras {
		status := "disabled"
		if c.Enabled {
			status = "enabled"
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		fmt.Printf("  %-16s %-10s %-10s %s\n", c.ID, c.Type, status, name)
	}
	return exitOK
}

// runDiscoverCmd scans the LAN for ONVIF/RTSP cameras via WS-Discovery
// and suggests a camera.Config for each one found.
func runDiscoverCmd() int {
	fmt.Println("Scanning for cameras (5s)...")

	scanner, err := discover.NewScanner()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start scanner: %v\n", err)
		return exitGeneric
	}
	defer scanner.Close()

	found, err := scanner.Scan(context.Background(), 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return exitGeneric
	}

	if len(found) == 0 {
		fmt.Println("\nNo cameras found.")
		fmt.Println("Tips:")
		fmt.Println("  - Make sure cameras are on the same network")
		fmt.Println("  - Some cameras only respond to ONVIF probes, not mDNS")
		return exitOK
	}

	fmt.Printf("\nFound %d camera(s):\n\n", len(found))
	fmt.Printf("%-18s %-30s\n", "Address", "Suggested URL")
	fmt.Println(strings.Repeat("-", 60))
	probeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for i, f := range found {
		f = discover.Probe(probeCtx, f)
		suggestion := f.Suggest(fmt.Sprintf("discovered:%d", i))
		url := suggestion.URL
		if url == "" {
			url = suggestion.StreamURL
		}
		fmt.Printf("%-18s %-30s\n", f.IPAddress, url)
	}
	fmt.Println("\nAdd a discovered camera to config.yaml's cameras: list to use it.")
	return exitOK
}

func runDoctor(configPathOverride string) int {
	type check struct {
		name   string
		ok     bool
		detail string
	}
	var checks []check

	checks = append(checks, check{"Platform", true, fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)})

	path := paths.ResolveConfigPath(configPathOverride)
	if _, err := os.Stat(path); err != nil {
		checks = append(checks, check{"Config file", false, fmt.Sprintf("not found (%s)", path)})
	} else if cfg, err := config.Load(path); err != nil {
		fe := friendlyerr.Config(err)
		checks = append(checks, check{"Config file", false, fe.Message})
	} else {
		checks = append(checks, check{"Config file", true, path})
		if cfg.Reasoning.Provider != "" {
			checks = append(checks, check{"Vision provider", true, fmt.Sprintf("%s / %s", cfg.Reasoning.Provider, cfg.Reasoning.Model)})
		} else {
			checks = append(checks, check{"Vision provider", true, "client-side (no API key configured)"})
		}
	}

	if ip := lanIP(); ip != "" {
		checks = append(checks, check{"LAN IP detection", true, ip})
	} else {
		checks = append(checks, check{"LAN IP detection", false, "no LAN interface found"})
	}

	for _, portCheck := range []struct {
		port int
		name string
	}{{8400, "MCP server"}, {8090, "Vision API"}} {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", portCheck.port))
		if err != nil {
			checks = append(checks, check{fmt.Sprintf("Port %d (%s)", portCheck.port, portCheck.name), false, "in use (daemon running?)"})
		} else {
			_ = ln.Close()
			checks = append(checks, check{fmt.Sprintf("Port %d (%s)", portCheck.port, portCheck.name), true, "available"})
		}
	}

	checks = append(checks, check{"Background service", isAutostartInstalled(), map[bool]string{true: "installed", false: "not installed"}[isAutostartInstalled()]})

	fmt.Println("physical-mcpd doctor")
	fmt.Println(strings.Repeat("=", 50))
	passed, failed := 0, 0
	for _, c := range checks {
		icon := "PASS"
		if c.ok {
			passed++
		} else {
			icon = "FAIL"
			failed++
		}
		fmt.Printf("  [%s] %s: %s\n", icon, c.name, c.detail)
	}
	fmt.Printf("\n  %d passed, %d failed\n", passed, failed)

	if failed > 0 {
		return exitGeneric
	}
	return exitOK
}

func runRules(configPathOverride string) int {
	path := paths.ResolveConfigPath(configPathOverride)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		return exitConfigError
	}

	store := rules.NewStore(paths.ResolveRulesPath(cfg.RulesFile))
	ruleList := store.Load()

	if len(ruleList) == 0 {
		fmt.Println("No watch rules configured.")
		fmt.Println("Use the MCP 'add_watch_rule' tool, the dashboard, or one of these templates:")
		for _, t := range rules.Templates {
			fmt.Printf("  %-20s %s\n", t.ID, t.Description)
		}
		return exitOK
	}

	fmt.Printf("\n%-14s %-20s %-10s %-12s %s\n", "ID", "Name", "Priority", "Camera", "Condition")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range ruleList {
		dot := "●"
		if !r.Enabled {
			dot = "○"
		}
		cam := r.CameraID
		if cam == "" {
			cam = "(all)"
		}
		condition := r.Condition
		if len(condition) > 40 {
			condition = condition[:40] + "…"
		}
		fmt.Printf("%s %-12s %-20s %-10s %-12s %s\n", dot, r.ID, r.Name, r.Priority, cam, condition)
	}
	fmt.Printf("\n  %d rule(s) total\n", len(ruleList))
	return exitOK
}

// auditMigrationsSource is the golang-migrate source URL for
// internal/auditstore's schema, relative to the binary's working
// directory, matching cmd/migrator's own "file://db/migrations" style.
const auditMigrationsSource = "file://internal/auditstore/migrations"

// runMigrate applies (or reports) audit.postgres_dsn's schema. A no-op
// print-only path when no DSN is configured — there is nothing to
// migrate for the in-memory-only replay log.
func runMigrate(configPathOverride string) int {
	path := paths.ResolveConfigPath(configPathOverride)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		return exitConfigError
	}

	if cfg.Audit.PostgresDSN == "" {
		fmt.Println("audit.postgres_dsn is not configured; nothing to migrate.")
		return exitOK
	}

	db, err := auditstore.Open(cfg.Audit.PostgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to audit database: %v\n", err)
		return exitGeneric
	}
	defer db.Close()

	if err := applyAuditMigrations(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		return exitGeneric
	}
	fmt.Println("audit database migrations applied.")
	return exitOK
}

func applyAuditMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(auditMigrationsSource, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
