// internal/platform/config/help.go
package config

import (
	"fmt"
	"os"
	"runtime"
)

const helpText = `
SubSentry - Subdomain Enumeration Orchestrator

USAGE:
  subsentry [mode] [options]

MODES:
  serve                    Start the HTTP API server (default)
  scan                     Run a one-shot scan from the terminal
  probe                    Probe liveness of every stored subdomain and exit
  exec-tool                Internal: run a single tool for a scan (spawned by serve)
  version                  Print version information and exit

CORE OPTIONS:
  -c, --config string      Path to YAML configuration file
      --log-level string   Log level: debug|info|warn|error (default "info")
      --db.driver string   Database driver: postgres|sqlite (default "postgres")
      --db.dsn string      Database DSN
      --tools.config string  Path to the tool catalog (default "config/tools.yaml")

SERVE OPTIONS:
      --addr string        HTTP listen address (default ":8080")

SCAN OPTIONS:
  -t, --target string      Target domain (required, e.g., example.com)
      --tools strings      Comma-separated tool names to run (default: all enabled)
      --no-isolate         Run pipeline tools inside this process
  -o, --output string      Write the discovered subdomains to this file
  -f, --format string      Export format: txt|json|csv (default "txt")

PROBE OPTIONS:
      --host string        Probe a single hostname instead of the whole store
      --file string        Probe the hostnames listed in a file, one per line
      --probe.workers int  Concurrent probe workers (default 10)
      --probe.timeout int  Per-host probe timeout in seconds (default 8)

INFO:
  -v, --version            Print version information and exit
  -h, --help               Show this help message

EXAMPLES:
  Start the API server:
    subsentry serve --addr :8080

  One-shot scan against a domain:
    subsentry scan -t example.com

  Scan with a subset of tools:
    subsentry scan -t example.com --tools subfinder,crtsh

  Scan and export the results:
    subsentry scan -t example.com -o subs.json -f json

  Re-probe everything already stored:
    subsentry probe --probe.workers 20

  Probe a single host:
    subsentry probe --host api.example.com

  Use SQLite instead of Postgres:
    subsentry serve --db.driver sqlite --db.dsn subsentry.db

ENVIRONMENT VARIABLES:
  Most options can be set via environment variables with SUBSENTRY_ prefix:

  SUBSENTRY_LOG_LEVEL=debug         Log level
  SUBSENTRY_DATABASE_DRIVER=sqlite  Database driver
  SUBSENTRY_DATABASE_DSN=...        Database DSN
  SUBSENTRY_SERVER_ADDR=:9090       HTTP listen address
  SUBSENTRY_PROBES_WORKERS=20       Probe workers
  SUBSENTRY_TOOLS_CONFIG=/etc/subsentry/tools.yaml

  Note: CLI flags override environment variables.

CONFIG FILE:
  Looked up as subsentry.yaml in ., $HOME/.config/subsentry and /etc/subsentry
  unless --config is given. Keys mirror the flag names, e.g.:

    database:
      driver: postgres
      dsn: host=localhost user=subsentry dbname=subsentry sslmode=disable
    probes:
      workers: 10
`

// PrintHelp prints the custom help message and exits.
func PrintHelp() {
	fmt.Fprint(os.Stdout, helpText)
	os.Exit(0)
}

// PrintVersion prints version information and exits.
func PrintVersion(version, commit, date string) {
	fmt.Printf("SubSentry %s\n", version)
	fmt.Printf("  Commit:  %s\n", commit)
	fmt.Printf("  Built:   %s\n", date)
	fmt.Printf("  Go:      %s\n", getGoVersion())
	os.Exit(0)
}

func getGoVersion() string {
	return runtime.Version()
}
