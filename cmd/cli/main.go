package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/thereceipt/certificate-engine/internal/batch"
)

const (
	defaultServerURL = "http://localhost:12212"
)

func main() {
	var serverURL string
	flag.StringVar(&serverURL, "server", defaultServerURL, "Server URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "Server URL (short)")
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	c := newClient(serverURL)
	args := flag.Args()

	switch args[0] {
	case "watch":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: usage: watch <run-id>")
			os.Exit(1)
		}
		os.Exit(watchExitCode(watchRun(c, args[1])))

	case "generate":
		rest, watch := extractFlag(args[1:], "--watch")
		// Local files are uploaded, anything else is resolved by the server
		if len(rest) >= 2 && isLocalFile(rest[1]) {
			format := flagValue(rest[2:], "--format")
			runID, err := c.uploadRun(rest[0], rest[1], format)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Run queued: %s\n", runID)
			if watch {
				os.Exit(watchExitCode(watchRun(c, runID)))
			}
			os.Exit(0)
		}

		result := c.executeCommand(strings.Join(append([]string{"generate"}, rest...), " "))
		if !result.Success {
			printError(result)
			os.Exit(1)
		}
		printSuccess(result)
		if runID, ok := result.Data["run_id"].(string); ok && watch {
			os.Exit(watchExitCode(watchRun(c, runID)))
		}
		os.Exit(0)
	}

	result := c.executeCommand(strings.Join(args, " "))
	if result.Success {
		printSuccess(result)
		os.Exit(0)
	}
	printError(result)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Certificate Engine CLI

Usage:
  certificate-cli [flags] <command>

Flags:
  -s, -server <url>    Server URL (default: %s)

Commands:
  generate <template-id> <data-path> [--format pdf|png] [--watch]
    Queue one certificate per row of a CSV, JSON or XLSX file. Local files are
    uploaded; URLs and server-side paths are read by the server.

  watch <run-id>
    Follow a run until it finishes

  template list
    List all templates

  template show <id>
    Show a template as JSON

  template fields <id>
    List the data fields a template binds

  run list
    List all generation runs

  run status <id>
    Get status and report of a run

  run cancel <id>
    Cancel a queued or running run

  run clear
    Clear finished runs from the queue

  history [limit]
    List generated certificates, newest first

  help
    Show help message

Examples:
  certificate-cli generate course-completion ./students.csv --format png --watch
  certificate-cli generate course-completion https://example.com/roster.json
  certificate-cli run status 5f0c...
  certificate-cli -s http://localhost:8080 template list

`, defaultServerURL)
}

// extractFlag removes a boolean flag from args and reports whether it was present
func extractFlag(args []string, name string) ([]string, bool) {
	out := make([]string, 0, len(args))
	found := false
	for _, a := range args {
		if a == name {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}

// flagValue returns the value following name in args
func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			return v
		}
	}
	return ""
}

func isLocalFile(p string) bool {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func watchExitCode(status batch.Status, err error) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	switch status {
	case batch.StatusCompleted:
		return 0
	case batch.StatusPartiallyFailed:
		return 2
	default:
		return 1
	}
}

func printSuccess(result *CommandResult) {
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	if result.Data == nil {
		return
	}

	if templates, ok := result.Data["templates"].([]interface{}); ok {
		fmt.Println("\nTemplates:")
		for _, item := range templates {
			if t, ok := item.(map[string]interface{}); ok {
				fmt.Printf("  %s: %s (%v elements)\n", t["id"], t["name"], t["elements"])
			}
		}
	}

	if runs, ok := result.Data["runs"].([]interface{}); ok {
		fmt.Println("\nRuns:")
		for _, item := range runs {
			if r, ok := item.(map[string]interface{}); ok {
				fmt.Printf("  %s: %s (template: %s, rows: %v)\n", r["id"], r["status"], r["template_id"], r["total_rows"])
			}
		}
	}

	if certs, ok := result.Data["certificates"].([]interface{}); ok {
		fmt.Println("\nCertificates:")
		for _, item := range certs {
			if rec, ok := item.(map[string]interface{}); ok {
				fmt.Printf("  %s: %s %s %v\n", rec["id"], rec["recipientName"], rec["status"], orDash(rec["fileUrl"]))
			}
		}
	}

	if _, ok := result.Data["status"]; ok {
		fmt.Printf("Status: %s\n", result.Data["status"])
		if s, ok := result.Data["succeeded"]; ok {
			fmt.Printf("Succeeded: %v, Failed: %v\n", s, result.Data["failed"])
		}
	}

	if runID, ok := result.Data["run_id"].(string); ok {
		fmt.Printf("Run ID: %s\n", runID)
	}
}

func orDash(v interface{}) interface{} {
	if v == nil || v == "" {
		return "-"
	}
	return v
}

func printError(result *CommandResult) {
	if result.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", result.Error)
	} else if result.Message != "" {
		fmt.Fprintf(os.Stderr, "%s\n", result.Message)
	}
}
