// Package command provides a text command system for the certificate engine
package command

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/thereceipt/certificate-engine/internal/batch"
	"github.com/thereceipt/certificate-engine/internal/store"
)

// Executor executes commands
type Executor struct {
	templates store.TemplateStore
	history   store.HistoryStore
	queue     *batch.Queue
	http      *http.Client
}

// NewExecutor creates a new command executor
func NewExecutor(templates store.TemplateStore, history store.HistoryStore, queue *batch.Queue) *Executor {
	return &Executor{
		templates: templates,
		history:   history,
		queue:     queue,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(ctx context.Context, cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failure("empty command")
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "template":
		return e.handleTemplate(ctx, args)
	case "generate":
		return e.handleGenerate(ctx, args)
	case "run":
		return e.handleRun(args)
	case "history":
		return e.handleHistory(ctx, args)
	case "help":
		return e.handleHelp(args)
	default:
		return failure("unknown command: %s. Type 'help' for available commands", command)
	}
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		switch {
		case (char == '"' || char == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = char
		case inQuotes && char == quoteChar:
			inQuotes = false
			quoteChar = 0
		case char == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
