// Package audit implements the Audit Logger (spec §4.3): per-cycle JSONL
// records, frame persistence, and a terminal summary file, scoped to a
// single task id.
//
// Flattening an in-memory CycleEntry (natural Go casing) to the snake_case
// JSONL persistence shape uses github.com/tidwall/sjson instead of a
// second marshal-only struct, grounded on BaSui01-agentflow's go.mod.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/sjson"

	"github.com/tripleyak/dev-browser-studio/internal/action"
	"github.com/tripleyak/dev-browser-studio/internal/budget"
)

// TokenUsage is the per-cycle token usage recorded alongside the action
// result (spec §3).
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// CycleEntry is the in-memory representation of one perception-loop cycle
// (spec §3), using natural Go casing; logCycle flattens it to snake_case at
// the persistence boundary.
type CycleEntry struct {
	CycleIndex int
	Timestamp  time.Time
	PageURL    string
	FramePath  string
	Action     action.Action
	Reasoning  string
	Result     action.Result
	Tokens     *TokenUsage
	DurationMs int64
}

// SummaryResult decouples audit.SaveSummary from the Perception Loop's own
// LoopResult type, avoiding an import cycle between internal/perception
// and internal/audit while keeping the field shape spec §3 describes.
type SummaryResult struct {
	Success       bool
	Summary       string
	TotalCycles   int
	ExtractedData map[string]interface{}
}

// Logger is scoped to a single task id, per spec §4.3.
type Logger struct {
	taskID    string
	taskDir   string
	framesDir string
	cyclesPath string
}

// New creates `<outDir>/<taskID>/frames/` and returns a Logger bound to it.
func New(outDir, taskID string) (*Logger, error) {
	taskDir := filepath.Join(outDir, taskID)
	framesDir := filepath.Join(taskDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit frames dir: %w", err)
	}
	return &Logger{
		taskID:     taskID,
		taskDir:    taskDir,
		framesDir:  framesDir,
		cyclesPath: filepath.Join(taskDir, "cycles.jsonl"),
	}, nil
}

// TaskDir returns the logger's task-scoped directory.
func (l *Logger) TaskDir() string { return l.taskDir }

// LogCycle appends a line-delimited JSON record to cycles.jsonl. Every
// field is flattened to snake_case at the persistence boundary (spec
// §4.3). budgetRemaining may be nil.
func (l *Logger) LogCycle(entry CycleEntry, budgetRemaining *budget.Remaining) error {
	doc := "{}"
	var err error
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		doc, err = sjson.Set(doc, path, value)
	}

	set("cycle", entry.CycleIndex)
	set("timestamp", entry.Timestamp.Format(time.RFC3339))
	set("page_url", entry.PageURL)
	set("frame_path", entry.FramePath)
	set("action.name", string(entry.Action.Kind))
	set("action.input", entry.Action.Input)
	if entry.Reasoning != "" {
		set("reasoning", entry.Reasoning)
	}
	set("result.success", entry.Result.Success)
	if entry.Result.Error != "" {
		set("result.error", entry.Result.Error)
	}
	if entry.Tokens != nil {
		set("tokens.input", entry.Tokens.Input)
		set("tokens.output", entry.Tokens.Output)
	}
	set("duration_ms", entry.DurationMs)
	if budgetRemaining != nil {
		set("budget_remaining.cycles", budgetRemaining.Cycles)
		set("budget_remaining.tokens", budgetRemaining.Tokens)
	}
	if err != nil {
		return fmt.Errorf("flatten cycle entry: %w", err)
	}

	f, openErr := os.OpenFile(l.cyclesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if openErr != nil {
		return fmt.Errorf("open cycles.jsonl: %w", openErr)
	}
	defer f.Close()
	if _, err := f.WriteString(doc + "\n"); err != nil {
		return fmt.Errorf("write cycle record: %w", err)
	}
	return nil
}

// SaveFrame writes frames/cycle-<n>.jpg, overwriting any existing file.
func (l *Logger) SaveFrame(cycleIndex int, jpegBytes []byte) (string, error) {
	path := filepath.Join(l.framesDir, fmt.Sprintf("cycle-%d.jpg", cycleIndex))
	if err := os.WriteFile(path, jpegBytes, 0o644); err != nil {
		return "", fmt.Errorf("save frame for cycle %d: %w", cycleIndex, err)
	}
	return path, nil
}

// summaryDoc is the fixed shape of summary.json (spec §4.3, §6).
type summaryDoc struct {
	Result struct {
		Success       bool                   `json:"success"`
		Summary       string                 `json:"summary"`
		TotalCycles   int                    `json:"total_cycles"`
		ExtractedData map[string]interface{} `json:"extracted_data,omitempty"`
	} `json:"result"`
	Budget struct {
		Cycles       int     `json:"cycles"`
		InputTokens  int     `json:"input_tokens"`
		OutputTokens int     `json:"output_tokens"`
		CostUSD      float64 `json:"cost_usd"`
		ElapsedMs    int64   `json:"elapsed_ms"`
	} `json:"budget"`
	CompletedAt string `json:"completed_at"`
}

// SaveSummary writes summary.json with the fixed result+budget+timestamp
// shape (spec §4.3).
func (l *Logger) SaveSummary(result SummaryResult, budgetState budget.State) error {
	var doc summaryDoc
	doc.Result.Success = result.Success
	doc.Result.Summary = result.Summary
	doc.Result.TotalCycles = result.TotalCycles
	doc.Result.ExtractedData = result.ExtractedData
	doc.Budget.Cycles = budgetState.Cycles
	doc.Budget.InputTokens = budgetState.InputTokens
	doc.Budget.OutputTokens = budgetState.OutputTokens
	doc.Budget.CostUSD = budgetState.CostUSD
	doc.Budget.ElapsedMs = budgetState.ElapsedMs
	doc.CompletedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	path := filepath.Join(l.taskDir, "summary.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary.json: %w", err)
	}
	return nil
}
