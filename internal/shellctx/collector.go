// Package shellctx snapshots the shell's working context — cwd, a filtered
// environment, and recent commands with their output — for prompt assembly.
package shellctx

import (
	"os"
	"strings"
)

const (
	// HistoryLimit bounds the plain command ring.
	HistoryLimit = 50
	// RecordLimit bounds the command+output log.
	RecordLimit = 50
	// recordOutputCap bounds stored output per command.
	recordOutputCap = 8192
)

// relevantEnvKeys is the default environment filter sent to the model.
var relevantEnvKeys = []string{"HOME", "SHELL", "USER", "PATH", "PWD"}

// CommandRecord pairs one executed command line with its captured output.
type CommandRecord struct {
	CommandLine string
	Output      string
}

// Snapshot is an immutable context capture. Re-snapshotted per message, never
// mutated afterwards.
type Snapshot struct {
	Cwd            string
	EnvVars        [][2]string
	RecentHistory  []string
	RecentCommands []CommandRecord
}

// Collector tracks the shell context. It is owned by the UI task; no locking.
type Collector struct {
	cwd     string
	history []string
	records []CommandRecord
}

// NewCollector starts from the process's own cwd; OSC 7 reports from the
// shell refine it afterwards.
func NewCollector() *Collector {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}
	return &Collector{cwd: cwd}
}

// Cwd returns the last known working directory.
func (c *Collector) Cwd() string {
	return c.cwd
}

// SetCwd records a directory reported by the shell.
func (c *Collector) SetCwd(path string) {
	if p := strings.TrimSpace(path); p != "" {
		c.cwd = p
	}
}

// RecordCommand logs an Enter-terminated line the user typed. It starts a new
// output record; subsequent AppendOutput calls attach to it.
func (c *Collector) RecordCommand(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	c.history = append(c.history, line)
	if len(c.history) > HistoryLimit {
		c.history = c.history[len(c.history)-HistoryLimit:]
	}
	c.records = append(c.records, CommandRecord{CommandLine: line})
	if len(c.records) > RecordLimit {
		c.records = c.records[len(c.records)-RecordLimit:]
	}
}

// AppendOutput attaches shell output to the most recent command record.
// Invalid UTF-8 is replaced rather than rejected.
func (c *Collector) AppendOutput(chunk []byte) {
	if len(c.records) == 0 || len(chunk) == 0 {
		return
	}
	last := &c.records[len(c.records)-1]
	if len(last.Output) >= recordOutputCap {
		return
	}
	text := strings.ToValidUTF8(string(chunk), "�")
	if len(last.Output)+len(text) > recordOutputCap {
		text = text[:recordOutputCap-len(last.Output)]
	}
	last.Output += text
}

// RecentHistory returns up to n most recent command lines, oldest first.
func (c *Collector) RecentHistory(n int) []string {
	if n <= 0 || len(c.history) == 0 {
		return nil
	}
	start := len(c.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, len(c.history)-start)
	copy(out, c.history[start:])
	return out
}

// Snapshot captures the current context.
func (c *Collector) Snapshot() Snapshot {
	records := make([]CommandRecord, len(c.records))
	copy(records, c.records)
	return Snapshot{
		Cwd:            c.cwd,
		EnvVars:        FilteredEnv(),
		RecentHistory:  c.RecentHistory(10),
		RecentCommands: records,
	}
}

// FilteredEnv captures the selected environment variables in a stable order.
func FilteredEnv() [][2]string {
	out := make([][2]string, 0, len(relevantEnvKeys))
	for _, key := range relevantEnvKeys {
		if value, ok := os.LookupEnv(key); ok {
			out = append(out, [2]string{key, value})
		}
	}
	return out
}
