// Package output renders a load test for humans (live progress and a
// final summary) and for machines (JSON).
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rokkincat/trackload/internal/loadtest/engine"
	"github.com/rokkincat/trackload/internal/loadtest/metrics"
)

// Cursor control for the live display.
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"
)

const (
	ruleWidth = 56
	boxWidth  = 55
	barWidth  = 40

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64
	Elapsed   time.Duration
	Remaining time.Duration

	ActiveVUs int
	TargetVUs int

	CurrentRPS    float64
	TotalRequests int64
	Errors        int64
	ErrorRate     float64
	Iterations    int64
	CheckRate     float64

	LatencyP95 time.Duration
	LatencyAvg time.Duration

	CurrentPhase string
	CurrentStage int // 1-indexed
	TotalStages  int
}

// ConsoleOutput manages console output during a run.
type ConsoleOutput struct {
	testName      string
	host          string
	executorType  string
	totalDuration time.Duration
	writer        io.Writer
	isTTY         bool
	quiet         bool
	colors        *palette

	mu          sync.Mutex
	linesOutput int
}

// ConsoleOutputConfig contains configuration for ConsoleOutput.
type ConsoleOutputConfig struct {
	TestName      string
	Host          string
	ExecutorType  string
	TotalDuration time.Duration
	Writer        io.Writer
	Quiet         bool
	ForceColors   bool
	ForceTTY      bool
}

// NewConsoleOutput creates a console output handler.
func NewConsoleOutput(cfg ConsoleOutputConfig) *ConsoleOutput {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	useColors := cfg.ForceColors || (isTTY && supportsColors())

	return &ConsoleOutput{
		testName:      cfg.TestName,
		host:          cfg.Host,
		executorType:  cfg.ExecutorType,
		totalDuration: cfg.TotalDuration,
		writer:        cfg.Writer,
		isTTY:         isTTY,
		quiet:         cfg.Quiet,
		colors:        newPalette(useColors),
	}
}

// IsTTY returns whether the output is a terminal.
func (c *ConsoleOutput) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run banner.
func (c *ConsoleOutput) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.colors.header.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	info := ""
	if c.executorType != "" {
		info = fmt.Sprintf(" [%s]", c.executorType)
	}

	c.writeln(rule)
	c.writeln(c.colors.title.Sprintf("%s - Running%s", c.testName, info))
	if c.host != "" {
		c.writeln(c.colors.dim.Sprintf("target: %s  duration: %s", c.host, formatDuration(c.totalDuration)))
	}
	c.writeln(rule)
	c.writeln("")
}

// Update redraws the live display. It does nothing unless the output is a
// terminal; use PrintNonInteractiveUpdate otherwise.
func (c *ConsoleOutput) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()

	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// PrintNonInteractiveUpdate prints a one-line status for logs and CI.
func (c *ConsoleOutput) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | VUs: %d | Iters: %d | Reqs: %d | RPS: %.1f | Errors: %d (%.1f%%) | Checks: %.1f%% | P95: %s",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.ActiveVUs,
		stats.Iterations,
		stats.TotalRequests,
		stats.CurrentRPS,
		stats.Errors,
		stats.ErrorRate*100,
		stats.CheckRate*100,
		formatDurationShort(stats.LatencyP95)))
}

func (c *ConsoleOutput) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *ConsoleOutput) renderLiveStats(stats *LiveStats) []string {
	p := c.colors
	var lines []string

	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		p.good.Sprint(renderProgressBar(stats.Progress, barWidth)),
		p.title.Sprintf("%.0f%%", stats.Progress*100),
		p.dim.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))))

	phase := stats.CurrentPhase
	if stats.TotalStages > 0 {
		phase = fmt.Sprintf("%s (%d/%d)", stats.CurrentPhase, stats.CurrentStage, stats.TotalStages)
	}
	lines = append(lines, "Stage:    "+p.stage.Sprint(phase), "")

	errColor := p.good
	if stats.ErrorRate > 0.01 {
		errColor = p.warn
	}
	if stats.ErrorRate > 0.05 {
		errColor = p.bad
	}

	lines = append(lines,
		p.dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight),
		c.boxRow(
			fmt.Sprintf("VUs:     %s / %d", p.value.Sprint(stats.ActiveVUs), stats.TargetVUs),
			"Requests:    "+p.value.Sprint(formatNumber(stats.TotalRequests))),
		c.boxRow(
			"RPS:     "+p.good.Sprintf("%.1f", stats.CurrentRPS),
			fmt.Sprintf("Errors:      %s (%s)", errColor.Sprint(stats.Errors), errColor.Sprintf("%.1f%%", stats.ErrorRate*100))),
		c.boxRow(
			"Iters:   "+p.value.Sprint(formatNumber(stats.Iterations)),
			"Checks:      "+p.rate(stats.CheckRate, 0.99, 0.95).Sprintf("%.1f%%", stats.CheckRate*100)),
		c.boxRow(
			"P95:     "+p.latency.Sprint(formatDurationShort(stats.LatencyP95)),
			"Avg:         "+p.latency.Sprint(formatDurationShort(stats.LatencyAvg))),
		p.dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight),
	)

	return lines
}

// boxRow lays out two columns inside the stats box as "│ L │ R │".
func (c *ConsoleOutput) boxRow(left, right string) string {
	// Three bars and three spaces; the right column takes the odd column.
	leftWidth := (boxWidth - 6) / 2
	rightWidth := boxWidth - 6 - leftWidth
	pad := func(s string, width int) string {
		if n := width - visibleLen(s); n > 0 {
			return s + strings.Repeat(" ", n)
		}
		return s
	}

	bar := c.colors.dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s %s %s", bar, pad(left, leftWidth), bar, pad(right, rightWidth), bar)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// PrintSummary prints the end-of-run report.
func (c *ConsoleOutput) PrintSummary(result *engine.TestResult) {
	p := c.colors

	if c.quiet {
		if result.Passed {
			c.writeln(p.good.Sprint("PASSED"))
		} else {
			c.writeln(p.bad.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	status := p.good.Sprint("Completed ✓")
	switch {
	case !result.Passed:
		status = p.bad.Sprint("Failed ✗")
	case result.Interrupted:
		status = p.warn.Sprint("Interrupted")
	}

	rule := p.header.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	c.writeln("")
	c.writeln(rule)
	c.writeln(fmt.Sprintf("%s - %s", p.title.Sprint(result.Name), status))
	c.writeln(rule)
	c.writeln("")

	c.writeln("Duration:      " + p.value.Sprint(formatDuration(result.Duration)))
	c.writeln("Iterations:    " + p.value.Sprint(formatNumber(result.Iterations)))
	if m := result.Metrics; m != nil {
		success := 1 - m.ErrorRate
		if m.TotalRequests == 0 {
			success = 0
		}
		c.writeln(fmt.Sprintf("Total Reqs:    %s (%s/s)", p.value.Sprint(formatNumber(m.TotalRequests)), p.value.Sprintf("%.1f", m.RPS)))
		c.writeln("Success Rate:  " + p.rate(success, 0.99, 0.95).Sprintf("%.1f%%", success*100))
		c.writeln("Data Received: " + p.value.Sprint(formatBytes(m.TotalBytes)))
	}
	c.writeln("")

	c.printChecks(result.Checks)

	if m := result.Metrics; m != nil {
		c.writeln(p.title.Sprint("Latency Distribution:"))
		c.writeln("  Min:       " + formatDurationShort(m.Latency.Min))
		c.writeln("  Avg:       " + formatDurationShort(m.Latency.Mean))
		c.writeln("  P50:       " + formatDurationShort(m.Latency.P50))
		c.writeln("  P90:       " + formatDurationShort(m.Latency.P90))
		c.writeln("  P95:       " + formatDurationShort(m.Latency.P95))
		c.writeln("  P99:       " + formatDurationShort(m.Latency.P99))
		c.writeln("  Max:       " + formatDurationShort(m.Latency.Max))
		c.writeln("")
	}

	c.printRequests(result.RequestStats)

	if len(result.Thresholds) > 0 {
		c.writeln(p.title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", p.mark(t.Passed), t.Metric, t.Expression, t.Value))
			if !t.Passed && t.Message != "" {
				c.writeln("      " + p.dim.Sprint(t.Message))
			}
		}
		c.writeln("")
	}
}

// printChecks lists each check: a tick when every evaluation passed,
// otherwise a cross with the pass rate and counts.
func (c *ConsoleOutput) printChecks(checks []metrics.CheckStats) {
	if len(checks) == 0 {
		return
	}
	p := c.colors

	c.writeln(p.title.Sprint("Checks:"))
	for _, ch := range checks {
		if ch.Fails == 0 {
			c.writeln(fmt.Sprintf("  %s %s", p.mark(true), ch.Name))
			continue
		}
		c.writeln(fmt.Sprintf("  %s %s", p.mark(false), ch.Name))
		c.writeln(fmt.Sprintf("    ↳  %s %s %s / %s %s",
			p.rate(ch.Rate(), 0.99, 0.95).Sprintf("%.0f%%", ch.Rate()*100),
			p.good.Sprint("✓"), formatNumber(ch.Passes),
			p.bad.Sprint("✗"), formatNumber(ch.Fails)))
	}
	c.writeln("")
}

func (c *ConsoleOutput) printRequests(stats map[string]engine.RequestStats) {
	if len(stats) == 0 {
		return
	}

	names := make([]string, 0, len(stats))
	width := 0
	for name := range stats {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	c.writeln(c.colors.title.Sprint("Requests:"))
	for _, name := range names {
		s := stats[name]
		c.writeln(fmt.Sprintf("  %-*s  count=%s avg=%s p95=%s max=%s",
			width, name,
			formatNumber(s.Count),
			formatDurationShort(s.Latency.Mean),
			formatDurationShort(s.Latency.P95),
			formatDurationShort(s.Latency.Max)))
	}
	c.writeln("")
}

func (c *ConsoleOutput) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *ConsoleOutput) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// StatsFromMetrics builds LiveStats from a snapshot and executor progress.
func StatsFromMetrics(snapshot *metrics.Snapshot, progress float64, totalDuration time.Duration, targetVUs, currentStage, totalStages int) *LiveStats {
	if snapshot == nil {
		return &LiveStats{
			Progress:     progress,
			TargetVUs:    targetVUs,
			CurrentStage: currentStage,
			TotalStages:  totalStages,
			CurrentPhase: "initializing",
		}
	}

	elapsed := snapshot.Elapsed
	rps := snapshot.CurrentRPS
	if rps == 0 {
		rps = snapshot.RPS
	}
	var remaining time.Duration
	if progress > 0 && progress < 1 {
		remaining = time.Duration(float64(elapsed) * (1 - progress) / progress)
	} else if totalDuration > elapsed {
		remaining = totalDuration - elapsed
	}

	return &LiveStats{
		Progress:      progress,
		Elapsed:       elapsed,
		Remaining:     remaining,
		ActiveVUs:     snapshot.ActiveVUs,
		TargetVUs:     targetVUs,
		CurrentRPS:    rps,
		TotalRequests: snapshot.TotalRequests,
		Errors:        snapshot.FailedRequests,
		ErrorRate:     snapshot.ErrorRate,
		Iterations:    snapshot.Iterations,
		CheckRate:     snapshot.CheckRate,
		LatencyP95:    snapshot.Latency.P95,
		LatencyAvg:    snapshot.Latency.Mean,
		CurrentPhase:  string(snapshot.CurrentPhase),
		CurrentStage:  currentStage,
		TotalStages:   totalStages,
	}
}
