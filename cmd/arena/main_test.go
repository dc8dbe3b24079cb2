package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/npc-arena/core"
	"github.com/signalsfoundry/npc-arena/internal/records"
)

// sandbox runs the test from an empty directory with arena variables
// cleared, so neither a .env file nor the caller's environment leaks in.
func sandbox(t *testing.T) string {
	t.Helper()
	for _, k := range []string{
		"ARENA_COUNT", "ARENA_DURATION", "ARENA_TICK", "ARENA_STATUS", "ARENA_SEED",
		"ARENA_LOAD", "ARENA_SAVE", "ARENA_BATTLE_LOG", "ARENA_CONSOLE", "ARENA_SHOW_MAP",
		"ARENA_METRICS_ADDR", "ARENA_TRACING_ENABLED", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

var totalRe = regexp.MustCompile(`Total survivors: (\d+)`)

func survivorsFrom(t *testing.T, out string) int {
	t.Helper()
	m := totalRe.FindStringSubmatch(out)
	require.NotNil(t, m, "no survivor total in output:\n%s", out)
	n, err := strconv.Atoi(m[1])
	require.NoError(t, err)
	return n
}

func TestRunSpawnsPlaysAndSaves(t *testing.T) {
	dir := sandbox(t)
	savePath := filepath.Join(dir, "survivors.txt")
	battleLog := filepath.Join(dir, "battles.txt")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-count", "40",
		"-duration", "300ms",
		"-tick", "5ms",
		"-status", "100ms",
		"-seed", "7",
		"-battle-log", battleLog,
		"-save", savePath,
	}, &stdout, &stderr)
	require.NoError(t, err, "stderr:\n%s", stderr.String())

	out := stdout.String()
	require.Contains(t, out, "=== SURVIVORS AFTER 0 SECONDS ===")
	survivors := survivorsFrom(t, out)
	require.LessOrEqual(t, survivors, 40)

	saved, err := records.LoadFile(savePath, core.NewFactory())
	require.NoError(t, err)
	require.Len(t, saved, survivors)

	logged, err := os.ReadFile(battleLog)
	require.NoError(t, err)
	consoleBattles := strings.Count(out, "[Battle] ")
	require.Equal(t, consoleBattles, strings.Count(string(logged), "[Battle] "))
	require.Equal(t, 40-survivors, consoleBattles, "every death is reported exactly once")

	require.Contains(t, stderr.String(), "run_id=")
	require.Contains(t, stderr.String(), "game over")
}

func TestRunLoadsRecordsQuietly(t *testing.T) {
	dir := sandbox(t)
	loadPath := filepath.Join(dir, "npcs.txt")
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf("Bittern %d %d bird%d", i*20, i*20, i))
	}
	require.NoError(t, os.WriteFile(loadPath, []byte(strings.Join(lines, "\n")), 0o644))

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-load", loadPath,
		"-duration", "100ms",
		"-tick", "5ms",
		"-quiet",
		"-battle-log", filepath.Join(dir, "log.txt"),
	}, &stdout, &stderr)
	require.NoError(t, err, "stderr:\n%s", stderr.String())

	// Bitterns never kill, so everyone survives.
	require.Equal(t, 5, survivorsFrom(t, stdout.String()))
	require.NotContains(t, stdout.String(), "[Battle]")
	require.Contains(t, stdout.String(), "'bird0'")
}

func TestRunDrawsMapEachStatusTick(t *testing.T) {
	dir := sandbox(t)
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-count", "20",
		"-duration", "250ms",
		"-tick", "5ms",
		"-status", "50ms",
		"-map",
		"-battle-log", filepath.Join(dir, "log.txt"),
	}, &stdout, &stderr)
	require.NoError(t, err, "stderr:\n%s", stderr.String())
	require.GreaterOrEqual(t, strings.Count(stdout.String(), "=== MAP ("), 2)
	require.Contains(t, stdout.String(), "Total survivors:")
}

func TestRunStopsEarlyOnCancel(t *testing.T) {
	dir := sandbox(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{
		"-count", "10",
		"-duration", "1h",
		"-battle-log", filepath.Join(dir, "log.txt"),
	}, &stdout, &stderr)
	require.NoError(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
	require.Contains(t, stdout.String(), "Total survivors:")
	require.Contains(t, stderr.String(), "game interrupted")
}

func TestRunRejectsBadInput(t *testing.T) {
	dir := sandbox(t)
	var stdout, stderr bytes.Buffer

	require.Error(t, run(context.Background(), []string{"-nope"}, &stdout, &stderr))
	require.Error(t, run(context.Background(), []string{"stray"}, &stdout, &stderr))
	require.Error(t, run(context.Background(), []string{"-count", "-3"}, &stdout, &stderr))

	err := run(context.Background(), []string{
		"-load", filepath.Join(dir, "missing.txt"),
		"-battle-log", filepath.Join(dir, "log.txt"),
	}, &stdout, &stderr)
	require.ErrorIs(t, err, records.ErrIO)
}

func TestParseConfigFlagsOverrideFile(t *testing.T) {
	dir := sandbox(t)
	cfgPath := filepath.Join(dir, "arena.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("count: 12\nduration: 5s\nconsole: true\n"), 0o644))

	cfg, opts, err := parseConfig([]string{"-config", cfgPath, "-count", "3", "-quiet"}, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, cfgPath, opts.configPath)
	require.Equal(t, 3, cfg.Count)
	require.Equal(t, 5*time.Second, cfg.Duration)
	require.False(t, cfg.Console)
}
