// Package report summarizes evaluation decision logs: how often requests
// were allowed, asked about or denied, which services and rules decided
// them, and how long evaluation took.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/qpolicy/qpolicy/internal/logging"
)

type Summary struct {
	Total        int            `json:"total"`
	Allowed      int            `json:"allowed"`
	Asked        int            `json:"asked"`
	Denied       int            `json:"denied"`
	Unmatched    int            `json:"unmatched"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	TopServices  []CountItem    `json:"top_services"`
	TopSources   []CountItem    `json:"top_sources"`
	TopRules     []CountItem    `json:"top_rules"`
	Latency      LatencySummary `json:"latency"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type LatencySummary struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type Reader struct {
	Since time.Time
}

func (r *Reader) Read(path string) ([]logging.Decision, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var decisions []logging.Decision
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var d logging.Decision
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return nil, err
		}
		if !r.Since.IsZero() && d.Timestamp.Before(r.Since) {
			continue
		}
		decisions = append(decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func Summarize(decisions []logging.Decision) Summary {
	var summary Summary
	if len(decisions) == 0 {
		return summary
	}

	summary.Start = decisions[0].Timestamp
	summary.End = decisions[0].Timestamp

	serviceCounts := map[string]int{}
	sourceCounts := map[string]int{}
	ruleCounts := map[string]int{}
	latencies := make([]int64, 0, len(decisions))

	for _, d := range decisions {
		summary.Total++
		if d.Timestamp.Before(summary.Start) {
			summary.Start = d.Timestamp
		}
		if d.Timestamp.After(summary.End) {
			summary.End = d.Timestamp
		}

		switch d.Action {
		case "allow":
			summary.Allowed++
		case "ask":
			summary.Asked++
		case "deny":
			summary.Denied++
		}
		if !d.Matched {
			summary.Unmatched++
		}

		serviceCounts[d.Service]++
		sourceCounts[d.Source]++
		if d.Matched {
			ruleCounts[d.File+":"+strconv.Itoa(d.Line)]++
		}

		latencies = append(latencies, d.DurationMS)
	}

	summary.TopServices = leaders(serviceCounts, 5)
	summary.TopSources = leaders(sourceCounts, 5)
	summary.TopRules = leaders(ruleCounts, 5)
	summary.Latency = latencyPercentiles(latencies)

	return summary
}

// leaders returns the limit highest counts, ties broken by key so output
// is deterministic.
func leaders(counts map[string]int, limit int) []CountItem {
	if len(counts) == 0 {
		return nil
	}
	items := make([]CountItem, 0, len(counts))
	for key, n := range counts {
		items = append(items, CountItem{Key: key, Count: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

func latencyPercentiles(values []int64) LatencySummary {
	if len(values) == 0 {
		return LatencySummary{}
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(q float64) float64 {
		return float64(sorted[int(q*float64(len(sorted)-1))])
	}
	return LatencySummary{P50: at(0.50), P95: at(0.95), P99: at(0.99)}
}

func RenderText(summary Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "decisions: %d\n", summary.Total)
	fmt.Fprintf(&b, "  allow %d  ask %d  deny %d  (implicit deny %d)\n",
		summary.Allowed, summary.Asked, summary.Denied, summary.Unmatched)
	if !summary.Start.IsZero() {
		fmt.Fprintf(&b, "window: %s to %s\n",
			summary.Start.Format(time.RFC3339), summary.End.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "latency ms: p50=%.0f p95=%.0f p99=%.0f\n",
		summary.Latency.P50, summary.Latency.P95, summary.Latency.P99)

	renderLeaders(&b, "services", summary.TopServices)
	renderLeaders(&b, "sources", summary.TopSources)
	renderLeaders(&b, "deciding rules", summary.TopRules)

	return b.String()
}

func renderLeaders(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  %6d  %s\n", item.Count, item.Key)
	}
}

func RenderJSON(summary Summary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
