// Benchmark tool for testing Heron against labeled snapshot data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/snapshots.csv -url http://localhost:8080
//
// This tool:
//   1. Reads monthly snapshot rows (with an at_risk label)
//   2. Sends each snapshot to Heron for evaluation
//   3. Compares Heron's highest risk severity with the label
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns (header required, extra columns ignored):
//
//	user_id, month, persona, current_month_income, current_month_expense,
//	avg_monthly_income, avg_monthly_expense, savings_rate,
//	income_volatility, at_risk
//
// A row counts as a positive prediction when the evaluation contains at
// least one high-severity risk dimension.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SnapshotRow represents one labeled row from the benchmark dataset
type SnapshotRow struct {
	UserID              string
	Month               string
	Persona             string
	CurrentMonthIncome  float64
	CurrentMonthExpense float64
	AvgMonthlyIncome    float64
	AvgMonthlyExpense   float64
	SavingsRate         float64
	IncomeVolatility    float64
	AtRisk              bool
}

// EvaluateResponse is the subset of Heron's response the benchmark reads
type EvaluateResponse struct {
	ID    string `json:"id"`
	Risks []struct {
		Dimension string `json:"dimension"`
		Severity  string `json:"severity"`
	} `json:"risks"`
	Stats struct {
		RulesTriggered int `json:"rules_triggered"`
	} `json:"stats"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // at-risk month flagged high
	FalsePositives int64 // healthy month flagged high
	TrueNegatives  int64 // healthy month with no high risk
	FalseNegatives int64 // at-risk month missed

	TotalProcessed int64
	TotalAtRisk    int64
	TotalHealthy   int64
	TotalErrors    int64
	TotalTriggers  int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled snapshot CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum snapshots to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	riskOnly := flag.Bool("risk-only", false, "Only test at-risk snapshots")
	verbose := flag.Bool("verbose", false, "Print each snapshot result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/snapshots.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HERON BENCHMARK - Financial Health Scoring           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Heron URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Risk Only:   %v\n", *riskOnly)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	fmt.Printf("\nReading snapshot data from %s...\n", *csvPath)
	rows, err := readSnapshotCSV(*csvPath, *limit, *riskOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d snapshots\n", len(rows))

	atRiskCount := 0
	for _, row := range rows {
		if row.AtRisk {
			atRiskCount++
		}
	}
	fmt.Printf("  - At risk: %d (%.2f%%)\n", atRiskCount, 100*float64(atRiskCount)/float64(len(rows)))
	fmt.Printf("  - Healthy: %d (%.2f%%)\n", len(rows)-atRiskCount, 100*float64(len(rows)-atRiskCount)/float64(len(rows)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rows, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readSnapshotCSV(path string, limit int, riskOnly bool) ([]SnapshotRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	num := func(record []string, col string) float64 {
		i, ok := colIndex[col]
		if !ok || i >= len(record) {
			return 0
		}
		v, _ := strconv.ParseFloat(record[i], 64)
		return v
	}
	text := func(record []string, col string) string {
		i, ok := colIndex[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var rows []SnapshotRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		atRisk := text(record, "at_risk") == "1" || strings.EqualFold(text(record, "at_risk"), "true")
		if riskOnly && !atRisk {
			continue
		}

		rows = append(rows, SnapshotRow{
			UserID:              text(record, "user_id"),
			Month:               text(record, "month"),
			Persona:             text(record, "persona"),
			CurrentMonthIncome:  num(record, "current_month_income"),
			CurrentMonthExpense: num(record, "current_month_expense"),
			AvgMonthlyIncome:    num(record, "avg_monthly_income"),
			AvgMonthlyExpense:   num(record, "avg_monthly_expense"),
			SavingsRate:         num(record, "savings_rate"),
			IncomeVolatility:    num(record, "income_volatility"),
			AtRisk:              atRisk,
		})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

func runBenchmark(rows []SnapshotRow, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan SnapshotRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				start := time.Now()
				result, err := evaluateSnapshot(client, baseURL, tenantID, row)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s %s -> %v\n", row.UserID, row.Month, err)
					}
					continue
				}

				if row.AtRisk {
					atomic.AddInt64(&metrics.TotalAtRisk, 1)
				} else {
					atomic.AddInt64(&metrics.TotalHealthy, 1)
				}
				atomic.AddInt64(&metrics.TotalTriggers, int64(result.Stats.RulesTriggered))

				predicted := false
				worst := "none"
				for _, r := range result.Risks {
					if r.Severity == "high" {
						predicted = true
					}
					worst = r.Severity
				}

				actual := row.AtRisk
				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s %-12s %s | income: %10.2f | expense: %10.2f | at-risk: %-5v | heron: %-6s | triggers: %d\n",
						status,
						row.UserID,
						row.Month,
						row.CurrentMonthIncome,
						row.CurrentMonthExpense,
						row.AtRisk,
						worst,
						result.Stats.RulesTriggered,
					)
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)
	wg.Wait()

	return metrics
}

func evaluateSnapshot(client *http.Client, baseURL, tenantID string, row SnapshotRow) (*EvaluateResponse, error) {
	payload := map[string]any{
		"user_id":               row.UserID,
		"month":                 row.Month,
		"persona":               row.Persona,
		"current_month_income":  row.CurrentMonthIncome,
		"current_month_expense": row.CurrentMonthExpense,
		"avg_monthly_income":    row.AvgMonthlyIncome,
		"avg_monthly_expense":   row.AvgMonthlyExpense,
		"savings_rate":          row.SavingsRate,
		"income_volatility":     row.IncomeVolatility,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total At Risk:    %d\n", m.TotalAtRisk)
	fmt.Printf("   Total Healthy:    %d\n", m.TotalHealthy)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	if m.TotalProcessed > 0 {
		fmt.Printf("   Avg Triggers:     %.2f rules/snapshot\n", float64(m.TotalTriggers)/float64(m.TotalProcessed))
	}

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    HIGH        OK")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  R  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           H  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of high-risk flags, how many were truly at risk)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of at-risk months, how many did we flag)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalAtRisk > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalAtRisk) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalAtRisk) * 100
		fmt.Printf("   Risk Detected:     %d / %d (%.2f%%)\n", m.TruePositives, m.TotalAtRisk, detectionRate)
		fmt.Printf("   Risk Missed:       %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalAtRisk, missRate)
	}
	if m.TotalHealthy > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalHealthy) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalHealthy, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f snapshots/sec\n", tps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most at-risk months")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some at-risk months")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant risk being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most at-risk months are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - high-risk flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
