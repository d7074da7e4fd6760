// Package main - daily-stats prints fill count, win/loss counts, P&L and
// fees for one trading date, read straight from the journal's SQLite
// trading.db.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nitinkhare/stockrs-go/internal/analytics"
	"github.com/nitinkhare/stockrs-go/internal/journal"
	"github.com/nitinkhare/stockrs-go/internal/types"
)

const (
	reset   = "\033[0m"
	red     = "\033[0;31m"
	green   = "\033[0;32m"
	yellow  = "\033[1;33m"
	blue    = "\033[0;34m"
	cyan    = "\033[0;36m"
	magenta = "\033[0;35m"
)

func main() {
	dateFlag := flag.String("date", "", "date in YYYY-MM-DD format (defaults to today)")
	dbFlag := flag.String("trading-db", "trading.db", "path to the journal's trading.db")
	flag.Parse()

	date := *dateFlag
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		fmt.Fprintln(os.Stderr, "invalid date format, expected YYYY-MM-DD")
		os.Exit(1)
	}

	j, err := journal.Open(*dbFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open journal: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	ctx := context.Background()

	trades, err := j.TradesOnDate(ctx, date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read trades: %v\n", err)
		os.Exit(1)
	}
	overview, err := j.OverviewRange(ctx, date, date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read overview: %v\n", err)
		os.Exit(1)
	}

	report := analytics.Analyze(trades, overview)
	displaySummary(date, report)
	if report.TotalFills > 0 {
		displayTrades(trades)
	}
}

func displaySummary(date string, report *analytics.PerformanceReport) {
	fmt.Printf("%s===================================================%s\n", cyan, reset)
	fmt.Printf("%s  DAILY TRADING STATISTICS%s\n", cyan, reset)
	fmt.Printf("%s  Date: %s%s\n", cyan, date, reset)
	fmt.Printf("%s===================================================%s\n\n", cyan, reset)

	if report.TotalFills == 0 {
		fmt.Printf("%sNo trades found for %s%s\n\n", yellow, date, reset)
		return
	}

	pnlColor := green
	if report.TotalPnL < 0 {
		pnlColor = red
	}

	fmt.Printf("%s%s%s\n", blue, strings.Repeat("-", 51), reset)
	fmt.Printf("%sSUMMARY%s\n", blue, reset)
	fmt.Printf("%s%s%s\n", blue, strings.Repeat("-", 51), reset)

	fmt.Printf("  %sTotal fills:%s      %s%d%s\n", yellow, reset, green, report.TotalFills, reset)
	fmt.Printf("  %sWinning trades:%s   %s%d%s\n", yellow, reset, green, report.WinningTrades, reset)
	fmt.Printf("  %sLosing trades:%s    %s%d%s\n", yellow, reset, red, report.LosingTrades, reset)
	fmt.Printf("  %sWin rate:%s         %s%.1f%%%s\n", yellow, reset, green, report.WinRate, reset)
	fmt.Println()

	fmt.Printf("  %sDaily P&L:%s        %sRs. %s%s\n", yellow, reset, pnlColor, humanize.FormatFloat("#,###.##", report.TotalPnL), reset)
	fmt.Printf("  %sFees paid:%s        %sRs. %s%s\n", yellow, reset, cyan, humanize.FormatFloat("#,###.##", report.TotalFees), reset)
	fmt.Printf("%s%s%s\n\n", blue, strings.Repeat("-", 51), reset)
}

func displayTrades(trades []types.Trade) {
	fmt.Printf("%s%s%s\n", blue, strings.Repeat("-", 51), reset)
	fmt.Printf("%sFILLS%s\n", blue, reset)
	fmt.Printf("%s%s%s\n\n", blue, strings.Repeat("-", 51), reset)

	fmt.Printf("%s%-12s %-6s %-8s %-10s %-10s %-10s%s\n", magenta, "Stock", "Side", "Qty", "Price", "P&L", "Time", reset)
	fmt.Printf("%s%s%s\n", magenta, strings.Repeat("-", 65), reset)

	for _, t := range trades {
		pnlColor := green
		if t.Profit < 0 {
			pnlColor = red
		}
		fmt.Printf("%-12s %-6s %-8d %-10.2f %s%-10.2f%s %-10s\n",
			t.Stock, t.Side, t.Qty, t.Price, pnlColor, t.Profit, reset, t.Time)
	}
	fmt.Println()
}
