// clear-trades deletes one day's rows from the journal's trading.db and
// starts that day fresh.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

func main() {
	dbFlag := flag.String("trading-db", "trading.db", "path to the journal's trading.db")
	dateFlag := flag.String("date", "", "date in YYYY-MM-DD format (defaults to today)")
	confirmFlag := flag.Bool("confirm", false, "confirm deletion (must be explicit)")
	flag.Parse()

	date := *dateFlag
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	if !*confirmFlag {
		fmt.Println("SAFETY CHECK - must confirm deletion")
		fmt.Println()
		fmt.Printf("This will DELETE all trading rows for: %s\n", date)
		fmt.Println()
		fmt.Println("To proceed, run:")
		fmt.Printf("  clear-trades --trading-db %s --date %s --confirm\n", *dbFlag, date)
		fmt.Println()
		os.Exit(0)
	}

	db, err := sql.Open("sqlite", *dbFlag+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("journal connection failed: %v", err)
	}

	fmt.Printf("Deleting all journal rows for: %s\n\n", date)

	result, err := db.Exec(`DELETE FROM trading WHERE date = ?`, date)
	if err != nil {
		log.Fatalf("delete trading rows: %v", err)
	}
	tradesDeleted, _ := result.RowsAffected()
	fmt.Printf("  deleted %d trading rows\n", tradesDeleted)

	result, err = db.Exec(`DELETE FROM overview WHERE date = ?`, date)
	if err != nil {
		log.Fatalf("delete overview row: %v", err)
	}
	overviewDeleted, _ := result.RowsAffected()
	fmt.Printf("  deleted %d overview rows\n", overviewDeleted)

	fmt.Println()
	fmt.Println("Clean slate ready. You can now run:")
	fmt.Println("  engine --mode backtest")
}
