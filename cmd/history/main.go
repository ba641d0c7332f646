package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/Gunvolt24/leasepull/config"
	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/repo/postgres"
)

// CLI оператора: история доставок сообщения (или последние записи журнала) из Postgres.
func main() {
	_ = godotenv.Load(".env.local")

	messageID := flag.String("id", "", "message id; if empty, prints the most recent records")
	limit := flag.Int("limit", 20, "max records to print")
	dsn := flag.String("dsn", "", "postgres DSN (default: LEASEPULL_JOURNAL_POSTGRES_DSN)")
	asJSON := flag.Bool("json", false, "print records as JSON lines")
	timeout := flag.Duration("timeout", 10*time.Second, "query timeout")
	flag.Parse()

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(2)
		}
		*dsn = cfg.Journal.Postgres.DSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, *dsn, 2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := postgres.NewHistoryRepository(pool)

	var records []domain.DeliveryRecord
	if *messageID != "" {
		records, err = repo.ListByMessage(ctx, *messageID, *limit)
	} else {
		records, err = repo.Recent(ctx, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no delivery history")
		os.Exit(1)
	}

	if err := render(os.Stdout, records, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "print: %v\n", err)
		os.Exit(1)
	}
}

func render(w io.Writer, records []domain.DeliveryRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for i := range records {
			if err := enc.Encode(&records[i]); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OCCURRED_AT\tMESSAGE_ID\tCONSUMER\tTOPIC\tSTATUS\tATTEMPT\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.OccurredAt.Format(time.RFC3339), r.MessageID, r.Consumer, r.Topic, r.Status, r.Attempt, r.Detail)
	}
	return errors.Join(tw.Flush())
}
