// payment-report queries the ClickHouse analytics store for settlement
// reports.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/spf13/cobra"
)

func main() {
	var addr string

	rootCmd := &cobra.Command{Use: "payment-report"}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:9000", "ClickHouse address")

	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recently settled payments",
		Run: func(cmd *cobra.Command, _ []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			conn := connect(addr)
			defer conn.Close()

			rows, err := conn.Query(context.Background(), `
				SELECT transaction_id, amount, currency, network, reference, settled_at
				FROM default.settled_payments
				ORDER BY settled_at DESC
				LIMIT ?`, limit)
			if err != nil {
				log.Fatal(err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TRANSACTION ID\tAMOUNT\tCURRENCY\tNETWORK\tREFERENCE\tSETTLED AT")
			for rows.Next() {
				var id, amount, currency, network, reference string
				var settledAt time.Time
				if err := rows.Scan(&id, &amount, &currency, &network, &reference, &settledAt); err != nil {
					log.Fatal(err)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", id, amount, currency, network, reference, settledAt.Format(time.RFC3339))
			}
			w.Flush()
		},
	}
	recentCmd.Flags().Int("limit", 20, "Number of payments to show")

	volumeCmd := &cobra.Command{
		Use:   "volume",
		Short: "Show settled volume per currency for the last 24 hours",
		Run: func(cmd *cobra.Command, _ []string) {
			conn := connect(addr)
			defer conn.Close()

			rows, err := conn.Query(context.Background(), `
				SELECT currency, count(), sum(toFloat64(amount))
				FROM default.settled_payments
				WHERE settled_at > now() - INTERVAL 1 DAY
				GROUP BY currency
				ORDER BY currency`)
			if err != nil {
				log.Fatal(err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "CURRENCY\tCOUNT\tVOLUME")
			for rows.Next() {
				var currency string
				var count uint64
				var volume float64
				if err := rows.Scan(&currency, &count, &volume); err != nil {
					log.Fatal(err)
				}
				fmt.Fprintf(w, "%s\t%d\t%.8f\n", currency, count, volume)
			}
			w.Flush()
		},
	}

	rootCmd.AddCommand(recentCmd, volumeCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func connect(addr string) clickhouse.Conn {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
	})
	if err != nil {
		log.Fatal(err)
	}
	return conn
}
