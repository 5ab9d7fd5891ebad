// dlq-tool inspects and replays records parked on the payments dead-letter
// topic. Workers park a record with error_type, error_string and
// original_topic headers; retry resends the payload to its original topic
// (or an explicit --target-topic) with a replayed_at marker.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"qpesapay/internal/config"
)

type dlqOpts struct {
	brokers []string
	topic   string
}

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	opts := &dlqOpts{}
	var brokerList string

	root := &cobra.Command{
		Use:   "dlq-tool",
		Short: "Inspect and replay dead-lettered payment events",
		PersistentPreRun: func(*cobra.Command, []string) {
			opts.brokers = strings.Split(brokerList, ",")
		},
	}
	root.PersistentFlags().StringVar(&brokerList, "brokers", cfg.Kafka.BootstrapServers, "Kafka broker addresses")
	root.PersistentFlags().StringVar(&opts.topic, "dlq-topic", cfg.Kafka.DLQTopic, "dead-letter topic")

	view := &cobra.Command{
		Use:   "view",
		Short: "List parked records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return runView(cmd.Context(), opts, limit)
		},
	}
	view.Flags().Int("limit", 10, "max records to show")

	retry := &cobra.Command{
		Use:   "retry <partition:offset>",
		Short: "Replay one parked record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("target-topic")
			partition, offset, err := splitPartitionOffset(args[0])
			if err != nil {
				return err
			}
			return runRetry(cmd.Context(), opts, partition, offset, target)
		},
	}
	retry.Flags().String("target-topic", "", "override the original_topic header")

	root.AddCommand(view, retry)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runView(ctx context.Context, opts *dlqOpts, limit int) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(opts.brokers...),
		kgo.ConsumeTopics(opts.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchMaxWait(5*time.Second),
	)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer client.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PART\tOFFSET\tTIME\tKEY\tORIGINAL_TOPIC\tERROR_TYPE\tERROR")

	shown := 0
	for shown < limit {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || len(fetches.Records()) == 0 {
			break
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			if shown >= limit {
				return
			}
			h := headerMap(rec.Headers)
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				rec.Partition, rec.Offset,
				rec.Timestamp.UTC().Format(time.RFC3339),
				string(rec.Key),
				h["original_topic"], h["error_type"], h["error_string"])
			shown++
		})
	}
	if shown == 0 {
		fmt.Println("dead-letter topic is empty")
		return nil
	}
	return w.Flush()
}

func runRetry(ctx context.Context, opts *dlqOpts, partition int32, offset int64, targetTopic string) error {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(opts.brokers...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			opts.topic: {partition: kgo.NewOffset().At(offset)},
		}),
	)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	if err := fetches.Err(); err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	records := fetches.Records()
	if len(records) == 0 || records[0].Offset != offset {
		return fmt.Errorf("no record at %d:%d", partition, offset)
	}
	parked := records[0]

	if targetTopic == "" {
		targetTopic = headerMap(parked.Headers)["original_topic"]
	}
	if targetTopic == "" {
		return fmt.Errorf("record carries no original_topic header; pass --target-topic")
	}

	producer, err := kgo.NewClient(kgo.SeedBrokers(opts.brokers...))
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer producer.Close()

	replay := &kgo.Record{
		Topic: targetTopic,
		Key:   parked.Key,
		Value: parked.Value,
		Headers: append(parked.Headers, kgo.RecordHeader{
			Key:   "replayed_at",
			Value: []byte(time.Now().UTC().Format(time.RFC3339)),
		}),
	}
	// Produce synchronously so the exit code reflects the outcome.
	if err := producer.ProduceSync(ctx, replay).FirstErr(); err != nil {
		return fmt.Errorf("replay record: %w", err)
	}

	fmt.Printf("replayed %d:%d to %s\n", partition, offset, targetTopic)
	return nil
}

func headerMap(headers []kgo.RecordHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}

func splitPartitionOffset(arg string) (int32, int64, error) {
	partStr, offStr, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected partition:offset, e.g. 0:123")
	}
	partition, err := strconv.ParseInt(partStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid partition %q", partStr)
	}
	offset, err := strconv.ParseInt(offStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid offset %q", offStr)
	}
	return int32(partition), offset, nil
}
