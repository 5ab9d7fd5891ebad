// txn-generator produces a steady stream of synthetic payment requests
// against a running gateway, for load and smoke testing.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
)

// paymentRequest mirrors the gateway's create endpoint body.
type paymentRequest struct {
	UserID           string `json:"user_id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Network          string `json:"network"`
	RecipientAddress string `json:"recipient_address"`
	IdempotencyKey   string `json:"idempotency_key"`
	Description      string `json:"description,omitempty"`
}

// recipients is a pool of structurally valid addresses per network. The
// generator exercises the whole pipeline, so the addresses have to pass
// checksum validation.
var recipients = []struct {
	network string
	address string
}{
	{"ethereum", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
	{"ethereum", "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"},
	{"ethereum", "0x52908400098527886e0f7030069857d2e4169ee7"},
	{"tron", "TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"},
	{"bitcoin", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"},
	{"bitcoin", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"},
}

var amounts = []struct {
	currency string
	max      int // in minor units
	decimals int32
}{
	{"USD", 1000000, 2},
	{"KES", 50000000, 2},
	{"USDT", 500000000, 6},
}

func main() {
	targetURL := flag.String("target", "http://localhost:8080/api/v1/payments", "Target URL for sending payments")
	rps := flag.Int("rps", 20, "Requests per second")
	token := flag.String("token", "", "Bearer token for the gateway")
	flag.Parse()

	log.Printf("Starting generator: target=%s, rps=%d\n", *targetURL, *rps)

	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A small fixed population of users keeps the velocity caps in play.
	users := make([]string, 25)
	for i := range users {
		users[i] = uuid.New().String()
	}

	for {
		select {
		case <-ticker.C:
			go sendRequest(*targetURL, *token, users)
		case <-ctx.Done():
			log.Println("Shutting down generator...")
			return
		}
	}
}

func sendRequest(url, token string, users []string) {
	recipient := recipients[rand.Intn(len(recipients))]
	amount := amounts[rand.Intn(len(amounts))]

	minor := rand.Intn(amount.max) + 1
	value := float64(minor) / math.Pow10(int(amount.decimals))

	reqData := paymentRequest{
		UserID:           users[rand.Intn(len(users))],
		Amount:           strconv.FormatFloat(value, 'f', int(amount.decimals), 64),
		Currency:         amount.currency,
		Network:          recipient.network,
		RecipientAddress: recipient.address,
		IdempotencyKey:   uuid.New().String(),
		Description:      faker.Sentence(),
	}

	body, err := json.Marshal(reqData)
	if err != nil {
		log.Printf("ERROR: failed to marshal request: %v", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		log.Printf("ERROR: failed to create request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("ERROR: failed to send request: %v", err)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		log.Printf("INFO: payment accepted, status: %d", resp.StatusCode)
	case http.StatusTooManyRequests:
		log.Printf("INFO: rate or velocity limit hit")
	default:
		log.Printf("WARN: received status code: %d", resp.StatusCode)
	}
}
