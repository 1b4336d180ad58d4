// Command publish-verdict writes a submission.judged event so a running
// client with KAFKA_BROKERS set applies it.
//
//	go run ./scripts/publish-verdict <submissionId> <userId> [verdict] [score]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/pkg/events"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
)

func main() {
	godotenv.Load()

	if len(os.Args) < 3 {
		fmt.Println("usage: publish-verdict <submissionId> <userId> [verdict] [score]")
		os.Exit(2)
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}

	verdict := events.VerdictAccepted
	if len(os.Args) > 3 {
		verdict = strings.ToUpper(os.Args[3])
	}
	score := 100
	if len(os.Args) > 4 {
		n, err := strconv.Atoi(os.Args[4])
		if err != nil {
			fmt.Printf("Invalid score %q: %v\n", os.Args[4], err)
			os.Exit(2)
		}
		score = n
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(brokers, ",")...),
		Topic:    events.TopicSubmissionJudged,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	event := events.SubmissionJudgedEvent{
		SubmissionID:    os.Args[1],
		UserID:          os.Args[2],
		Verdict:         verdict,
		Score:           score,
		TestCasesPassed: score / 10,
		TestCasesTotal:  10,
		Timestamp:       time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(event)
	if err != nil {
		fmt.Printf("Error marshaling event: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.UserID), Value: data}); err != nil {
		fmt.Printf("Error writing to Kafka: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sent %s for submission %s (verdict %s, score %d)\n", events.TopicSubmissionJudged, event.SubmissionID, event.Verdict, event.Score)
}
