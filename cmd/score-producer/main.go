package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/gaming-platform/internal/domain"
)

// Publishes synthetic score events for load-testing the consumer. Users and
// the session must already exist; events for unknown ids are rejected
// downstream.
func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "score-events", "Kafka topic")
	users := flag.String("users", "", "User ids (comma-separated)")
	session := flag.String("session", "", "Game session id")
	rate := flag.Int("rate", 10, "Events per second")
	count := flag.Int("count", 0, "Total events to send (0 = until interrupted)")
	flag.Parse()

	sessionID, err := uuid.Parse(*session)
	if err != nil {
		log.Fatalf("invalid -session: %v", err)
	}

	var userIDs []uuid.UUID
	for _, raw := range strings.Split(*users, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			log.Fatalf("invalid user id %q: %v", raw, err)
		}
		userIDs = append(userIDs, id)
	}
	if len(userIDs) == 0 {
		log.Fatal("at least one user id is required via -users")
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		log.Fatalf("failed to create producer: %v", err)
	}
	defer producer.Close()

	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendEvent := func(event domain.ScoreEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.UserID.String()),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
		}
	}

	fmt.Printf("publishing score events to %s (topic %s, %d/sec)\n", *brokers, *topic, *rate)
	fmt.Println("press Ctrl+C to stop")

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\ncompleted. sent: %d, errors: %d\n",
			atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	var sent int64
	for {
		select {
		case <-sigChan:
			fmt.Println("\nshutting down...")
			shutdown()
			return

		case <-ticker.C:
			action := domain.ActionWin
			points := rand.Intn(100) + 1
			if rand.Intn(2) == 0 {
				action = domain.ActionLose
				points = 0
			}

			sendEvent(domain.ScoreEvent{
				UserID:        userIDs[rand.Intn(len(userIDs))],
				GameSessionID: sessionID,
				Points:        points,
				ActionType:    action,
			})
			sent++

			if *count > 0 && sent >= int64(*count) {
				shutdown()
				return
			}

		case <-statsTicker.C:
			fmt.Printf("[%s] sent: %d | acked: %d | errors: %d\n",
				time.Now().Format("15:04:05"),
				sent,
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
