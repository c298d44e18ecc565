package queue

import (
	"fmt"
	"time"

	"github.com/storyweft/novelmap/internal/util"
	"github.com/storyweft/novelmap/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Queue names. Each queue gets a companion retry queue (10s TTL dead-lettering
// back to the main queue) and a dead-letter queue for messages that exhausted
// their retries.
const (
	QueueAnalyze = "analyze_queue"
	QueueOutline = "outline_queue"
	QueueDelete  = "delete_queue"
)

// WorkerQueues lists every queue the worker consumes.
var WorkerQueues = []string{QueueAnalyze, QueueOutline, QueueDelete}

// QueueAnalyzeMsg requests a sequential analysis run over a document's
// unanalyzed chunks.
type QueueAnalyzeMsg struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}

// QueueOutlineMsg requests outline generation for a document's chunks.
type QueueOutlineMsg struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}

// QueueDeleteMsg requests deletion of a document and its stored source
// files.
type QueueDeleteMsg struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	SourceKey  string `json:"source_key,omitempty"`
}

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			logger.Fatal("QueueDeclare failed", "queue", name, "err", err)
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			logger.Fatal("QueueDeclare failed", "queue", dlqName, "err", err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(10000),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			logger.Fatal("QueueDeclare failed", "queue", retryName, "err", err)
		}
	}

	return nil
}

func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "text/plain",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}
