package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rakaadit/go-rbac-navigation/config"
	"github.com/rakaadit/go-rbac-navigation/internal/application"
	"github.com/rakaadit/go-rbac-navigation/pkg/helpers"
)

// Consumes navigation audit events from RabbitMQ and writes them to the
// structured log. Keeping the consumer out of the request path means a
// broker outage never slows a mutation down.
func main() {
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-audit", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQAuditQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	if _, err := ch.QueueDeclare(cfg.RabbitMQAuditQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQAuditQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var ev application.AuditEvent
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				logger.WithError(err).Warn("bad audit message")
				_ = msg.Nack(false, false)
				continue
			}
			logger.WithFields(map[string]interface{}{
				"action":    ev.Action,
				"entity_id": ev.EntityID,
				"actor_id":  ev.ActorID,
				"detail":    ev.Detail,
				"at":        ev.At,
			}).Info("audit event")
			_ = msg.Ack(false)
		}
		close(done)
	}()

	logger.Infof("audit worker consuming from %s", cfg.RabbitMQAuditQueue)
	select {
	case <-stop:
		logger.Info("audit worker shutting down")
	case <-done:
		logger.Info("audit channel closed")
	}
}
