package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartEntitlementConsumer connects to RabbitMQ, declares the
// purchase.confirmed and download.delivered queues (durable), and starts
// consuming both. Each message is appended to logs/entitlements.log in a
// single-line, human-friendly format. The function runs a reconnect loop
// and keeps running indefinitely; processing errors are logged and the
// offending message rejected so the server continues operating.
func StartEntitlementConsumer() error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("entitlement-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("entitlement-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("entitlement-consumer: set QoS failed: %v", err)
	}

	for _, name := range []string{PurchaseQueueName, DownloadQueueName} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	purchases, err := ch.Consume(PurchaseQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", PurchaseQueueName, err)
	}
	downloads, err := ch.Consume(DownloadQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", DownloadQueueName, err)
	}

	for {
		select {
		case d, ok := <-purchases:
			if !ok {
				return fmt.Errorf("purchase delivery channel closed")
			}
			handleDelivery(d, formatPurchase)
		case d, ok := <-downloads:
			if !ok {
				return fmt.Errorf("download delivery channel closed")
			}
			handleDelivery(d, formatDownload)
		}
	}
}

func handleDelivery(d amqp.Delivery, format func([]byte) (string, error)) {
	line, err := format(d.Body)
	if err != nil {
		log.Printf("entitlement-consumer: bad message: %v", err)
		_ = d.Reject(false) // drop; a malformed message never becomes parseable
		return
	}
	if err := appendLogLine(line); err != nil {
		log.Printf("entitlement-consumer: write log failed: %v", err)
		_ = d.Reject(true) // requeue; disk trouble may clear
		return
	}
	_ = d.Ack(false)
}

func formatPurchase(body []byte) (string, error) {
	var e PurchaseConfirmedEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s PURCHASE payment=%s method=%s email=%s",
		e.ConfirmedAt, e.PaymentID, e.Method, e.Email), nil
}

func formatDownload(body []byte) (string, error) {
	var e DownloadDeliveredEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s DOWNLOAD payment=%s format=%s kind=%s remaining=%d",
		e.DeliveredAt, e.PaymentID, strings.ToUpper(e.Format), e.TokenKind, e.Remaining), nil
}

func appendLogLine(line string) error {
	dir := "logs"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "entitlements.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteString(line + "\n")
	return err
}
