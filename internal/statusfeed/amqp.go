// Package statusfeed delivers file lifecycle events from a processing backend.
package statusfeed

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"academic-vault/internal/av"
	"academic-vault/internal/model"
)

// DefaultExchange is the topic exchange used when none is configured.
const DefaultExchange = "av.file-status"

// RoutingKey returns the routing key status events of a file are published with.
func RoutingKey(fileID string) string {
	return "file.status." + fileID
}

// AMQPFeed is an av.StatusSource backed by a RabbitMQ topic exchange. Each
// Watch consumes from its own exclusive queue bound to the file's routing key.
type AMQPFeed struct {
	conn     *amqp.Connection
	exchange string
	logger   av.Logger
}

var _ av.StatusSource = (*AMQPFeed)(nil)

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string, logger av.Logger) (*AMQPFeed, error) {
	if logger == nil {
		logger = av.NewNopLogger()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()
	if err := declareExchange(ch, exchange); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPFeed{conn: conn, exchange: exchange, logger: logger}, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}
	return nil
}

func (f *AMQPFeed) Watch(ctx context.Context, fileID string) (<-chan av.StatusEvent, error) {
	ch, err := f.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declaring queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKey(fileID), f.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("binding queue: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consuming queue: %w", err)
	}

	events := make(chan av.StatusEvent)
	go func() {
		defer close(events)
		defer ch.Close()
		for {
			var d amqp.Delivery
			var ok bool
			select {
			case <-ctx.Done():
				return
			case d, ok = <-deliveries:
				if !ok {
					return
				}
			}
			ev, err := DecodeEvent(d.Body)
			if err != nil {
				f.logger.Warn("dropping malformed status event", "file_id", fileID, "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case events <- ev:
			}
		}
	}()
	return events, nil
}

// Publish sends a status event for ev.FileID.
func (f *AMQPFeed) Publish(ctx context.Context, ev av.StatusEvent) error {
	body, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	ch, err := f.conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, f.exchange, RoutingKey(ev.FileID), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing status event: %w", err)
	}
	return nil
}

// Close closes the broker connection.
func (f *AMQPFeed) Close() error {
	return f.conn.Close()
}

// DecodeEvent parses a JSON status event {"file_id": ..., "status": ...}.
func DecodeEvent(body []byte) (av.StatusEvent, error) {
	var ev av.StatusEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return av.StatusEvent{}, fmt.Errorf("decoding status event: %w", err)
	}
	if err := validate(ev); err != nil {
		return av.StatusEvent{}, err
	}
	return ev, nil
}

// EncodeEvent is the inverse of DecodeEvent.
func EncodeEvent(ev av.StatusEvent) ([]byte, error) {
	if err := validate(ev); err != nil {
		return nil, err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding status event: %w", err)
	}
	return body, nil
}

func validate(ev av.StatusEvent) error {
	if ev.FileID == "" {
		return fmt.Errorf("%w: status event without file_id", av.ErrValidation)
	}
	switch ev.Status {
	case model.StatusIdle, model.StatusUploading, model.StatusScanning, model.StatusProcessing,
		model.StatusReady, model.StatusError, model.StatusQuarantined:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", av.ErrValidation, ev.Status)
}
