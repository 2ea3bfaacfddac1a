package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"propel/pkg/config"
)

const (
	DefaultExchange = "propel.events"
	heartbeat       = 10 * time.Second
)

// Topology names the exchanges shared by publishers and consumers. Failed
// messages go to DLQExchange under their original routing key.
type Topology struct {
	Exchange    string
	DLQExchange string
}

func NewTopology(exchange string) Topology {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return Topology{Exchange: exchange, DLQExchange: exchange + ".dlq"}
}

func TopologyFromConfig(cfg config.MQConfig) Topology {
	return NewTopology(cfg.Exchange)
}

// Declare creates both durable topic exchanges. It is idempotent.
func (t Topology) Declare(ch *amqp091.Channel) error {
	for _, name := range []string{t.Exchange, t.DLQExchange} {
		if err := ch.ExchangeDeclare(name, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// Dial opens a connection that shows up as connectionName in the broker's
// management UI.
func Dial(url, connectionName string) (*amqp091.Connection, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// openChannel dials, opens a channel and declares the topology. On error
// nothing is left open.
func openChannel(url, connectionName string, topo Topology) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := Dial(url, connectionName)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := topo.Declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
