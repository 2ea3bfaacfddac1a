package mq

import (
	"testing"

	"propel/pkg/config"
)

func TestTopologyFromConfig(t *testing.T) {
	topo := TopologyFromConfig(config.MQConfig{Exchange: "staging.events"})
	if topo.Exchange != "staging.events" || topo.DLQExchange != "staging.events.dlq" {
		t.Fatalf("unexpected topology: %+v", topo)
	}

	def := TopologyFromConfig(config.MQConfig{})
	if def.Exchange != DefaultExchange || def.DLQExchange != DefaultExchange+".dlq" {
		t.Fatalf("unexpected default topology: %+v", def)
	}
}
