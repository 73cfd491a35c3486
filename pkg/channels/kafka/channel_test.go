package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
)

func TestBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "env-1:9092,env-2:9092")

	assert.Equal(t, []string{"a:9092", "b:9092"}, Brokers("a:9092, b:9092,"))
	assert.Equal(t, []string{"env-1:9092", "env-2:9092"}, Brokers(""))

	t.Setenv("KAFKA_BROKERS", "")
	assert.Empty(t, Brokers(""))
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	_, _, err := CreateChannel(watermill.NopLogger{}, "marketflow", nil)
	assert.ErrorIs(t, err, ErrNoBrokers)
}
