package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"

	mqcontracts "leannotes/contracts/mq"
)

func TestDeadLetterRouting(t *testing.T) {
	assert.Equal(t, "leannotes.events.dlq", DLQExchangeName)
	assert.Equal(t, mqcontracts.RoutingKeyNotesChanged+".dlq", DLQQueueName(mqcontracts.RoutingKeyNotesChanged))
	assert.Equal(t, DLQExchangeName, deadLetterArgs()["x-dead-letter-exchange"])
}
