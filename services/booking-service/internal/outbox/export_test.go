package outbox

var ToKafkaMessageForTest = toKafkaMessage
