package deadletter

import "time"

type DeadLetter struct {
	Context ProcessingContext `json:"context"`
	Message Message           `json:"message"`
	Reason  Reason            `json:"reason"`
}

type ProcessingContext struct {
	Version  string    `json:"version"`
	Revision string    `json:"revision"`
	Time     time.Time `json:"time"`
	Host     string    `json:"host"`
}

type Message struct {
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       []byte    `json:"key,omitempty"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type Reason struct {
	Category string `json:"category"`
	Error    string `json:"error"`
}
