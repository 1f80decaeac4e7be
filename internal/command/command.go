// Package command defines the broker's replicated command format: the
// four operations a client can submit, and the JSON wire encoding shared by
// the peer RPC surface and the client API.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Operation is the wire code for a command's verb. The integer values are
// fixed by the protocol so that a mixed-implementation cluster can agree on
// them without a shared schema.
type Operation int

const (
	OpDequeue     Operation = 1 // GET_MESSAGE
	OpEnqueue     Operation = 2 // PUT_MESSAGE
	OpListTopics  Operation = 3 // GET_TOPICS
	OpCreateTopic Operation = 4 // PUT_TOPIC
)

func (o Operation) String() string {
	switch o {
	case OpDequeue:
		return "GET_MESSAGE"
	case OpEnqueue:
		return "PUT_MESSAGE"
	case OpListTopics:
		return "GET_TOPICS"
	case OpCreateTopic:
		return "PUT_TOPIC"
	default:
		return "UNKNOWN"
	}
}

// Command is an immutable, globally-identified unit of work appended to the
// log. Topic carries the topic name for CreateTopic/Dequeue (and is empty
// for ListTopics); Message additionally carries the enqueued payload for
// Enqueue.
type Command struct {
	ID        string
	Operation Operation
	Topic     string
	Message   string
}

// New builds a Command with a fresh id.
func New(op Operation, topic, message string) Command {
	return Command{
		ID:        uuid.NewString(),
		Operation: op,
		Topic:     topic,
		Message:   message,
	}
}

func CreateTopic(topic string) Command { return New(OpCreateTopic, topic, "") }
func ListTopics() Command              { return New(OpListTopics, "", "") }
func Enqueue(topic, message string) Command {
	return New(OpEnqueue, topic, message)
}
func Dequeue(topic string) Command { return New(OpDequeue, topic, "") }

// enqueuePayload is the inner JSON object carried inside the wire
// "message" field for PUT_MESSAGE commands.
type enqueuePayload struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// wireForm mirrors the LogEntry command wire form from the spec:
// {id, operation, message}. message is the empty string for GET_TOPICS, the
// topic name for PUT_TOPIC/GET_MESSAGE, and a JSON-encoded {topic,message}
// string for PUT_MESSAGE.
type wireForm struct {
	ID        string `json:"id"`
	Operation int    `json:"operation"`
	Message   string `json:"message"`
}

// MarshalJSON implements the wire form described in spec §6.2.
func (c Command) MarshalJSON() ([]byte, error) {
	w := wireForm{ID: c.ID, Operation: int(c.Operation)}

	switch c.Operation {
	case OpListTopics:
		// message is the empty string
	case OpCreateTopic, OpDequeue:
		w.Message = c.Topic
	case OpEnqueue:
		payload, err := json.Marshal(enqueuePayload{Topic: c.Topic, Message: c.Message})
		if err != nil {
			return nil, err
		}
		w.Message = string(payload)
	default:
		return nil, fmt.Errorf("command: unknown operation %d", c.Operation)
	}

	return json.Marshal(w)
}

// UnmarshalJSON reconstructs a Command from its wire form.
func (c *Command) UnmarshalJSON(data []byte) error {
	var w wireForm
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c.ID = w.ID
	c.Operation = Operation(w.Operation)
	c.Topic = ""
	c.Message = ""

	switch c.Operation {
	case OpListTopics:
		return nil
	case OpCreateTopic, OpDequeue:
		c.Topic = w.Message
		return nil
	case OpEnqueue:
		var payload enqueuePayload
		if err := json.Unmarshal([]byte(w.Message), &payload); err != nil {
			return fmt.Errorf("command: decoding enqueue payload: %w", err)
		}
		c.Topic = payload.Topic
		c.Message = payload.Message
		return nil
	default:
		return fmt.Errorf("command: unknown operation %d", c.Operation)
	}
}
