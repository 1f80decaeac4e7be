package command

import (
	"encoding/json"
	"testing"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	cases := []Command{
		CreateTopic("orders"),
		ListTopics(),
		Enqueue("orders", "hello world"),
		Dequeue("orders"),
	}

	for _, c := range cases {
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("marshal %v: %v", c.Operation, err)
		}

		var got Command
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", c.Operation, err)
		}

		if got.ID != c.ID || got.Operation != c.Operation || got.Topic != c.Topic || got.Message != c.Message {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
		}
	}
}

func TestListTopicsWireMessageIsEmptyString(t *testing.T) {
	data, err := json.Marshal(ListTopics())
	if err != nil {
		t.Fatal(err)
	}

	var w struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatal(err)
	}
	if w.Message != "" {
		t.Fatalf("expected empty message for GET_TOPICS, got %q", w.Message)
	}
}

func TestEnqueueWireMessageIsJSONPayload(t *testing.T) {
	cmd := Enqueue("orders", "payload")
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}

	var w struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatal(err)
	}

	var payload enqueuePayload
	if err := json.Unmarshal([]byte(w.Message), &payload); err != nil {
		t.Fatalf("expected message to be JSON-encoded payload: %v", err)
	}
	if payload.Topic != "orders" || payload.Message != "payload" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestOperationStringCodes(t *testing.T) {
	want := map[Operation]string{
		OpDequeue:     "GET_MESSAGE",
		OpEnqueue:     "PUT_MESSAGE",
		OpListTopics:  "GET_TOPICS",
		OpCreateTopic: "PUT_TOPIC",
	}
	for op, s := range want {
		if op.String() != s {
			t.Errorf("Operation(%d).String() = %q, want %q", op, op.String(), s)
		}
	}
}
