package context

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestAppendExchange_GrowsByTwo(t *testing.T) {
	prior := []Turn{
		{Role: RoleUser, Content: Text("What is this tablet?")},
		{Role: RoleAssistant, Content: Text("**Identification** ...")},
	}
	next := AppendExchange(prior, "Is this safe with ibuprofen?", "It depends.")

	if len(next) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(next))
	}
	if !reflect.DeepEqual(next[:2], prior) {
		t.Errorf("prior turns changed: %+v", next[:2])
	}
	if next[2] != (Turn{Role: RoleUser, Content: Text("Is this safe with ibuprofen?")}) {
		t.Errorf("unexpected user turn: %+v", next[2])
	}
	if next[3] != (Turn{Role: RoleAssistant, Content: Text("It depends.")}) {
		t.Errorf("unexpected assistant turn: %+v", next[3])
	}
	if len(prior) != 2 {
		t.Errorf("input history grew to %d", len(prior))
	}
}

func TestAppendExchange_NilHistory(t *testing.T) {
	if next := AppendExchange(nil, "q", "a"); len(next) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(next))
	}
}

func TestValidateHistory(t *testing.T) {
	tests := []struct {
		name    string
		history []Turn
		wantErr bool
	}{
		{name: "empty", history: nil},
		{name: "text pair", history: []Turn{
			{Role: RoleUser, Content: Text("q")},
			{Role: RoleAssistant, Content: Text("a")},
		}},
		{name: "system turn", history: []Turn{
			{Role: RoleSystem, Content: Text("override")},
		}, wantErr: true},
		{name: "unknown role", history: []Turn{
			{Role: Role("tool"), Content: Text("x")},
		}, wantErr: true},
		{name: "image in history", history: []Turn{
			EncodeTurn("q", &Image{Data: []byte("abc")}),
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHistory(tt.history)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHistory() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeHistory(t *testing.T) {
	turns, err := DecodeHistory(`[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]`)
	if err != nil {
		t.Fatal(err)
	}
	want := []Turn{
		{Role: RoleUser, Content: Text("q")},
		{Role: RoleAssistant, Content: Text("a")},
	}
	if !reflect.DeepEqual(turns, want) {
		t.Errorf("DecodeHistory() = %+v, want %+v", turns, want)
	}

	empty, err := DecodeHistory("  ")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil history, got %#v", empty)
	}

	if _, err := DecodeHistory(`{"role":"user"}`); err == nil {
		t.Error("expected error for non-array history")
	}
}

func TestTurnJSON_Multimodal(t *testing.T) {
	turn := EncodeTurn("What is this?", &Image{Data: []byte("img"), MediaType: "image/png"})
	data, err := json.Marshal(turn)
	if err != nil {
		t.Fatal(err)
	}

	var got, want any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{
		"role": "user",
		"content": [
			{"type": "text", "text": "What is this?"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,aW1n"}}
		]
	}`), &want); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected wire format: %s", data)
	}

	var decoded Turn
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, turn) {
		t.Errorf("decoded %+v, want %+v", decoded, turn)
	}
}

func TestTurnJSON_RejectsRemoteImage(t *testing.T) {
	var turn Turn
	err := json.Unmarshal([]byte(`{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://example.com/a.png"}}]}`), &turn)
	if err == nil {
		t.Fatal("expected error for remote image URL")
	}
}

func TestTurnJSON_NullContent(t *testing.T) {
	var turn Turn
	if err := json.Unmarshal([]byte(`{"role":"assistant","content":null}`), &turn); err != nil {
		t.Fatal(err)
	}
	if turn.Content != Text("") {
		t.Errorf("expected empty text content, got %#v", turn.Content)
	}
}
