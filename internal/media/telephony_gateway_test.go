package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/voxbridge/voicecore/internal/types"
)

func TestTelephonyGateway_ReceiveAudio(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	evt, _ := json.Marshal(telephonyEvent{Event: "media", StreamSID: "ss-1", Media: &telephonyMedia{Payload: payload}})

	conn := &fakeWSConn{reads: [][]byte{evt}}
	gw := NewTelephonyGateway("call-1", "ss-1", conn)
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	chunk, err := gw.ReceiveAudio(ctx)
	if err != nil {
		t.Fatalf("ReceiveAudio() error = %v", err)
	}
	if chunk == nil || string(chunk.Data) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("ReceiveAudio() = %+v", chunk)
	}
}

func TestTelephonyGateway_ReceiveAudio_IgnoresNonMediaEvents(t *testing.T) {
	startEvt, _ := json.Marshal(telephonyEvent{Event: "start", StreamSID: "ss-1"})
	payload := base64.StdEncoding.EncodeToString([]byte{9, 9})
	mediaEvt, _ := json.Marshal(telephonyEvent{Event: "media", Media: &telephonyMedia{Payload: payload}})

	conn := &fakeWSConn{reads: [][]byte{startEvt, mediaEvt}}
	gw := NewTelephonyGateway("call-1", "ss-1", conn)
	defer gw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	chunk, err := gw.ReceiveAudio(ctx)
	if err != nil {
		t.Fatalf("ReceiveAudio() error = %v", err)
	}
	if chunk == nil || string(chunk.Data) != string([]byte{9, 9}) {
		t.Errorf("ReceiveAudio() = %+v, want the media event's payload", chunk)
	}
}

func TestTelephonyGateway_SendAudio(t *testing.T) {
	conn := &fakeWSConn{}
	gw := NewTelephonyGateway("call-1", "ss-1", conn)
	defer gw.Close()

	if err := gw.SendAudio(&types.AudioChunk{Data: []byte{1, 2, 3, 4}}); err != nil {
		t.Fatalf("SendAudio() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(conn.writes))
	}

	var evt telephonyEvent
	if err := json.Unmarshal(conn.writes[0], &evt); err != nil {
		t.Fatalf("unmarshal written event: %v", err)
	}
	if evt.StreamSID != "ss-1" || evt.Media == nil {
		t.Errorf("written event = %+v", evt)
	}
}
