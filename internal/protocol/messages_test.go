package protocol

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeTranscribe(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x52, 0x49, 0x46, 0x46})
	raw := []byte(`{"type":"transcribe","audio_data":"` + payload + `","language":"marathi"}`)

	msg, err := DecodeRequest(ServiceASR, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, ok := msg.(TranscribeRequest)
	if !ok {
		t.Fatalf("expected TranscribeRequest, got %T", msg)
	}
	if req.Language != "marathi" {
		t.Fatalf("expected language marathi, got %q", req.Language)
	}
	if len(req.Audio()) != 4 {
		t.Fatalf("expected 4 decoded bytes, got %d", len(req.Audio()))
	}
}

func TestDecodeTranscribeEmptyAudioIsValid(t *testing.T) {
	raw := []byte(`{"type":"transcribe","language":"en"}`)
	msg, err := DecodeRequest(ServiceASR, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := msg.(TranscribeRequest)
	if len(req.Audio()) != 0 {
		t.Fatalf("expected empty audio, got %d bytes", len(req.Audio()))
	}
}

func TestDecodeTranscribeBadBase64(t *testing.T) {
	raw := []byte(`{"type":"transcribe","audio_data":"!!not-base64!!"}`)
	_, err := DecodeRequest(ServiceASR, raw)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Param != "audio_data" {
		t.Fatalf("expected audio_data param, got %q", de.Param)
	}
}

func TestDecodeTranslateRequiresFields(t *testing.T) {
	cases := []struct {
		raw   string
		param string
	}{
		{`{"type":"translate","source_language":"marathi","target_language":"spanish"}`, "text"},
		{`{"type":"translate","text":"  ","source_language":"marathi","target_language":"spanish"}`, "text"},
		{`{"type":"translate","text":"x","target_language":"spanish"}`, "source_language"},
		{`{"type":"translate","text":"x","source_language":"marathi"}`, "target_language"},
	}
	for _, tc := range cases {
		_, err := DecodeRequest(ServiceTranslator, []byte(tc.raw))
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("expected DecodeError for %s, got %v", tc.raw, err)
		}
		if de.Param != tc.param {
			t.Fatalf("expected param %q, got %q", tc.param, de.Param)
		}
	}
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := DecodeRequest(ServiceASR, []byte(`{"audio_data":""}`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Param != "type" {
		t.Fatalf("expected type param, got %q", de.Param)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := DecodeRequest(ServiceTTS, []byte(`{"type":"reboot"}`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Code != "unsupported" {
		t.Fatalf("expected unsupported code, got %q", de.Code)
	}
}

func TestDecodeRejectsForeignType(t *testing.T) {
	raw := []byte(`{"type":"translate","text":"x","source_language":"a","target_language":"b"}`)
	if _, err := DecodeRequest(ServiceTTS, raw); err == nil {
		t.Fatal("expected translate frame to be rejected on the tts service")
	}
}

func TestDecodePing(t *testing.T) {
	for _, svc := range []Service{ServiceASR, ServiceTranslator, ServiceTTS} {
		msg, err := DecodeRequest(svc, []byte(`{"type":"ping"}`))
		if err != nil {
			t.Fatalf("unexpected error on %s: %v", svc, err)
		}
		if _, ok := msg.(PingRequest); !ok {
			t.Fatalf("expected PingRequest, got %T", msg)
		}
	}
}
