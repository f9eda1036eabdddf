package tiercache

import "testing"

type codecItem struct {
	ID    string
	Count int
}

func TestCodecs(t *testing.T) {
	for name, codec := range map[string]Codec[codecItem]{
		"json": JSONCodec[codecItem](),
		"gob":  GobCodec[codecItem](),
	} {
		t.Run(name, func(t *testing.T) {
			body, err := codec.Encode(codecItem{ID: "a", Count: 3})
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			got, err := codec.Decode(body)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got.ID != "a" || got.Count != 3 {
				t.Fatalf("unexpected item: %+v", got)
			}
			if _, err := codec.Decode([]byte("not an item")); err == nil {
				t.Fatalf("expected decode error")
			}
		})
	}
}

func TestCodecValid(t *testing.T) {
	if (Codec[int]{}).valid() {
		t.Fatalf("empty codec must be invalid")
	}
	if !JSONCodec[int]().valid() {
		t.Fatalf("json codec must be valid")
	}
}
