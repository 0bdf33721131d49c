package encoding

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestBase64_MarshalJSON(t *testing.T) {
	data := Base64([]byte("hello world"))

	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("MarshalJSON error: %v", err)
	}

	expected := `"aGVsbG8gd29ybGQ="`
	if string(b) != expected {
		t.Errorf("MarshalJSON = %s; want %s", b, expected)
	}
}

func TestBase64_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{
			name:  "valid base64",
			input: `"aGVsbG8gd29ybGQ="`,
			want:  []byte("hello world"),
		},
		{
			name:  "empty string",
			input: `""`,
			want:  []byte{},
		},
		{
			name:  "null",
			input: `null`,
			want:  nil,
		},
		{
			name:    "not a string",
			input:   `42`,
			wantErr: true,
		},
		{
			name:    "invalid base64",
			input:   `"not base64!!!"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Base64
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Unmarshal succeeded; want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Unmarshal = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestBase64_RoundTripInStruct(t *testing.T) {
	type payload struct {
		Audio Base64 `json:"audio,omitempty"`
	}

	in := payload{Audio: Base64{0x01, 0x02, 0xfe, 0xff}}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out payload
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !bytes.Equal(out.Audio, in.Audio) {
		t.Errorf("round trip = %v; want %v", out.Audio, in.Audio)
	}
}
