package wallet

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in      string
		wantErr error
	}{
		{"0x1111111111111111111111111111111111111111", nil},
		{"  2222222222222222222222222222222222222222 ", nil},
		{"0xABCDEFabcdef0123456789ABCDEFabcdef012345", nil},
		{"0x123", ErrInvalidWalletAddress},
		{"", ErrInvalidWalletAddress},
		{"0x0000000000000000000000000000000000000000", ErrZeroWalletAddress},
	}
	for _, tc := range cases {
		_, err := ParseAddress(tc.in)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("ParseAddress(%q) err = %v, want %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestAddress_Short(t *testing.T) {
	a := MustParseAddress("0x1234567890123456789012345678901234567890")
	if got := a.Short(); got != "0x12***7890" {
		t.Fatalf("Short() = %q", got)
	}
}

func TestAddress_JSON(t *testing.T) {
	var v struct {
		A Address `json:"a"`
	}
	if err := json.Unmarshal([]byte(`{"a":"0x1111111111111111111111111111111111111111"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != MustParseAddress("0x1111111111111111111111111111111111111111") {
		t.Fatalf("A = %s", v.A)
	}
	if err := json.Unmarshal([]byte(`{"a":"nope"}`), &v); !errors.Is(err, ErrInvalidWalletAddress) {
		t.Fatalf("invalid err = %v", err)
	}
}
