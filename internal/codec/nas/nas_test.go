package nas

import "testing"

func TestParseHeaderPlain(t *testing.T) {
	data := []byte{0x07, 0x56, 0x02, 0x08, 0x29, 0x11, 0x22, 0x33, 0x44, 0x55}
	h, err := ParseHeader(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.IsPlain() {
		t.Error("expected plain NAS")
	}
	if h.MessageType != 0x56 {
		t.Errorf("MessageType = %#x, want 0x56", h.MessageType)
	}
}

func TestParseHeaderSecurityProtectedTooShort(t *testing.T) {
	_, err := ParseHeader([]byte{0x17, 0x00, 0x00})
	if err == nil {
		t.Fatal("expected error for truncated security-protected message")
	}
}

func TestDecodeTbcdIdentityImsi(t *testing.T) {
	// Identity type byte: upper nibble 0x2, lower 3 bits IMSI (0x1), odd length bit set.
	value := []byte{0x29, 0x11, 0x22, 0x33, 0x44, 0x55, 0xF1}
	got := DecodeTbcdIdentity(IMSI, value)
	if len(got) < 5 {
		t.Fatalf("expected a decoded IMSI of at least 5 digits, got %q", got)
	}
	if !IsValidImsi(got) {
		t.Errorf("DecodeTbcdIdentity produced invalid IMSI %q", got)
	}
}

func TestDecodeTbcdIdentityRejectsAllZeros(t *testing.T) {
	value := []byte{0x00, 0x00, 0x00}
	if got := DecodeTbcdIdentity(IMSI, value); got != "" {
		t.Errorf("expected empty string for all-zero IMSI, got %q", got)
	}
}

func TestDecodeTbcdIdentityRejectsOversizedImsi(t *testing.T) {
	// 16 digits decodes cleanly but exceeds IMSI's 15-digit bound.
	value := []byte{0x21, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0xF8}
	if got := DecodeTbcdIdentity(IMSI, value); got != "" {
		t.Errorf("expected empty string for a 16-digit IMSI, got %q", got)
	}
}

func TestDecodeTbcdIdentityImeiSv(t *testing.T) {
	// 16 digits, type IMEISV (0x3): valid.
	value := []byte{0x23, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0xF8}
	got := DecodeTbcdIdentity(IMEISV, value)
	if !IsValidImeiOrImeisv(got) {
		t.Errorf("DecodeTbcdIdentity produced invalid IMEISV %q", got)
	}
}

func TestDecodeTbcdIdentityRejectsUndersizedImei(t *testing.T) {
	// Only 8 digits decode: too short for IMEI's 14-digit floor.
	value := []byte{0x22, 0x11, 0x22, 0x33, 0xF4}
	if got := DecodeTbcdIdentity(IMEI, value); got != "" {
		t.Errorf("expected empty string for an undersized IMEI, got %q", got)
	}
}

func TestIsValidTmsi(t *testing.T) {
	cases := map[string]bool{
		"1a2b3c4d": true,
		"abcd":     true,
		"xyz1":     false,
		"123":      false,
		"123456789": false,
	}
	for tmsi, want := range cases {
		if got := IsValidTmsi(tmsi); got != want {
			t.Errorf("IsValidTmsi(%q) = %v, want %v", tmsi, got, want)
		}
	}
}

func TestExtractIdentitiesIdentityResponse(t *testing.T) {
	// Plain NAS, Identity Response (0x56), Mobile Identity IEI present (0x02),
	// length 7, identity type byte IMSI (lower 3 bits = 1), odd length.
	msg := []byte{0x07, 0x56, 0x02, 0x07, 0x29, 0x11, 0x22, 0x33, 0x44, 0x55, 0xF1}
	ids := ExtractIdentities(msg)
	if len(ids) != 1 {
		t.Fatalf("expected 1 identity, got %d", len(ids))
	}
	if ids[0].Type != IMSI {
		t.Errorf("Type = %v, want IMSI", ids[0].Type)
	}
	if !IsValidImsi(ids[0].Value) {
		t.Errorf("decoded IMSI %q is not valid", ids[0].Value)
	}
}

func TestExtractIdentitiesSecurityProtectedNoPattern(t *testing.T) {
	msg := []byte{0x17, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	if ids := ExtractIdentities(msg); ids != nil {
		t.Errorf("expected no identities without a matching pattern, got %v", ids)
	}
}

func TestExtractIdentitiesCipheredTmsiPattern(t *testing.T) {
	ciphered := make([]byte, 20)
	ciphered[0] = 0x50
	ciphered[1] = 0x0b
	ciphered[2] = 0xf6
	copy(ciphered[2+cipheredTmsiGap:], []byte{0xAA, 0xBB, 0xCC, 0xDD})

	msg := append([]byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x00}, ciphered...)
	ids := ExtractIdentities(msg)
	if len(ids) != 1 {
		t.Fatalf("expected 1 identity from ciphered pattern scan, got %d", len(ids))
	}
	if ids[0].Type != TMSI {
		t.Errorf("Type = %v, want TMSI", ids[0].Type)
	}
	if ids[0].Value != "aabbccdd" {
		t.Errorf("Value = %q, want aabbccdd", ids[0].Value)
	}
}
