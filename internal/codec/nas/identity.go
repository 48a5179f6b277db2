package nas

import (
	"fmt"
	"strings"
)

// MobileIdentity is one decoded identity found in a NAS message.
type MobileIdentity struct {
	Type  MobileIdentityType
	Value string
}

// decodeMobileIdentity decodes an IMSI/IMEI/IMEISV/TMSI Mobile Identity
// value from its type byte (lower 3 bits) onward.
func decodeMobileIdentity(value []byte) (MobileIdentityType, string) {
	if len(value) < 1 {
		return NoIdentity, ""
	}
	idType := MobileIdentityType(value[0] & 0x07)

	switch idType {
	case IMSI, IMEI, IMEISV:
		return idType, DecodeTbcdIdentity(idType, value)
	case TMSI:
		return idType, DecodeTmsi(value)
	default:
		return idType, ""
	}
}

// decodeEpsMobileIdentity decodes a GUTI or TMSI EPS Mobile Identity value.
// A GUTI's M-TMSI is its last 4 octets.
func decodeEpsMobileIdentity(value []byte) (MobileIdentityType, string) {
	if len(value) < 1 {
		return NoIdentity, ""
	}
	idType := MobileIdentityType(value[0] & 0x07)

	switch idType {
	case GUTI:
		if len(value) < 5 {
			return GUTI, ""
		}
		tail := value[len(value)-4:]
		return TMSI, strings.ToLower(fmt.Sprintf("%02x%02x%02x%02x", tail[0], tail[1], tail[2], tail[3]))
	case TMSI:
		return TMSI, DecodeTmsi(value)
	default:
		return idType, ""
	}
}

// ExtractIdentities decodes every mobile identity a NAS message reveals.
// For plain messages it structurally parses the relevant EMM message
// (Attach Request/Accept, Identity Response, Extended Service Request,
// Security Mode Complete); for security-protected messages it falls back
// to scanForCipheredTmsi since the payload can't be decoded without the
// session keys.
func ExtractIdentities(data []byte) []MobileIdentity {
	if len(data) < 2 {
		return nil
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil
	}

	if !header.IsPlain() {
		return scanForCipheredTmsi(data, header)
	}
	if !header.IsMobilityManagement() {
		return nil
	}

	offset := header.PayloadOffset + 1 // past the message type byte
	if offset > len(data) {
		return nil
	}

	switch EMMessageType(header.MessageType) {
	case AttachRequest:
		return extractAttachRequestIdentity(data, offset)
	case AttachAccept:
		return extractAttachAcceptIdentities(data, offset)
	case IdentityResponse:
		return extractIdentityResponseIdentity(data, offset)
	case ExtendedServiceRequest:
		return extractExtendedServiceRequestIdentity(data, offset)
	case SecurityModeComplete:
		return extractTLVIdentities(data, offset, 0x23)
	default:
		return nil
	}
}

func extractAttachRequestIdentity(data []byte, offset int) []MobileIdentity {
	// EPS attach type + NAS key set identifier byte, then the EPS mobile
	// identity in LV format.
	offset++
	if offset >= len(data) {
		return nil
	}
	idLen := int(data[offset])
	offset++
	if offset+idLen > len(data) {
		return nil
	}
	value := data[offset : offset+idLen]
	if idLen == 0 {
		return nil
	}

	if MobileIdentityType(value[0]&0x07) == IMSI {
		if idType, str := decodeMobileIdentity(value); str != "" {
			return []MobileIdentity{{Type: idType, Value: str}}
		}
		return nil
	}
	if idType, str := decodeEpsMobileIdentity(value); str != "" {
		return []MobileIdentity{{Type: idType, Value: str}}
	}
	return nil
}

func extractAttachAcceptIdentities(data []byte, offset int) []MobileIdentity {
	// Skip EPS attach result (1) + T3412 value (1).
	offset += 2
	if offset >= len(data) {
		return nil
	}

	// Skip TAI list (LV).
	taiLen := int(data[offset])
	offset++
	if offset+taiLen > len(data) {
		return nil
	}
	offset += taiLen

	// Skip ESM message container (LV-E, 2-byte length).
	if offset+2 > len(data) {
		return nil
	}
	esmLen := int(data[offset])<<8 | int(data[offset+1])
	offset += 2
	if offset+esmLen > len(data) {
		return nil
	}
	offset += esmLen

	var identities []MobileIdentity
	for offset < len(data) {
		iei := data[offset]
		offset++
		if iei == 0x00 {
			break
		}
		if offset >= len(data) {
			break
		}
		ieLen := int(data[offset])
		offset++
		if offset+ieLen > len(data) {
			break
		}
		value := data[offset : offset+ieLen]

		switch iei {
		case 0x50: // Additional GUTI
			if idType, str := decodeEpsMobileIdentity(value); str != "" {
				identities = append(identities, MobileIdentity{Type: idType, Value: str})
			}
		case 0x23: // MS Identity
			if idType, str := decodeMobileIdentity(value); str != "" {
				identities = append(identities, MobileIdentity{Type: idType, Value: str})
			}
		}
		offset += ieLen
	}
	return identities
}

func extractIdentityResponseIdentity(data []byte, offset int) []MobileIdentity {
	if offset < len(data) && data[offset] == 0x02 { // optional Mobile Identity IEI
		offset++
	}
	if offset >= len(data) {
		return nil
	}
	idLen := int(data[offset])
	offset++
	if offset+idLen > len(data) {
		return nil
	}
	idType, str := decodeMobileIdentity(data[offset : offset+idLen])
	if str == "" {
		return nil
	}
	return []MobileIdentity{{Type: idType, Value: str}}
}

func extractExtendedServiceRequestIdentity(data []byte, offset int) []MobileIdentity {
	offset++ // service type
	if offset >= len(data) {
		return nil
	}
	idLen := int(data[offset])
	offset++
	if offset+idLen > len(data) {
		return nil
	}
	idType, str := decodeEpsMobileIdentity(data[offset : offset+idLen])
	if str == "" {
		return nil
	}
	return []MobileIdentity{{Type: idType, Value: str}}
}

// extractTLVIdentities walks a run of TLV-encoded optional IEs, decoding
// any Mobile Identity IE matching wantIEI.
func extractTLVIdentities(data []byte, offset int, wantIEI byte) []MobileIdentity {
	var identities []MobileIdentity
	for offset < len(data) {
		iei := data[offset]
		offset++
		if offset >= len(data) {
			break
		}
		ieLen := int(data[offset])
		offset++
		if offset+ieLen > len(data) {
			break
		}
		if iei == wantIEI {
			if idType, str := decodeMobileIdentity(data[offset : offset+ieLen]); str != "" {
				identities = append(identities, MobileIdentity{Type: idType, Value: str})
			}
		}
		offset += ieLen
	}
	return identities
}
