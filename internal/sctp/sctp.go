// Package sctp extracts S1AP application payloads out of SCTP DATA chunks
// carried inside captured Ethernet/IP frames. cmd/ingest-replay runs
// captured frames through ExtractS1AP before appending them to the log; the
// pipeline itself decodes every spooled payload as a bare S1AP PDU.
package sctp

const (
	ethernetHeaderLen = 14
	ipProtoSCTP        = 132
	sctpCommonHeaderLen = 12
	sctpChunkTypeData   = 0
	s1apPayloadProtocolID = 18
)

// ExtractS1AP walks an Ethernet frame's headers (with optional single VLAN
// tag, IPv4 or IPv6, SCTP common header and chunk list) looking for the
// first SCTP DATA chunk whose payload protocol id identifies it as S1AP
// (18). It returns the chunk's user data and true, or nil and false if the
// frame isn't an S1AP-carrying SCTP packet.
func ExtractS1AP(packet []byte) ([]byte, bool) {
	if len(packet) < ethernetHeaderLen {
		return nil, false
	}

	offset := ethernetHeaderLen
	ethType := uint16(packet[12])<<8 | uint16(packet[13])

	if (ethType == 0x8100 || ethType == 0x88A8) && len(packet) >= offset+4 {
		ethType = uint16(packet[offset+2])<<8 | uint16(packet[offset+3])
		offset += 4
	}

	var protocol uint8
	switch ethType {
	case 0x0800: // IPv4
		if len(packet) < offset+20 {
			return nil, false
		}
		verIHL := packet[offset]
		if verIHL>>4 != 4 {
			return nil, false
		}
		ipHeaderLen := int(verIHL&0x0F) * 4
		if len(packet) < offset+ipHeaderLen {
			return nil, false
		}
		protocol = packet[offset+9]
		offset += ipHeaderLen
	case 0x86DD: // IPv6
		if len(packet) < offset+40 {
			return nil, false
		}
		if packet[offset]>>4 != 6 {
			return nil, false
		}
		protocol = packet[offset+6]
		offset += 40

		for extHeaders := 0; protocol != ipProtoSCTP && extHeaders < 8 && offset < len(packet); extHeaders++ {
			if protocol != 0 && protocol != 43 && protocol != 44 && protocol != 60 {
				break
			}
			if len(packet) < offset+8 {
				return nil, false
			}
			extLen := int(packet[offset+1])
			extHeaderLen := (extLen + 1) * 8
			if len(packet) < offset+extHeaderLen {
				return nil, false
			}
			protocol = packet[offset]
			offset += extHeaderLen
		}
	default:
		return nil, false
	}

	if protocol != ipProtoSCTP {
		return nil, false
	}
	if len(packet) < offset+sctpCommonHeaderLen {
		return nil, false
	}
	offset += sctpCommonHeaderLen

	for offset+4 <= len(packet) {
		chunkType := packet[offset]
		chunkLen := int(packet[offset+2])<<8 | int(packet[offset+3])
		if chunkLen < 4 || offset+chunkLen > len(packet) {
			break
		}

		if chunkType == sctpChunkTypeData && chunkLen >= 16 {
			ppid := uint32(packet[offset+12])<<24 | uint32(packet[offset+13])<<16 | uint32(packet[offset+14])<<8 | uint32(packet[offset+15])
			if ppid == s1apPayloadProtocolID {
				payloadOffset := offset + 16
				payloadLen := chunkLen - 16
				if payloadLen > 0 && payloadOffset+payloadLen <= len(packet) {
					return packet[payloadOffset : payloadOffset+payloadLen], true
				}
			}
		}

		pad := (4 - chunkLen%4) % 4
		offset += chunkLen + pad
	}

	return nil, false
}

// PayloadOrRaw returns the S1AP payload extracted from packet if it looks
// like a captured SCTP frame, otherwise it returns packet unchanged on the
// assumption it's already a bare S1AP PDU (the common case for a replayed
// or synthetic capture that skips link-layer framing entirely).
func PayloadOrRaw(packet []byte) []byte {
	if payload, ok := ExtractS1AP(packet); ok {
		return payload
	}
	return packet
}
