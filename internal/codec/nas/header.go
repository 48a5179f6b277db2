// Package nas decodes EPS NAS messages (3GPP TS 24.301) carried inside an
// S1AP NAS-PDU information element, extracting the mobile identities
// (IMSI, TMSI/GUTI, IMEISV) a message reveals. Security-protected payloads
// can't be decoded without the session keys; for those this package falls
// back to a best-effort pattern scan rather than giving up entirely.
package nas

import "fmt"

// ProtocolDiscriminator identifies which NAS protocol a message belongs to.
type ProtocolDiscriminator uint8

const (
	GSMMobilityManagement  ProtocolDiscriminator = 0x00
	EPSSessionManagement   ProtocolDiscriminator = 0x02
	EPSMobilityManagement  ProtocolDiscriminator = 0x07
	GPRSMobilityManagement ProtocolDiscriminator = 0x08
)

// SecurityHeaderType indicates whether a NAS message is plain or carries
// integrity/cipher protection.
type SecurityHeaderType uint8

const (
	PlainNAS                                            SecurityHeaderType = 0x00
	IntegrityProtected                                  SecurityHeaderType = 0x01
	IntegrityProtectedAndCiphered                       SecurityHeaderType = 0x02
	IntegrityProtectedAndNewSecurityContext             SecurityHeaderType = 0x03
	IntegrityProtectedAndCipheredAndNewSecurityContext  SecurityHeaderType = 0x04
)

// EMMessageType enumerates the EPS Mobility Management message types this
// package knows how to decode identities out of.
type EMMessageType uint8

const (
	IdentityRequest             EMMessageType = 0x05
	IdentityResponse            EMMessageType = 0x56
	AuthenticationRequest       EMMessageType = 0x52
	AuthenticationResponse      EMMessageType = 0x53
	AuthenticationReject        EMMessageType = 0x54
	AuthenticationFailure       EMMessageType = 0x5C
	SecurityModeCommand         EMMessageType = 0x5D
	SecurityModeComplete        EMMessageType = 0x5E
	SecurityModeReject          EMMessageType = 0x5F
	AttachRequest               EMMessageType = 0x41
	AttachAccept                EMMessageType = 0x42
	AttachReject                EMMessageType = 0x43
	AttachComplete               EMMessageType = 0x44
	DetachRequest                EMMessageType = 0x45
	DetachAccept                 EMMessageType = 0x46
	TrackingAreaUpdateRequest    EMMessageType = 0x48
	TrackingAreaUpdateAccept     EMMessageType = 0x49
	TrackingAreaUpdateReject     EMMessageType = 0x4A
	TrackingAreaUpdateComplete   EMMessageType = 0x4B
	ServiceRequest               EMMessageType = 0x4C
	ExtendedServiceRequest       EMMessageType = 0x4D
	GUTIReallocationCommand      EMMessageType = 0x50
	GUTIReallocationComplete     EMMessageType = 0x51
	EMMStatus                    EMMessageType = 0x60
	EMMInformation                EMMessageType = 0x61
)

// MobileIdentityType is the low 3 bits of a Mobile Identity's first byte.
type MobileIdentityType uint8

const (
	NoIdentity MobileIdentityType = 0x00
	IMSI       MobileIdentityType = 0x01
	IMEI       MobileIdentityType = 0x02
	IMEISV     MobileIdentityType = 0x03
	TMSI       MobileIdentityType = 0x04
	TMGI       MobileIdentityType = 0x05
	GUTI       MobileIdentityType = 0x06
)

// Header is the first bytes of any NAS message: a security header type and
// protocol discriminator packed into one byte, followed (after skipping
// any security header) by a message type byte.
type Header struct {
	SecurityHeaderType SecurityHeaderType
	ProtocolDiscriminator ProtocolDiscriminator
	MessageType         uint8
	PayloadOffset       int // offset of MessageType within the original buffer
}

func (h Header) IsPlain() bool {
	return h.SecurityHeaderType == PlainNAS
}

func (h Header) IsMobilityManagement() bool {
	return h.ProtocolDiscriminator == EPSMobilityManagement
}

// ParseHeader decodes a NAS message's security header and message type.
// Security-protected messages (header type 1-4) carry a 4-byte MAC and
// 1-byte sequence number between the header byte and the plain payload;
// ParseHeader skips over them so MessageType always refers to the message
// type byte of the (possibly ciphered) payload.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < 1 {
		return Header{}, fmt.Errorf("nas: empty message")
	}

	first := data[0]
	sht := SecurityHeaderType((first >> 4) & 0x0F)
	pd := ProtocolDiscriminator(first & 0x0F)

	payloadOffset := 1
	if sht >= IntegrityProtected && sht <= IntegrityProtectedAndCipheredAndNewSecurityContext {
		if len(data) < 6 {
			return Header{}, fmt.Errorf("nas: security-protected message too short")
		}
		payloadOffset = 6
	}

	if payloadOffset >= len(data) {
		return Header{}, fmt.Errorf("nas: payload offset exceeds message length")
	}

	return Header{
		SecurityHeaderType:    sht,
		ProtocolDiscriminator: pd,
		MessageType:           data[payloadOffset],
		PayloadOffset:         payloadOffset,
	}, nil
}
