package codec

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/lvonguyen/s1see/internal/codec/nas"
	"github.com/lvonguyen/s1see/internal/codec/s1ap"
	"github.com/lvonguyen/s1see/internal/model"
)

// nasPDUIEID is the ProtocolIE-Field id carrying an embedded NAS-PDU
// (table entry 26, "NAS-PDU") inside downlinkNASTransport/
// uplinkNASTransport/initialUEMessage.
const nasPDUIEID uint16 = 26

// decodedTreeView is the JSON shape written to CanonicalMessage.DecodedTree
// for downstream inspection/debugging, one entry per decoded IE.
type decodedTreeView struct {
	ProcedureCode       uint8             `json:"procedure_code"`
	ProcedureName       string            `json:"procedure_name"`
	PDUType             uint8             `json:"pdu_type"`
	InformationElements map[string]string `json:"information_elements"`
}

// Decode turns one raw S1AP-PDU (as carried in an SCTP DATA chunk) into a
// CanonicalMessage. It never returns an error: a PDU that fails to parse
// still yields a CanonicalMessage with DecodeFailed set, preserving the
// raw bytes for later inspection.
func Decode(raw []byte) model.CanonicalMessage {
	msg := model.CanonicalMessage{RawBytes: raw}

	result := s1ap.ParsePDU(raw)
	if !result.Decoded {
		msg.DecodeFailed = true
		return msg
	}

	msg.ProcedureCode = result.ProcedureCode
	msg.MsgType = canonicalMessageType(result.ProcedureCode, result.PDUType, result.ProcedureName)

	ieValues := make(map[string]string, len(result.InformationElements))
	for _, ie := range result.InformationElements {
		ieValues[ie.Name] = hex.EncodeToString(ie.Value)
	}

	if ie, ok := result.IE("MME-UE-S1AP-ID"); ok {
		id := bigEndianUint32(ie.Value)
		msg.MMEUES1APID = &id
	}
	if ie, ok := result.IE("eNB-UE-S1AP-ID"); ok {
		id := bigEndianUint32(ie.Value)
		msg.ENBUES1APID = &id
	}

	if ie, ok := result.IE("EUTRAN-CGI"); ok {
		components := s1ap.SplitECGI(ie.Value)
		msg.ECGI = ie.Value
		msg.PLMN = components.PLMNIdentity
		msg.CellID = components.CellID
	}

	for _, ie := range result.InformationElements {
		lower := strings.ToLower(ie.Name)
		if strings.Contains(lower, "target") && strings.Contains(lower, "cgi") {
			msg.TargetECGI = ie.Value
			break
		}
	}

	for _, ie := range result.InformationElements {
		lower := strings.ToLower(ie.Name)
		if strings.Contains(lower, "e-rab") {
			for _, item := range s1ap.ParseERABListTEIDs(ie.Value) {
				msg.TEIDs = append(msg.TEIDs, item.TEID)
			}
		}
	}

	if ie, ok := result.IE("NAS-PDU"); ok {
		applyNasIdentities(&msg, ie.Value)
	}

	tree, err := json.Marshal(decodedTreeView{
		ProcedureCode:       result.ProcedureCode,
		ProcedureName:       result.ProcedureName,
		PDUType:             uint8(result.PDUType),
		InformationElements: ieValues,
	})
	if err == nil {
		msg.DecodedTree = string(tree)
	}

	return msg
}

func applyNasIdentities(msg *model.CanonicalMessage, nasPDU []byte) {
	for _, identity := range nas.ExtractIdentities(nasPDU) {
		switch identity.Type {
		case nas.IMSI:
			if msg.IMSI == "" {
				msg.IMSI = identity.Value
			}
		case nas.TMSI:
			if msg.TMSI == "" {
				msg.TMSI = identity.Value
			}
		case nas.GUTI:
			if msg.GUTI == "" {
				msg.GUTI = identity.Value
			}
		case nas.IMEISV:
			if msg.IMEISV == "" {
				msg.IMEISV = identity.Value
			}
		}
	}
}

func bigEndianUint32(b []byte) uint32 {
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v
}
