// Package codec assembles the output of internal/codec/s1ap and
// internal/codec/nas into the model.CanonicalMessage shape the rest of
// the pipeline operates on.
package codec

import "github.com/lvonguyen/s1see/internal/codec/s1ap"

// canonicalNames maps a procedure code to the message name used for each
// PDU type, for procedures whose initiating/successful/unsuccessful
// message names differ from the bare procedure name (e.g. "HandoverRequired"
// vs "HandoverCommand" vs "HandoverPreparationFailure" all share procedure
// code 0). A procedure absent from this table falls back to its bare
// procedure name for InitiatingMessage, and to the procedure name for every
// other PDU type too.
var canonicalNames = map[uint8]map[s1ap.PDUType]string{
	0:  {s1ap.InitiatingMessage: "HandoverRequired", s1ap.SuccessfulOutcome: "HandoverCommand", s1ap.UnsuccessfulOutcome: "HandoverPreparationFailure"},
	1:  {s1ap.InitiatingMessage: "HandoverRequest", s1ap.SuccessfulOutcome: "HandoverRequestAcknowledge", s1ap.UnsuccessfulOutcome: "HandoverFailure"},
	2:  {s1ap.InitiatingMessage: "HandoverNotify"},
	3:  {s1ap.InitiatingMessage: "PathSwitchRequest", s1ap.SuccessfulOutcome: "PathSwitchRequestAcknowledge", s1ap.UnsuccessfulOutcome: "PathSwitchRequestFailure"},
	4:  {s1ap.InitiatingMessage: "HandoverCancel", s1ap.SuccessfulOutcome: "HandoverCancelAcknowledge"},
	5:  {s1ap.InitiatingMessage: "E-RABSetupRequest", s1ap.SuccessfulOutcome: "E-RABSetupResponse"},
	6:  {s1ap.InitiatingMessage: "E-RABModifyRequest", s1ap.SuccessfulOutcome: "E-RABModifyResponse"},
	7:  {s1ap.InitiatingMessage: "E-RABReleaseCommand", s1ap.SuccessfulOutcome: "E-RABReleaseResponse"},
	8:  {s1ap.InitiatingMessage: "E-RABReleaseIndication"},
	9:  {s1ap.InitiatingMessage: "InitialContextSetupRequest", s1ap.SuccessfulOutcome: "InitialContextSetupResponse", s1ap.UnsuccessfulOutcome: "InitialContextSetupFailure"},
	10: {s1ap.InitiatingMessage: "Paging"},
	11: {s1ap.InitiatingMessage: "DownlinkNASTransport"},
	12: {s1ap.InitiatingMessage: "initialUEMessage"},
	13: {s1ap.InitiatingMessage: "UplinkNASTransport"},
	14: {s1ap.InitiatingMessage: "Reset", s1ap.SuccessfulOutcome: "ResetAcknowledge"},
	15: {s1ap.InitiatingMessage: "ErrorIndication"},
	16: {s1ap.InitiatingMessage: "NASNonDeliveryIndication"},
	17: {s1ap.InitiatingMessage: "S1SetupRequest", s1ap.SuccessfulOutcome: "S1SetupResponse", s1ap.UnsuccessfulOutcome: "S1SetupFailure"},
	18: {s1ap.InitiatingMessage: "UEContextReleaseRequest"},
	19: {s1ap.InitiatingMessage: "DownlinkS1cdma2000tunneling"},
	20: {s1ap.InitiatingMessage: "UplinkS1cdma2000tunneling"},
	21: {s1ap.InitiatingMessage: "UEContextModificationRequest", s1ap.SuccessfulOutcome: "UEContextModificationResponse", s1ap.UnsuccessfulOutcome: "UEContextModificationFailure"},
	22: {s1ap.InitiatingMessage: "UECapabilityInfoIndication"},
	23: {s1ap.InitiatingMessage: "UEContextReleaseCommand", s1ap.SuccessfulOutcome: "UEContextReleaseComplete"},
	24: {s1ap.InitiatingMessage: "ENBStatusTransfer"},
	25: {s1ap.InitiatingMessage: "MMEStatusTransfer"},
	26: {s1ap.InitiatingMessage: "DeactivateTrace"},
	27: {s1ap.InitiatingMessage: "TraceStart"},
	28: {s1ap.InitiatingMessage: "TraceFailureIndication"},
	29: {s1ap.InitiatingMessage: "ENBConfigurationUpdate", s1ap.SuccessfulOutcome: "ENBConfigurationUpdateAcknowledge", s1ap.UnsuccessfulOutcome: "ENBConfigurationUpdateFailure"},
	30: {s1ap.InitiatingMessage: "MMEConfigurationUpdate", s1ap.SuccessfulOutcome: "MMEConfigurationUpdateAcknowledge", s1ap.UnsuccessfulOutcome: "MMEConfigurationUpdateFailure"},
	31: {s1ap.InitiatingMessage: "LocationReportingControl"},
	32: {s1ap.InitiatingMessage: "LocationReportingFailureIndication"},
	33: {s1ap.InitiatingMessage: "LocationReport"},
	34: {s1ap.InitiatingMessage: "OverloadStart"},
	35: {s1ap.InitiatingMessage: "OverloadStop"},
	36: {s1ap.InitiatingMessage: "WriteReplaceWarningRequest", s1ap.SuccessfulOutcome: "WriteReplaceWarningResponse"},
	37: {s1ap.InitiatingMessage: "ENBDirectInformationTransfer"},
	38: {s1ap.InitiatingMessage: "MMEDirectInformationTransfer"},
	39: {s1ap.InitiatingMessage: "PrivateMessage"},
	40: {s1ap.InitiatingMessage: "ENBConfigurationTransfer"},
	41: {s1ap.InitiatingMessage: "MMEConfigurationTransfer"},
	42: {s1ap.InitiatingMessage: "CellTrafficTrace"},
	43: {s1ap.InitiatingMessage: "KillRequest", s1ap.SuccessfulOutcome: "KillResponse"},
	44: {s1ap.InitiatingMessage: "DownlinkUEAssociatedLPPaTransport"},
	45: {s1ap.InitiatingMessage: "UplinkUEAssociatedLPPaTransport"},
	46: {s1ap.InitiatingMessage: "DownlinkNonUEAssociatedLPPaTransport"},
	47: {s1ap.InitiatingMessage: "UplinkNonUEAssociatedLPPaTransport"},
}

// canonicalMessageType resolves the wire-facing message name for a decoded
// PDU: a name specific to this procedure code/PDU type combination when the
// table has one, otherwise the bare procedure name.
func canonicalMessageType(procedureCode uint8, pduType s1ap.PDUType, procedureName string) string {
	if byType, ok := canonicalNames[procedureCode]; ok {
		if name, ok := byType[pduType]; ok {
			return name
		}
	}
	if procedureName == "" {
		return "Unknown"
	}
	return procedureName
}
