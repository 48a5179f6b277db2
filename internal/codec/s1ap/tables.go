package s1ap

import "strconv"

var procedureCodeNames = map[uint8]string{
	0:  "HandoverPreparation",
	1:  "HandoverResourceAllocation",
	2:  "HandoverNotification",
	3:  "PathSwitchRequest",
	4:  "HandoverCancel",
	5:  "E-RABSetup",
	6:  "E-RABModify",
	7:  "E-RABRelease",
	8:  "E-RABReleaseIndication",
	9:  "InitialContextSetup",
	10: "Paging",
	11: "downlinkNASTransport",
	12: "initialUEMessage",
	13: "uplinkNASTransport",
	14: "Reset",
	15: "ErrorIndication",
	16: "NASNonDeliveryIndication",
	17: "S1Setup",
	18: "UEContextReleaseRequest",
	19: "DownlinkS1cdma2000tunneling",
	20: "UplinkS1cdma2000tunneling",
	21: "UEContextModification",
	22: "UECapabilityInfoIndication",
	23: "UEContextRelease",
	24: "eNBStatusTransfer",
	25: "MMEStatusTransfer",
	26: "DeactivateTrace",
	27: "TraceStart",
	28: "TraceFailureIndication",
	29: "ENBConfigurationUpdate",
	30: "MMEConfigurationUpdate",
	31: "LocationReportingControl",
	32: "LocationReportingFailureIndication",
	33: "LocationReport",
	34: "OverloadStart",
	35: "OverloadStop",
	36: "WriteReplaceWarning",
	37: "eNBDirectInformationTransfer",
	38: "MMEDirectInformationTransfer",
	39: "PrivateMessage",
	40: "eNBConfigurationTransfer",
	41: "MMEConfigurationTransfer",
	42: "CellTrafficTrace",
	43: "Kill",
	44: "downlinkUEAssociatedLPPaTransport",
	45: "uplinkUEAssociatedLPPaTransport",
	46: "downlinkNonUEAssociatedLPPaTransport",
	47: "uplinkNonUEAssociatedLPPaTransport",
}

// ProcedureCodeName returns the S1AP procedure name for a procedure code,
// or "Unknown" for a code outside TS 36.413's defined range.
func ProcedureCodeName(procedureCode uint8) string {
	if name, ok := procedureCodeNames[procedureCode]; ok {
		return name
	}
	return "Unknown"
}

var ieNames = map[uint16]string{
	0:   "MME-UE-S1AP-ID",
	1:   "HandoverType",
	2:   "Cause",
	3:   "SourceID",
	4:   "TargetID",
	8:   "eNB-UE-S1AP-ID",
	12:  "E-RABSubjecttoDataForwardingList",
	13:  "E-RABtoReleaseListHOCmd",
	14:  "E-RABDataForwardingItem",
	15:  "E-RABReleaseItemBearerRelComp",
	16:  "E-RABToBeSetupListBearerSUReq",
	17:  "E-RABToBeSetupItemBearerSUReq",
	18:  "E-RABAdmittedList",
	19:  "E-RABFailedToSetupListHOReqAck",
	20:  "E-RABAdmittedItem",
	21:  "E-RABFailedtoSetupItemHOReqAck",
	22:  "E-RABToBeSwitchedDLList",
	23:  "E-RABToBeSwitchedDLItem",
	24:  "E-RABToBeSetupListCtxtSUReq",
	25:  "TraceActivation",
	26:  "NAS-PDU",
	27:  "E-RABToBeSetupItemHOReq",
	28:  "E-RABSetupListBearerSURes",
	29:  "E-RABFailedToSetupListBearerSURes",
	30:  "E-RABToBeModifiedListBearerModReq",
	31:  "E-RABModifyListBearerModRes",
	32:  "E-RABFailedToModifyList",
	33:  "E-RABToBeReleasedList",
	34:  "E-RABFailedToReleaseList",
	35:  "E-RABItem",
	36:  "E-RABToBeModifiedItemBearerModReq",
	37:  "E-RABModifyItemBearerModRes",
	38:  "E-RABReleaseItem",
	39:  "E-RABSetupItemBearerSURes",
	40:  "SecurityContext",
	41:  "HandoverRestrictionList",
	43:  "UEPagingID",
	44:  "pagingDRX",
	46:  "TAIList",
	47:  "TAIItem",
	48:  "E-RABFailedToSetupListCtxtSURes",
	49:  "E-RABReleaseItemHOCmd",
	50:  "E-RABSetupItemCtxtSURes",
	51:  "E-RABSetupListCtxtSURes",
	52:  "E-RABToBeSetupItemCtxtSUReq",
	53:  "E-RABToBeSetupListHOReq",
	55:  "GERANtoLTEHOInformationRes",
	57:  "UTRANtoLTEHOInformationRes",
	58:  "CriticalityDiagnostics",
	59:  "Global-ENB-ID",
	60:  "eNBname",
	61:  "MMEname",
	63:  "ServedPLMNs",
	64:  "SupportedTAs",
	65:  "TimeToWait",
	66:  "uEaggregateMaximumBitrate",
	67:  "TAI",
	69:  "E-RABReleaseListBearerRelComp",
	70:  "cdma2000PDU",
	71:  "cdma2000RATType",
	72:  "cdma2000SectorID",
	73:  "SecurityKey",
	74:  "UERadioCapability",
	75:  "GUMMEI-ID",
	78:  "E-RABInformationListItem",
	79:  "Direct-Forwarding-Path-Availability",
	80:  "UEIdentityIndexValue",
	83:  "cdma2000HOStatus",
	84:  "cdma2000HORequiredIndication",
	86:  "E-UTRAN-Trace-ID",
	87:  "RelativeMMECapacity",
	88:  "SourceMME-UE-S1AP-ID",
	89:  "Bearers-SubjectToStatusTransfer-Item",
	90:  "eNB-StatusTransfer-TransparentContainer",
	91:  "UE-associatedLogicalS1-ConnectionItem",
	92:  "ResetType",
	93:  "UE-associatedLogicalS1-ConnectionListResAck",
	94:  "E-RABToBeSwitchedULItem",
	95:  "E-RABToBeSwitchedULList",
	96:  "S-TMSI",
	97:  "cdma2000OneXRAND",
	98:  "RequestType",
	99:  "UE-S1AP-IDs",
	100: "EUTRAN-CGI",
	101: "OverloadResponse",
	102: "cdma2000OneXSRVCCInfo",
	103: "E-RABFailedToBeReleasedList",
	104: "Source-ToTarget-TransparentContainer",
	105: "ServedGUMMEIs",
	106: "SubscriberProfileIDforRFP",
	107: "UESecurityCapabilities",
	108: "CSFallbackIndicator",
	109: "CNDomain",
	110: "E-RABReleasedList",
	111: "MessageIdentifier",
	112: "SerialNumber",
	113: "WarningAreaList",
	114: "RepetitionPeriod",
	115: "NumberofBroadcastRequest",
	116: "WarningType",
	117: "WarningSecurityInfo",
	118: "DataCodingScheme",
	119: "WarningMessageContents",
	120: "BroadcastCompletedAreaList",
	121: "Inter-SystemInformationTransferTypeEDT",
	122: "Inter-SystemInformationTransferTypeMDT",
	123: "Target-ToSource-TransparentContainer",
	124: "SRVCCOperationPossible",
	125: "SRVCCHOIndication",
	126: "NAS-DownlinkCount",
	127: "CSG-Id",
	128: "CSG-IdList",
	129: "SONConfigurationTransferECT",
	130: "SONConfigurationTransferMCT",
	131: "TraceCollectionEntityIPAddress",
	132: "MSClassmark2",
	133: "MSClassmark3",
	134: "RRC-Establishment-Cause",
	135: "NASSecurityParametersfromE-UTRAN",
	136: "NASSecurityParameterstoE-UTRAN",
	137: "DefaultPagingDRX",
	138: "Source-ToTarget-TransparentContainer-Secondary",
	139: "Target-ToSource-TransparentContainer-Secondary",
	140: "EUTRANRoundTripDelayEstimationInfo",
	141: "BroadcastCancelledAreaList",
	142: "ConcurrentWarningMessageIndicator",
	143: "Data-Forwarding-Not-Possible",
	144: "ExtendedRepetitionPeriod",
	145: "CellAccessMode",
	146: "CSGMembershipStatus",
	147: "LPPa-PDU",
	148: "Routing-ID",
	149: "Time-Synchronization-Info",
	150: "PS-ServiceNotAvailable",
	151: "PagingPriority",
	152: "x2TNLConfigurationInfo",
	153: "eNBX2ExtendedTransportLayerAddresses",
	154: "GUMMEIList",
	155: "GW-TransportLayerAddress",
	156: "Correlation-ID",
	157: "SourceMME-GUMMEI",
	158: "MME-UE-S1AP-ID-2",
	159: "RegisteredLAI",
	160: "RelayNode-Indicator",
	161: "TrafficLoadReductionIndication",
	162: "MDTConfiguration",
	163: "MMERelaySupportIndicator",
	164: "GWContextReleaseIndication",
	165: "ManagementBasedMDTAllowed",
}

// IENameFromID returns the human-readable ProtocolIE-Field name for an IE
// id, falling back to "Unknown-N" for gaps in the table and "IE_N" for ids
// past the table's known range, matching the name given to IEs whose
// existence is certain but whose semantics were never mapped.
func IENameFromID(ieID uint16) string {
	if name, ok := ieNames[ieID]; ok {
		return name
	}
	if ieID <= 165 {
		return "Unknown-" + strconv.Itoa(int(ieID))
	}
	return "IE_" + strconv.Itoa(int(ieID))
}
