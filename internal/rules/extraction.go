package rules

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/lvonguyen/s1see/internal/model"
)

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}

// extractValue resolves an attribute-extraction expression of the form
// "message.<field>", "first_message.<field>" or "context.<field>" against
// msg, firstMessage (nil outside sequence-rule matches) and the UEContext
// stored under subscriberKey. Expressions with no dot, an unrecognized
// source, or an unsupported/empty field produce "".
func (e *Engine) extractValue(expression string, msg model.CanonicalMessage, firstMessage *model.CanonicalMessage, subscriberKey string) string {
	source, field, ok := strings.Cut(expression, ".")
	if !ok {
		return ""
	}

	switch source {
	case "message":
		return extractFromMessage(field, msg)
	case "first_message":
		if firstMessage == nil {
			return ""
		}
		return extractFromMessage(field, *firstMessage)
	case "context":
		if e.contexts == nil {
			return ""
		}
		ctx := e.contexts.Get(subscriberKey)
		if ctx == nil {
			return ""
		}
		return extractFromContext(field, ctx)
	default:
		return ""
	}
}

func extractFromMessage(field string, msg model.CanonicalMessage) string {
	switch field {
	case "ecgi":
		return hexString(msg.ECGI)
	case "target_ecgi":
		return hexString(msg.TargetECGI)
	case "mme_ue_s1ap_id":
		return uint32PtrString(msg.MMEUES1APID)
	case "enb_ue_s1ap_id":
		return uint32PtrString(msg.ENBUES1APID)
	case "imsi":
		return msg.IMSI
	case "tmsi":
		return msg.TMSI
	case "msg_type":
		return msg.MsgType
	default:
		return ""
	}
}

func extractFromContext(field string, ctx *model.UEContext) string {
	switch field {
	case "source_ecgi":
		return hexString(ctx.SourceECGI)
	case "ecgi":
		return hexString(ctx.CurrentECGI)
	case "target_ecgi":
		return hexString(ctx.TargetECGI)
	case "imsi":
		return ctx.IMSI
	case "tmsi":
		return ctx.TMSI
	default:
		return ""
	}
}

func uint32PtrString(v *uint32) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*v), 10)
}
