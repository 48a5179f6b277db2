package uecontext

import "github.com/lvonguyen/s1see/internal/model"

const (
	msgHandoverRequired = "HandoverRequired"
	msgHandoverCommand  = "HandoverCommand"
	msgHandoverNotify   = "HandoverNotify"
)

// applyHandover advances ctx's handover state machine for msg. Any message
// type not named below only updates LastProcedure, which the caller already
// does before this is invoked.
func applyHandover(ctx *model.UEContext, msg model.CanonicalMessage, nowNs int64) {
	switch msg.MsgType {
	case msgHandoverRequired:
		ctx.HandoverInProgress = true
		ctx.HandoverStartNs = nowNs
		ctx.SourceECGI = ctx.CurrentECGI
		if len(msg.TargetECGI) > 0 {
			ctx.TargetECGI = msg.TargetECGI
			ctx.CurrentECGI = msg.TargetECGI
		}
	case msgHandoverCommand:
		ctx.HandoverInProgress = true
		if ctx.HandoverStartNs == 0 {
			ctx.HandoverStartNs = nowNs
		}
		ctx.SourceECGI = ctx.CurrentECGI
		if len(msg.TargetECGI) > 0 {
			ctx.TargetECGI = msg.TargetECGI
			ctx.CurrentECGI = msg.TargetECGI
		}
	case msgHandoverNotify:
		ctx.HandoverInProgress = false
		if len(ctx.TargetECGI) > 0 {
			ctx.CurrentECGI = ctx.TargetECGI
		}
	}
}
