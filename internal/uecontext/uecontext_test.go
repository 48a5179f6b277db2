package uecontext

import (
	"testing"

	"github.com/lvonguyen/s1see/internal/model"
	"github.com/lvonguyen/s1see/internal/subscriber"
)

func u32(v uint32) *uint32 { return &v }

func TestProcessCreatesContextWithS1APIDKeyThenUpgrades(t *testing.T) {
	subs := subscriber.New()
	ctxStore := New(0)

	key1, ctx1 := ctxStore.Process(subs, model.CanonicalMessage{
		MsgType:     "InitialContextSetupRequest",
		MMEUES1APID: u32(42),
	}, 1000)
	if key1 != "mme_ue_s1ap_id:42" {
		t.Fatalf("key1 = %q", key1)
	}
	if ctx1.MMEUES1APID == nil || *ctx1.MMEUES1APID != 42 {
		t.Fatalf("ctx1.MMEUES1APID = %v", ctx1.MMEUES1APID)
	}

	key2, ctx2 := ctxStore.Process(subs, model.CanonicalMessage{
		MsgType:     "IdentityResponse",
		MMEUES1APID: u32(42),
		IMSI:        "001010123456789",
	}, 2000)
	if key2 != "imsi:001010123456789" {
		t.Fatalf("key2 = %q", key2)
	}
	if ctx2 != ctx1 {
		t.Fatal("expected the context to be upgraded in place, not replaced")
	}
	if ctxStore.Get("mme_ue_s1ap_id:42") != nil {
		t.Error("expected old key entry removed after upgrade")
	}
	if ctxStore.Get("imsi:001010123456789") != ctx1 {
		t.Error("expected new key to point at the upgraded context")
	}
}

func TestProcessMergesIdentifiersFromExistingContext(t *testing.T) {
	subs := subscriber.New()
	ctxStore := New(0)

	ctxStore.Process(subs, model.CanonicalMessage{
		MsgType: "InitialContextSetupRequest",
		IMSI:    "001010123456789",
		TMSI:    "abcd1234",
	}, 1000)

	key, ctx := ctxStore.Process(subs, model.CanonicalMessage{
		MsgType: "UplinkNASTransport",
		TMSI:    "abcd1234",
	}, 2000)
	if key != "imsi:001010123456789" {
		t.Fatalf("key = %q, want the IMSI carried over from the merge", key)
	}
	if ctx.IMSI != "001010123456789" {
		t.Errorf("ctx.IMSI = %q", ctx.IMSI)
	}
}

func TestHandoverStateMachine(t *testing.T) {
	subs := subscriber.New()
	ctxStore := New(0)

	_, ctx := ctxStore.Process(subs, model.CanonicalMessage{
		MsgType: "HandoverRequired",
		IMSI:    "001010123456789",
		ECGI:    model.ECGI{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
		TargetECGI: model.ECGI{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
	}, 1000)

	if !ctx.HandoverInProgress {
		t.Fatal("expected handover in progress after HandoverRequired")
	}
	if ctx.HandoverStartNs != 1000 {
		t.Errorf("HandoverStartNs = %d, want 1000", ctx.HandoverStartNs)
	}
	if string(ctx.CurrentECGI) != string(model.ECGI{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}) {
		t.Errorf("expected current ECGI advanced to target")
	}

	_, ctx = ctxStore.Process(subs, model.CanonicalMessage{
		MsgType: "HandoverCommand",
		IMSI:    "001010123456789",
	}, 1500)
	if ctx.HandoverStartNs != 1000 {
		t.Errorf("expected HandoverStartNs preserved across HandoverCommand, got %d", ctx.HandoverStartNs)
	}
	if !ctx.HandoverInProgress {
		t.Fatal("expected handover still in progress after HandoverCommand")
	}

	_, ctx = ctxStore.Process(subs, model.CanonicalMessage{
		MsgType: "HandoverNotify",
		IMSI:    "001010123456789",
	}, 2000)
	if ctx.HandoverInProgress {
		t.Fatal("expected handover cleared after HandoverNotify")
	}
}

func TestCleanupExpiredRemovesStaleContextsOnly(t *testing.T) {
	subs := subscriber.New()
	ctxStore := New(1000) // 1000ns expiry window

	ctxStore.Process(subs, model.CanonicalMessage{MsgType: "InitialContextSetupRequest", IMSI: "001010111111111"}, 1000)
	ctxStore.Process(subs, model.CanonicalMessage{MsgType: "InitialContextSetupRequest", IMSI: "001010222222222"}, 5000)

	removed := ctxStore.CleanupExpired(5500)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if ctxStore.Get("imsi:001010111111111") != nil {
		t.Error("expected the stale context to be removed")
	}
	if ctxStore.Get("imsi:001010222222222") == nil {
		t.Error("expected the fresh context to remain")
	}
}

func TestKeyTierOrdering(t *testing.T) {
	cases := []struct {
		better, worse string
	}{
		{"imsi:1", "tmsi:1"},
		{"tmsi:1", "mme_ue_s1ap_id:1"},
		{"mme_ue_s1ap_id:1", "enb_ue_s1ap_id:1"},
		{"enb_ue_s1ap_id:1", "unknown_1"},
	}
	for _, c := range cases {
		if keyTier(c.better) >= keyTier(c.worse) {
			t.Errorf("expected %q to rank better than %q", c.better, c.worse)
		}
	}
}
