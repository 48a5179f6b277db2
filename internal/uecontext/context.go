package uecontext

import (
	"github.com/lvonguyen/s1see/internal/model"
	"github.com/lvonguyen/s1see/internal/subscriber"
)

// Process is the UE Context layer's single entry point: it merges msg's
// identifiers with any existing context sharing one of them, resolves the
// underlying SubscriberRecord through subs (a single call, per the
// "call the correlator once per message" invariant), derives the
// subscriber-key, applies the key-upgrade policy and handover state
// machine, and returns the resulting context together with its current
// key.
func (s *Store) Process(subs *subscriber.Store, msg model.CanonicalMessage, nowNs int64) (string, *model.UEContext) {
	ids := subscriber.Identifiers{
		IMSI:   msg.IMSI,
		TMSI:   msg.TMSI,
		IMEISV: msg.IMEISV,
		MMEID:  msg.MMEUES1APID,
		ENBID:  msg.ENBUES1APID,
		TEIDs:  msg.TEIDs,
	}

	s.mu.Lock()
	existingKey, existing := s.findMatchingLocked(ids)
	s.mu.Unlock()

	if existing != nil {
		ids = mergeMissing(ids, existing)
		msg.IMSI, msg.TMSI, msg.IMEISV = ids.IMSI, ids.TMSI, ids.IMEISV
		msg.MMEUES1APID, msg.ENBUES1APID = ids.MMEID, ids.ENBID
	}

	rec := subs.ProcessFrame(msg, nowNs)

	s.mu.Lock()
	defer s.mu.Unlock()

	newKey := s.subscriberKey(rec)

	var ctx *model.UEContext
	switch {
	case existing == nil:
		ctx = &model.UEContext{Key: newKey}
		s.contexts[newKey] = ctx
	case newKey == existingKey:
		ctx = existing
	case keyTier(newKey) < keyTier(existingKey):
		ctx = existing
		ctx.Key = newKey
		delete(s.contexts, existingKey)
		s.contexts[newKey] = ctx
	default:
		ctx = existing
		newKey = existingKey
	}

	s.updateLocked(ctx, rec, msg, nowNs)
	return newKey, ctx
}

// updateLocked applies rec and msg onto ctx and advances the handover state
// machine. Callers must hold s.mu.
func (s *Store) updateLocked(ctx *model.UEContext, rec *model.SubscriberRecord, msg model.CanonicalMessage, nowNs int64) {
	ctx.IMSI = rec.IMSI
	ctx.TMSI = rec.TMSI
	ctx.IMEISV = rec.IMEISV
	ctx.MMEUES1APID = rec.MMEUES1APID
	ctx.ENBUES1APID = rec.ENBUES1APID

	if len(msg.ECGI) > 0 {
		ctx.CurrentECGI = msg.ECGI
	}
	if len(msg.TargetECGI) > 0 {
		ctx.TargetECGI = msg.TargetECGI
	}
	if msg.MsgType != "" {
		ctx.LastProcedure = msg.MsgType
	}

	applyHandover(ctx, msg, nowNs)

	ctx.LastSeenNs = nowNs
}

// IsExpired reports whether the context stored under key is currently
// expired relative to nowNs (or absent), without removing it.
func (s *Store) IsExpired(key string, nowNs int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[key]
	if !ok {
		return true
	}
	return nowNs-ctx.LastSeenNs > s.expiry
}

// CleanupExpired removes every context whose LastSeenNs is more than the
// store's expiry window behind nowNs. The underlying subscriber store is
// untouched; SubscriberRecords persist for audit even after their
// UEContext expires.
func (s *Store) CleanupExpired(nowNs int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, ctx := range s.contexts {
		if nowNs-ctx.LastSeenNs > s.expiry {
			delete(s.contexts, key)
			removed++
		}
	}
	return removed
}
