package subscriber

import "github.com/lvonguyen/s1see/internal/model"

const ueContextReleaseComplete = "UEContextReleaseComplete"

// ProcessFrame extracts identifiers from msg, matches or creates a
// SubscriberRecord for the whole batch at once (so identifiers that appear
// together in one message converge on one record) and associates every
// identifier and TEID with it. On a UEContextReleaseComplete message the
// MME and eNB S1AP-id associations are removed as the final step, after
// every other association has already been applied.
func (s *Store) ProcessFrame(msg model.CanonicalMessage, nowNs int64) *model.SubscriberRecord {
	ids := Identifiers{
		IMSI:   msg.IMSI,
		TMSI:   msg.TMSI,
		IMEISV: msg.IMEISV,
		MMEID:  msg.MMEUES1APID,
		ENBID:  msg.ENBUES1APID,
		TEIDs:  msg.TEIDs,
	}

	rec := s.GetOrCreate(ids)

	s.mu.Lock()
	if rec.FirstSeenNs == 0 {
		rec.FirstSeenNs = nowNs
	}
	rec.LastSeenNs = nowNs
	s.mu.Unlock()

	if msg.MsgType == ueContextReleaseComplete {
		if msg.MMEUES1APID != nil {
			s.RemoveMMEUES1APIDAssociation(*msg.MMEUES1APID)
		}
		if msg.ENBUES1APID != nil {
			s.RemoveENBUES1APIDAssociation(*msg.ENBUES1APID)
		}
	}

	return rec
}
