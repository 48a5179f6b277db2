package subscriber

import "github.com/lvonguyen/s1see/internal/model"

// AssociateIMSI links imsi to the record with the given id. If imsi was
// indexed to a different record, that record's IMSI field is cleared
// (conflict resolution) without deleting the record itself.
func (s *Store) AssociateIMSI(id uint64, imsi string) {
	imsi = NormalizeIMSI(imsi)
	if imsi == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if prevID, ok := s.byIMSI[imsi]; ok && prevID != id {
		if prev := s.records[prevID]; prev != nil {
			prev.IMSI = ""
		}
	}
	if rec.IMSI != "" && rec.IMSI != imsi {
		delete(s.byIMSI, rec.IMSI)
	}
	rec.IMSI = imsi
	s.byIMSI[imsi] = id
}

// AssociateTMSI mirrors AssociateIMSI for the TMSI index.
func (s *Store) AssociateTMSI(id uint64, tmsi string) {
	tmsi = NormalizeTMSI(tmsi)
	if tmsi == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if prevID, ok := s.byTMSI[tmsi]; ok && prevID != id {
		if prev := s.records[prevID]; prev != nil {
			prev.TMSI = ""
		}
	}
	if rec.TMSI != "" && rec.TMSI != tmsi {
		delete(s.byTMSI, rec.TMSI)
	}
	rec.TMSI = tmsi
	s.byTMSI[tmsi] = id
}

// AssociateIMEISV mirrors AssociateIMSI for the IMEISV index.
func (s *Store) AssociateIMEISV(id uint64, imeisv string) {
	imeisv = NormalizeIMSI(imeisv)
	if imeisv == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if prevID, ok := s.byIMEISV[imeisv]; ok && prevID != id {
		if prev := s.records[prevID]; prev != nil {
			prev.IMEISV = ""
		}
	}
	if rec.IMEISV != "" && rec.IMEISV != imeisv {
		delete(s.byIMEISV, rec.IMEISV)
	}
	rec.IMEISV = imeisv
	s.byIMEISV[imeisv] = id
}

// AssociateMMEUES1APID mirrors AssociateIMSI for the MME-UE-S1AP-ID index.
func (s *Store) AssociateMMEUES1APID(id uint64, mmeID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if prevID, ok := s.byMME[mmeID]; ok && prevID != id {
		if prev := s.records[prevID]; prev != nil {
			prev.MMEUES1APID = nil
		}
	}
	if rec.MMEUES1APID != nil && *rec.MMEUES1APID != mmeID {
		delete(s.byMME, *rec.MMEUES1APID)
	}
	v := mmeID
	rec.MMEUES1APID = &v
	s.byMME[mmeID] = id
}

// AssociateENBUES1APID mirrors AssociateIMSI for the eNB-UE-S1AP-ID index.
func (s *Store) AssociateENBUES1APID(id uint64, enbID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if prevID, ok := s.byENB[enbID]; ok && prevID != id {
		if prev := s.records[prevID]; prev != nil {
			prev.ENBUES1APID = nil
		}
	}
	if rec.ENBUES1APID != nil && *rec.ENBUES1APID != enbID {
		delete(s.byENB, *rec.ENBUES1APID)
	}
	v := enbID
	rec.ENBUES1APID = &v
	s.byENB[enbID] = id
}

// AssociateTEID adds teid to the record's TEID set, removing it from
// whichever record previously owned it.
func (s *Store) AssociateTEID(id uint64, teid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	if prevID, ok := s.byTEID[teid]; ok && prevID != id {
		if prev := s.records[prevID]; prev != nil {
			delete(prev.TEIDs, teid)
		}
	}
	rec.TEIDs[teid] = struct{}{}
	s.byTEID[teid] = id
}

// RemoveIMSIAssociation clears the IMSI index entry and record field.
func (s *Store) RemoveIMSIAssociation(imsi string) {
	imsi = NormalizeIMSI(imsi)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byIMSI[imsi]; ok {
		if rec := s.records[id]; rec != nil {
			rec.IMSI = ""
		}
		delete(s.byIMSI, imsi)
	}
}

// RemoveTMSIAssociation clears the TMSI index entry and record field.
func (s *Store) RemoveTMSIAssociation(tmsi string) {
	tmsi = NormalizeTMSI(tmsi)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byTMSI[tmsi]; ok {
		if rec := s.records[id]; rec != nil {
			rec.TMSI = ""
		}
		delete(s.byTMSI, tmsi)
	}
}

// RemoveIMEISVAssociation clears the IMEISV index entry and record field.
func (s *Store) RemoveIMEISVAssociation(imeisv string) {
	imeisv = NormalizeIMSI(imeisv)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byIMEISV[imeisv]; ok {
		if rec := s.records[id]; rec != nil {
			rec.IMEISV = ""
		}
		delete(s.byIMEISV, imeisv)
	}
}

// RemoveMMEUES1APIDAssociation clears the MME-UE-S1AP-ID index entry and
// record field.
func (s *Store) RemoveMMEUES1APIDAssociation(mmeID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byMME[mmeID]; ok {
		if rec := s.records[id]; rec != nil {
			rec.MMEUES1APID = nil
		}
		delete(s.byMME, mmeID)
	}
}

// RemoveENBUES1APIDAssociation clears the eNB-UE-S1AP-ID index entry and
// record field.
func (s *Store) RemoveENBUES1APIDAssociation(enbID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byENB[enbID]; ok {
		if rec := s.records[id]; rec != nil {
			rec.ENBUES1APID = nil
		}
		delete(s.byENB, enbID)
	}
}

// RemoveTEIDAssociation clears the TEID index entry and record set entry.
func (s *Store) RemoveTEIDAssociation(teid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byTEID[teid]; ok {
		if rec := s.records[id]; rec != nil {
			delete(rec.TEIDs, teid)
		}
		delete(s.byTEID, teid)
	}
}

// Get returns the record with the given id, or nil.
func (s *Store) Get(id uint64) *model.SubscriberRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}
