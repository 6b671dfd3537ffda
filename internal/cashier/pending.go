package cashier

// PendingSetIndex is an insertion-ordered index of the txIDs currently in the
// Pending cash-out status. Removal swaps the victim with the last element and
// truncates, so enumeration order is stable only between two reads that
// observe no intervening mutation. Callers paginating concurrently with
// confirm/reverse traffic follow the processed-counter protocol: read the
// counter, page until a short page, read it again, and retry the whole scan
// if the two values differ.
type PendingSetIndex struct {
	txIDs []TxID
	pos   map[TxID]int
}

// NewPendingSetIndex creates an empty index.
func NewPendingSetIndex() *PendingSetIndex {
	return &PendingSetIndex{pos: make(map[TxID]int)}
}

// Add appends txID to the index. Adding an id that is already present is a
// no-op; membership is driven by the Pending status transition, which is
// guarded upstream.
func (p *PendingSetIndex) Add(txID TxID) {
	if _, ok := p.pos[txID]; ok {
		return
	}
	p.pos[txID] = len(p.txIDs)
	p.txIDs = append(p.txIDs, txID)
}

// Remove deletes txID in O(1) by swapping it with the last element.
func (p *PendingSetIndex) Remove(txID TxID) {
	i, ok := p.pos[txID]
	if !ok {
		return
	}
	last := len(p.txIDs) - 1
	if i != last {
		moved := p.txIDs[last]
		p.txIDs[i] = moved
		p.pos[moved] = i
	}
	p.txIDs = p.txIDs[:last]
	delete(p.pos, txID)
}

// Contains reports membership.
func (p *PendingSetIndex) Contains(txID TxID) bool {
	_, ok := p.pos[txID]
	return ok
}

// Len returns the current number of pending txIDs.
func (p *PendingSetIndex) Len() int {
	return len(p.txIDs)
}

// Range returns a copy of the slice [index, index+limit) of the current
// sequence, clamping to the remaining length. It is total: any index yields a
// (possibly empty) page.
func (p *PendingSetIndex) Range(index, limit int) []TxID {
	if index < 0 || limit <= 0 || index >= len(p.txIDs) {
		return nil
	}
	end := index + limit
	if end > len(p.txIDs) {
		end = len(p.txIDs)
	}
	page := make([]TxID, end-index)
	copy(page, p.txIDs[index:end])
	return page
}
