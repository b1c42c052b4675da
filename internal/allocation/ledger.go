package allocation

// Ledger tracks victims committed to each hospital during a single assignment pass.
// A new ledger is created for every pass; entries only ever increase.
type Ledger map[string]int

// NewLedger creates an empty ledger for one pass
func NewLedger() Ledger {
	return make(Ledger)
}

// Commit records victims sent to the named hospital. Negative counts are ignored.
func (l Ledger) Commit(hospital string, victims int) {
	if victims <= 0 {
		if _, ok := l[hospital]; !ok {
			l[hospital] = 0
		}
		return
	}
	l[hospital] += victims
}

// Remaining returns raw available beds minus victims already committed this pass
func (l Ledger) Remaining(hospital string, available int) int {
	return available - l[hospital]
}
