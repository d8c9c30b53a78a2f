// Package economy accumulates the value produced by the simulation and
// answers affordability checks for externally-triggered purchases. Core
// components only ever earn; spending happens in the action layer.
package economy

// Ledger is the single currency account.
type Ledger struct {
	balance        float64
	lifetimeEarned float64
}

func NewLedger(startingBalance float64) *Ledger {
	return &Ledger{balance: startingBalance}
}

func (l *Ledger) Balance() float64 { return l.balance }

// LifetimeEarned is the total ever credited, ignoring spending. Used by
// stats and score reporting.
func (l *Ledger) LifetimeEarned() float64 { return l.lifetimeEarned }

func (l *Ledger) CanAfford(amount float64) bool {
	return amount >= 0 && l.balance >= amount
}

// Earn credits value. Non-positive amounts are ignored.
func (l *Ledger) Earn(amount float64) {
	if amount <= 0 {
		return
	}
	l.balance += amount
	l.lifetimeEarned += amount
}

// TrySpend debits amount if affordable. A failed spend changes nothing.
func (l *Ledger) TrySpend(amount float64) bool {
	if amount < 0 {
		return false
	}
	if l.balance < amount {
		return false
	}
	l.balance -= amount
	return true
}

// Reset zeroes the account for a campaign restart.
func (l *Ledger) Reset(startingBalance float64) {
	l.balance = startingBalance
	l.lifetimeEarned = 0
}
