package domain

// BetPayout is one computed payout instruction for a single bet.
type BetPayout struct {
	BetID  string
	Wallet string
	Amount int64 // original stake
	Payout int64 // 0 for losers
	Won    bool
}

// Settlement is the full set of financial consequences of resolving a
// market. All figures are integer currency units.
type Settlement struct {
	Outcome    Side
	TotalPool  int64
	Rake       int64
	PayoutPool int64
	Payouts    []BetPayout
}

// ComputeSettlement derives the parimutuel settlement for a market resolved
// with the given winning side. Every division floors: the rake is
// floor(total*rakePercent/100) and each winning bet receives
// floor(amount*payoutPool/winningPool). The flooring can leave the sum of
// payouts strictly below the payout pool; that residue is intentional and
// is never redistributed.
func ComputeSettlement(m Market, bets []Bet, winner Side) Settlement {
	total := m.TotalPool()
	rake := total * int64(m.RakePercent) / 100
	payoutPool := total - rake

	winningPool := m.PoolA
	if winner == SideB {
		winningPool = m.PoolB
	}

	s := Settlement{
		Outcome:    winner,
		TotalPool:  total,
		Rake:       rake,
		PayoutPool: payoutPool,
	}

	for _, b := range bets {
		p := BetPayout{BetID: b.ID, Wallet: b.Wallet, Amount: b.Amount}
		if b.Side == winner && winningPool > 0 {
			p.Won = true
			p.Payout = b.Amount * payoutPool / winningPool
		}
		s.Payouts = append(s.Payouts, p)
	}
	return s
}
