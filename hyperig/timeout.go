package hyperig

import "github.com/catprotocol/catprotocol/types"

// sweepTimeoutsLocked aborts any CAT whose max lifetime has elapsed
// without a decision arriving, independent of HS (spec §4.2's "Timeout
// sweep", a local safety net against a lost or indefinitely delayed
// status update). It runs before a subblock's transactions are
// processed, using the subblock's own height as "now".
func (n *Node) sweepTimeoutsLocked() {
	for catID, rec := range n.st.cats {
		if rec.status != types.StatusPending || rec.timedOut {
			continue
		}
		if n.st.currentBlockHeight <= rec.maxLifetime {
			continue
		}
		rec.timedOut = true
		n.logger.Warnw("CAT exceeded its lifetime, aborting locally", "cat", catID, "height", n.st.currentBlockHeight, "maxLifetime", rec.maxLifetime)
		n.finalizeCATLocked(catID, types.LimitedFailure)
	}
}
