package market

import "propmarket.dapp/pmc/internal/types"

// Classify partitions records by exact owner match against viewer. Both
// outputs keep input order and every record lands in exactly one of them.
func Classify(records []types.PropertyRecord, viewer string) (owned, notOwned []types.PropertyRecord) {
	owned = []types.PropertyRecord{}
	notOwned = []types.PropertyRecord{}
	for _, rec := range records {
		if rec.Owner == viewer {
			owned = append(owned, rec)
		} else {
			notOwned = append(notOwned, rec)
		}
	}
	return owned, notOwned
}
