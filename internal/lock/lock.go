package lock

import (
	"context"
	"sort"
)

// Release frees every key taken by one Acquire call. It is safe to call more than once.
type Release func()

// Locker serializes work on bills and transactions. Keys are taken in sorted
// order so concurrent callers with overlapping key sets cannot deadlock.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

func BillKey(id string) string {
	return "bill:" + id
}

// CustomerKey guards the read-modify-write of a customer's balance row.
func CustomerKey(id string) string {
	return "customer:" + id
}

// CustomerBillsKey serializes bill generation for one customer.
func CustomerBillsKey(id string) string {
	return "customer-bills:" + id
}

func TransactionKey(id string) string {
	return "transaction:" + id
}

// normalize sorts keys and drops duplicates.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
