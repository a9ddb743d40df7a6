package common

import (
	"fmt"
)

// Every cached view of a network lives under this prefix, so that a single
// invalidation drops all of them.
func CacheKeyNetwork(network string) string {
	return fmt.Sprintf("lottery:%s:", network)
}

func CacheKeyCurrentRound(network string) string {
	return CacheKeyNetwork(network) + "current"
}

func CacheKeyPurchased(network string) string {
	return CacheKeyNetwork(network) + "purchased"
}

func CacheKeyHistory(network string, limit int) string {
	return fmt.Sprintf("%shistory:%d", CacheKeyNetwork(network), limit)
}
