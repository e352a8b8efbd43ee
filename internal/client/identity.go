package client

import (
	"strings"

	"restaurant-chat-backend/utils"
)

// loadOrCreateAnonymousToken returns the persisted anonymous token, minting
// and storing a fresh one when the cache has none or holds garbage. Reads
// never fail the caller: absence and corruption both mean "create fresh".
func loadOrCreateAnonymousToken(cache *LocalCache) string {
	token, err := cache.GetMeta(metaAnonymousToken)
	if err == nil && validAnonymousToken(token) {
		return token
	}

	token = utils.NewAnonymousID()
	// Best effort: a token that fails to persist still works for this run,
	// the next run just mints another.
	_ = cache.SetMeta(metaAnonymousToken, token)
	return token
}

func validAnonymousToken(token string) bool {
	return strings.HasPrefix(token, "anon-") && len(token) > len("anon-")
}
