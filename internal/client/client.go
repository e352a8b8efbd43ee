package client

// Open is the widget entrypoint: it opens the local cache, loads or mints
// the anonymous identity token, and returns a syncer talking to the public
// chat API at baseURL. The caller still calls Syncer.Open to resolve the
// session once the chat UI actually opens.
func Open(baseURL, cachePath string) (*Syncer, error) {
	cache, err := OpenCache(cachePath)
	if err != nil {
		return nil, err
	}

	token := loadOrCreateAnonymousToken(cache)
	api := NewAPI(baseURL, token)
	return NewSyncer(api, cache), nil
}
