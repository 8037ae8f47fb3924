package domain

// NonceRecord is one version-keyed entry in the nonce cache.
type NonceRecord struct {
	Version  int    `json:"version"`
	Value    string `json:"value"`
	LoadedAt int64  `json:"loadedAt"`
	Source   string `json:"source"`
}

// NonceStatus describes one cache entry's age and validity for
// introspection via nonce.Cache.Status.
type NonceStatus struct {
	Version int   `json:"version"`
	AgeMs   int64 `json:"ageMs"`
	Valid   bool  `json:"valid"`
}
