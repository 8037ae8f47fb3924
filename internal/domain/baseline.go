package domain

import "time"

// BaselineRecord is one opaque versioned blob stored by the baseline
// store adapter, addressed by key (typically "baselines/{ruleId}.json").
type BaselineRecord struct {
	Key        string    `json:"key"`
	Version    int       `json:"version"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Data       []byte    `json:"data"`
}

// BaselineListing is the metadata-only projection returned by
// BaselineStoreAdapter.ListBaselines, most-recent first.
type BaselineListing struct {
	Key        string    `json:"key"`
	Version    int       `json:"version"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
