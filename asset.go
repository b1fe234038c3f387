package boardsync

import (
	"fmt"

	"github.com/cespare/xxhash"
)

// Assets are immutable binary payloads (image bytes and the like) referenced
// by elements. Removal is never propagated: the shared map is append-only
// so a late-joining peer can still resolve a reference another peer has
// already dropped locally.

const AssetSchemaVersion = 1

type Asset struct {
	Id       string `json:"id"`
	Schema   int    `json:"schema"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

func (self *Asset) Clone() *Asset {
	out := *self
	if self.Data != nil {
		out.Data = append([]byte{}, self.Data...)
	}
	return &out
}

// AssetIdForPayload derives a stable content id, so two peers that add the
// same bytes agree on the key without coordination.
func AssetIdForPayload(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
