package evidence

import (
	"context"
)

// Normalizer turns both sides of a biometric comparison into canonical form:
// fresh uploads directly, stored evidence by fetching the exact bytes from
// the object store and running them through the same decode path.
type Normalizer struct {
	store Store
}

func NewNormalizer(store Store) *Normalizer {
	return &Normalizer{store: store}
}

// NormalizeUpload converts freshly captured evidence bytes.
func (n *Normalizer) NormalizeUpload(modality Modality, raw []byte, contentType string) (*Evidence, error) {
	return Normalize(modality, raw, contentType)
}

// FetchStored retrieves previously stored evidence by its storage key and
// normalizes it identically to an upload.
func (n *Normalizer) FetchStored(ctx context.Context, modality Modality, storageKey, contentType string) (*Evidence, error) {
	raw, err := n.store.Get(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	return Normalize(modality, raw, contentType)
}
