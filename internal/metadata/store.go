package metadata

import (
	"context"

	"github.com/beamstore/beamstore/internal/transport"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// DefaultCacheCapacity bounds the descriptor cache.
const DefaultCacheCapacity = 1000

// A Store persists encoded descriptors in transport message bodies, with a
// bounded LRU cache in front of the fetches. The cache holds the encoded
// (still encrypted) form and is purely an accelerator: the message body
// remains the only durable copy.
type Store struct {
	codec     *Codec
	messenger transport.Messenger
	cache     *lru.Cache[string, string]
}

// NewStore returns a Store caching up to capacity encoded descriptors.
func NewStore(codec *Codec, messenger transport.Messenger, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}

	cache, err := lru.New[string, string](capacity)
	if err != nil {
		return nil, errors.Wrap(err, "could not build metadata cache")
	}

	return &Store{
		codec:     codec,
		messenger: messenger,
		cache:     cache,
	}, nil
}

// Save encodes the descriptor into the body of the message identified by
// messageID and populates the cache so the first download skips the fetch.
// The cache is only written once the transport accepted the body.
func (s *Store) Save(ctx context.Context, messageID string, d *Descriptor) error {
	encoded, err := s.codec.Encode(d)
	if err != nil {
		return err
	}

	if err = s.messenger.PatchMessageBody(ctx, messageID, encoded); err != nil {
		return errors.Wrap(err, "could not store descriptor")
	}

	s.cache.Add(messageID, encoded)
	return nil
}

// Load returns the descriptor held by the message identified by messageID,
// from cache when possible.
func (s *Store) Load(ctx context.Context, messageID string) (*Descriptor, error) {
	encoded, ok := s.cache.Get(messageID)
	if !ok {
		body, err := s.messenger.FetchMessageBody(ctx, messageID)
		if err != nil {
			return nil, errors.Wrap(err, "could not fetch descriptor")
		}
		encoded = body
	}

	d, err := s.codec.Decode(encoded)
	if err != nil {
		return nil, err
	}

	if !ok {
		s.cache.Add(messageID, encoded)
	}
	return d, nil
}

// Forget drops the cached descriptor of a deleted object.
func (s *Store) Forget(messageID string) {
	s.cache.Remove(messageID)
}
