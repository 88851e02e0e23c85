package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownObjectURL is returned when revoking a URL that is not live,
// including one that was already revoked.
var ErrUnknownObjectURL = errors.New("object url: not live")

type blob struct {
	data     []byte
	mimeType string
}

// ObjectURLs hands out process-local references to in-memory file data.
// Every URL must be revoked exactly once.
type ObjectURLs struct {
	mu   sync.Mutex
	live map[string]blob
}

func NewObjectURLs() *ObjectURLs {
	return &ObjectURLs{live: make(map[string]blob)}
}

// Create registers data and returns its URL.
func (o *ObjectURLs) Create(data []byte, mimeType string) string {
	url := "blob:" + uuid.NewString()
	o.mu.Lock()
	o.live[url] = blob{data: data, mimeType: mimeType}
	o.mu.Unlock()
	return url
}

// Resolve returns the data behind a live URL.
func (o *ObjectURLs) Resolve(url string) ([]byte, string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.live[url]
	return b.data, b.mimeType, ok
}

// Revoke releases a URL.
func (o *ObjectURLs) Revoke(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.live[url]; !ok {
		return ErrUnknownObjectURL
	}
	delete(o.live, url)
	return nil
}

// Live returns the number of URLs not yet revoked.
func (o *ObjectURLs) Live() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.live)
}
