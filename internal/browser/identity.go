package browser

import (
	"math/rand"
	"sync"
	"time"
)

// Identity rotates user-agent strings so repeat scans of the same site are
// not trivially fingerprinted as automation.
type Identity struct {
	userAgents []string
	mu         sync.Mutex
	rng        *rand.Rand
}

func NewIdentity() *Identity {
	return &Identity{
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// UserAgent returns a random user agent string.
func (i *Identity) UserAgent() string {
	if len(i.userAgents) == 0 {
		return ""
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.userAgents[i.rng.Intn(len(i.userAgents))]
}
