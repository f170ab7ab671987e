package gossip

import "sync"

// LoopbackTransport is a Transport with no network: Broadcast fans out to
// whatever local subscribers are registered, and SendTo is a no-op since
// there are no remote peers. It's the transport a single node or a test
// wires in place of a real peer-to-peer implementation.
type LoopbackTransport struct {
	mu   sync.Mutex
	subs map[Topic][]chan []byte
}

// NewLoopbackTransport constructs an empty LoopbackTransport.
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{subs: make(map[Topic][]chan []byte)}
}

func (t *LoopbackTransport) Broadcast(topic Topic, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs[topic] {
		select {
		case ch <- payload:
		default: // a slow subscriber drops messages rather than blocking the writer
		}
	}
	return nil
}

func (t *LoopbackTransport) SendTo(peerID string, payload []byte) error {
	return nil
}

func (t *LoopbackTransport) Subscribe(topic Topic) (<-chan []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan []byte, 64)
	t.subs[topic] = append(t.subs[topic], ch)
	return ch, nil
}
