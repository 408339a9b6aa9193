package events

import "sync"

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// Merge subscribes to each topic on sub and fans the payloads into a single
// channel. If any subscription fails, the ones already made are cancelled.
func Merge(sub Subscriber, topics ...string) (<-chan []byte, func(), error) {
	out := make(chan []byte, 64)
	var (
		cancels []func()
		wg      sync.WaitGroup
	)

	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			close(out)
			return nil, nil, err
		}
		cancels = append(cancels, cancel)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for data := range ch {
				select {
				case out <- data:
				default:
				}
			}
		}()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			for _, c := range cancels {
				c()
			}
			wg.Wait()
			close(out)
		})
	}
	return out, cancel, nil
}
