package notify

import (
	"sync"
	"testing"
)

func TestTelegramNotifyBeforeRegistration(t *testing.T) {
	n := &TelegramNotifier{}
	if err := n.notifyAdmin("ping"); err != nil {
		t.Fatalf("notifyAdmin() error = %v", err)
	}
}

func TestTelegramChatCaptureConcurrency(t *testing.T) {
	n := &TelegramNotifier{}

	// chat registration races request-side notifications; run under -race
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n.adminChatID.Store(0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := n.notifyAdmin("ping"); err != nil {
					t.Errorf("notifyAdmin() error = %v", err)
				}
			}
		}()
	}
	wg.Wait()
}
