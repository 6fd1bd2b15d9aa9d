package intercept

import (
	"net/http"
	"sync"
)

var installMu sync.Mutex

// Install wraps http.DefaultTransport so that code using http.DefaultClient,
// or any client without its own transport, gets the bearer credential too.
// It reports false when a is nil or a Transport is already installed.
func Install(a *Augmenter) bool {
	if a == nil {
		return false
	}
	installMu.Lock()
	defer installMu.Unlock()

	if _, ok := http.DefaultTransport.(*Transport); ok {
		return false
	}
	http.DefaultTransport = NewTransport(http.DefaultTransport, a)
	return true
}

// Uninstall restores the transport replaced by Install.
func Uninstall() bool {
	installMu.Lock()
	defer installMu.Unlock()

	t, ok := http.DefaultTransport.(*Transport)
	if !ok {
		return false
	}
	http.DefaultTransport = t.next
	return true
}
