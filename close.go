package anngo

// Close releases the index's background resources. Operations on a closed
// index return ErrClosed. Close is idempotent.
func (ix *Index) Close() error {
	if ix == nil {
		return nil
	}
	if !ix.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Wait for in-flight operations before tearing down.
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.eng.Close()
	return nil
}
