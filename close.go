package vecforest

// Close releases the forest and the stored items. Later calls on the index
// return ErrClosed. Closing twice is a no-op.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed.Swap(true) {
		return nil
	}
	if b := idx.state.Swap(nil); b != nil {
		idx.rc.ReleaseMemory(b.arenaBytes)
	}
	idx.rc.ReleaseMemory(idx.storeBytes)
	idx.storeBytes = 0
	idx.store = nil
	return nil
}
