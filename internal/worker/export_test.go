package worker

// ResetInstance clears the process-wide drainer between tests.
func ResetInstance() {
	instanceMu.Lock()
	instance = nil
	instanceMu.Unlock()
}
