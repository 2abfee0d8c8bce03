package staterepository

import (
	"sync"
)

var (
	globalRepo   *PebbleStateRepository
	globalRepoMu sync.RWMutex
)

// InitializeGlobalRepository opens the process-wide repository. An empty
// dbPath keeps snapshots in memory.
func InitializeGlobalRepository(dbPath string) error {
	globalRepoMu.Lock()
	defer globalRepoMu.Unlock()
	if globalRepo != nil {
		return nil
	}

	var err error
	if dbPath == "" {
		globalRepo, err = OpenInMemory()
	} else {
		globalRepo, err = Open(dbPath)
	}
	return err
}

// GetGlobalRepository returns the global repository instance
// Returns nil if the repository hasn't been initialized
func GetGlobalRepository() *PebbleStateRepository {
	globalRepoMu.RLock()
	defer globalRepoMu.RUnlock()
	return globalRepo
}

// CloseGlobalRepository closes the global repository and cleans up resources
func CloseGlobalRepository() error {
	globalRepoMu.Lock()
	defer globalRepoMu.Unlock()

	if globalRepo != nil {
		err := globalRepo.Close()
		globalRepo = nil
		return err
	}
	return nil
}
