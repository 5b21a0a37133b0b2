package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lucidodm/src/helpers"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const bundleFileExtension = ".bnd"

// BundleStorageEngine persists every bundle as one BSON data file in DataDirectory. Reads
// are served from the in-memory copy; each mutation rewrites the affected bundle file.
type BundleStorageEngine struct {
	*MemoryStore
	DataDirectory string
	logger        *zap.SugaredLogger
}

func NewBundleStore(dataDir string, newID helpers.IDGenerator, logger *zap.SugaredLogger) (*BundleStorageEngine, error) {
	store := &BundleStorageEngine{
		MemoryStore:   NewMemoryStore(newID, logger),
		DataDirectory: dataDir,
		logger:        logger,
	}

	if err := os.MkdirAll(store.DataDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", store.DataDirectory, err)
	}

	bundles, err := store.LoadAllBundleDataFiles()
	if err != nil {
		return nil, err
	}
	store.MemoryStore.bundles = bundles
	store.MemoryStore.onWrite = store.WriteBundleFile

	logger.Infow("bundle store opened", "dataDir", dataDir, "bundles", len(bundles))
	return store, nil
}

func (b *BundleStorageEngine) bundlePath(name string) string {
	return filepath.Join(b.DataDirectory, name+bundleFileExtension)
}

// LoadAllBundleDataFiles loads every bundle data file found in the data directory.
func (b *BundleStorageEngine) LoadAllBundleDataFiles() (map[string]*Bundle, error) {
	bundles := make(map[string]*Bundle)

	matches, err := filepath.Glob(filepath.Join(b.DataDirectory, "*"+bundleFileExtension))
	if err != nil {
		return nil, fmt.Errorf("error listing bundle files in %s: %w", b.DataDirectory, err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		bundle, err := b.LoadBundleDataFile(filepath.Base(path))
		if err != nil {
			return nil, err
		}
		bundles[bundle.Name] = bundle
	}
	return bundles, nil
}

// LoadBundleDataFile memory maps a bundle file and decodes it.
func (b *BundleStorageEngine) LoadBundleDataFile(fileName string) (*Bundle, error) {
	bundleFile, err := helpers.OpenDataFile(b.DataDirectory, fileName)
	if err != nil {
		return nil, err
	}
	defer bundleFile.Close()

	stat, err := bundleFile.Stat()
	if err != nil {
		return nil, fmt.Errorf("error reading stats of bundle file %s: %w", fileName, err)
	}
	if stat.Size() == 0 {
		return NewBundle(strings.TrimSuffix(fileName, bundleFileExtension)), nil
	}

	data, err := unix.Mmap(int(bundleFile.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("error memory mapping bundle file %s: %w", fileName, err)
	}
	defer unix.Munmap(data)

	decoded, err := helpers.DecodeBSON(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding bundle data from file %s: %w", fileName, err)
	}

	bundle, err := MapToBundle(decoded)
	if err != nil {
		return nil, fmt.Errorf("bundle file %s: %w", fileName, err)
	}
	return bundle, nil
}

// WriteBundleFile encodes the bundle and replaces its data file. The temporary file is
// held under an exclusive flock until it is renamed into place.
func (b *BundleStorageEngine) WriteBundleFile(bundle *Bundle) error {
	encodedBundle, err := helpers.EncodeBSON(BundleToMap(bundle))
	if err != nil {
		return fmt.Errorf("error encoding bundle %s: %w", bundle.Name, err)
	}

	finalPath := b.bundlePath(bundle.Name)
	tmpPath := finalPath + ".tmp"

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating data file %s: %w", bundle.Name, err)
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("error locking data file %s: %w", bundle.Name, err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	fileLen, err := file.Write(encodedBundle)
	if err != nil {
		return fmt.Errorf("error writing to bundle data file %s: %w", bundle.Name, err)
	}
	if fileLen != len(encodedBundle) {
		return fmt.Errorf("error writing to bundle data file %s: wrote %d bytes, expected %d", bundle.Name, fileLen, len(encodedBundle))
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("error syncing bundle data file %s: %w", bundle.Name, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("error replacing bundle data file %s: %w", bundle.Name, err)
	}

	b.logger.Debugw("bundle file written", "bundle", bundle.Name, "documents", len(bundle.Documents), "bytes", fileLen)
	return nil
}

// RemoveBundleFile drops a bundle from memory and disk.
func (b *BundleStorageEngine) RemoveBundleFile(bundleName string) error {
	if err := validateCollectionName(bundleName); err != nil {
		return err
	}

	b.MemoryStore.mu.Lock()
	delete(b.MemoryStore.bundles, bundleName)
	b.MemoryStore.mu.Unlock()

	path := b.bundlePath(bundleName)
	if !helpers.FileExists(path, b.logger) {
		return nil
	}
	if err := helpers.DeleteDataFile(path); err != nil {
		return fmt.Errorf("error removing bundle file %s: %w", bundleName, err)
	}
	return nil
}

// Close flushes every bundle to disk.
func (b *BundleStorageEngine) Close(ctx context.Context) error {
	b.MemoryStore.mu.Lock()
	defer b.MemoryStore.mu.Unlock()

	var err error
	for _, bundle := range b.MemoryStore.bundles {
		err = multierr.Append(err, b.WriteBundleFile(bundle))
	}
	return err
}
