package storage

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MrCodeEU/facepunch/pkg/imaging"
	"github.com/MrCodeEU/facepunch/pkg/logging"
)

// Sample is one labeled face crop from the dataset.
type Sample struct {
	IdentityID int64
	Image      *image.Gray
}

// Dataset stores face crops as dataset/<identity>/<n>.jpg, sealed by the
// vault when encryption is on.
type Dataset struct {
	dir   string
	vault *Vault
}

// NewDataset creates a Dataset rooted at dir.
func NewDataset(dir string, vault *Vault) (*Dataset, error) {
	if vault == nil {
		return nil, fmt.Errorf("dataset: vault is nil")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	return &Dataset{dir: dir, vault: vault}, nil
}

// Dir returns the dataset root.
func (d *Dataset) Dir() string {
	return d.dir
}

// Save appends samples for an identity, numbering them after any samples
// already on disk.
func (d *Dataset) Save(identityID int64, samples []*image.Gray) error {
	if identityID <= 0 {
		return fmt.Errorf("save samples: invalid identity ID")
	}

	identDir := filepath.Join(d.dir, strconv.FormatInt(identityID, 10))
	next, err := d.nextIndex(identDir)
	if err != nil {
		return err
	}

	for i, img := range samples {
		data, err := imaging.EncodeJPEG(img)
		if err != nil {
			return fmt.Errorf("save samples: %w", err)
		}
		name := fmt.Sprintf("%d.jpg%s", next+i, d.vault.Ext())
		if err := d.vault.WriteFile(filepath.Join(identDir, name), data); err != nil {
			return fmt.Errorf("save samples: %w", err)
		}
	}

	logging.Component("storage").WithFields(logging.Fields{
		"identity": identityID,
		"samples":  len(samples),
	}).Info("Saved face samples")
	return nil
}

func (d *Dataset) nextIndex(identDir string) (int, error) {
	entries, err := os.ReadDir(identDir)
	if os.IsNotExist(err) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dataset: %w", err)
	}

	next := 1
	for _, e := range entries {
		if n, ok := sampleIndex(e.Name()); ok && n >= next {
			next = n + 1
		}
	}
	return next, nil
}

// sampleIndex parses "<n>.jpg" or "<n>.jpg.enc".
func sampleIndex(name string) (int, bool) {
	base := strings.TrimSuffix(name, ".enc")
	if !strings.HasSuffix(base, ".jpg") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(base, ".jpg"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Load reads every sample in the dataset. Directories that are not
// identity ids and files that cannot be read or decoded are skipped.
func (d *Dataset) Load() ([]Sample, error) {
	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	log := logging.Component("storage")
	var out []Sample
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil || id <= 0 {
			log.WithField("dir", e.Name()).Debug("Skipping non-identity dataset directory")
			continue
		}

		files, err := os.ReadDir(filepath.Join(d.dir, e.Name()))
		if err != nil {
			log.WithError(err).WithField("identity", id).Warn("Failed to read samples")
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := sampleIndex(f.Name()); !ok {
				continue
			}
			if strings.HasSuffix(f.Name(), ".enc") != d.vault.Encrypted() {
				continue
			}
			img, err := d.readSample(filepath.Join(d.dir, e.Name(), f.Name()))
			if err != nil {
				log.WithError(err).WithField("file", f.Name()).Debug("Skipping unreadable sample")
				continue
			}
			out = append(out, Sample{IdentityID: id, Image: img})
		}
	}
	return out, nil
}

func (d *Dataset) readSample(path string) (*image.Gray, error) {
	data, err := d.vault.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return imaging.DecodeGray(data)
}

// Count returns the number of stored samples per identity.
func (d *Dataset) Count() (map[int64]int, error) {
	samples, err := d.Load()
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int)
	for _, s := range samples {
		counts[s.IdentityID]++
	}
	return counts, nil
}
