package device

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the layout of the devices YAML file.
//
//	tvs:
//	  - id: tv-bar-1
//	    name: Bar Left
//	    brand: sony
//	    output: 3
//	    supports_cec: true
//	    supports_ir: true
//	    ir_address: "1:3"
type SeedFile struct {
	TVs []TV `yaml:"tvs"`
}

// LoadSeedFile reads and validates a devices file. Duplicate IDs are rejected.
func LoadSeedFile(path string) ([]TV, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}

	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing devices file: %w", err)
	}

	seen := make(map[string]bool, len(f.TVs))
	var errs []error
	for i := range f.TVs {
		tv := &f.TVs[i]
		if err := tv.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[tv.ID] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDeviceExists, tv.ID))
		}
		seen[tv.ID] = true
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.TVs, nil
}

// Seed inserts TVs that are not yet in the repository. Existing rows are
// left untouched so operator edits survive a restart. Returns the number
// of TVs created.
func Seed(ctx context.Context, repo Repository, tvs []TV, logger Logger) (int, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	created := 0
	for i := range tvs {
		tv := tvs[i]
		err := repo.Create(ctx, &tv)
		switch {
		case err == nil:
			created++
			logger.Info("seeded tv", "id", tv.ID, "brand", tv.Brand, "output", tv.Output)
		case errors.Is(err, ErrDeviceExists):
			logger.Debug("tv exists, skipping seed", "id", tv.ID)
		default:
			return created, fmt.Errorf("seeding tv %s: %w", tv.ID, err)
		}
	}
	return created, nil
}
