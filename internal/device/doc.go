// Package device holds the TV catalogue the control layer reads.
//
// A TV is tied to one matrix output and declares which control paths
// (CEC through the matrix, IR through the external transport) it
// supports. TVs live in SQLite (table tv_devices) behind Repository,
// are cached by Registry, and can be seeded from a YAML file at startup:
//
//	tvs, err := device.LoadSeedFile(cfg.DevicesFile)
//	n, err := device.Seed(ctx, repo, tvs, logger)
//	reg := device.NewRegistry(repo)
//	err = reg.RefreshCache(ctx)
//
// The control layer never mutates TVs.
package device
