package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTV_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TV)
		wantErr string
	}{
		{name: "valid", mutate: func(*TV) {}},
		{name: "missing id", mutate: func(tv *TV) { tv.ID = "" }, wantErr: "id is required"},
		{name: "missing name", mutate: func(tv *TV) { tv.Name = " " }, wantErr: "name must be"},
		{name: "zero output", mutate: func(tv *TV) { tv.Output = 0 }, wantErr: "output must be"},
		{name: "broadcast cec address", mutate: func(tv *TV) { tv.CECAddress = 15 }, wantErr: "cec_address"},
		{name: "no control path", mutate: func(tv *TV) { tv.SupportsCEC, tv.SupportsIR = false, false }, wantErr: "at least one"},
		{name: "ir without address", mutate: func(tv *TV) { tv.IRAddress = "" }, wantErr: "ir_address is required"},
		{name: "bad method", mutate: func(tv *TV) { tv.PreferredMethod = "bluetooth" }, wantErr: "invalid method"},
		{
			name: "preferred method unsupported",
			mutate: func(tv *TV) {
				tv.SupportsIR = false
				tv.PreferredMethod = MethodIR
			},
			wantErr: "not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tv := testTV("tv-1", 1)
			tt.mutate(tv)
			err := tv.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidDevice) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want ErrInvalidDevice containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestTV_ValidateNormalisesMethod(t *testing.T) {
	tv := testTV("tv-1", 1)
	tv.PreferredMethod = "cec"
	if err := tv.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if tv.PreferredMethod != MethodCEC {
		t.Errorf("PreferredMethod = %q, want CEC", tv.PreferredMethod)
	}

	tv.PreferredMethod = ""
	_ = tv.Validate()
	if tv.PreferredMethod != MethodAuto {
		t.Errorf("empty PreferredMethod = %q, want AUTO", tv.PreferredMethod)
	}
}

func TestRegistry_CacheAndWrites(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := repo.Create(ctx, testTV("tv-2", 2)); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}

	if err := reg.CreateTV(ctx, testTV("tv-1", 1)); err != nil {
		t.Fatalf("CreateTV() error = %v", err)
	}
	tvs, err := reg.ListTVs(ctx)
	if err != nil {
		t.Fatalf("ListTVs() error = %v", err)
	}
	if len(tvs) != 2 || tvs[0].ID != "tv-1" || tvs[1].ID != "tv-2" {
		t.Errorf("ListTVs() = %v", tvs)
	}

	got, err := reg.GetTV(ctx, "tv-1")
	if err != nil {
		t.Fatalf("GetTV() error = %v", err)
	}
	got.Name = "mutated"
	again, _ := reg.GetTV(ctx, "tv-1")
	if again.Name == "mutated" {
		t.Error("GetTV() returned a reference into the cache")
	}

	if err := reg.CreateTV(ctx, &TV{ID: "bad"}); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("CreateTV(invalid) error = %v, want ErrInvalidDevice", err)
	}

	if err := reg.DeleteTV(ctx, "tv-1"); err != nil {
		t.Fatalf("DeleteTV() error = %v", err)
	}
	if _, err := reg.GetTV(ctx, "tv-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetTV() after delete error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_GetTVs(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	reg := NewRegistry(repo)
	ctx := context.Background()

	for _, tv := range []*TV{testTV("a", 1), testTV("b", 2)} {
		if err := reg.CreateTV(ctx, tv); err != nil {
			t.Fatalf("CreateTV() error = %v", err)
		}
	}

	tvs, err := reg.GetTVs(ctx, []string{"b", "a"})
	if err != nil {
		t.Fatalf("GetTVs() error = %v", err)
	}
	if tvs[0].ID != "b" || tvs[1].ID != "a" {
		t.Errorf("GetTVs() order = %s, %s; want b, a", tvs[0].ID, tvs[1].ID)
	}

	if _, err := reg.GetTVs(ctx, []string{"a", "zzz"}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetTVs() unknown id error = %v, want ErrDeviceNotFound", err)
	}
}

func TestLoadSeedFileAndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	content := `
tvs:
  - id: bar-left
    name: Bar Left
    brand: sony
    output: 3
    supports_cec: true
    supports_ir: true
    ir_address: "1:3"
  - id: patio
    name: Patio
    brand: samsung
    output: 8
    supports_cec: true
    preferred_method: cec
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing seed file: %v", err)
	}

	tvs, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile() error = %v", err)
	}
	if len(tvs) != 2 || tvs[1].PreferredMethod != MethodCEC || tvs[0].PreferredMethod != MethodAuto {
		t.Fatalf("LoadSeedFile() = %+v", tvs)
	}

	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	n, err := Seed(ctx, repo, tvs, nil)
	if err != nil || n != 2 {
		t.Fatalf("Seed() = %d, %v; want 2, nil", n, err)
	}

	n, err = Seed(ctx, repo, tvs, nil)
	if err != nil || n != 0 {
		t.Errorf("second Seed() = %d, %v; want 0, nil", n, err)
	}
}

func TestLoadSeedFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "tvs: [unclosed"},
		{name: "invalid tv", content: "tvs:\n  - id: x\n    name: X\n    output: 0\n    supports_cec: true\n"},
		{
			name:    "duplicate id",
			content: "tvs:\n  - {id: x, name: X, output: 1, supports_cec: true}\n  - {id: x, name: Y, output: 2, supports_cec: true}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "devices.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("writing seed file: %v", err)
			}
			if _, err := LoadSeedFile(path); err == nil {
				t.Error("LoadSeedFile() expected error")
			}
		})
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSeedFile(missing) expected error")
	}
}
