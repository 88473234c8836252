package migrate

import (
	"errors"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		if err := Run(dsn, "up", 0); !errors.Is(err, ErrMissingDSN) {
			t.Errorf("Run(%q): want ErrMissingDSN, got %v", dsn, err)
		}
	}
	if _, _, err := Version(""); !errors.Is(err, ErrMissingDSN) {
		t.Errorf("Version: want ErrMissingDSN, got %v", err)
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "invalid", "UP", "Down"} {
		t.Run(dir, func(t *testing.T) {
			if err := Run("postgres://localhost/test", dir, 0); err == nil {
				t.Errorf("Run with direction %q should return error", dir)
			}
		})
	}
}

func TestRun_NegativeSteps(t *testing.T) {
	if err := Run("postgres://localhost/test", "down", -1); err == nil {
		t.Error("negative steps should be rejected")
	}
}

func TestValidate_Accepts(t *testing.T) {
	if err := validate("postgres://localhost/test", "down", 1); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestErrNoChange(t *testing.T) {
	if ErrNoChange == nil {
		t.Fatal("ErrNoChange should not be nil")
	}
}
