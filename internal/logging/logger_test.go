package logging

import "testing"

func TestNew(t *testing.T) {
	for _, env := range []string{"dev", "prod"} {
		logger, err := New(env, "debug")
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		_ = logger.Sync()
	}

	if _, err := New("dev", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
