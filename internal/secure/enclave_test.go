package secure

import (
	"testing"
)

func TestMaterialRevealRoundTrip(t *testing.T) {
	t.Parallel()

	secret := "wJalrXUtnFEMI/K7MDENG/bPxRfiCY"
	m := NewMaterial(secret)
	defer m.Destroy()

	got, err := m.Reveal()
	if err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if got != secret {
		t.Errorf("Reveal() = %q, want the sealed secret back", got)
	}

	// Reveal is repeatable until Destroy.
	got, err = m.Reveal()
	if err != nil {
		t.Fatalf("Second Reveal() error = %v", err)
	}
	if got != secret {
		t.Errorf("Second Reveal() = %q, want the sealed secret back", got)
	}
}

func TestRevealedStringOutlivesMaterial(t *testing.T) {
	t.Parallel()

	secret := "AKIA-material-that-must-survive"
	m := NewMaterial(secret)

	got, err := m.Reveal()
	if err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	m.Destroy()

	// The revealed copy must stay readable after the enclave is gone.
	if got != secret {
		t.Errorf("Revealed string = %q after Destroy, want %q", got, secret)
	}
	for i := range got {
		if got[i] != secret[i] {
			t.Fatalf("Revealed string byte %d changed after Destroy", i)
		}
	}
}

func TestMaterialDestroy(t *testing.T) {
	t.Parallel()

	m := NewMaterial("short-lived")
	m.Destroy()

	got, err := m.Reveal()
	if err != nil {
		t.Fatalf("Reveal() after Destroy error = %v", err)
	}
	if got != "" {
		t.Errorf("Reveal() after Destroy = %q, want empty", got)
	}

	// Destroy is idempotent.
	m.Destroy()
}

func TestMaterialEmptySecret(t *testing.T) {
	t.Parallel()

	m := NewMaterial("")
	defer m.Destroy()

	if _, err := m.Reveal(); err != nil {
		t.Fatalf("Reveal() of empty material error = %v", err)
	}
}
