package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSetGetRoundtrip(t *testing.T) {
	st := openTestStore(t)

	if err := st.Set(KeyTruckBarcode, "SGI045-00149601"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := st.Get(KeyTruckBarcode); got != "SGI045-00149601" {
		t.Errorf("Get = %q, want %q", got, "SGI045-00149601")
	}
}

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	st := openTestStore(t)

	if got := st.Get("nonexistent"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestSetOverwrites(t *testing.T) {
	st := openTestStore(t)

	if err := st.Set(KeyTripType, "IN"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Set(KeyTripType, "OUT"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if got := st.Get(KeyTripType); got != "OUT" {
		t.Errorf("Get after overwrite = %q, want OUT", got)
	}
}

func TestRemove(t *testing.T) {
	st := openTestStore(t)

	if err := st.Set(KeyTripNumber, "00149601"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Remove(KeyTripNumber); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := st.Get(KeyTripNumber); got != "" {
		t.Errorf("Get after Remove = %q, want empty", got)
	}

	// removing a missing key is not an error
	if err := st.Remove(KeyTripNumber); err != nil {
		t.Errorf("Remove(missing): %v", err)
	}
}

func TestClear(t *testing.T) {
	st := openTestStore(t)

	for _, key := range []string{KeyAuthUser, KeyTruckBarcode, KeyEnvironment} {
		if err := st.Set(key, "x"); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}
	if err := st.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, key := range []string{KeyAuthUser, KeyTruckBarcode, KeyEnvironment} {
		if got := st.Get(key); got != "" {
			t.Errorf("Get(%s) after Clear = %q, want empty", key, got)
		}
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Set(KeyTripDriver, "BUDI SANTOSO"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	if got := st2.Get(KeyTripDriver); got != "BUDI SANTOSO" {
		t.Errorf("Get after reopen = %q, want BUDI SANTOSO", got)
	}
}
