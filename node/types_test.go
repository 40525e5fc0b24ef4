package node

import "testing"

func TestNode_AsScanPanicsOnMask(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling AsScan on a mask node")
		}
	}()
	m := NewMask[int]()
	m.Base().AsScan()
}

func TestNode_AsMaskPanicsOnScan(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling AsMask on a scan node")
		}
	}()
	s := NewScan[int](KindScan16)
	s.Base().AsMask()
}

func TestNode_SetValueAndClearValue(t *testing.T) {
	n := &Node[int]{}
	if n.HasValue() {
		t.Fatalf("zero-value node should not have a value")
	}
	n.SetValue(42)
	if !n.HasValue() || n.Value() != 42 {
		t.Fatalf("SetValue did not take effect")
	}
	n.ClearValue()
	if n.HasValue() {
		t.Fatalf("ClearValue did not clear the has-value flag")
	}
	if n.Value() != 0 {
		t.Fatalf("ClearValue should zero the stored value, got %d", n.Value())
	}
}

func TestScanCapacities(t *testing.T) {
	tests := []struct {
		k                Kind
		cap, capWithVal  int
		prefixCap        int
	}{
		{KindScan16, capScan16, capScan16 - 1, 6},
		{KindScan32, capScan32, capScan32 - 1, 14},
		{KindScan64, capScan64, capScan64 - 1, 28},
		{KindScan128, capScan128, capScan128 - 1, maxPrefixLen},
	}
	for _, tt := range tests {
		s := NewScan[int](tt.k)
		if s.Capacity() != tt.cap {
			t.Errorf("%v.Capacity() = %d, want %d", tt.k, s.Capacity(), tt.cap)
		}
		if s.CapacityWithValue() != tt.capWithVal {
			t.Errorf("%v.CapacityWithValue() = %d, want %d", tt.k, s.CapacityWithValue(), tt.capWithVal)
		}
		if s.PrefixCap() != tt.prefixCap {
			t.Errorf("%v.PrefixCap() = %d, want %d", tt.k, s.PrefixCap(), tt.prefixCap)
		}
	}
}

func TestResetScanHeaderClearsState(t *testing.T) {
	s := NewScan[int](KindScan32)
	SetPrefix[int](s, []byte("x"))
	s.SetBranchLen(2)
	s.Base().SetValue(5)
	ResetScanHeader[int](s, KindScan16)
	if s.Base().Kind() != KindScan16 {
		t.Fatalf("ResetScanHeader did not restamp kind, got %v", s.Base().Kind())
	}
	if len(s.Prefix()) != 0 || len(s.Branches()) != 0 || s.Base().HasValue() {
		t.Fatalf("ResetScanHeader should report a fresh empty header, prefix=%v branches=%v hasValue=%v", s.Prefix(), s.Branches(), s.Base().HasValue())
	}
}
