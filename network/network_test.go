package network

import "testing"

func TestAlStateFromByte(t *testing.T) {
	cases := []struct {
		in   uint8
		want AlState
	}{
		{0x1, AlStateInit},
		{0x2, AlStatePreOperational},
		{0x3, AlStateBootstrap},
		{0x4, AlStateSafeOperational},
		{0x8, AlStateOperational},
		{0x0, AlStateInvalid},
		{0x7, AlStateInvalid},
	}
	for _, c := range cases {
		if got := AlStateFromByte(c.in); got != c.want {
			t.Errorf("AlStateFromByte(0x%x) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestAlState_String(t *testing.T) {
	if got := AlStateOperational.String(); got != "Operational" {
		t.Errorf("String() = %q, want %q", got, "Operational")
	}
	if got := AlStateInvalid.String(); got != "Invalid" {
		t.Errorf("String() = %q, want %q", got, "Invalid")
	}
}

func TestNewSlave_Defaults(t *testing.T) {
	s := NewSlave(0x1003)
	if s.StationAddress != 0x1003 {
		t.Errorf("StationAddress = 0x%04x, want 0x1003", s.StationAddress)
	}
	if s.AlState != AlStateInvalid {
		t.Errorf("AlState = %v, want AlStateInvalid", s.AlState)
	}
	if s.MailboxCount != 1 {
		t.Errorf("MailboxCount = %d, want 1", s.MailboxCount)
	}
	if s.DC.ParentIndex != -1 {
		t.Errorf("DC.ParentIndex = %d, want -1", s.DC.ParentIndex)
	}
}

func TestTable_AddGetPair(t *testing.T) {
	tbl := NewTable()
	rootIdx := tbl.Add(NewSlave(0x1000))
	childIdx := tbl.Add(NewSlave(0x1001))

	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}

	child, root := tbl.Pair(childIdx, rootIdx)
	if child.StationAddress != 0x1001 || root.StationAddress != 0x1000 {
		t.Fatalf("Pair() = (%v, %v), want station addresses 0x1001, 0x1000", child.StationAddress, root.StationAddress)
	}

	if got := tbl.Get(5); got != nil {
		t.Errorf("Get(5) = %v, want nil", got)
	}

	all := tbl.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d slaves, want 2", len(all))
	}
}
