package storage

import "testing"

func TestNormalizeTresorIDFoldsCase(t *testing.T) {
	if NormalizeTresorID(" AbC123 ") != NormalizeTresorID("abc123") {
		t.Fatal("expected case-insensitive ids to normalize equal")
	}
}

func TestTresorMembership(t *testing.T) {
	tresor := Tresor{ID: "t1", Members: []string{"a", "b"}}
	tresor.AddMember("c")
	if !tresor.HasMember("c") {
		t.Fatal("expected added member")
	}
	if !tresor.RemoveMember("a") {
		t.Fatal("expected removal to report presence")
	}
	if tresor.HasMember("a") {
		t.Fatal("expected member removed")
	}
	if tresor.RemoveMember("missing") {
		t.Fatal("expected absent member to report false")
	}
	if len(tresor.Members) != 2 {
		t.Fatalf("members = %v", tresor.Members)
	}
}
