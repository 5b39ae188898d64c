package addr

import (
	"errors"
	"testing"
)

func TestBoundEndpointsIsDefensiveCopy(t *testing.T) {
	a := Bound("10.0.0.1:80", "10.0.0.2:80")
	eps, ok := a.Endpoints()
	if !ok || len(eps) != 2 {
		t.Fatalf("Endpoints = %v, %v", eps, ok)
	}
	eps[0] = "mutated"
	again, _ := a.Endpoints()
	if again[0] == "mutated" {
		t.Fatal("Endpoints leaked internal slice")
	}
}

func TestMergeFailedDominates(t *testing.T) {
	err := errors.New("boom")
	merged := Merge(FailedAddr(err), Bound("x"))
	if got, ok := merged.Err(); !ok || got != err {
		t.Fatalf("Merge = %v, %v, want failed %v", got, ok, err)
	}
}

func TestMergeBoundUnionsEndpoints(t *testing.T) {
	merged := Merge(Bound("a"), Bound("b"))
	eps, ok := merged.Endpoints()
	if !ok || len(eps) != 2 {
		t.Fatalf("Merge bound+bound = %v, %v", eps, ok)
	}
}

func TestMergePendingPlusPending(t *testing.T) {
	merged := Merge(PendingAddr(), PendingAddr())
	if !merged.IsPending() {
		t.Fatal("expected Pending+Pending to stay Pending")
	}
}

func TestMergeNegPlusNeg(t *testing.T) {
	merged := Merge(Neg(), Neg())
	if !merged.IsNeg() {
		t.Fatal("expected Neg+Neg to stay Neg")
	}
}

func TestMergePendingPlusNeg(t *testing.T) {
	merged := Merge(PendingAddr(), Neg())
	if !merged.IsPending() {
		t.Fatal("expected Pending+Neg to resolve to Pending (nothing concrete yet)")
	}
}
