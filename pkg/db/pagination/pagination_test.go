package pagination

import "testing"

func TestNormalizeAndOffset(t *testing.T) {
	p := Pagination{Page: 0, Limit: 500}.Normalize()
	if p.Page != 1 || p.Limit != MaxLimit {
		t.Fatalf("unexpected normalized pagination %+v", p)
	}
	if got := (Pagination{Page: 3, Limit: 20}).Offset(); got != 40 {
		t.Fatalf("expected offset 40, got %d", got)
	}
}

func TestBuildPageInfo(t *testing.T) {
	info := BuildPageInfo(Pagination{Page: 2, Limit: 10}, 21)
	if info.TotalPages != 3 || info.Total != 21 || info.Page != 2 {
		t.Fatalf("unexpected page info %+v", info)
	}
	if empty := BuildPageInfo(Pagination{}, 0); empty.TotalPages != 0 {
		t.Fatalf("expected zero pages, got %d", empty.TotalPages)
	}
}
